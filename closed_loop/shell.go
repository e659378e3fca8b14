package main

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	control "dd-drive/closed_loop/speed_control"
	"dd-drive/comms"
)

// shellCore is what the development shell needs from the scheduler.
type shellCore interface {
	comms.Commander
	comms.TelemetrySource
}

func newShell(core shellCore) *ishell.Shell {
	shell := ishell.New()
	shell.Println("dd-drive development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "set",
		Help: "set <left> <right>  target speeds in counts/s",
		Func: func(c *ishell.Context) {
			out, err := shellSet(core, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(out)
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "zero both targets",
		Func: func(c *ishell.Context) {
			core.Stop()
			c.Println("STOPPED")
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "targets, speeds and outputs of the last tick",
		Func: func(c *ishell.Context) {
			c.Println(shellStatus(core.Telemetry()))
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "pid",
		Help: "PID state of both channels",
		Func: func(c *ishell.Context) {
			c.Println(shellPID(core.Telemetry()))
		},
	})
	return shell
}

func shellSet(core comms.Commander, args []string) (string, error) {
	cmd, err := comms.ParseCommand(strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	l, r := cmd.Apply(core)
	return fmt.Sprintf("OK L=%.0f R=%.0f", l, r), nil
}

func shellStatus(t control.Telemetry) string {
	line := func(st control.ChannelState) string {
		mode := control.GetControlModeStr(control.Output{Duty: st.Duty, Direction: st.Direction, Coast: st.Coast})
		return fmt.Sprintf("%-5s tgt=%7.1f cur=%7.1f duty=%4d %s count=%d",
			st.Name, st.Target, st.Measured, st.Duty, mode, st.Count)
	}
	return fmt.Sprintf("tick %d\n%s\n%s", t.Tick, line(t.Left), line(t.Right))
}

func shellPID(t control.Telemetry) string {
	line := func(st control.ChannelState) string {
		return fmt.Sprintf("%-5s err=%8.2f prev=%8.2f I=%7.2f D=%7.3f u=%8.2f",
			st.Name, st.Error, st.PrevError, st.Integral, st.Derivative, st.Effort)
	}
	return line(t.Left) + "\n" + line(t.Right)
}
