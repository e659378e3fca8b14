package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	control "dd-drive/closed_loop/speed_control"
	"dd-drive/comms"
	"dd-drive/encoder"
	"dd-drive/hardware"
	"dd-drive/utils"
)

const shutdownGrace = 2 * time.Second

type RunnerOptions struct {
	Simulated bool
	Shell     bool
}

// Runner owns the control loop and everything attached to it: motor drivers,
// encoders and the command/telemetry sinks.
type Runner struct {
	cfg  Config
	opts RunnerOptions
	log  *utils.Logger

	sched *control.Scheduler

	sims     []*hardware.SimMotor
	encoders []*encoder.GPIOEncoder
	gpioOpen bool

	httpSrv *http.Server
	stream  *comms.TelemetryStream

	serialPort serial.Port
	serialSink *comms.SerialSink

	canReader utils.CANReader
	canWriter utils.CANWriter
	canBridge *comms.CANBridge
}

func NewRunner(ctx context.Context, cfg Config, opts RunnerOptions, log *utils.Logger) (*Runner, error) {
	r := &Runner{cfg: cfg, opts: opts, log: log}

	left, right, err := r.openMotors()
	if err != nil {
		r.Close()
		return nil, err
	}

	r.sched, err = control.NewScheduler(control.SchedulerConfig{
		Period:        cfg.SamplePeriod(),
		MaxTarget:     cfg.MaxTargetCPS,
		LogEveryTicks: cfg.Telemetry.LogEveryTicks,
	}, log.Named("control"), left, right)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	if err := r.openSinks(ctx); err != nil {
		r.Close()
		return nil, err
	}

	log.Info("Runner ready: sim=%v Ts=%v Kp=%.3f Ki=%.3f Kd=%.4f I_max=%.0f duty_max=%d min_start=%d",
		opts.Simulated, cfg.SamplePeriod(), cfg.PID.Kp, cfg.PID.Ki, cfg.PID.Kd,
		cfg.PID.IntegralLimit, cfg.Actuation.DutyMax, cfg.Actuation.MinDutyStart)
	return r, nil
}

func (r *Runner) openMotors() (*control.MotorChannel, *control.MotorChannel, error) {
	period := r.cfg.SamplePeriod()
	motors := []struct {
		name string
		cfg  MotorConfig
	}{{"left", r.cfg.Motors.Left}, {"right", r.cfg.Motors.Right}}

	if !r.opts.Simulated {
		if err := hardware.OpenGPIO(); err != nil {
			return nil, nil, err
		}
		r.gpioOpen = true
	}

	var channels [2]*control.MotorChannel
	for i, m := range motors {
		dec := encoder.NewDecoder()
		var driver control.Driver

		if r.opts.Simulated {
			sim, err := hardware.NewSimMotor(r.cfg.Simulation, r.cfg.Actuation.DutyMax, dec)
			if err != nil {
				return nil, nil, fmt.Errorf("%s sim: %w", m.name, err)
			}
			r.sims = append(r.sims, sim)
			driver = sim
		} else {
			motor, err := hardware.NewRPIOMotor(m.name, m.cfg.PinConfig, r.cfg.Actuation)
			if err != nil {
				return nil, nil, err
			}
			enc, err := encoder.OpenGPIO(m.cfg.Encoder, dec)
			if err != nil {
				return nil, nil, fmt.Errorf("%s encoder: %w", m.name, err)
			}
			r.encoders = append(r.encoders, enc)
			driver = motor
			r.log.Info("%s: pwm=%d in1=%d in2=%d pwm_freq=%.0fHz encoder=%s:%d,%d",
				m.name, m.cfg.PWM, m.cfg.In1, m.cfg.In2, motor.EffectiveFreq(),
				m.cfg.Encoder.Chip, m.cfg.Encoder.PhaseA, m.cfg.Encoder.PhaseB)
		}

		channels[i] = control.NewMotorChannel(m.name, dec.Counter(), driver, period, r.cfg.PID, r.cfg.Actuation)
	}
	return channels[0], channels[1], nil
}

func (r *Runner) openSinks(ctx context.Context) error {
	if r.cfg.HTTP.Listen != "" {
		handler, stream := comms.NewRouter(r.sched, r.sched, comms.RouterOptions{
			JWTSecret:      r.cfg.HTTP.JWTSecret,
			StreamInterval: r.cfg.StreamInterval(),
			RequestLog:     r.log.Enabled(utils.DEBUG),
		}, r.log.Named("http"))
		r.httpSrv = &http.Server{Addr: r.cfg.HTTP.Listen, Handler: handler}
		r.stream = stream
	}

	if r.cfg.Serial.Port != "" {
		port, err := comms.OpenSerial(r.cfg.Serial)
		if err != nil {
			return err
		}
		r.serialPort = port
		r.serialSink = comms.NewSerialSink(r.sched, r.sched, r.log.Named("serial"))
	}

	if r.cfg.CAN.Interface != "" {
		cmap, err := utils.LoadCANMap(r.cfg.CAN.MapPath)
		if err != nil {
			return fmt.Errorf("load can map: %w", err)
		}
		writer, err := utils.NewSocketCANWriter(ctx, r.cfg.CAN.Interface)
		if err != nil {
			return err
		}
		r.canWriter = writer
		reader, err := utils.NewSocketCANReader(ctx, r.cfg.CAN.Interface)
		if err != nil {
			return err
		}
		r.canReader = reader

		r.canBridge, err = comms.NewCANBridge(cmap, r.cfg.CAN, reader, writer, r.sched, r.sched, r.log.Named("can"))
		if err != nil {
			return err
		}
	}
	return nil
}

// Scheduler exposes the control loop to the shell.
func (r *Runner) Scheduler() *control.Scheduler { return r.sched }

// Run drives the loop and every configured sink until ctx ends or one of
// them fails.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, sim := range r.sims {
		sim := sim
		g.Go(func() error { return quiet(sim.Run(gctx)) })
	}

	g.Go(func() error { return quiet(r.sched.Run(gctx, 0)) })

	if r.httpSrv != nil {
		g.Go(func() error {
			r.log.Info("HTTP listening on %s", r.httpSrv.Addr)
			if err := r.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			r.stream.Close()
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return r.httpSrv.Shutdown(shutCtx)
		})
	}

	if r.serialSink != nil {
		g.Go(func() error {
			r.log.Info("Serial commands on %s @ %d baud", r.cfg.Serial.Port, r.cfg.Serial.Baud)
			return quiet(r.serialSink.ServeLines(gctx, r.serialPort))
		})
	}

	if r.canBridge != nil {
		g.Go(func() error { return quiet(r.canBridge.Run(gctx)) })
	}

	if r.opts.Shell {
		sh := newShell(r.sched)
		go sh.Start()
		g.Go(func() error {
			<-gctx.Done()
			sh.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases hardware and sinks. It is safe after a failed NewRunner.
func (r *Runner) Close() {
	if r.canReader != nil {
		_ = r.canReader.Close()
	}
	if r.canWriter != nil {
		_ = r.canWriter.Close()
	}
	if r.serialPort != nil {
		_ = r.serialPort.Close()
	}
	for _, enc := range r.encoders {
		_ = enc.Close()
	}
	if r.gpioOpen {
		_ = hardware.CloseGPIO()
		r.gpioOpen = false
	}
}
