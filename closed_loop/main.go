package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"

	"dd-drive/utils"
)

// EnvConfig supplies flag defaults from the environment.
type EnvConfig struct {
	ConfigPath string `env:"DDDRIVE_CONFIG" envDefault:"config/dd_drive.yaml"`
	LogLevel   string `env:"DDDRIVE_LOG" envDefault:"info"`
	LogFile    string `env:"DDDRIVE_LOG_FILE" envDefault:"dd_drive.log"`
	Simulated  bool   `env:"DDDRIVE_SIM" envDefault:"false"`
	JWTSecret  string `env:"DDDRIVE_JWT_SECRET"`
}

func main() {
	var envCfg EnvConfig
	if err := env.Parse(&envCfg); err != nil {
		_, _ = os.Stderr.WriteString("ERROR: environment: " + err.Error() + "\n")
		os.Exit(1)
	}

	var (
		cfgPath  = flag.String("config", envCfg.ConfigPath, "Path to the YAML config")
		logLevel = flag.String("log", envCfg.LogLevel, "trace|debug|info|warn|error|critical")
		logFile  = flag.String("logfile", envCfg.LogFile, "Log file, also mirrored to stdout")
		sim      = flag.Bool("sim", envCfg.Simulated, "Drive simulated motors instead of GPIO")
		shell    = flag.Bool("shell", false, "Start the interactive development shell")
		listen   = flag.String("listen", "", "HTTP listen address, overrides http.listen")
		port     = flag.String("serial", "", "Serial command port, overrides serial.port")
		iface    = flag.String("can", "", "SocketCAN interface, overrides can.interface")
	)
	flag.Parse()

	log, err := utils.NewFileLogger(*logFile, utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		log.Critical("Load config %s: %v", *cfgPath, err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *iface != "" {
		cfg.CAN.Interface = *iface
	}
	if envCfg.JWTSecret != "" {
		cfg.HTTP.JWTSecret = envCfg.JWTSecret
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, RunnerOptions{Simulated: *sim, Shell: *shell}, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
