package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"shawarma-pos/internal/common/logger"
	"shawarma-pos/internal/config"
	"shawarma-pos/internal/microservices/api"
	"shawarma-pos/internal/microservices/notificator"
	"shawarma-pos/internal/microservices/terminal"
)

const modes = "api-server | terminal | notification-subscriber | init-db"

func main() {
	mode := flag.String("mode", "", modes)
	cfgPath := flag.String("config", "", "path to YAML config (default: config.yaml or deploy/config.example.yaml)")
	port := flag.Int("port", 0, "override the HTTP port of api-server or terminal")
	flag.Parse()

	lg := logger.New("bootstrap")

	path := *cfgPath
	if path == "" {
		found, err := config.FindConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			lg.Error("config_lookup_failed", err, nil)
			os.Exit(1)
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	logger.SetDefaultLevel(cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var run func(context.Context, *config.Config) error
	switch *mode {
	case "api-server":
		if *port != 0 {
			cfg.Server.Port = *port
		}
		run = api.Run
	case "terminal":
		if *port != 0 {
			cfg.Terminal.Port = *port
		}
		run = terminal.Run
	case "notification-subscriber":
		run = notificator.Run
	case "init-db":
		run = api.InitDB
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}

	lg.Info("service_started", map[string]any{"mode": *mode, "config": path})
	if err := run(ctx, cfg); err != nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		os.Exit(1)
	}
	lg.Info("service_stopped", map[string]any{"mode": *mode})
}
