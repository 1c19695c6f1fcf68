package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/hookecho/internal/config"
	"github.com/mattjoyce/hookecho/internal/history"
	"github.com/mattjoyce/hookecho/internal/log"
	"github.com/mattjoyce/hookecho/internal/server"
)

const version = "0.1.0"

const defaultConfigPath = "./hookecho.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "config":
		os.Exit(runConfig(args))
	case "version":
		fmt.Printf("hookecho version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`hookecho - webhook receiver and inspector

Usage:
  hookecho <command> [flags]

Commands:
  start             Run the receiver in the foreground
  config lock       Authorize the current config (write integrity checksums)
  config check      Validate config syntax and integrity
  version           Show version information
  help              Show this help message

Start flags:
  --config <path>   Config file (default ./hookecho.yaml, optional)
  --listen <addr>   Override the configured listen address
`)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	listen := fs.String("listen", "", "override listen address")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.Service.Listen = *listen
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("server")

	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store := history.New(cfg.History.Capacity)
	srv := server.New(server.Config{
		Listen:      cfg.Service.Listen,
		MaxBodySize: maxBody,
		Verify: server.VerifyConfig{
			SignatureHeader: cfg.Verify.SignatureHeader,
			IDHeader:        cfg.Verify.IDHeader,
			TimestampHeader: cfg.Verify.TimestampHeader,
			Tolerance:       cfg.Verify.Tolerance(),
		},
	}, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting", "name", cfg.Service.Name, "version", version, "listen", cfg.Service.Listen)

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		return 1
	}

	log.Info("stopped")
	return 0
}

func runConfig(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hookecho config <lock|check> [flags]")
		return 1
	}

	action := args[0]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config file")
	_ = fs.Parse(args[1:])

	switch action {
	case "lock":
		if err := config.GenerateChecksums(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Checksums written for %s\n", *configPath)
		return 0
	case "check":
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Config OK: %s\n", *configPath)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

// loadConfig resolves the effective configuration. An explicit --config must
// exist; without one, ./hookecho.yaml is used when present, else defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}

	return config.Defaults(), nil
}
