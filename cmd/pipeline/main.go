package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/metroflow/internal/config"
	"github.com/okian/metroflow/internal/pipeline"
	"github.com/okian/metroflow/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "-help" || args[0] == "--help") {
		pipeline.ShowHelp(os.Stdout)
		return 0
	}

	opts, err := pipeline.Parse(args, os.Stderr)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n\n")
		pipeline.ShowHelp(os.Stderr)
		return 2
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}

	// Cancellation stops collection at the next station boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := pipeline.Run(ctx, cfg, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Get().Warn(ctx, "interrupted; completed work is kept", logger.String("command", opts.Command))
			return 130
		}
		logger.Get().Error(ctx, "command failed", logger.String("command", opts.Command), logger.Error(err))
		return 1
	}
	return 0
}
