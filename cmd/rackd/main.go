// Command rackd runs the rack audio core: it loads the configuration,
// starts the audio worker on the configured device and activates the
// startup plugins, then runs until interrupted.
//
// Usage:
//
//	rackd [flags]
//
// Examples:
//
//	rackd
//	rackd -config rack.yaml
//	RACK_LOG_LEVEL=debug rackd -status 2s
//	rackd -list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-vecmath/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-rack/internal/config"
	"github.com/cwbudde/algo-rack/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (overrides $"+config.EnvConfig+")")
	list := flag.Bool("list", false, "list available plugin kinds and exit")
	status := flag.Duration("status", 0, "log a status line at this interval (0 disables)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rackd [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the rack audio core until interrupted.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  %s\tconfiguration file\n", config.EnvConfig)
		fmt.Fprintf(os.Stderr, "  %s\tlog level (debug, info, warn, error)\n", config.EnvLogLevel)
	}
	flag.Parse()

	if *list {
		if err := printPlugins(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *configPath != "" {
		if err := os.Setenv(config.EnvConfig, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(*status); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(statusEvery time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(cfg.LoggingOptions())
	if err != nil {
		return err
	}
	defer closer.Close()

	f := cpu.DetectFeatures()
	logger.Info("cpu features", "sse2", f.HasSSE2, "avx2", f.HasAVX2)

	r, err := build(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.start(ctx, cfg); err != nil {
		return errors.Join(err, r.ctl.Close())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.ctl.Run(gctx) })
	if statusEvery > 0 {
		g.Go(func() error { return r.reportStatus(gctx, statusEvery) })
	}

	err = g.Wait()
	logger.Info("shutting down")
	return errors.Join(err, r.ctl.Close())
}

func (r *rack) reportStatus(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			st := r.ctl.Status()
			m, _ := r.ctl.Levels()
			r.logger.Info("status",
				slog.String("state", st.State.String()),
				slog.String("left", string(st.Left)),
				slog.String("right", string(st.Right)),
				slog.Bool("stereo", st.Stereo),
				slog.Int("arena_free", st.RemainingBytes),
				slog.Uint64("blocks", st.Stats.Blocks),
				slog.Uint64("overruns", st.Stats.Overruns),
				slog.Any("in_level", m.InputLevel),
				slog.Any("out_level", m.OutputLevel),
				slog.Bool("gate_open", m.GateOpen))
		}
	}
}
