package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"linestatus/internal/channel"
	"linestatus/internal/config"
	"linestatus/internal/engine"
	"linestatus/internal/eventbus"
	"linestatus/internal/fault"
	"linestatus/internal/history"
	"linestatus/internal/logging"
	"linestatus/internal/p9"
	"linestatus/internal/pidfile"
	"linestatus/internal/surface"
)

// headless surface size used for the logged draw instructions
const (
	virtualWidth  = 1920
	virtualHeight = 1080
)

// loadConfig reads the config file and applies the run flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "warning: could not write default config: %v\n", err)
	}
	if err := run.apply(cfg, cmd.Flags(), channelType); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// logOutput picks where logs go. The terminal surface owns the screen, so
// logs go to a file unless one is configured.
func logOutput(cfg *config.Config) string {
	if cfg.General.LogFile != "" {
		return cfg.General.LogFile
	}
	if cfg.General.Headless {
		return "stderr"
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("linestatus-%s.log", cfg.General.Type))
}

func runOverlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err = logging.New(logging.Options{
		Level:   cfg.General.LogLevel,
		Verbose: verbose,
		Console: cfg.General.Headless,
		Output:  logOutput(cfg),
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the overlay until ctx is done. Everything it sets up is torn
// down on return; cleanup failures are logged and do not stop the rest.
func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	pidPath := pidfile.Path(cfg.General.Type)
	if err := pidfile.Create(pidPath); err != nil {
		var running *pidfile.RunningError
		if errors.As(err, &running) {
			return fmt.Errorf("linestatus %s %w", cfg.General.Type, err)
		}
		log.Warn("could not write pid file", zap.String("path", pidPath), zap.Error(err))
	}
	defer func() {
		if err := pidfile.Remove(pidPath); err != nil {
			log.Warn("could not remove pid file", zap.String("path", pidPath), zap.Error(err))
		}
	}()

	specs, err := cfg.Specs()
	if err != nil {
		return err
	}

	bus := eventbus.New()
	hist := history.New(0)
	histCtx, stopHist := context.WithCancel(ctx)
	defer stopHist()
	follow := hist.Follow(bus)
	go follow(histCtx)

	transport := channel.Open(channel.Options{
		RuntimeDir:  os.Getenv("XDG_RUNTIME_DIR"),
		ChannelType: cfg.General.Type,
		Logger:      log,
	})
	if transport.Mode() == channel.ModeStdin && !cfg.General.Headless && term.IsTerminal(int(os.Stdin.Fd())) {
		log.Warn("reading updates from a terminal that is also used for drawing")
	}
	bus.Publish("", eventbus.TransportInfo{
		Mode: transport.Mode().String(),
		Addr: transport.Addr(),
	})

	eng, err := engine.New(engine.Options{
		Elements:       specs,
		DefaultElement: cfg.General.DefaultElement,
		Transport:      transport,
		Bus:            bus,
		Logger:         log,
		Debug:          cfg.General.Debug,
	})
	if err != nil {
		transport.Close()
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", fault.KindOf(err), err)
		}
	}()
	log.Info("started",
		zap.String("type", cfg.General.Type),
		zap.Stringer("transport", transport.Mode()),
		zap.String("addr", transport.Addr()),
		zap.Int("elements", len(specs)),
		zap.String("default", eng.DefaultElement()),
	)

	if cfg.Server.Enabled {
		srv, err := p9.NewServer(eng, hist, cfg.General.Type, log)
		if err != nil {
			log.Warn("9P server not started", zap.Error(err))
		} else {
			defer srv.Close()
		}
	}

	if cfg.General.Headless {
		eng.SetSurface(surface.NewHeadless(eng, virtualWidth, virtualHeight, log))
		return eng.Run(ctx, cfg.General.PollInterval)
	}

	thickness := run.thickness
	if cfg.General.Debug {
		thickness = max(thickness, 2)
	}
	t := surface.NewTerminal(eng, surface.TerminalOptions{
		Interval:  cfg.General.PollInterval,
		Thickness: thickness,
		Logger:    log,
	})
	eng.SetSurface(t)
	return t.Run(ctx)
}
