package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/medremind/internal/config"
	"github.com/sandeepkv93/medremind/internal/daemon"
	"github.com/sandeepkv93/medremind/internal/surface"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Medication reminders that keep ringing until you take them",
		Long: `medremind keeps a list of medicines and reminds you when each dose is due.

Run "medremind daemon" once in the background; it checks the schedules and
opens a reminder surface when nothing else is showing one. "medremind surface"
is the interactive view where doses are marked taken.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		daemonCmd(flags),
		surfaceCmd(flags),
		medCmd(flags),
		schedulesCmd(flags),
		debugCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	path := flags.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(afero.NewOsFs(), path)
	if err != nil {
		return config.Config{}, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func daemonCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background scheduler and serve surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			logger.Info("medremind daemon starting", "version", Version, "listen", cfg.ListenAddr, "database", cfg.DatabasePath)
			return daemon.New(cfg, logger, daemon.Options{Version: Version}).Run(ctx)
		},
	}
}

func surfaceCmd(flags *globalFlags) *cobra.Command {
	var launchURL string
	cmd := &cobra.Command{
		Use:   "surface",
		Short: "Open the interactive reminder view",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// The TUI owns the terminal, so logs go to a file.
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "surface.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open surface log: %w", err)
			}
			defer logFile.Close()
			logger := newLogger(logFile, cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s := surface.New(ctx, cfg, logger, surface.Options{Version: Version})
			defer func() {
				if err := s.Close(); err != nil {
					logger.Warn("surface close", "err", err)
				}
			}()
			return s.Run(ctx, launchURL)
		},
	}
	cmd.Flags().StringVar(&launchURL, "launch", "", "Launch URL to replay (medremind://surface?...)")
	return cmd
}

// withSurface runs fn against a non-interactive surface. It uses the
// daemon when one is listening and the local store otherwise, and never
// registers as a live surface that could swallow a reminder.
func withSurface(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, s *surface.Surface) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if flags.logLevel == "" {
		level = "warn"
	}
	logger := newLogger(os.Stderr, level, cfg.LogFormat)
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s := surface.New(ctx, cfg, logger, surface.Options{Version: Version, Oneshot: true})
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("surface close", "err", err)
		}
	}()
	return fn(ctx, s)
}
