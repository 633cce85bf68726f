// File: cmd/telnetd/root.go
// Package main
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-telnetd/control"
	"github.com/momentics/hioload-telnetd/internal/echosession"
	"github.com/momentics/hioload-telnetd/server"
)

const envPrefix = "TELNETD"

func newRootCmd() *cobra.Command {
	return newCommand(viper.New())
}

// newCommand builds the root command reading flags and TELNETD_* variables
// through v.
func newCommand(v *viper.Viper) *cobra.Command {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          "telnetd",
		Short:        "Embeddable telnet daemon",
		Long:         "telnetd accepts telnet connections, enforces capacity and address policy, and supervises idle sessions.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.String("config", "", "TOML settings file, watched for changes")
	f.String("name", "std", "listener name, prefix of its settings keys")
	f.String("listen", ":2323", "TCP listen address")
	f.Duration("keepalive", 30*time.Second, "TCP keepalive period, negative disables it")
	f.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	f.StringToString("set", nil, "override a settings key, e.g. --set std.maxcon=50")
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}
	return cmd
}

func newLogger(out io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "telnetd").Logger(), nil
}

// loadSettings reads the settings file, falling back to defaults for
// listener name, and applies --set overrides. The watcher re-applies the
// overrides on reload; defaults are used only when no file is given.
func loadSettings(v *viper.Viper, name string) (map[string]string, error) {
	values := server.DefaultSettings(name)
	if path := v.GetString("config"); path != "" {
		loaded, err := control.LoadSettingsFile(path)
		if err != nil {
			return nil, err
		}
		values = loaded
	}
	for k, val := range v.GetStringMapString("set") {
		values[k] = val
	}
	return values, nil
}

func run(ctx context.Context, v *viper.Viper, stderr io.Writer) error {
	log, err := newLogger(stderr, v.GetString("log-level"))
	if err != nil {
		return err
	}
	name := v.GetString("name")
	values, err := loadSettings(v, name)
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Name = name
	cfg.ListenAddr = v.GetString("listen")
	cfg.KeepAlive = v.GetDuration("keepalive")
	cfg.SettingsPath = v.GetString("config")
	cfg.Overrides = v.GetStringMapString("set")

	srv, err := server.NewServer(cfg, control.NewSettings(values), echosession.Factory(log), server.WithLogger(log))
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
