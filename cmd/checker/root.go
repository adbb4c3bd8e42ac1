package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liuproxy_checker/internal/shared/config"
	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/internal/shared/types"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checker",
		Short: "Concurrent HTTP/HTTPS/SOCKS4/SOCKS5 proxy validator",
		Long: `checker tests a list of forwarding proxies concurrently: it checks
reachability, measures latency, discovers the egress IP and looks up its
country, city and ISP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("configdir", "", "Directory holding checker.ini (default: ./configs, then the XDG config dir)")
	cmd.PersistentFlags().String("log-level", "", "Override [log] level")
	cmd.PersistentFlags().Int("workers", -1, "Override [common] workers (0 = unbounded)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCheckCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves and loads checker.ini, applies flag overrides and
// initializes the logger.
func loadConfig(cmd *cobra.Command) (*types.Config, string, error) {
	configDir, err := cmd.Flags().GetString("configdir")
	if err != nil {
		return nil, "", err
	}

	cfg, dir, err := config.Load(configDir)
	if err != nil {
		return nil, "", err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogConf.Level = level
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers >= 0 {
		cfg.Workers = workers
	}

	if err := logger.Init(cfg.LogConf, cmd.ErrOrStderr()); err != nil {
		return nil, "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, dir, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
