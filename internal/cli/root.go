// Package cli implements the devstream command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fulvian/devstream/internal/app"
	"github.com/fulvian/devstream/internal/config"
	"github.com/fulvian/devstream/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	pretty   bool
)

var rootCmd = &cobra.Command{
	Use:   "devstream",
	Short: "DevStream - hybrid memory search and context assembly",
	Long: `DevStream stores development knowledge (code, decisions, errors, learnings)
and retrieves it with hybrid semantic, keyword and full-text search.

It assembles token-budgeted context for AI assistants over MCP (stdio)
or HTTP, and can be driven directly from the command line.

Example:
  devstream remember --type decision "Refresh tokens are single use"
  devstream search "token rotation"
  devstream context --budget 1500 "implement token refresh"`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ~/.devstream/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human readable logs on stderr")
}

// loadApp reads configuration, builds the logger and wires the engine
func loadApp() (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if pretty {
		cfg.Log.Pretty = true
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
