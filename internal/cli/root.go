// Package cli implements the dbxlink command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/dbxlink/internal/config"
	"github.com/tessro/dbxlink/internal/logging"
	"github.com/tessro/dbxlink/internal/paths"
)

// Global flag values.
var (
	dropboxDir string
	configPath string
	logLevel   string
	logStderr  bool
	waitFor    time.Duration
)

// cfg is the loaded configuration. Nil when no config file exists, which
// the nil-safe getters treat as all defaults.
var cfg *config.Config

var logCleanup func()

var rootCmd = &cobra.Command{
	Use:   "dbxlink",
	Short: "Talk to the Dropbox desktop daemon",
	Long: "dbxlink connects to the Dropbox daemon's command and hook sockets to query\n" +
		"sync status, run context menu actions and watch change notifications.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, args []string) error {
	// Path helpers read the override from the environment.
	if dropboxDir != "" {
		if err := os.Setenv(paths.EnvDropboxDir, dropboxDir); err != nil {
			return err
		}
	}

	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if cfg != nil && cfg.Daemon.DropboxDir != "" && dropboxDir == "" {
		if err := os.Setenv(paths.EnvDropboxDir, cfg.Daemon.DropboxDir); err != nil {
			return err
		}
	}

	level := cfg.GetLogLevel()
	if logLevel != "" {
		if err := config.ValidateLogLevel(logLevel); err != nil {
			return err
		}
		level = logLevel
	}
	opts := logging.Options{Level: logging.ParseLevel(level)}
	if cfg != nil {
		opts.Path = cfg.LogFile
		opts.SentryDSN = cfg.SentryDSN
	}
	if logStderr {
		opts.Extra = os.Stderr
	}
	cleanup, err := logging.Setup(opts)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	logCleanup = cleanup
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dropboxDir, "dropbox-dir", "", "Dropbox state directory (overrides ~/.dropbox)")
	flags.StringVar(&configPath, "config", "", "config file (default ~/.config/dbxlink/config.toml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&logStderr, "log-stderr", false, "also write logs to stderr")
	flags.DurationVar(&waitFor, "wait", 5*time.Second, "how long to wait for the daemon link")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return err
}
