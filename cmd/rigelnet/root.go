package main

import (
	"fmt"
	"os"
	"rigelnet/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile  string
	logLevel string

	// Shared state set during PersistentPreRun
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rigelnet",
	Short: "RigelNet reliable datagram RPC: run a lobby server or connect to one",
	Long: `rigelnet drives RigelNet nodes over UDP. "serve" hosts a small lobby
(chat relay, ping, object spawn/despawn) on a fixed number of slots;
"connect" joins it, directly or through service discovery.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = cfg.Log.Logger()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "rigelnet.yaml", "config file; defaults apply if it does not exist")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
