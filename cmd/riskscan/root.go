package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/olegrjumin/riskscan/internal/config"
	"github.com/olegrjumin/riskscan/internal/logging"
)

var (
	cfgFile      string
	logLevelFlag string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "riskscan",
	Short: "Score web pages for phishing and scam risk",
	Long: `riskscan fetches a page, follows its redirects, inspects its markup and
response headers and turns what it finds into a 0-100 risk score.

Run it as an HTTP API with "serve", or scan from the command line with
"scan" and "batch".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		level := cfg.LogLevel
		if logLevelFlag != "" {
			level = logLevelFlag
		}
		// logs go to stderr so --json output stays machine readable
		logger = logging.NewWithWriter(os.Stderr, logging.ParseLevel(level))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./riskscan.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR (overrides config)")

	rootCmd.AddCommand(serveCmd, scanCmd, batchCmd, versionCmd)
}
