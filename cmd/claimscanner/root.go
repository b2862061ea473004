package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ClaimScanner/internal/app"
	"ClaimScanner/internal/config"
	"ClaimScanner/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "claimscanner",
		Short: "Score marketing claims for deception risk",
		Long: `claimscanner routes product claims (text, page URLs or images) through
a tiered pipeline and assigns each a 0.0-10.0 deception-risk score.

Jobs are queued in a shared SQL store and processed by any number of workers.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $CLAIM_SCANNER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override logging.format (text, json)")

	cmd.AddCommand(
		newWorkerCmd(opts),
		newServeCmd(opts),
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newScoreCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// loadConfig resolves the config file and applies command-line overrides.
func (o *rootOptions) loadConfig() config.Config {
	cfg := config.Load(o.configFile)
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	return cfg
}

// application builds the wired application for one command invocation.
func (o *rootOptions) application(cmd *cobra.Command) (*app.Application, error) {
	cfg := o.loadConfig()
	log := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}
	return application, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
