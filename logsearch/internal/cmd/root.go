// Package cmd implements the logsearch command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/logsearch/common/logging"
	"github.com/telhawk-systems/logsearch/logsearch/internal/config"
)

const version = "0.1.0"

// app holds state shared by the commands of one invocation.
type app struct {
	cfgFile string
	output  string
	cfg     *config.Config
	logger  *logging.Logger
}

// NewRootCmd builds the logsearch command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "logsearch",
		Short: "API request log search",
		Long: `logsearch builds and runs searches over API request logs.

It turns rule trees into backend queries, resolves the monthly log
partitions a time window covers, plans aggregations, manages saved
searches and serves search jobs from the message bus.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml or /etc/logsearch/config.yaml)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "output format: json, yaml, table")

	root.AddCommand(
		newPlanCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
		newSavedCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.NewWithWriter(
		cmd.ErrOrStderr(),
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("logsearch"))
	logging.SetDefault(a.logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
