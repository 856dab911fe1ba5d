package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/config"
	logpkg "github.com/kailas-cloud/docindex/internal/logger"
	"github.com/kailas-cloud/docindex/internal/version"
)

// cliState is shared by all subcommands and filled in PersistentPreRunE.
type cliState struct {
	env        string
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:          "docindex",
		Short:        "Ingest documents into a persistent vector index",
		Long:         "docindex parses PDF and text documents, splits them into overlapping chunks,\nembeds the chunks and appends them to a local vector index.",
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return st.load(cmd.Name())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if st.logger != nil {
				_ = st.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&st.env, "env", config.GetEnv(), "environment name: selects config/<env>.yaml and the log format")
	root.PersistentFlags().StringVarP(&st.configPath, "config", "c", "", "explicit config file (overrides --env lookup)")

	root.AddCommand(newServeCmd(st), newIngestCmd(st), newStatsCmd(st))
	return root
}

func (st *cliState) load(command string) error {
	var (
		cfg config.Config
		err error
	)
	if st.configPath != "" {
		cfg, err = config.LoadFile(st.configPath)
	} else {
		cfg, err = config.Load(st.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st.cfg = cfg

	logEnv := st.env
	if command != "serve" {
		logEnv = "cli"
	}
	logger, err := logpkg.NewLogger(logEnv, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	st.logger = logger
	return nil
}
