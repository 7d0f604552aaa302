package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/pkg/config"
	"github.com/noah-isme/voice-attendance-api/pkg/logger"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "voice-attendance",
		Short:         "Voice identification and attendance ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serve := newServeCommand()
	root.AddCommand(serve, newMigrateCommand())
	root.RunE = serve.RunE
	return root
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logr, nil
}
