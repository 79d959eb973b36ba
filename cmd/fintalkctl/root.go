package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sbu-europe/fintalk/internal/app"
	"github.com/sbu-europe/fintalk/internal/config"
	"github.com/sbu-europe/fintalk/internal/logging"
)

type RootCommand struct {
	cmd    *cobra.Command
	cfg    *config.Config
	logger *slog.Logger
	level  string
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{}

	cmd := &cobra.Command{
		Use:   "fintalkctl",
		Short: "FinTalk operations tool",
		Long: `fintalkctl manages the FinTalk database and knowledge base.

It reads the same environment (and .env file) as the API server.`,
		SilenceUsage:      true,
		PersistentPreRunE: root.persistentPreRunE,
	}
	cmd.PersistentFlags().StringVar(&root.level, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(NewMigrateCommand(root))
	cmd.AddCommand(NewSeedCommand(root))
	cmd.AddCommand(NewImportCommand(root))
	cmd.AddCommand(NewCardEventsCommand(root))

	root.cmd = cmd
	return root
}

func (r *RootCommand) Execute(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Migrations are always explicit here.
	cfg.RunMigrations = false
	if r.level != "" {
		cfg.LogLevel = r.level
	}
	r.cfg = cfg
	r.logger = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(r.logger)
	return nil
}

// core builds storage and the model client. Callers must Close it.
func (r *RootCommand) core(ctx context.Context) (*app.App, error) {
	a, err := app.Core(ctx, r.cfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("initialise: %w", err)
	}
	return a, nil
}
