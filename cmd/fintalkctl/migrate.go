package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbu-europe/fintalk/internal/db"
)

func NewMigrateCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded SQL migrations to DATABASE_URL.

Creates the cardholders table, the pgvector extension and the doc_chunks
table. Already applied migrations are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, err := db.Migrate(root.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "database at migration version %d\n", version)
			return err
		},
	}
}
