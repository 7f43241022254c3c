package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Proton-105/himera-swap/internal/database"
)

func (rt *runtime) newMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := openDB(ctx, rt.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db.DB, rt.log)

			var applied int
			if dir != "" {
				applied, err = migrator.ApplyDir(ctx, dir)
			} else {
				applied, err = migrator.Apply(ctx)
			}
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			rt.log.Info("database is up to date", slog.Int("applied", applied))
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the built-in set")
	return cmd
}
