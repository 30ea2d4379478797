// cmd/gacp-server/migrate.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	Long: `Creates the applications, status history, payments, audits and
document verification tables. The schema is idempotent.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	if err := rt.connectPostgres(ctx); err != nil {
		return err
	}
	if err := rt.pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	rt.log.Info("schema applied", nil)
	return nil
}
