package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlchat/internal/config"
	"github.com/leapstack-labs/sqlchat/internal/migrations"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the bundled demo schema",
		Long: `Apply the bundled invoice/sales demo schema to the configured database.

Migrations are embedded in the binary and tracked by goose; running migrate
twice is a no-op.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig(cmd.Context())

	db, err := sql.Open("pgx", gatewayConfig(cfg).DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(cmd.Context()); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		return err
	}

	version, err := migrations.Version(db)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Database is at migration version %d\n", version)
	return nil
}
