// Package commands implements the sqlchat subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlchat/internal/config"
	"github.com/leapstack-labs/sqlchat/internal/gateway"
	"github.com/leapstack-labs/sqlchat/internal/model"
)

// gatewayConfig maps the database section onto the gateway pool settings.
func gatewayConfig(cfg *config.Config) gateway.Config {
	return gateway.Config{
		URL:            cfg.Database.URL,
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		Database:       cfg.Database.Database,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		SSLMode:        cfg.Database.SSLMode,
		MaxConns:       cfg.Database.MaxConns,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		AcquireTimeout: cfg.Database.AcquireTimeout,
		MaxRows:        cfg.Database.MaxRows,
	}
}

// openGateway connects the read-only gateway using the command's config.
func openGateway(cmd *cobra.Command) (*gateway.Gateway, error) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	gw, err := gateway.Open(cmd.Context(), gatewayConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return gw, nil
}

// schemaDescription introspects the live schema, falling back to the
// configured hint when introspection fails.
func schemaDescription(ctx context.Context, gw *gateway.Gateway, cfg *config.Config, logger *slog.Logger) string {
	desc, err := gw.DescribeSchema(ctx)
	if err != nil || desc == "" {
		if err != nil {
			logger.Warn("schema introspection failed, using configured hint", "error", err)
		}
		return cfg.Model.SchemaHint
	}
	return desc
}

// newModelFactory builds the session factory with the configured default
// model first in the selectable list.
func newModelFactory(cfg *config.Config, schema string, logger *slog.Logger) (*model.Factory, error) {
	models := cfg.Model.Models
	if def := cfg.Model.DefaultModel(); def != "" && len(models) > 0 && models[0] != def {
		ordered := []string{def}
		for _, m := range models {
			if m != def {
				ordered = append(ordered, m)
			}
		}
		models = ordered
	}

	factory, err := model.NewFactory(model.Config{
		BaseURL:           cfg.Model.BaseURL,
		APIKey:            cfg.Model.APIKey,
		Models:            models,
		SchemaDescription: schema,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model factory: %w", err)
	}
	return factory, nil
}
