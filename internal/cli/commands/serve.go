package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlchat/internal/chat"
	"github.com/leapstack-labs/sqlchat/internal/config"
	"github.com/leapstack-labs/sqlchat/internal/ui"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sqlchat web server",
		Long: `Start the web server exposing the chat and query APIs.

Each browser session gets its own conversation. Generated SQL is validated
by the read-only gateway before execution.`,
		Example: `  # Start on the default port
  sqlchat serve

  # Custom port and database
  sqlchat serve --port 9000 --database-url postgres://localhost/invoices`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := openGateway(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	factory, err := newModelFactory(cfg, schemaDescription(ctx, gw, cfg, logger), logger)
	if err != nil {
		return err
	}

	opts := chat.Options{
		AutoExecute:   cfg.Chat.AutoExecute,
		EnableRatings: cfg.Chat.Ratings,
	}
	registry := chat.NewRegistry(func() (*chat.Controller, error) {
		return chat.New(chat.WrapFactory(factory), gw, logger, opts)
	})

	server := ui.NewServer(ui.Config{
		Gateway:       gw,
		Registry:      registry,
		Port:          cfg.Server.Port,
		SessionSecret: cfg.Server.SessionSecret,
		Logger:        logger,
	})

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
