package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlchat/internal/config"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	Format    string
	NoExecute bool
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a one-shot question",
		Long: `Translate a natural-language question into SQL, execute it read-only,
and print the result.`,
		Example: `  # Ask and execute
  sqlchat ask "how many invoices are overdue?"

  # Only show the generated SQL
  sqlchat ask --no-execute "revenue per customer this year"

  # Machine-readable output
  sqlchat ask --format json "top 5 products by revenue"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format (table|json|csv)")
	cmd.Flags().BoolVar(&opts.NoExecute, "no-execute", false, "Print the generated SQL without executing it")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts *AskOptions) error {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	logger := config.GetLogger(ctx)

	gw, err := openGateway(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	factory, err := newModelFactory(cfg, schemaDescription(ctx, gw, cfg, logger), logger)
	if err != nil {
		return err
	}
	session, err := factory.NewSession(factory.DefaultModel())
	if err != nil {
		return err
	}

	gen, err := session.Generate(ctx, question)
	if err != nil {
		return fmt.Errorf("failed to generate SQL: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "-- %s\n%s\n", gen.Explanation, gen.SQLQuery)
	if opts.NoExecute {
		return nil
	}
	_, _ = fmt.Fprintln(out)

	res, err := gw.Execute(ctx, gen.SQLQuery)
	if err != nil {
		return err
	}
	return renderResult(out, res, opts.Format)
}
