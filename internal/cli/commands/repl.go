package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlchat/internal/chat"
	"github.com/leapstack-labs/sqlchat/internal/config"
	"github.com/leapstack-labs/sqlchat/internal/gateway"
)

// REPLOptions holds options for the repl command.
type REPLOptions struct {
	Format string
}

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	opts := &REPLOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive chat session",
		Long: `Start an interactive loop: type questions in natural language, get
generated SQL and its result. Dot-commands control the session; lines
starting with ".sql" run raw SQL through the read-only gateway.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format (table|json|csv)")

	return cmd
}

func runREPL(cmd *cobra.Command, opts *REPLOptions) error {
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

	ctrl, err := chat.New(chat.WrapFactory(factory), gw, logger, chat.Options{
		AutoExecute:   true,
		EnableRatings: cfg.Chat.Ratings,
	})
	if err != nil {
		return err
	}

	historyFile := filepath.Join(os.TempDir(), "sqlchat_history")
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".sqlchat_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sqlchat> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "sqlchat REPL (model: %s)\n", ctrl.ActiveModel())
	_, _ = fmt.Fprintln(out, "Type a question, or .help for commands")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			quit := handleDotCommand(ctx, cmd, ctrl, gw, line, opts.Format)
			if quit {
				break
			}
			continue
		}

		view, err := ctrl.Submit(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		renderView(cmd, view, opts.Format)
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// renderView prints one settled model exchange: explanation, SQL, and the
// result table or error message.
func renderView(cmd *cobra.Command, view chat.View, format string) {
	out := cmd.OutOrStdout()

	if view.Text != "" {
		_, _ = fmt.Fprintf(out, "-- %s\n", view.Text)
	}
	if view.GeneratedSQL != "" {
		_, _ = fmt.Fprintln(out, view.GeneratedSQL)
	}
	if view.ErrorMessage != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", view.ErrorMessage)
		return
	}
	if view.Result != nil {
		res := &gateway.Result{
			Fields:    view.Result.Fields,
			Rows:      view.Result.Rows,
			RowCount:  view.Result.RowCount,
			Truncated: view.Result.Truncated,
		}
		if err := renderResult(out, res, format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
}

// handleDotCommand executes one dot-command and reports whether the REPL
// should exit.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, ctrl *chat.Controller, gw *gateway.Gateway, line, format string) bool {
	out := cmd.OutOrStdout()
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".models":
		for _, m := range ctrl.Models() {
			marker := " "
			if m == ctrl.ActiveModel() {
				marker = "*"
			}
			_, _ = fmt.Fprintf(out, "%s %s\n", marker, m)
		}

	case ".model":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "Active model: %s\n", ctrl.ActiveModel())
			return false
		}
		if err := ctrl.SwitchModel(parts[1]); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintf(out, "Switched to %s\n", parts[1])

	case ".schema":
		desc, err := gw.DescribeSchema(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprint(out, desc)

	case ".sql":
		raw := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
		if raw == "" {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .sql <statement>")
			return false
		}
		res, err := gw.Execute(ctx, raw)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return false
		}
		if err := renderResult(out, res, format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (try .help)\n", parts[0])
	}

	return false
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  .help              Show this help")
	_, _ = fmt.Fprintln(w, "  .models            List selectable models")
	_, _ = fmt.Fprintln(w, "  .model <id>        Switch the active model")
	_, _ = fmt.Fprintln(w, "  .schema            Show the database schema")
	_, _ = fmt.Fprintln(w, "  .sql <statement>   Run raw SQL (read-only)")
	_, _ = fmt.Fprintln(w, "  .quit              Exit")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Anything else is sent to the model as a question.")
}
