// Package model wraps the hosted language model behind a conversational
// session that translates natural-language questions into SQL. The session
// is constrained to a fixed two-field structured output: sqlQuery and
// explanation, both required strings.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Generation is the structured reply the session is required to produce.
type Generation struct {
	SQLQuery    string `json:"sqlQuery"`
	Explanation string `json:"explanation"`
}

// TransportError reports a failure reaching the model service.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "model request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError reports a reply that did not satisfy the required
// structured shape.
type MalformedResponseError struct {
	Detail string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return "malformed model response: " + e.Detail
}

// Config holds the settings shared by all sessions a Factory creates.
type Config struct {
	BaseURL string
	APIKey  string
	// Models lists the selectable model identifiers; the first entry is the
	// default.
	Models []string
	// SchemaDescription is injected into the instruction prompt so the model
	// targets the right tables.
	SchemaDescription string
}

// Factory builds sessions. Switching the active model means building a new
// session and discarding the old handle; sessions are never mutated to point
// at a different model.
type Factory struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewFactory creates a session factory for an OpenAI-compatible endpoint.
func NewFactory(cfg Config, logger *slog.Logger) (*Factory, error) {
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one model must be configured")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Factory{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Models returns the selectable model identifiers.
func (f *Factory) Models() []string {
	return f.cfg.Models
}

// DefaultModel returns the model used when no selection has been made.
func (f *Factory) DefaultModel() string {
	return f.cfg.Models[0]
}

// NewSession creates a fresh conversational session for the given model id.
func (f *Factory) NewSession(modelID string) (*Session, error) {
	known := false
	for _, m := range f.cfg.Models {
		if m == modelID {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown model: %s", modelID)
	}

	return &Session{
		client:  f.client,
		model:   modelID,
		system:  instructionPrompt(f.cfg.SchemaDescription),
		logger:  f.logger,
		history: nil,
	}, nil
}

// Session is a stateful conversational handle bound to one model. Prior
// turns are replayed as context on each request.
type Session struct {
	client *openai.Client
	model  string
	system string
	logger *slog.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

// Model returns the model identifier this session is bound to.
func (s *Session) Model() string {
	return s.model
}

// Generate sends the user's question and returns the structured two-field
// reply. Failures are *TransportError (network, non-2xx) or
// *MalformedResponseError (reply not matching the contract); neither is
// retried.
func (s *Session) Generate(ctx context.Context, question string) (*Generation, error) {
	s.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, 0, len(s.history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.system,
	})
	messages = append(messages, s.history...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
	s.mu.Unlock()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &MalformedResponseError{Detail: "reply contained no choices"}
	}

	content := resp.Choices[0].Message.Content
	gen, err := parseGeneration(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history = append(s.history,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	)
	s.mu.Unlock()

	s.logger.Debug("sql generated", slog.String("model", s.model))

	return gen, nil
}

// parseGeneration enforces the structured output contract: a JSON object
// with exactly the required string fields sqlQuery and explanation.
func parseGeneration(content string) (*Generation, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, &MalformedResponseError{Detail: "reply is not a JSON object", Raw: content}
	}

	var gen Generation
	if err := unmarshalRequiredString(raw, "sqlQuery", &gen.SQLQuery); err != nil {
		return nil, &MalformedResponseError{Detail: err.Error(), Raw: content}
	}
	if err := unmarshalRequiredString(raw, "explanation", &gen.Explanation); err != nil {
		return nil, &MalformedResponseError{Detail: err.Error(), Raw: content}
	}
	return &gen, nil
}

func unmarshalRequiredString(raw map[string]json.RawMessage, key string, dst *string) error {
	v, ok := raw[key]
	if !ok {
		return fmt.Errorf("missing required field %q", key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %q is not a string", key)
	}
	if strings.TrimSpace(*dst) == "" {
		return fmt.Errorf("field %q is empty", key)
	}
	return nil
}

// instructionPrompt builds the fixed system prompt: read-only policy, target
// schema, and response-shape rules.
func instructionPrompt(schema string) string {
	var b strings.Builder
	b.WriteString("You translate natural-language questions about invoice and sales data into PostgreSQL queries.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Generate a single read-only SELECT statement. Never generate DROP, DELETE, TRUNCATE, UPDATE, or INSERT.\n")
	b.WriteString("- Use only the tables and columns listed below.\n")
	b.WriteString("- Respond with a JSON object containing exactly two string fields: \"sqlQuery\" (the SQL statement) and \"explanation\" (a short explanation of what the query does, in the user's language).\n")
	b.WriteString("- Do not wrap the JSON in markdown fences or add any other fields.\n")
	if schema != "" {
		b.WriteString("\nSchema:\n")
		b.WriteString(schema)
	}
	return b.String()
}
