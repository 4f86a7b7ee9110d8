package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/sqlchat/internal/gateway"
	"github.com/leapstack-labs/sqlchat/internal/model"
)

// GenericFailureMessage is shown for generation failures; the technical
// detail goes to the log and the status sidebar, not the chat transcript.
const GenericFailureMessage = "Sorry, I could not generate a query for that question. Please try again."

// Generator produces SQL from a natural-language question. Satisfied by
// *model.Session.
type Generator interface {
	Generate(ctx context.Context, question string) (*model.Generation, error)
	Model() string
}

// Executor runs SQL and returns rows. Satisfied by *gateway.Gateway.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (*gateway.Result, error)
}

// SessionFactory builds a fresh Generator for a model id.
type SessionFactory interface {
	NewSession(modelID string) (Generator, error)
	Models() []string
	DefaultModel() string
}

// WrapFactory adapts *model.Factory to the SessionFactory interface.
func WrapFactory(f *model.Factory) SessionFactory {
	return &modelSessionFactory{f: f}
}

type modelSessionFactory struct {
	f *model.Factory
}

func (a *modelSessionFactory) NewSession(modelID string) (Generator, error) {
	return a.f.NewSession(modelID)
}

func (a *modelSessionFactory) Models() []string {
	return a.f.Models()
}

func (a *modelSessionFactory) DefaultModel() string {
	return a.f.DefaultModel()
}

// Options are the variant flags of the controller: one implementation,
// behavior differences expressed as configuration.
type Options struct {
	// AutoExecute runs generated SQL immediately. When false the turn stops
	// at StateGenerated and Execute must be called explicitly.
	AutoExecute bool
	// EnableRatings allows 1-5 star ratings on settled model exchanges.
	EnableRatings bool
}

// Status is the advisory connection state for the model session.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusError         Status = "error"
)

// Controller orchestrates conversational turns: submit, generate, execute,
// settle. One turn is in flight at a time; submissions during a turn are
// rejected without growing the exchange list.
type Controller struct {
	factory SessionFactory
	exec    Executor
	logger  *slog.Logger
	opts    Options

	mu           sync.Mutex
	exchanges    []*Exchange
	inFlight     bool
	session      Generator
	status       Status
	statusDetail string
}

// sentinel errors surfaced to the HTTP layer.
var (
	ErrEmptyMessage = fmt.Errorf("message text is required")
	ErrTurnInFlight = fmt.Errorf("a turn is already in flight")
	ErrNoSession    = fmt.Errorf("model session is not initialized")
	ErrNotRatable   = fmt.Errorf("exchange cannot be rated")
	ErrBadRating    = fmt.Errorf("rating must be between 1 and 5")
)

// New creates a controller with a session for the factory's default model.
func New(factory SessionFactory, exec Executor, logger *slog.Logger, opts Options) (*Controller, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		factory: factory,
		exec:    exec,
		logger:  logger,
		opts:    opts,
		status:  StatusConnecting,
	}

	session, err := factory.NewSession(factory.DefaultModel())
	if err != nil {
		c.status = StatusError
		c.statusDetail = err.Error()
		return nil, fmt.Errorf("failed to create model session: %w", err)
	}
	c.session = session
	c.status = StatusConnected

	return c, nil
}

// Submit runs one full turn: append a user exchange and a pending model
// exchange, generate SQL, and (with AutoExecute) run it through the gateway.
// It returns the model exchange's final snapshot.
func (c *Controller) Submit(ctx context.Context, text string) (View, error) {
	if isBlank(text) {
		return View{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return View{}, ErrTurnInFlight
	}
	if c.session == nil {
		c.mu.Unlock()
		return View{}, ErrNoSession
	}

	session := c.session
	userEx := newUserExchange(text)
	modelEx := newModelExchange()
	c.exchanges = append(c.exchanges, userEx, modelEx)
	c.inFlight = true
	c.mu.Unlock()

	return c.runTurn(ctx, session, modelEx, text), nil
}

// runTurn drives generate and (optionally) execute for one model exchange.
// The session handle is captured at submit time: if the active model is
// switched mid-flight, this turn still settles into its own exchange.
func (c *Controller) runTurn(ctx context.Context, session Generator, modelEx *Exchange, text string) View {
	gen, err := session.Generate(ctx, text)
	if err != nil {
		c.logger.Error("generation failed",
			slog.String("model", session.Model()),
			slog.String("error", err.Error()))

		c.mu.Lock()
		modelEx.settleErr(GenericFailureMessage)
		c.inFlight = false
		if _, ok := err.(*model.TransportError); ok {
			c.status = StatusError
		}
		c.statusDetail = err.Error()
		view := modelEx.view()
		c.mu.Unlock()
		return view
	}

	c.mu.Lock()
	modelEx.markGenerated(gen.SQLQuery, gen.Explanation)
	c.status = StatusConnected
	c.statusDetail = ""
	autoExecute := c.opts.AutoExecute
	if !autoExecute {
		// Manual mode: the turn pauses at StateGenerated until Execute.
		c.inFlight = false
	}
	view := modelEx.view()
	c.mu.Unlock()

	if !autoExecute {
		return view
	}
	return c.execute(ctx, modelEx)
}

// Execute runs the generated SQL of a StateGenerated model exchange. Used in
// manual mode, where generation and execution are separate user actions.
func (c *Controller) Execute(ctx context.Context, exchangeID string) (View, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return View{}, ErrTurnInFlight
	}
	modelEx := c.findLocked(exchangeID)
	if modelEx == nil || modelEx.Role != RoleModel || modelEx.state != StateGenerated {
		c.mu.Unlock()
		return View{}, fmt.Errorf("exchange %s has no executable query", exchangeID)
	}
	c.inFlight = true
	c.mu.Unlock()

	return c.execute(ctx, modelEx), nil
}

// execute settles one exchange through the gateway and clears the in-flight
// gate. Gateway failures pass the message through verbatim; a policy
// violation reads distinctly as a read-only mode rejection.
func (c *Controller) execute(ctx context.Context, modelEx *Exchange) View {
	res, err := c.exec.Execute(ctx, modelEx.GeneratedSQL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		modelEx.settleErr(err.Error())
	} else {
		modelEx.settleOK(&ResultSet{
			Fields:    res.Fields,
			Rows:      res.Rows,
			RowCount:  res.RowCount,
			Truncated: res.Truncated,
		}, res.Elapsed)
	}
	c.inFlight = false

	return modelEx.view()
}

// Replay re-submits a prior user utterance as a brand-new turn. The original
// exchange is not reused.
func (c *Controller) Replay(ctx context.Context, exchangeID string) (View, error) {
	c.mu.Lock()
	prior := c.findLocked(exchangeID)
	if prior == nil || prior.Role != RoleUser {
		c.mu.Unlock()
		return View{}, fmt.Errorf("exchange %s is not a user message", exchangeID)
	}
	text := prior.Text
	c.mu.Unlock()

	return c.Submit(ctx, text)
}

// Rate sets a 1-5 rating on a settled model exchange. Ratings are
// overwritable.
func (c *Controller) Rate(exchangeID string, rating int) error {
	if !c.opts.EnableRatings {
		return ErrNotRatable
	}
	if rating < 1 || rating > 5 {
		return ErrBadRating
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ex := c.findLocked(exchangeID)
	if ex == nil || ex.Role != RoleModel || ex.state != StateSettled {
		return ErrNotRatable
	}
	ex.Rating = rating
	return nil
}

// SwitchModel swaps the active session for a new one bound to modelID. A
// turn already in flight against the old session is not cancelled; it will
// settle into its own exchange when its response arrives.
func (c *Controller) SwitchModel(modelID string) error {
	session, err := c.factory.NewSession(modelID)
	if err != nil {
		c.mu.Lock()
		c.status = StatusError
		c.statusDetail = err.Error()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.session = session
	c.status = StatusConnected
	c.statusDetail = ""
	c.mu.Unlock()

	c.logger.Info("model switched", slog.String("model", modelID))
	return nil
}

// ActiveModel returns the model id of the current session.
func (c *Controller) ActiveModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Model()
}

// Models lists the selectable model ids.
func (c *Controller) Models() []string {
	return c.factory.Models()
}

// History returns snapshots of all exchanges in creation order.
func (c *Controller) History() []View {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]View, len(c.exchanges))
	for i, ex := range c.exchanges {
		views[i] = ex.view()
	}
	return views
}

// ModelStatus returns the advisory session status and its detail. It is
// informational only; every request is validated independently.
func (c *Controller) ModelStatus() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.statusDetail
}

func (c *Controller) findLocked(exchangeID string) *Exchange {
	for _, ex := range c.exchanges {
		if ex.ID == exchangeID {
			return ex
		}
	}
	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
