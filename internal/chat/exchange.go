// Package chat implements the conversation controller: ordered exchange
// history, the per-turn state machine, and per-browser-session conversation
// registry.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced an exchange.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// State is the lifecycle of a model exchange. User exchanges are terminal at
// creation and stay StateSettled.
type State string

const (
	// StatePending covers submit through SQL generation.
	StatePending State = "pending"
	// StateGenerated means SQL exists but execution has not settled; the
	// generated SQL and explanation are already visible.
	StateGenerated State = "generated"
	// StateSettled means the turn ended with exactly one of a result set or
	// an error message.
	StateSettled State = "settled"
)

// ResultSet is a tabular query result attached to a settled exchange.
type ResultSet struct {
	Fields    []string         `json:"fields"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"rowCount"`
	Truncated bool             `json:"truncated,omitempty"`
}

// settlement is the tagged outcome of a settled turn. Exactly one of result
// or errMsg is populated; the unexported fields keep the invalid
// both-populated combination unrepresentable from outside the package.
type settlement struct {
	ok      bool
	result  *ResultSet
	errMsg  string
	elapsed time.Duration
}

// Exchange is one user-or-model turn in the conversation history.
// Mutation happens only under the owning Controller's lock.
type Exchange struct {
	ID           string
	Role         Role
	Text         string
	GeneratedSQL string
	Rating       int
	CreatedAt    time.Time

	state  State
	settle *settlement
}

func newUserExchange(text string) *Exchange {
	return &Exchange{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
		state:     StateSettled,
	}
}

func newModelExchange() *Exchange {
	return &Exchange{
		ID:        uuid.NewString(),
		Role:      RoleModel,
		CreatedAt: time.Now(),
		state:     StatePending,
	}
}

func (e *Exchange) markGenerated(sqlQuery, explanation string) {
	e.GeneratedSQL = sqlQuery
	e.Text = explanation
	e.state = StateGenerated
}

func (e *Exchange) settleOK(rs *ResultSet, elapsed time.Duration) {
	e.state = StateSettled
	e.settle = &settlement{ok: true, result: rs, elapsed: elapsed}
}

func (e *Exchange) settleErr(message string) {
	e.state = StateSettled
	e.settle = &settlement{ok: false, errMsg: message}
}

// View is an immutable snapshot of an Exchange, safe to hand to renderers
// and JSON encoders outside the controller lock.
type View struct {
	ID           string     `json:"id"`
	Role         Role       `json:"role"`
	Text         string     `json:"text"`
	GeneratedSQL string     `json:"generatedSql,omitempty"`
	State        State      `json:"state"`
	Result       *ResultSet `json:"resultSet,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ElapsedMS    int64      `json:"elapsedMs,omitempty"`
	Rating       int        `json:"rating,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (e *Exchange) view() View {
	v := View{
		ID:           e.ID,
		Role:         e.Role,
		Text:         e.Text,
		GeneratedSQL: e.GeneratedSQL,
		State:        e.state,
		Rating:       e.Rating,
		CreatedAt:    e.CreatedAt,
	}
	if e.settle != nil {
		if e.settle.ok {
			v.Result = e.settle.result
			v.ElapsedMS = e.settle.elapsed.Milliseconds()
		} else {
			v.ErrorMessage = e.settle.errMsg
		}
	}
	return v
}
