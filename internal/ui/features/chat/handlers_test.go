package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatcore "github.com/leapstack-labs/sqlchat/internal/chat"
	"github.com/leapstack-labs/sqlchat/internal/gateway"
	"github.com/leapstack-labs/sqlchat/internal/model"
	"github.com/leapstack-labs/sqlchat/internal/testutil"
	"github.com/leapstack-labs/sqlchat/internal/ui/notifier"
)

type fakeGenerator struct {
	modelID string
	gen     *model.Generation
	err     error

	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
}

func (f *fakeGenerator) Generate(context.Context, string) (*model.Generation, error) {
	f.mu.Lock()
	started := f.started
	f.started = nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.gen, nil
}

func (f *fakeGenerator) Model() string { return f.modelID }

type fakeSessionFactory struct {
	generators map[string]*fakeGenerator
	models     []string
}

func (f *fakeSessionFactory) NewSession(modelID string) (chatcore.Generator, error) {
	g, ok := f.generators[modelID]
	if !ok {
		return nil, errors.New("unknown model: " + modelID)
	}
	return g, nil
}

func (f *fakeSessionFactory) Models() []string     { return f.models }
func (f *fakeSessionFactory) DefaultModel() string { return f.models[0] }

type fakeExecutor struct {
	res *gateway.Result
	err error
}

func (f *fakeExecutor) Execute(context.Context, string) (*gateway.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeProber struct {
	err error
}

func (f *fakeProber) Healthy(context.Context) error { return f.err }

func okGenerator() *fakeGenerator {
	return &fakeGenerator{
		modelID: "m1",
		gen:     &model.Generation{SQLQuery: "SELECT 1 as x", Explanation: "One row."},
	}
}

func okResult() *gateway.Result {
	return &gateway.Result{
		Fields:   []string{"x"},
		Rows:     []map[string]any{{"x": 1}},
		RowCount: 1,
	}
}

// newTestServer starts a server around the chat routes plus a cookie-carrying
// client, so consecutive requests land in the same conversation.
func newTestServer(t *testing.T, gen *fakeGenerator, prober Prober, opts chatcore.Options) (*httptest.Server, *http.Client) {
	t.Helper()

	factory := &fakeSessionFactory{
		generators: map[string]*fakeGenerator{gen.modelID: gen},
		models:     []string{gen.modelID},
	}
	exec := &fakeExecutor{res: okResult()}
	registry := chatcore.NewRegistry(func() (*chatcore.Controller, error) {
		return chatcore.New(factory, exec, testutil.NewTestLogger(t), opts)
	})

	router := chi.NewRouter()
	store := sessions.NewCookieStore([]byte("test-secret"))
	SetupRoutes(router, registry, prober, store, notifier.New(), testutil.NewTestLogger(t))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSubmitReturnsSettledExchange(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{}, chatcore.Options{AutoExecute: true})

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"how many?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeBody[chatcore.View](t, resp)
	assert.Equal(t, chatcore.RoleModel, view.Role)
	assert.Equal(t, chatcore.StateSettled, view.State)
	assert.Equal(t, "SELECT 1 as x", view.GeneratedSQL)
	require.NotNil(t, view.Result)
	assert.Equal(t, 1, view.Result.RowCount)
}

func TestSubmitBlankTextIsBadRequest(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{}, chatcore.Options{AutoExecute: true})

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitWhileInFlightIsConflict(t *testing.T) {
	gen := okGenerator()
	gen.started = make(chan struct{})
	gen.release = make(chan struct{})
	srv, client := newTestServer(t, gen, &fakeProber{}, chatcore.Options{AutoExecute: true})

	// Prime the conversation cookie so both submits share one conversation.
	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/chat/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	started := gen.started
	done := make(chan struct{})
	go func() {
		defer close(done)
		resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"slow"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}()

	<-started
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"eager"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(gen.release)
	<-done
}

func TestHistoryIsScopedToTheCookieSession(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{}, chatcore.Options{AutoExecute: true})

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"question"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/chat/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]chatcore.View](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, chatcore.RoleUser, history[0].Role)

	// A client without the cookie gets a fresh conversation.
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	stranger := &http.Client{Jar: jar}
	resp = doJSON(t, stranger, http.MethodGet, srv.URL+"/api/chat/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]chatcore.View](t, resp))
}

func TestManualExecuteEndpoint(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{}, chatcore.Options{AutoExecute: false})

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"question"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[chatcore.View](t, resp)
	require.Equal(t, chatcore.StateGenerated, view.State)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages/"+view.ID+"/execute", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settled := decodeBody[chatcore.View](t, resp)
	assert.Equal(t, chatcore.StateSettled, settled.State)
	require.NotNil(t, settled.Result)
}

func TestRatingEndpoint(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{}, chatcore.Options{AutoExecute: true, EnableRatings: true})

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages", `{"text":"question"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[chatcore.View](t, resp)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages/"+view.ID+"/rating", `{"rating":4}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/chat/messages/"+view.ID+"/rating", `{"rating":9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, client, http.MethodGet, srv.URL+"/api/chat/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]chatcore.View](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[1].Rating)
}

func TestModelEndpoints(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{}, chatcore.Options{AutoExecute: true})

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/chat/models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	models := decodeBody[ModelsResponse](t, resp)
	assert.Equal(t, []string{"m1"}, models.Models)
	assert.Equal(t, "m1", models.Active)

	resp = doJSON(t, client, http.MethodPut, srv.URL+"/api/chat/model", `{"model":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	srv, client := newTestServer(t, okGenerator(), &fakeProber{err: errors.New("connection refused")}, chatcore.Options{AutoExecute: true})

	resp := doJSON(t, client, http.MethodGet, srv.URL+"/api/chat/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decodeBody[StatusResponse](t, resp)
	assert.Equal(t, "connected", status.Model.Status)
	assert.Equal(t, "error", status.Database.Status)
	assert.Contains(t, status.Database.Detail, "connection refused")
}
