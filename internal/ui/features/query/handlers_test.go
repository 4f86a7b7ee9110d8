package query

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlchat/internal/gateway"
	"github.com/leapstack-labs/sqlchat/internal/testutil"
)

func newTestRouter(t *testing.T) (chi.Router, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gw := gateway.NewWithDB(db, gateway.Config{}, testutil.NewTestLogger(t))

	r := chi.NewRouter()
	SetupRoutes(r, gw, testutil.NewTestLogger(t))
	return r, mock
}

func postQuery(t *testing.T, r chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestQueryRoundTrip(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT 1 as x").
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	rec := postQuery(t, r, `{"sql":"SELECT 1 as x"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"x"}, resp.Fields)
	assert.Equal(t, 1, resp.RowCount)
	require.Len(t, resp.Rows, 1)
	assert.EqualValues(t, 1, resp.Rows[0]["x"])
}

func TestQueryDenylistedStatementIsForbidden(t *testing.T) {
	r, mock := newTestRouter(t)

	rec := postQuery(t, r, `{"sql":"drop TABLE invoice_raw"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "read-only mode")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryMissingSQLIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, body := range []string{`{}`, `{"sql":""}`, `{"sql":"   "}`} {
		rec := postQuery(t, r, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["error"])
	}
}

func TestQueryUpstreamErrorIsBadRequest(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT * FROM missing").
		WillReturnError(assert.AnError)

	rec := postQuery(t, r, `{"sql":"SELECT * FROM missing"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, assert.AnError.Error(), resp["error"])
}

func TestQueryZeroRowsIsDistinctFromError(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT id FROM invoices WHERE false").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := postQuery(t, r, `{"sql":"SELECT id FROM invoices WHERE false"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"id"}, resp.Fields)
	assert.NotNil(t, resp.Rows)
	assert.Empty(t, resp.Rows)
}

func TestHealth(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "connected", resp.Status)
	assert.False(t, resp.CheckedAt.IsZero())
}

func TestHealthFailure(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT 1").WillReturnError(assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Detail)
}
