package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"despesas/internal/core"
	"despesas/internal/middleware/trace"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.Client(), srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(nil, "not a url")
	assert.ErrorIs(t, err, ErrBaseURL)
}

func TestListExpenses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/expenses", r.URL.Path)
		_, _ = io.WriteString(w, `[{"id":1,"description":"Luz","amount":"120,50","category":"Casa","date":"2024-05-01"},
			{"id":"x","description":"Bad","amount":"abc","category":"Geral","date":""}]`)
	})
	got, err := c.ListExpenses(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, int64(12050), got[0].Amount.Cents)
	assert.Equal(t, int64(0), got[1].Amount.Cents)
}

func TestRequestIDIsForwarded(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(trace.HeaderRequestID))
		_, _ = io.WriteString(w, `[]`)
	})

	ctx := context.WithValue(context.Background(), trace.RequestIDKey, "0b7e3c1e-4a8e-4c4f-9d2a-2f6f0a9c1b11")
	_, err := c.ListExpenses(ctx)
	require.NoError(t, err)
	_, err = c.ListExpenses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"0b7e3c1e-4a8e-4c4f-9d2a-2f6f0a9c1b11", ""}, seen)
}

func TestListExpensesStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"db down"}`)
	})
	_, err := c.ListExpenses(context.Background())
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "db down", se.Message)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestPredict(t *testing.T) {
	body := `{"predicted":300.5,"coef":10,"intercept":1,"months":[{"key":"2024-04","label":"abr. de 2024","amount":100}]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	})
	f, err := c.Predict(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 300.5, f.Predicted)
	require.Len(t, f.Months, 1)
	assert.Equal(t, int64(10000), f.Months[0].Amount.Cents)

	body = `{}`
	f, err = c.Predict(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestCreateExpense(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Mercado", in["description"])
		assert.Equal(t, 12.5, in["amount"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":7,"description":"Mercado","amount":12.5,"category":"Geral","date":"2024-05-01"}`)
	})
	got, err := c.CreateExpense(context.Background(), core.NewExpense{Description: "Mercado", Amount: core.Money{Cents: 1250}})
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID)
}

func TestDeleteExpenseNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/expenses/a%2Fb", r.URL.RawPath)
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.DeleteExpense(context.Background(), "a/b")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestImportCSV(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "gastos.csv", hdr.Filename)
		assert.True(t, strings.HasPrefix(string(data), "description,amount"))
		_, _ = io.WriteString(w, `{"imported":2}`)
	})
	n, err := c.ImportCSV(context.Background(), "gastos.csv", strings.NewReader("description,amount\na,1\nb,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExportCSVAndReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/export_csv":
			_, _ = io.WriteString(w, "id,description,amount,category,date\n")
		case "/report":
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	var buf bytes.Buffer
	require.NoError(t, c.ExportCSV(context.Background(), &buf))
	assert.Contains(t, buf.String(), "id,description")

	buf.Reset()
	err := c.Report(context.Background(), &buf)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Zero(t, buf.Len())
}
