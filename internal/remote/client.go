// Package remote is the HTTP client of the records service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"despesas/internal/core"
	"despesas/internal/middleware/trace"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected http status code")
	ErrBaseURL          = errors.New("invalid base url")
	ErrDecode           = errors.New("error decoding response body")
)

// StatusError is returned when the records service answers with a non-2xx
// status.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v, %d: %s", e.Op, ErrUnexpectedStatus, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v, %d", e.Op, ErrUnexpectedStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

func decodeError(op string, err error) error {
	return fmt.Errorf("%s: %w, %w", op, ErrDecode, err)
}

// Client talks to the records service.
type Client struct {
	HTTPClient *http.Client
	BaseURL    *url.URL
}

// New creates a client for the records service at baseURL. A nil httpClient
// means http.DefaultClient.
func New(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, baseURL)
	}
	return &Client{HTTPClient: httpClient, BaseURL: u}, nil
}

func (c *Client) endpoint(path string) string {
	return c.BaseURL.String() + path
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: error creating request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := trace.GetRequestID(ctx); id != "" {
		req.Header.Set(trace.HeaderRequestID, id)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: error sending request: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	se := &StatusError{Op: op, StatusCode: resp.StatusCode}
	var msg struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(body, &msg) == nil {
		se.Message = msg.Error
	}
	return se
}

// ListExpenses returns every record held by the service.
func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	const op = "list expenses"
	resp, err := c.do(ctx, op, http.MethodGet, "/api/expenses", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out []core.Expense
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, decodeError(op, err)
	}
	return out, nil
}

type predictResponse struct {
	Predicted *float64           `json:"predicted"`
	Coef      float64            `json:"coef"`
	Intercept float64            `json:"intercept"`
	Months    []predictMonthJSON `json:"months"`
}

type predictMonthJSON struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Amount json.RawMessage `json:"amount"`
}

// Predict returns the service's forecast, or nil when it has none.
func (c *Client) Predict(ctx context.Context) (*core.RemoteForecast, error) {
	const op = "predict"
	resp, err := c.do(ctx, op, http.MethodGet, "/api/predict", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: error reading response body: %w", op, err)
	}
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, nil
	}
	var p predictResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, decodeError(op, err)
	}
	if p.Predicted == nil {
		return nil, nil
	}
	f := &core.RemoteForecast{Predicted: *p.Predicted, Coef: p.Coef, Intercept: p.Intercept}
	for _, m := range p.Months {
		f.Months = append(f.Months, core.MonthBucket{Key: m.Key, Label: m.Label, Amount: core.SanitizeJSONAmount(m.Amount)})
	}
	return f, nil
}

// CreateExpense sends a new record and returns it as stored.
func (c *Client) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	const op = "create expense"
	payload, err := json.Marshal(e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%s: error marshaling request body: %w", op, err)
	}
	resp, err := c.do(ctx, op, http.MethodPost, "/api/expenses", bytes.NewReader(payload), "application/json")
	if err != nil {
		return core.Expense{}, err
	}
	defer resp.Body.Close()

	var out core.Expense
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Expense{}, decodeError(op, err)
	}
	return out, nil
}

// DeleteExpense removes the record with the given id.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	resp, err := c.do(ctx, "delete expense", http.MethodDelete, "/api/expenses/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// ImportCSV uploads a CSV file and returns how many rows were imported.
func (c *Client) ImportCSV(ctx context.Context, filename string, r io.Reader) (int, error) {
	const op = "import csv"
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return 0, fmt.Errorf("%s: error reading upload: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/api/import_csv", &buf, mw.FormDataContentType())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		Imported int `json:"imported"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, decodeError(op, err)
	}
	return out.Imported, nil
}

// ExportCSV streams the service's CSV export into w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer) error {
	return c.download(ctx, "export csv", "/api/export_csv", w)
}

// Report streams the service's PDF report into w.
func (c *Client) Report(ctx context.Context, w io.Writer) error {
	return c.download(ctx, "report", "/report", w)
}

func (c *Client) download(ctx context.Context, op, path string, w io.Writer) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%s: error copying body: %w", op, err)
	}
	return nil
}
