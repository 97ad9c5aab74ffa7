// Package http provides the dashboard HTTP server and handlers.
//
// This file implements utilities for parsing and validating HTTP request data:
// filter criteria from the query string and create payloads sent either as
// JSON or as a form.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"despesas/internal/core"
	"despesas/internal/dashboard"
)

const maxBodyBytes = 1 << 20

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrMalformed    = errors.New("malformed request body")
)

// ParseCriteria reads month, category and q from the query string.
func ParseCriteria(query url.Values) dashboard.Criteria {
	return dashboard.Criteria{
		Month:    sanitizeInput(query.Get("month")),
		Category: sanitizeInput(query.Get("category")),
		Query:    sanitizeInput(query.Get("q")),
	}
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads at most 1 MiB of the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = errors.Join(ErrMalformed, err)
			return p.err
		}
		return nil
	}
	if trimmed[0] == '[' {
		p.err = ErrMalformed
		return p.err
	}

	formData, err := url.ParseQuery(trimmed)
	if err != nil {
		p.err = errors.Join(ErrMalformed, err)
		return p.err
	}
	p.formData = formData
	return nil
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// NewExpense builds a create payload. JSON amounts may be numbers or
// strings; form amounts go through the same sanitizer.
func (p *RequestBodyParser) NewExpense() (core.NewExpense, error) {
	if err := p.Parse(); err != nil {
		return core.NewExpense{}, err
	}

	var e core.NewExpense
	if p.IsJSON() {
		if err := json.Unmarshal(p.body, &e); err != nil {
			return core.NewExpense{}, errors.Join(ErrMalformed, err)
		}
		e.Description = sanitizeInput(e.Description)
		e.Category = sanitizeInput(e.Category)
		e.Date = sanitizeInput(e.Date)
		return e, nil
	}

	return core.NewExpense{
		Description: p.Get("description"),
		Amount:      core.SanitizeAmount(p.Get("amount")),
		Category:    p.Get("category"),
		Date:        p.Get("date"),
	}, nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
