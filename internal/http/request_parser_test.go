package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		month string
		cat   string
		q     string
	}{
		{"empty", url.Values{}, "", "", ""},
		{"all", url.Values{"month": {"2024-05"}, "category": {" Casa "}, "q": {"luz"}}, "2024-05", "Casa", "luz"},
		{"control chars stripped", url.Values{"q": {"a\x00b\x07c"}}, "", "", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseCriteria(tt.query)
			if c.Month != tt.month || c.Category != tt.cat || c.Query != tt.q {
				t.Errorf("ParseCriteria = %+v", c)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if missing := parser.Get("missing"); missing != "" {
		t.Errorf("Get('missing') = %q, want empty", missing)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_Malformed(t *testing.T) {
	for _, body := range []string{`{"description":`, `[1,2]`} {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		if err := NewRequestBodyParser(req).Parse(); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", body, err)
		}
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := strings.Repeat("a", maxBodyBytes+10)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	if err := NewRequestBodyParser(req).Parse(); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("error = %v, want ErrBodyTooLarge", err)
	}
}

func TestRequestBodyParser_NewExpense(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		desc  string
		cents int64
		cat   string
		date  string
	}{
		{"json number", `{"description":"Luz","amount":120.5,"category":"Casa","date":"2024-05-03"}`, "Luz", 12050, "Casa", "2024-05-03"},
		{"json brazilian string", `{"description":"Mercado","amount":"1.234,56"}`, "Mercado", 123456, "", ""},
		{"form", "description=P%C3%A3o&amount=5%2C50&category=Padaria&date=03%2F05%2F2024", "Pão", 550, "Padaria", "03/05/2024"},
		{"empty", "", "", 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(tt.body))
			e, err := NewRequestBodyParser(req).NewExpense()
			if err != nil {
				t.Fatalf("NewExpense() error = %v", err)
			}
			if e.Description != tt.desc || e.Amount.Cents != tt.cents || e.Category != tt.cat || e.Date != tt.date {
				t.Errorf("NewExpense() = %+v", e)
			}
		})
	}
}
