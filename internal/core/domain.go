package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// DefaultCategory is assigned to records created with a blank category.
const DefaultCategory = "Geral"

const maxDescriptionLen = 256

type (
	Money struct {
		Cents int64
	}

	// Expense is a record as held by the records service. Date keeps the raw
	// stored representation; use ParseDate to obtain a calendar date.
	Expense struct {
		ID          string
		Description string
		Amount      Money
		Category    string
		Date        string
	}

	// NewExpense is the payload of a create request.
	NewExpense struct {
		Description string
		Amount      Money
		Category    string
		Date        string
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 256 characters)")
	ErrInvalidDate        = errors.New("invalid date")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the fields a user must fill in before a create is sent.
func (e NewExpense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Date) != "" {
		if _, ok := ParseDate(e.Date); !ok {
			return ErrInvalidDate
		}
	}
	return nil
}

// WithDefaults fills a blank category with DefaultCategory.
func (e NewExpense) WithDefaults() NewExpense {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	e.Date = strings.TrimSpace(e.Date)
	return e
}

type expenseJSON struct {
	ID          json.RawMessage `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

// UnmarshalJSON accepts numeric or string ids and amounts. A malformed amount
// never fails decoding; it is sanitized to zero.
func (e *Expense) UnmarshalJSON(data []byte) error {
	var raw expenseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Expense{
		ID:          rawID(raw.ID),
		Description: raw.Description,
		Amount:      SanitizeJSONAmount(raw.Amount),
		Category:    raw.Category,
		Date:        raw.Date,
	}
	return nil
}

func (e Expense) MarshalJSON() ([]byte, error) {
	id, _ := json.Marshal(e.ID)
	return json.Marshal(expenseJSON{
		ID:          id,
		Description: e.Description,
		Amount:      json.RawMessage(e.Amount.String()),
		Category:    e.Category,
		Date:        e.Date,
	})
}

func (e *NewExpense) UnmarshalJSON(data []byte) error {
	var raw expenseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = NewExpense{
		Description: raw.Description,
		Amount:      SanitizeJSONAmount(raw.Amount),
		Category:    raw.Category,
		Date:        raw.Date,
	}
	return nil
}

func (e NewExpense) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseJSON{
		Description: e.Description,
		Amount:      json.RawMessage(e.Amount.String()),
		Category:    e.Category,
		Date:        e.Date,
	})
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return string(raw)
}
