// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and for coercing arbitrary user or wire input into a safe Money value.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxCents bounds amounts to what fits in Money.
var maxCents = decimal.NewFromInt(math.MaxInt64)

// decimalToCents parses s with shopspring/decimal and rounds it half away
// from zero to two places.
func decimalToCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return roundCents(d)
}

func roundCents(d decimal.Decimal) (int64, error) {
	cents := d.Round(2).Shift(2)
	if !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// SanitizeAmount coerces a user-typed amount into Money. It understands
// Brazilian grouping ("1.234,56"), plain decimals with either separator,
// exponents and an optional "R$" prefix. Anything it cannot read becomes
// zero.
func SanitizeAmount(s string) Money {
	normalized := normalizeDecimal(s)
	if normalized == "" {
		return Money{}
	}
	cents, err := decimalToCents(normalized)
	if err != nil {
		return Money{}
	}
	return Money{Cents: cents}
}

// SanitizeJSONAmount reads an amount encoded either as a JSON number or as a
// JSON string.
func SanitizeJSONAmount(raw json.RawMessage) Money {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Money{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Money{}
		}
		return SanitizeAmount(s)
	}
	cents, err := decimalToCents(string(raw))
	if err != nil {
		return Money{}
	}
	return Money{Cents: cents}
}

func normalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	return s
}

// Float returns the amount in currency units. Use Cents for sums.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// String renders the amount as a plain decimal with two digits ("1234.56").
func (m Money) String() string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + twoDigits(cents%100)
	if neg {
		return "-" + s
	}
	return s
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	*m = SanitizeJSONAmount(data)
	return nil
}

func twoDigits(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}
