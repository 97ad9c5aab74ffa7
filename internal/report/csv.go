// Package report renders expense records as CSV and PDF documents.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"despesas/internal/core"
)

// CSVFilename is the download name of the CSV export.
const CSVFilename = "expenses.csv"

var csvHeader = []string{"id", "description", "amount", "category", "date"}

var ErrEmptyCSV = errors.New("csv has no header row")

// WriteCSV writes records with the id,description,amount,category,date
// header.
func WriteCSV(w io.Writer, records []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range records {
		row := []string{e.ID, e.Description, e.Amount.String(), e.Category, e.Date}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportRow is one data row of an uploaded CSV, keyed by header name.
// Columns missing from the header are empty.
type ImportRow struct {
	Line        int
	Description string
	Amount      string
	Category    string
	Date        string
}

// ReadCSV parses an upload whose first row names the columns. Column order
// is free and unknown columns are ignored. Malformed rows are skipped.
func ReadCSV(r io.Reader) ([]ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []ImportRow
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, ImportRow{
			Line:        line,
			Description: get(rec, "description"),
			Amount:      get(rec, "amount"),
			Category:    get(rec, "category"),
			Date:        get(rec, "date"),
		})
	}
	return rows, nil
}
