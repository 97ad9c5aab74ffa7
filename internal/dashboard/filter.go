package dashboard

import (
	"sort"
	"strings"

	"despesas/internal/core"
)

// Criteria are the user-selected filters. Empty fields match everything.
type Criteria struct {
	Month    string `json:"month,omitempty"`
	Category string `json:"category,omitempty"`
	Query    string `json:"q,omitempty"`
}

// Key identifies the criteria in caches.
func (c Criteria) Key() string {
	return c.Month + "|" + c.Category + "|" + strings.ToLower(strings.TrimSpace(c.Query))
}

// Option is an entry of a filter selector.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Filter returns the records matching all active criteria, in input order.
func Filter(records []core.Expense, c Criteria) []core.Expense {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	out := make([]core.Expense, 0, len(records))
	for _, r := range records {
		if c.Month != "" {
			d, ok := core.ParseDate(r.Date)
			if !ok || core.MonthKey(d) != c.Month {
				continue
			}
		}
		if c.Category != "" && r.Category != c.Category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(r.Description+" "+r.Category), query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortByDateDesc returns a copy of records, newest first. Records with
// unparseable dates go last, keeping their relative order.
func SortByDateDesc(records []core.Expense) []core.Expense {
	type dated struct {
		rec core.Expense
		ok  bool
		day int64
	}
	tmp := make([]dated, len(records))
	for i, r := range records {
		d, ok := core.ParseDate(r.Date)
		tmp[i] = dated{rec: r, ok: ok, day: d.Unix()}
	}
	sort.SliceStable(tmp, func(i, j int) bool {
		a, b := tmp[i], tmp[j]
		if a.ok != b.ok {
			return a.ok
		}
		return a.ok && a.day > b.day
	})
	out := make([]core.Expense, len(tmp))
	for i, d := range tmp {
		out[i] = d.rec
	}
	return out
}

// MonthOptions lists the months present in records in chronological order.
func MonthOptions(records []core.Expense) []Option {
	months := GroupByMonth(records)
	opts := make([]Option, 0, len(months))
	for _, m := range months {
		opts = append(opts, Option{Value: m.Key, Label: m.Label})
	}
	return opts
}

// CategoryOptions lists the distinct categories in records, sorted.
func CategoryOptions(records []core.Expense) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out
}
