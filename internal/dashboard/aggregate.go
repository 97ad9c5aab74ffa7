// Package dashboard derives the aggregated views of the expense dashboard
// from a record snapshot. Everything here is pure: no I/O, no shared state.
package dashboard

import (
	"sort"

	"despesas/internal/core"
)

// GroupByMonth sums amounts per calendar month, ascending by key. Records
// whose date cannot be parsed are skipped.
func GroupByMonth(records []core.Expense) []core.MonthBucket {
	index := make(map[string]int)
	var buckets []core.MonthBucket
	for _, r := range records {
		d, ok := core.ParseDate(r.Date)
		if !ok {
			continue
		}
		key := core.MonthKey(d)
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, core.MonthBucket{Key: key, Label: core.MonthLabel(d)})
		}
		buckets[i].Amount = buckets[i].Amount.Add(r.Amount)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

// GroupByCategory sums amounts per category, descending by value. Ties keep
// first-seen order.
func GroupByCategory(records []core.Expense) []core.CategoryBucket {
	index := make(map[string]int)
	var buckets []core.CategoryBucket
	for _, r := range records {
		i, seen := index[r.Category]
		if !seen {
			i = len(buckets)
			index[r.Category] = i
			buckets = append(buckets, core.CategoryBucket{Name: r.Category})
		}
		buckets[i].Value = buckets[i].Value.Add(r.Amount)
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Value.Cents > buckets[j].Value.Cents })
	return buckets
}

// Total sums the amounts of records, regardless of their dates.
func Total(records []core.Expense) core.Money {
	var sum core.Money
	for _, r := range records {
		sum = sum.Add(r.Amount)
	}
	return sum
}
