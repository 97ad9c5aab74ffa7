package dashboard

import (
	"time"

	"despesas/internal/core"
)

// Stats are the numbers shown on the dashboard tiles.
type Stats struct {
	Total             core.Money `json:"total"`
	Average           float64    `json:"average"`
	CurrentMonthTotal core.Money `json:"current_month_total"`
	TrendPercent      float64    `json:"trend_percent"`
}

// ComputeStats derives the tile numbers from the filtered records and their
// month buckets. Average is the mean of the month buckets, not of the
// records.
func ComputeStats(filtered []core.Expense, months []core.MonthBucket, now time.Time) Stats {
	s := Stats{Total: Total(filtered)}

	if len(months) > 0 {
		var sum float64
		for _, m := range months {
			sum += m.Amount.Float()
		}
		s.Average = sum / float64(len(months))
	}

	current := core.MonthKey(now)
	for _, m := range months {
		if m.Key == current {
			s.CurrentMonthTotal = m.Amount
			break
		}
	}

	s.TrendPercent = trendPercent(months)
	return s
}

func trendPercent(months []core.MonthBucket) float64 {
	if len(months) < 2 {
		return 0
	}
	last := months[len(months)-1].Amount.Float()
	prev := months[len(months)-2].Amount.Float()
	if prev == 0 {
		return 0
	}
	return (last - prev) / prev * 100
}
