package dashboard

import (
	"time"

	"despesas/internal/core"
	"despesas/internal/store"
)

// Tiles holds the stats pre-formatted for display.
type Tiles struct {
	Total        string `json:"total"`
	Average      string `json:"average"`
	CurrentMonth string `json:"current_month"`
	Forecast     string `json:"forecast,omitempty"`
}

// ViewModel is everything a renderer needs to draw the dashboard.
//
// LocalForecast is fitted over the filtered months; RemoteForecast is
// whatever the records service computed over all records. They are never
// reconciled.
type ViewModel struct {
	Generation      uint64                `json:"generation"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Criteria        Criteria              `json:"criteria"`
	Stats           Stats                 `json:"stats"`
	Tiles           Tiles                 `json:"tiles"`
	Months          []core.MonthBucket    `json:"months"`
	Categories      []core.CategoryBucket `json:"categories"`
	Items           []core.Expense        `json:"items"`
	LocalForecast   *core.ForecastResult  `json:"local_forecast"`
	RemoteForecast  *core.RemoteForecast  `json:"remote_forecast"`
	MonthOptions    []Option              `json:"month_options"`
	CategoryOptions []string              `json:"category_options"`
}

// Build runs the filter, aggregation, stats and forecast steps over a
// snapshot.
func Build(snap store.Snapshot, c Criteria, now time.Time) ViewModel {
	filtered := Filter(snap.Records, c)
	months := GroupByMonth(filtered)
	stats := ComputeStats(filtered, months, now)
	local := Forecast(months)

	vm := ViewModel{
		Generation:      snap.Generation,
		UpdatedAt:       snap.UpdatedAt,
		Criteria:        c,
		Stats:           stats,
		Months:          nonNil(months),
		Categories:      nonNil(GroupByCategory(filtered)),
		Items:           SortByDateDesc(filtered),
		LocalForecast:   local,
		RemoteForecast:  snap.RemoteForecast,
		MonthOptions:    MonthOptions(snap.Records),
		CategoryOptions: nonNil(CategoryOptions(snap.Records)),
		Tiles: Tiles{
			Total:        FormatMoney(stats.Total),
			Average:      FormatBRL(stats.Average),
			CurrentMonth: FormatMoney(stats.CurrentMonthTotal),
		},
	}
	if local != nil {
		vm.Tiles.Forecast = FormatBRL(local.Predicted)
	}
	return vm
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
