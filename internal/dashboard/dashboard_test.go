package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"despesas/internal/core"
	"despesas/internal/store"
)

func exp(id, desc string, cents int64, cat, date string) core.Expense {
	return core.Expense{ID: id, Description: desc, Amount: core.Money{Cents: cents}, Category: cat, Date: date}
}

func months(amounts ...int64) []core.MonthBucket {
	out := make([]core.MonthBucket, len(amounts))
	for i, a := range amounts {
		out[i] = core.MonthBucket{Key: time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"), Amount: core.Money{Cents: a * 100}}
	}
	return out
}

func sample() []core.Expense {
	return []core.Expense{
		exp("1", "Mercado", 15000, "Alimentação", "2024-05-10"),
		exp("2", "Aluguel", 120000, "Casa", "01/04/2024"),
		exp("3", "Padaria", 2550, "Alimentação", "2024-05-02"),
		exp("4", "Uber", 3000, "Transporte", "não sei"),
		exp("5", "Luz", 20000, "Casa", "2024-03-15T10:00:00Z"),
		exp("6", "Feira", 4000, "Alimentação", "31/05/2024"),
	}
}

func TestGroupByMonthKeysAscendingAndUnique(t *testing.T) {
	records := sample()
	// reverse input order must not matter
	reversed := make([]core.Expense, len(records))
	for i := range records {
		reversed[len(records)-1-i] = records[i]
	}

	for _, in := range [][]core.Expense{records, reversed} {
		buckets := GroupByMonth(in)
		require.Len(t, buckets, 3)
		for i := 1; i < len(buckets); i++ {
			assert.Less(t, buckets[i-1].Key, buckets[i].Key)
		}
		assert.Equal(t, "2024-03", buckets[0].Key)
		assert.Equal(t, "mar. de 2024", buckets[0].Label)
		assert.Equal(t, int64(20000), buckets[0].Amount.Cents)
		assert.Equal(t, int64(120000), buckets[1].Amount.Cents)
		assert.Equal(t, int64(15000+2550+4000), buckets[2].Amount.Cents)
	}
}

func TestUnparseableDateCountsOutsideMonths(t *testing.T) {
	records := sample()
	var monthSum int64
	for _, b := range GroupByMonth(records) {
		monthSum += b.Amount.Cents
	}
	total := Total(records)

	assert.Equal(t, total.Cents-3000, monthSum, "the undated record is absent from every month")

	var catSum int64
	var transport int64
	for _, b := range GroupByCategory(records) {
		catSum += b.Value.Cents
		if b.Name == "Transporte" {
			transport = b.Value.Cents
		}
	}
	assert.Equal(t, total.Cents, catSum)
	assert.Equal(t, int64(3000), transport)
}

func TestNonFiniteTimestampsStayOutOfMonths(t *testing.T) {
	for _, bad := range []string{"NaN", "Inf", "infinity", "99999999999999999999"} {
		records := []core.Expense{
			exp("1", "a", 100, "Geral", "2024-05-10"),
			exp("2", "b", 500, "Geral", bad),
			exp("3", "c", 200, "Geral", "2024-06-10"),
		}

		buckets := GroupByMonth(records)
		require.Len(t, buckets, 2, "date %q", bad)
		assert.Equal(t, "2024-05", buckets[0].Key)
		assert.Equal(t, "2024-06", buckets[1].Key)

		f := Forecast(buckets)
		require.NotNil(t, f)
		assert.InDelta(t, 1, f.Slope, 1e-9)
		assert.InDelta(t, 3, f.Predicted, 1e-9)
		assert.Equal(t, int64(800), Total(records).Cents)
	}
}

func TestGroupByCategoryOrder(t *testing.T) {
	records := []core.Expense{
		exp("1", "a", 100, "B", ""),
		exp("2", "b", 300, "A", ""),
		exp("3", "c", 100, "C", ""),
		exp("4", "d", 50, "B", ""),
	}
	buckets := GroupByCategory(records)
	require.Len(t, buckets, 3)
	assert.Equal(t, "A", buckets[0].Name)
	assert.Equal(t, "B", buckets[1].Name)
	assert.Equal(t, int64(150), buckets[1].Value.Cents)
	assert.Equal(t, "C", buckets[2].Name)

	tie := GroupByCategory([]core.Expense{exp("1", "", 100, "X", ""), exp("2", "", 100, "Y", "")})
	assert.Equal(t, "X", tie[0].Name, "ties keep first-seen order")
}

func TestForecast(t *testing.T) {
	f := Forecast(months(100, 200, 300))
	require.NotNil(t, f)
	assert.InDelta(t, 100, f.Slope, 1e-9)
	assert.InDelta(t, 100, f.Intercept, 1e-9)
	assert.InDelta(t, 400, f.Predicted, 1e-9)

	assert.Nil(t, Forecast(months(100)))
	assert.Nil(t, Forecast(nil))

	flat := Forecast(months(50, 50))
	require.NotNil(t, flat)
	assert.InDelta(t, 0, flat.Slope, 1e-9)
	assert.InDelta(t, 50, flat.Predicted, 1e-9)
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)
	records := sample()
	m := GroupByMonth(records)
	s := ComputeStats(records, m, now)

	assert.Equal(t, int64(15000+120000+2550+3000+20000+4000), s.Total.Cents)
	assert.InDelta(t, (200.0+1200.0+215.5)/3, s.Average, 1e-9)
	assert.Equal(t, int64(21550), s.CurrentMonthTotal.Cents)
	assert.InDelta(t, (215.5-1200.0)/1200.0*100, s.TrendPercent, 1e-9)

	empty := ComputeStats(nil, nil, now)
	assert.Equal(t, Stats{}, empty)

	noCurrent := ComputeStats(records, m, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(0), noCurrent.CurrentMonthTotal.Cents)
}

func TestTrendPercent(t *testing.T) {
	assert.InDelta(t, 50.0, trendPercent(months(100, 150)), 1e-9)
	assert.Equal(t, 0.0, trendPercent(months(0, 50)))
	assert.Equal(t, 0.0, trendPercent(months(100)))
	assert.Equal(t, 0.0, trendPercent(nil))
}

func TestFilterByMonthKeepsOrder(t *testing.T) {
	got := Filter(sample(), Criteria{Month: "2024-05"})
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"1", "3", "6"}, ids)
}

func TestFilterCombined(t *testing.T) {
	records := sample()

	assert.Len(t, Filter(records, Criteria{}), len(records))
	assert.Len(t, Filter(records, Criteria{Category: "Casa"}), 2)
	assert.Len(t, Filter(records, Criteria{Category: "casa"}), 0, "category match is exact")

	q := Filter(records, Criteria{Query: "  ALIMENT "})
	assert.Len(t, q, 3, "query matches the category too, ignoring case")

	both := Filter(records, Criteria{Month: "2024-05", Query: "pad"})
	require.Len(t, both, 1)
	assert.Equal(t, "3", both[0].ID)

	assert.Empty(t, Filter(records, Criteria{Month: "2024-05", Category: "Casa"}))
}

func TestSortByDateDesc(t *testing.T) {
	records := sample()
	sorted := SortByDateDesc(records)
	ids := make([]string, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"6", "1", "3", "2", "5", "4"}, ids)
	assert.Equal(t, "1", records[0].ID, "input is not reordered")
}

func TestOptions(t *testing.T) {
	records := sample()
	opts := MonthOptions(records)
	require.Len(t, opts, 3)
	assert.Equal(t, Option{Value: "2024-03", Label: "mar. de 2024"}, opts[0])
	assert.Equal(t, []string{"Alimentação", "Casa", "Transporte"}, CategoryOptions(records))
}

func TestBuild(t *testing.T) {
	st := store.New()
	st.Commit(sample(), &core.RemoteForecast{Predicted: 99, Coef: 1, Intercept: 2})
	now := time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC)

	vm := Build(st.Snapshot(), Criteria{Category: "Alimentação"}, now)

	assert.Equal(t, uint64(1), vm.Generation)
	assert.Len(t, vm.Items, 3)
	assert.Equal(t, "6", vm.Items[0].ID)
	require.Len(t, vm.Months, 1)
	assert.Nil(t, vm.LocalForecast, "one month is not enough for a fit")
	require.NotNil(t, vm.RemoteForecast)
	assert.Equal(t, 99.0, vm.RemoteForecast.Predicted)
	assert.Len(t, vm.MonthOptions, 3, "options come from the whole snapshot")
	assert.Len(t, vm.CategoryOptions, 3)
	assert.True(t, strings.HasPrefix(vm.Tiles.Total, "R$ "))
	assert.Empty(t, vm.Tiles.Forecast)

	all := Build(st.Snapshot(), Criteria{}, now)
	require.NotNil(t, all.LocalForecast)
	assert.NotEmpty(t, all.Tiles.Forecast)
}

func TestBuildEmptySnapshot(t *testing.T) {
	vm := Build(store.New().Snapshot(), Criteria{}, time.Now())
	assert.NotNil(t, vm.Months)
	assert.NotNil(t, vm.Categories)
	assert.NotNil(t, vm.Items)
	assert.Nil(t, vm.LocalForecast)
	assert.Nil(t, vm.RemoteForecast)
}

func TestFormatBRL(t *testing.T) {
	s := FormatBRL(1234.56)
	assert.True(t, strings.HasPrefix(s, "R$ "), s)
	assert.Contains(t, s, "234")
	assert.Contains(t, s, "56")
	assert.True(t, strings.HasPrefix(FormatBRL(-5), "-R$ "))
}
