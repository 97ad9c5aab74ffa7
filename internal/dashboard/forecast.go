package dashboard

import "despesas/internal/core"

// Forecast fits an ordinary least squares line over the month buckets, using
// the bucket position as x, and predicts the next month. It returns nil with
// fewer than two buckets or when the fit is degenerate.
func Forecast(months []core.MonthBucket) *core.ForecastResult {
	n := float64(len(months))
	if len(months) < 2 {
		return nil
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, m := range months {
		x := float64(i)
		y := m.Amount.Float()
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return nil
	}
	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	return &core.ForecastResult{
		Predicted: intercept + slope*n,
		Slope:     slope,
		Intercept: intercept,
	}
}
