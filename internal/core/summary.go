package core

// MonthBucket is the sum of the expenses dated in one calendar month.
type MonthBucket struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Amount Money  `json:"amount"`
}

// CategoryBucket is the sum of the expenses sharing a category.
type CategoryBucket struct {
	Name  string `json:"name"`
	Value Money  `json:"value"`
}

// ForecastResult is a next-period estimate from a linear fit over month
// buckets.
type ForecastResult struct {
	Predicted float64 `json:"predicted"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// RemoteForecast is the forecast computed by the records service.
type RemoteForecast struct {
	Predicted float64       `json:"predicted"`
	Coef      float64       `json:"coef"`
	Intercept float64       `json:"intercept"`
	Months    []MonthBucket `json:"months"`
}
