package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// ForecastPoint is one predicted value with optional uncertainty bounds
type ForecastPoint struct {
	Date  time.Time  `json:"ds"`
	Value float64    `json:"yhat"`
	Lower null.Float `json:"yhat_lower"`
	Upper null.Float `json:"yhat_upper"`
}

// ForecastResult is the ordered output of a forecaster
type ForecastResult struct {
	Ticker  string          `json:"ticker"`
	Backend string          `json:"backend"`
	Points  []ForecastPoint `json:"points"`
}

// Last returns the final forecast point
func (f *ForecastResult) Last() ForecastPoint {
	return f.Points[len(f.Points)-1]
}
