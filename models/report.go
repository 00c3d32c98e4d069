package models

import "time"

// FamilySignal pairs a family with its verdict for ordered display
type FamilySignal struct {
	Family  Family  `json:"family"`
	Label   string  `json:"label"`
	Value   string  `json:"value"`
	Verdict Verdict `json:"verdict"`
}

// ChartData carries the series the dashboard plots
type ChartData struct {
	Dates         []string  `json:"dates"`
	Close         []float64 `json:"close"`
	ForecastDates []string  `json:"forecast_dates"`
	Forecast      []float64 `json:"forecast"`
	ForecastLower []float64 `json:"forecast_lower,omitempty"`
	ForecastUpper []float64 `json:"forecast_upper,omitempty"`
}

// ReportPayload is the presentation record shared by the dashboard, the
// PDF report and the JSON API. All numbers are pre-formatted.
type ReportPayload struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	Horizon     int       `json:"horizon"`
	Source      string    `json:"source"`
	Synthetic   bool      `json:"synthetic"`
	GeneratedAt time.Time `json:"generated_at"`
	CurrentDate string    `json:"current_date"`

	LatestClose      string  `json:"latest_close"`
	PriceChange1D    string  `json:"price_change_1d"`
	PriceChangeValue float64 `json:"price_change_value"`
	LatestCloseClass string  `json:"latest_close_class"`
	LatestCloseIcon  string  `json:"latest_close_icon"`

	Volume          string `json:"volume"`
	VolumeChangePct string `json:"volume_change_pct"`
	VolumeClass     string `json:"volume_class"`
	VolumeIcon      string `json:"volume_icon"`

	Volatility30D  string `json:"volatility_30d"`
	VolatilityHigh bool   `json:"volatility_high"`

	RSI      string  `json:"rsi"`
	RSIValue float64 `json:"rsi_val"`
	SMA7     string  `json:"sma_7"`
	SMA20    string  `json:"sma_20"`
	SMA50    string  `json:"sma_50"`
	EMA12    string  `json:"ema_12"`
	EMA26    string  `json:"ema_26"`
	MACD     string  `json:"macd"`
	Stoch    string  `json:"stoch"`
	BBWidth  string  `json:"bb_width"`
	ATR      string  `json:"atr"`

	Signals        []FamilySignal `json:"signals"`
	Rating         RatingLabel    `json:"rating"`
	BuySignals     int            `json:"buy_signals"`
	SellSignals    int            `json:"sell_signals"`
	NeutralSignals int            `json:"neutral_signals"`

	ForecastBackend   string `json:"forecast_backend"`
	ForecastClose     string `json:"forecast_close"`
	ForecastChangePct string `json:"forecast_change_pct"`
	ForecastEndDate   string `json:"forecast_end_date"`

	Chart ChartData `json:"chart"`
}
