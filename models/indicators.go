package models

import (
	"math"

	"github.com/guregu/null/v6"
)

// Indicator names used as IndicatorSet keys
const (
	IndSMA7        = "sma_7"
	IndSMA20       = "sma_20"
	IndSMA50       = "sma_50"
	IndEMA12       = "ema_12"
	IndEMA26       = "ema_26"
	IndRSI14       = "rsi_14"
	IndMACD        = "macd"
	IndMACDSignal  = "macd_signal"
	IndMACDHist    = "macd_hist"
	IndBBUpper     = "bb_upper"
	IndBBMiddle    = "bb_middle"
	IndBBLower     = "bb_lower"
	IndBBWidth     = "bb_width"
	IndStochK      = "stoch_k"
	IndStochD      = "stoch_d"
	IndATR14       = "atr_14"
	IndVolatility  = "volatility_30d"
	IndVolumeSMA20 = "volume_sma_20"
)

// Series is an indicator column aligned with a PriceSeries; entries are
// null until the indicator's warm-up window is satisfied.
type Series []null.Float

// SeriesFromFloats converts NaN/Inf entries to null
func SeriesFromFloats(values []float64) Series {
	out := make(Series, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = null.FloatFrom(v)
	}
	return out
}

// Floats returns the series with nulls as NaN
func (s Series) Floats() []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v.Valid {
			out[i] = v.Float64
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Latest returns the last entry, null for an empty series
func (s Series) Latest() null.Float {
	if len(s) == 0 {
		return null.Float{}
	}
	return s[len(s)-1]
}

// IndicatorSet maps indicator names to aligned series
type IndicatorSet map[string]Series

// Latest returns the last value of the named indicator
func (s IndicatorSet) Latest(name string) null.Float {
	return s[name].Latest()
}

// Verdict is a categorical signal derived from an indicator family
type Verdict string

const (
	VerdictBuy     Verdict = "Buy"
	VerdictSell    Verdict = "Sell"
	VerdictNeutral Verdict = "Neutral"
)

// Family identifies an indicator family that produces one verdict
type Family string

const (
	FamilySMA7       Family = "sma_7"
	FamilySMA20      Family = "sma_20"
	FamilySMA50      Family = "sma_50"
	FamilyEMA12      Family = "ema_12"
	FamilyEMA26      Family = "ema_26"
	FamilyMACD       Family = "macd"
	FamilyRSI        Family = "rsi"
	FamilyStochastic Family = "stochastic"
	FamilyBollinger  Family = "bollinger"
)

// Families lists every family in presentation order
var Families = []Family{
	FamilySMA7, FamilySMA20, FamilySMA50, FamilyEMA12, FamilyEMA26,
	FamilyMACD, FamilyRSI, FamilyStochastic, FamilyBollinger,
}

// Verdicts holds one verdict per family
type Verdicts map[Family]Verdict

// RatingLabel is the aggregate classification of all verdicts
type RatingLabel string

const (
	RatingStrongBuy  RatingLabel = "Strong Buy"
	RatingBuy        RatingLabel = "Buy"
	RatingNeutral    RatingLabel = "Neutral"
	RatingSell       RatingLabel = "Sell"
	RatingStrongSell RatingLabel = "Strong Sell"
)

// Rating summarizes the verdict tally
type Rating struct {
	Label          RatingLabel `json:"label"`
	Buy            int         `json:"buy"`
	Sell           int         `json:"sell"`
	Neutral        int         `json:"neutral"`
	BuyPercent     int         `json:"buy_percent"`
	SellPercent    int         `json:"sell_percent"`
	NeutralPercent int         `json:"neutral_percent"`
}
