package indicators

import (
	"stock-forecast/models"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"
)

// Parameters used by Compute
const (
	rsiPeriod        = 14
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
	bollingerWindow  = 20
	bollingerK       = 2.0
	stochPeriod      = 14
	stochSmoothing   = 3
	atrPeriod        = 14
	volatilityWindow = 30
	volumeWindow     = 20

	minPoints = 2
)

// Stats are the headline numbers shown next to the indicators
type Stats struct {
	LatestClose     float64
	PrevClose       float64
	PriceChange     float64
	PriceChangePct  float64
	Volume          null.Float
	VolumeChangePct null.Float
	VolatilityMean  null.Float
}

// Analysis is the output of one Compute call
type Analysis struct {
	Indicators models.IndicatorSet
	Verdicts   models.Verdicts
	Rating     models.Rating
	Stats      Stats
}

// Engine computes indicator sets. It holds no state and is safe for
// concurrent use.
type Engine struct{}

// NewEngine creates an indicator engine
func NewEngine() *Engine {
	return &Engine{}
}

// Compute derives every indicator, the per-family verdicts and the rating
// for a series. Indicators whose warm-up exceeds the series length are
// left undefined rather than failing.
func (e *Engine) Compute(series *models.PriceSeries) (*Analysis, error) {
	if series == nil || series.Len() < minPoints {
		have := 0
		if series != nil {
			have = series.Len()
		}
		return nil, &models.InsufficientDataError{Need: minPoints, Have: have}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	closes := series.Closes()
	macd := MACD(closes, macdFast, macdSlow, macdSignal)
	bb := Bollinger(closes, bollingerWindow, bollingerK)
	stoch := Stochastic(series, stochPeriod, stochSmoothing)
	volatility := Volatility(closes, volatilityWindow)

	set := models.IndicatorSet{
		models.IndSMA7:       models.SeriesFromFloats(SMA(closes, 7)),
		models.IndSMA20:      models.SeriesFromFloats(SMA(closes, 20)),
		models.IndSMA50:      models.SeriesFromFloats(SMA(closes, 50)),
		models.IndEMA12:      models.SeriesFromFloats(EMA(closes, 12)),
		models.IndEMA26:      models.SeriesFromFloats(EMA(closes, 26)),
		models.IndRSI14:      models.SeriesFromFloats(RSI(closes, rsiPeriod)),
		models.IndMACD:       models.SeriesFromFloats(macd.Line),
		models.IndMACDSignal: models.SeriesFromFloats(macd.Signal),
		models.IndMACDHist:   models.SeriesFromFloats(macd.Histogram),
		models.IndBBUpper:    models.SeriesFromFloats(bb.Upper),
		models.IndBBMiddle:   models.SeriesFromFloats(bb.Middle),
		models.IndBBLower:    models.SeriesFromFloats(bb.Lower),
		models.IndBBWidth:    models.SeriesFromFloats(bb.Width),
		models.IndStochK:     models.SeriesFromFloats(stoch.K),
		models.IndStochD:     models.SeriesFromFloats(stoch.D),
		models.IndATR14:      models.SeriesFromFloats(ATR(series, atrPeriod)),
		models.IndVolatility: models.SeriesFromFloats(volatility),
	}
	if series.HasVolume {
		set[models.IndVolumeSMA20] = models.SeriesFromFloats(SMA(series.Volumes(), volumeWindow))
	}

	latest := closes[len(closes)-1]
	verdicts := Evaluate(latest, set)

	return &Analysis{
		Indicators: set,
		Verdicts:   verdicts,
		Rating:     Rate(verdicts),
		Stats:      summarize(series, set, volatility),
	}, nil
}

func summarize(series *models.PriceSeries, set models.IndicatorSet, volatility []float64) Stats {
	n := series.Len()
	last, prev := series.Bars[n-1].Close, series.Bars[n-2].Close

	st := Stats{
		LatestClose: last,
		PrevClose:   prev,
		PriceChange: last - prev,
	}
	if prev != 0 {
		st.PriceChangePct = (last - prev) / prev * 100
	}

	if series.HasVolume {
		vol := series.Bars[n-1].Volume
		st.Volume = null.FloatFrom(vol)
		if avg := set.Latest(models.IndVolumeSMA20); avg.Valid && avg.Float64 != 0 {
			st.VolumeChangePct = null.FloatFrom((vol - avg.Float64) / avg.Float64 * 100)
		}
	}

	defined := make([]float64, 0, len(volatility))
	for _, v := range volatility {
		if isFinite(v) {
			defined = append(defined, v)
		}
	}
	if len(defined) > 0 {
		st.VolatilityMean = null.FloatFrom(stat.Mean(defined, nil))
	}
	return st
}

// Compute runs a default engine over series
func Compute(series *models.PriceSeries) (*Analysis, error) {
	return NewEngine().Compute(series)
}
