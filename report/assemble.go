// Package report turns an analysis and forecast into presentation records
// and export artifacts.
package report

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"stock-forecast/indicators"
	"stock-forecast/models"
)

// NA marks an undefined value
const NA = "N/A"

var printer = message.NewPrinter(language.English)

// familyLabels names each family for display
var familyLabels = map[models.Family]string{
	models.FamilySMA7:       "SMA 7",
	models.FamilySMA20:      "SMA 20",
	models.FamilySMA50:      "SMA 50",
	models.FamilyEMA12:      "EMA 12",
	models.FamilyEMA26:      "EMA 26",
	models.FamilyMACD:       "MACD",
	models.FamilyRSI:        "RSI 14",
	models.FamilyStochastic: "Stochastic %K",
	models.FamilyBollinger:  "Bollinger width",
}

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NA
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func fixedNull(v null.Float, places int32) string {
	if !v.Valid {
		return NA
	}
	return fixed(v.Float64, places)
}

func direction(v float64) (class, icon string) {
	if v > 0 {
		return "success", "arrow-up"
	}
	return "danger", "arrow-down"
}

// Assemble builds the payload shown on the dashboard and in reports. It
// only formats and merges: undefined values render as N/A.
func Assemble(ticker string, horizon int, series *models.PriceSeries, analysis *indicators.Analysis, fc *models.ForecastResult) *models.ReportPayload {
	return assembleAt(time.Now(), ticker, horizon, series, analysis, fc)
}

func assembleAt(now time.Time, ticker string, horizon int, series *models.PriceSeries, analysis *indicators.Analysis, fc *models.ForecastResult) *models.ReportPayload {
	set := analysis.Indicators
	st := analysis.Stats

	p := &models.ReportPayload{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		Horizon:     horizon,
		Source:      series.Source,
		Synthetic:   series.Source == models.SourceSynthetic,
		GeneratedAt: now,
		CurrentDate: now.Format("January 02, 2006"),

		LatestClose:      fixed(st.LatestClose, 2),
		PriceChange1D:    fixed(st.PriceChangePct, 2),
		PriceChangeValue: st.PriceChangePct,

		Volume:          NA,
		VolumeChangePct: fixedNull(st.VolumeChangePct, 2),

		Volatility30D: NA,

		RSI:     fixedNull(set.Latest(models.IndRSI14), 2),
		SMA7:    fixedNull(set.Latest(models.IndSMA7), 2),
		SMA20:   fixedNull(set.Latest(models.IndSMA20), 2),
		SMA50:   fixedNull(set.Latest(models.IndSMA50), 2),
		EMA12:   fixedNull(set.Latest(models.IndEMA12), 2),
		EMA26:   fixedNull(set.Latest(models.IndEMA26), 2),
		MACD:    fixedNull(set.Latest(models.IndMACD), 4),
		Stoch:   fixedNull(set.Latest(models.IndStochK), 2),
		BBWidth: fixedNull(set.Latest(models.IndBBWidth), 4),
		ATR:     fixedNull(set.Latest(models.IndATR14), 4),

		Rating:         analysis.Rating.Label,
		BuySignals:     analysis.Rating.BuyPercent,
		SellSignals:    analysis.Rating.SellPercent,
		NeutralSignals: analysis.Rating.NeutralPercent,

		ForecastClose:     NA,
		ForecastChangePct: NA,
		ForecastEndDate:   NA,
	}

	p.LatestCloseClass, p.LatestCloseIcon = direction(st.PriceChangePct)
	p.VolumeClass, p.VolumeIcon = direction(st.VolumeChangePct.Float64)

	if st.Volume.Valid && st.Volume.Float64 > 0 {
		p.Volume = printer.Sprintf("%d", int64(st.Volume.Float64))
	}

	if rsi := set.Latest(models.IndRSI14); rsi.Valid {
		p.RSIValue = rsi.Float64
	}

	if vol := set.Latest(models.IndVolatility); vol.Valid {
		p.Volatility30D = fixed(vol.Float64, 2) + "%"
		p.VolatilityHigh = st.VolatilityMean.Valid && vol.Float64 > st.VolatilityMean.Float64
	}

	values := map[models.Family]string{
		models.FamilySMA7:       p.SMA7,
		models.FamilySMA20:      p.SMA20,
		models.FamilySMA50:      p.SMA50,
		models.FamilyEMA12:      p.EMA12,
		models.FamilyEMA26:      p.EMA26,
		models.FamilyMACD:       p.MACD,
		models.FamilyRSI:        p.RSI,
		models.FamilyStochastic: p.Stoch,
		models.FamilyBollinger:  p.BBWidth,
	}
	for _, f := range models.Families {
		verdict, ok := analysis.Verdicts[f]
		if !ok {
			verdict = models.VerdictNeutral
		}
		p.Signals = append(p.Signals, models.FamilySignal{Family: f, Label: familyLabels[f], Value: values[f], Verdict: verdict})
	}

	p.Chart.Dates = make([]string, series.Len())
	p.Chart.Close = series.Closes()
	for i, d := range series.Dates() {
		p.Chart.Dates[i] = d.Format(time.DateOnly)
	}

	if fc != nil && len(fc.Points) > 0 {
		last := fc.Last()
		p.ForecastBackend = fc.Backend
		p.ForecastClose = fixed(last.Value, 2)
		if st.LatestClose != 0 {
			p.ForecastChangePct = fixed((last.Value-st.LatestClose)/st.LatestClose*100, 2)
		}
		p.ForecastEndDate = last.Date.Format(time.DateOnly)
		p.Chart.ForecastDates, p.Chart.Forecast, p.Chart.ForecastLower, p.Chart.ForecastUpper = chartForecast(fc)
	}

	return p
}

// chartForecast splits the forecast into plot columns. Bounds are dropped
// unless every point has them.
func chartForecast(fc *models.ForecastResult) (dates []string, values, lower, upper []float64) {
	dates = make([]string, len(fc.Points))
	values = make([]float64, len(fc.Points))
	lower = make([]float64, len(fc.Points))
	upper = make([]float64, len(fc.Points))
	bounded := true
	for i, pt := range fc.Points {
		dates[i] = pt.Date.Format(time.DateOnly)
		values[i] = pt.Value
		if !pt.Lower.Valid || !pt.Upper.Valid {
			bounded = false
			continue
		}
		lower[i], upper[i] = pt.Lower.Float64, pt.Upper.Float64
	}
	if !bounded {
		return dates, values, nil, nil
	}
	return dates, values, lower, upper
}
