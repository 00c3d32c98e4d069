package indicators

import (
	"math"

	"stock-forecast/models"

	"github.com/guregu/null/v6"
)

// Verdict thresholds
const (
	rsiOversold     = 30.0
	rsiOverbought   = 70.0
	stochOversold   = 20.0
	stochOverbought = 80.0

	strongThreshold = 60
	leanThreshold   = 40
)

// trendVerdict compares the close with a moving average. Equal or
// undefined averages carry no signal.
func trendVerdict(close float64, avg null.Float) models.Verdict {
	switch {
	case !avg.Valid:
		return models.VerdictNeutral
	case close > avg.Float64:
		return models.VerdictBuy
	case close < avg.Float64:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

func rsiVerdict(rsi null.Float) models.Verdict {
	switch {
	case !rsi.Valid:
		return models.VerdictNeutral
	case rsi.Float64 < rsiOversold:
		return models.VerdictBuy
	case rsi.Float64 > rsiOverbought:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

func macdVerdict(hist null.Float) models.Verdict {
	switch {
	case !hist.Valid:
		return models.VerdictNeutral
	case hist.Float64 > 0:
		return models.VerdictBuy
	case hist.Float64 < 0:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

func bollingerVerdict(close float64, lower, upper null.Float) models.Verdict {
	switch {
	case !lower.Valid || !upper.Valid:
		return models.VerdictNeutral
	case close < lower.Float64:
		return models.VerdictBuy
	case close > upper.Float64:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

func stochasticVerdict(k, d null.Float) models.Verdict {
	switch {
	case !k.Valid || !d.Valid:
		return models.VerdictNeutral
	case k.Float64 < stochOversold && d.Float64 < stochOversold:
		return models.VerdictBuy
	case k.Float64 > stochOverbought && d.Float64 > stochOverbought:
		return models.VerdictSell
	default:
		return models.VerdictNeutral
	}
}

// Evaluate maps the latest indicator values to one verdict per family
func Evaluate(close float64, set models.IndicatorSet) models.Verdicts {
	return models.Verdicts{
		models.FamilySMA7:       trendVerdict(close, set.Latest(models.IndSMA7)),
		models.FamilySMA20:      trendVerdict(close, set.Latest(models.IndSMA20)),
		models.FamilySMA50:      trendVerdict(close, set.Latest(models.IndSMA50)),
		models.FamilyEMA12:      trendVerdict(close, set.Latest(models.IndEMA12)),
		models.FamilyEMA26:      trendVerdict(close, set.Latest(models.IndEMA26)),
		models.FamilyMACD:       macdVerdict(set.Latest(models.IndMACDHist)),
		models.FamilyRSI:        rsiVerdict(set.Latest(models.IndRSI14)),
		models.FamilyStochastic: stochasticVerdict(set.Latest(models.IndStochK), set.Latest(models.IndStochD)),
		models.FamilyBollinger:  bollingerVerdict(close, set.Latest(models.IndBBLower), set.Latest(models.IndBBUpper)),
	}
}

// Rate tallies verdicts across every family. A family missing from the map
// counts as Neutral.
func Rate(verdicts models.Verdicts) models.Rating {
	var buy, sell, neutral int
	for _, f := range models.Families {
		switch verdicts[f] {
		case models.VerdictBuy:
			buy++
		case models.VerdictSell:
			sell++
		default:
			neutral++
		}
	}
	return RateCounts(buy, sell, neutral)
}

// RateCounts classifies a verdict tally. Percentages are rounded half to
// even before the thresholds are applied.
func RateCounts(buy, sell, neutral int) models.Rating {
	r := models.Rating{Buy: buy, Sell: sell, Neutral: neutral, Label: models.RatingNeutral}
	total := buy + sell + neutral
	if total == 0 {
		return r
	}

	pct := func(n int) int {
		return int(math.RoundToEven(float64(n) / float64(total) * 100))
	}
	r.BuyPercent = pct(buy)
	r.SellPercent = pct(sell)
	r.NeutralPercent = pct(neutral)

	switch {
	case r.BuyPercent > strongThreshold:
		r.Label = models.RatingStrongBuy
	case r.BuyPercent > leanThreshold:
		r.Label = models.RatingBuy
	case r.SellPercent > strongThreshold:
		r.Label = models.RatingStrongSell
	case r.SellPercent > leanThreshold:
		r.Label = models.RatingSell
	}
	return r
}
