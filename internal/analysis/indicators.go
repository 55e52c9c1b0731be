package analysis

import (
	"math"
	"sort"

	"ict-sweep-bot/internal/market"
)

// ATR returns the simple moving average of the true range over period bars.
// With fewer than period+1 bars there is no previous close for a full true
// range series, so it falls back to the mean high-low range.
func ATR(bars []market.Bar, period int) float64 {
	if len(bars) < period+1 {
		if len(bars) == 0 {
			return 0
		}
		sum := 0.0
		for _, b := range bars {
			sum += b.High - b.Low
		}
		return sum / float64(len(bars))
	}

	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		tr := math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-bars[i-1].Close), math.Abs(bars[i].Low-bars[i-1].Close)))
		trs = append(trs, tr)
	}

	if len(trs) >= period {
		trs = trs[len(trs)-period:]
	}
	sum := 0.0
	for _, tr := range trs {
		sum += tr
	}
	return sum / float64(len(trs))
}

// EMA returns the exponential moving average of closes over period bars,
// seeded with the SMA of the first period values.
func EMA(bars []market.Bar, period int) float64 {
	if len(bars) < period || period < 1 {
		return 0
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += bars[i].Close
	}
	ema := sum / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(bars); i++ {
		ema = bars[i].Close*k + ema*(1-k)
	}
	return ema
}

// ADX returns Wilder's average directional index over period bars, a trend
// strength reading between 0 and 100. Needs at least 2*period+1 bars.
func ADX(bars []market.Bar, period int) float64 {
	if len(bars) < 2*period+1 || period < 1 {
		return 0
	}

	var plusDM, minusDM, trs []float64
	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		pdm, mdm := 0.0, 0.0
		if up > down && up > 0 {
			pdm = up
		}
		if down > up && down > 0 {
			mdm = down
		}
		plusDM = append(plusDM, pdm)
		minusDM = append(minusDM, mdm)
		tr := math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-bars[i-1].Close), math.Abs(bars[i].Low-bars[i-1].Close)))
		trs = append(trs, tr)
	}

	smooth := func(vals []float64) []float64 {
		out := make([]float64, 0, len(vals)-period+1)
		sum := 0.0
		for i := 0; i < period; i++ {
			sum += vals[i]
		}
		out = append(out, sum)
		for i := period; i < len(vals); i++ {
			sum = sum - sum/float64(period) + vals[i]
			out = append(out, sum)
		}
		return out
	}

	sTR := smooth(trs)
	sPDM := smooth(plusDM)
	sMDM := smooth(minusDM)

	var dxs []float64
	for i := range sTR {
		if sTR[i] == 0 {
			dxs = append(dxs, 0)
			continue
		}
		pdi := 100 * sPDM[i] / sTR[i]
		mdi := 100 * sMDM[i] / sTR[i]
		if pdi+mdi == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(pdi-mdi)/(pdi+mdi))
	}
	if len(dxs) < period {
		return 0
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dxs[i]
	}
	adx /= float64(period)
	for i := period; i < len(dxs); i++ {
		adx = (adx*float64(period-1) + dxs[i]) / float64(period)
	}
	return adx
}

// MedianBody returns the median candle body over the last period bars.
func MedianBody(bars []market.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	recent := bars
	if len(recent) > period {
		recent = recent[len(recent)-period:]
	}
	bodies := make([]float64, len(recent))
	for i, b := range recent {
		bodies[i] = b.Body()
	}
	sort.Float64s(bodies)
	return median(bodies)
}

// MedianATR returns the median of the rolling ATR over the last window bars.
// It is the baseline for the volatility regime filter. With fewer than
// window bars it returns the plain ATR.
func MedianATR(bars []market.Bar, atrPeriod, window int) float64 {
	if len(bars) < window {
		return ATR(bars, atrPeriod)
	}
	var atrs []float64
	for i := len(bars) - window; i < len(bars); i++ {
		if i >= atrPeriod {
			atrs = append(atrs, ATR(bars[:i+1], atrPeriod))
		}
	}
	if len(atrs) == 0 {
		return ATR(bars, atrPeriod)
	}
	sort.Float64s(atrs)
	return median(atrs)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
