package signal

import "math"

// mean returns the arithmetic mean of xs. Empty input yields 0.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev returns the sample standard deviation (ddof=1) of xs.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// smaEnding returns the simple moving average of the period values ending
// just before index end (exclusive). ok is false when the window does not
// fit.
func smaEnding(xs []float64, period, end int) (float64, bool) {
	if period <= 0 || end-period < 0 || end > len(xs) {
		return 0, false
	}
	return mean(xs[end-period : end]), true
}

// ema returns the exponential moving average series over xs with
// alpha = 2/(span+1), seeded with the first value.
func ema(xs []float64, span int) []float64 {
	if len(xs) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(xs))
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsi computes the Relative Strength Index of the last bar using simple
// rolling means of gains and losses over the period. A period with no
// losses would divide by zero; it yields the neutral value 50 instead.
// ok is false when fewer than period+1 closes are available.
func rsi(closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 {
		return 0, false
	}

	gains := make([]float64, 0, period)
	losses := make([]float64, 0, period)
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain := mean(gains)
	avgLoss := mean(losses)
	if avgLoss == 0 {
		return 50, true
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// macdSeries returns the MACD line and its signal line over closes.
func macdSeries(closes []float64, fast, slow, signalSpan int) (macd, signalLine []float64) {
	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signalLine = ema(macd, signalSpan)
	return macd, signalLine
}
