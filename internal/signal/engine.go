package signal

import (
	"fmt"

	"upbit-auto-trader/internal/upbit"

	"go.uber.org/zap"
)

// Action is the direction of a trading signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Signal is the outcome of evaluating one strategy against one candle
// series. A nil *Signal means "nothing actionable this bar" and is routine
// control flow, not an error.
type Signal struct {
	Action     Action             `json:"action"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"` // 0..1
	Indicators map[string]float64 `json:"indicators"`
}

// Strategy identifies one of the built-in evaluators.
type Strategy string

const (
	StrategyRSIOversold    Strategy = "rsi_oversold"
	StrategyMACDCrossover  Strategy = "macd_crossover"
	StrategyBollingerBands Strategy = "bollinger_bands"
	StrategySwingTrading   Strategy = "swing_trading"
	StrategyTrendFollowing Strategy = "trend_following"
	StrategyAveragePrice   Strategy = "average_price"
	StrategyMomentum       Strategy = "momentum_trading"
	StrategyScalping       Strategy = "scalping"
)

// Per-strategy parameter structs with their defaults. Evaluators are pure
// functions over (closes, params); they share no state.

type RSIParams struct {
	Period     int
	Oversold   float64
	Overbought float64
}

type MACDParams struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

type BollingerParams struct {
	Window int
	NumStd float64
}

type SwingParams struct {
	ShortPeriod int
	LongPeriod  int
}

type TrendParams struct {
	MovingAveragePeriod int
}

type AveragePriceParams struct {
	Period int
}

type MomentumParams struct {
	Period    int
	Threshold float64
}

type ScalpingParams struct {
	ProfitMargin float64
}

var (
	DefaultRSIParams          = RSIParams{Period: 14, Oversold: 30, Overbought: 70}
	DefaultMACDParams         = MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
	DefaultBollingerParams    = BollingerParams{Window: 20, NumStd: 2}
	DefaultSwingParams        = SwingParams{ShortPeriod: 3, LongPeriod: 5}
	DefaultTrendParams        = TrendParams{MovingAveragePeriod: 20}
	DefaultAveragePriceParams = AveragePriceParams{Period: 24}
	DefaultMomentumParams     = MomentumParams{Period: 10, Threshold: 0.5}
	DefaultScalpingParams     = ScalpingParams{ProfitMargin: 0.02}
)

// strategies is the closed dispatch table: strategy id to evaluator bound to
// its default parameters. Built once at package init, never mutated.
var strategies = map[Strategy]func(closes []float64) *Signal{
	StrategyRSIOversold:    func(c []float64) *Signal { return EvaluateRSI(c, DefaultRSIParams) },
	StrategyMACDCrossover:  func(c []float64) *Signal { return EvaluateMACD(c, DefaultMACDParams) },
	StrategyBollingerBands: func(c []float64) *Signal { return EvaluateBollinger(c, DefaultBollingerParams) },
	StrategySwingTrading:   func(c []float64) *Signal { return EvaluateSwing(c, DefaultSwingParams) },
	StrategyTrendFollowing: func(c []float64) *Signal { return EvaluateTrend(c, DefaultTrendParams) },
	StrategyAveragePrice:   func(c []float64) *Signal { return EvaluateAveragePrice(c, DefaultAveragePriceParams) },
	StrategyMomentum:       func(c []float64) *Signal { return EvaluateMomentum(c, DefaultMomentumParams) },
	StrategyScalping:       func(c []float64) *Signal { return EvaluateScalping(c, DefaultScalpingParams) },
}

// Strategies returns the ids of every built-in strategy.
func Strategies() []Strategy {
	out := make([]Strategy, 0, len(strategies))
	for s := range strategies {
		out = append(out, s)
	}
	return out
}

// IsValid reports whether id names a built-in strategy.
func IsValid(id Strategy) bool {
	_, ok := strategies[id]
	return ok
}

// Engine evaluates strategies against candle series. It is stateless and
// safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new signal engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate runs the named strategy over the candle series and returns a
// signal, or nil when there is nothing actionable: no crossing, not enough
// history, or an unknown strategy id.
func (e *Engine) Evaluate(strategy Strategy, candles []upbit.Candle) *Signal {
	eval, ok := strategies[strategy]
	if !ok {
		e.logger.Warn("Unknown strategy requested", zap.String("strategy", string(strategy)))
		return nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return eval(closes)
}

// EvaluateRSI buys when the rolling-mean RSI is at or below the oversold
// threshold and sells at or above the overbought threshold.
func EvaluateRSI(closes []float64, p RSIParams) *Signal {
	value, ok := rsi(closes, p.Period)
	if !ok {
		return nil
	}

	indicators := map[string]float64{"rsi": value}

	if value <= p.Oversold {
		confidence := 0.5 + 0.5*(p.Oversold-value)/p.Oversold
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("RSI %.1f at or below oversold threshold %.0f", value, p.Oversold),
			Confidence: clampConfidence(confidence),
			Indicators: indicators,
		}
	}
	if value >= p.Overbought {
		confidence := 0.5 + 0.5*(value-p.Overbought)/(100-p.Overbought)
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("RSI %.1f at or above overbought threshold %.0f", value, p.Overbought),
			Confidence: clampConfidence(confidence),
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateMACD signals on a crossover of the MACD line and its signal line
// between the last two bars.
func EvaluateMACD(closes []float64, p MACDParams) *Signal {
	if len(closes) < p.SlowPeriod+p.SignalPeriod {
		return nil
	}

	macd, signalLine := macdSeries(closes, p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
	n := len(closes)
	prevDiff := macd[n-2] - signalLine[n-2]
	currDiff := macd[n-1] - signalLine[n-1]

	indicators := map[string]float64{
		"macd":      macd[n-1],
		"signal":    signalLine[n-1],
		"histogram": currDiff,
	}

	if prevDiff < 0 && currDiff > 0 {
		return &Signal{
			Action:     ActionBuy,
			Reason:     "MACD crossed above its signal line",
			Confidence: 0.6,
			Indicators: indicators,
		}
	}
	if prevDiff > 0 && currDiff < 0 {
		return &Signal{
			Action:     ActionSell,
			Reason:     "MACD crossed below its signal line",
			Confidence: 0.6,
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateBollinger buys when the last close touches or drops below the
// lower band and sells when it touches or exceeds the upper band. Both
// boundaries are inclusive.
func EvaluateBollinger(closes []float64, p BollingerParams) *Signal {
	if len(closes) < p.Window {
		return nil
	}

	window := closes[len(closes)-p.Window:]
	middle := mean(window)
	sd := stddev(window)
	upper := middle + p.NumStd*sd
	lower := middle - p.NumStd*sd
	last := closes[len(closes)-1]

	indicators := map[string]float64{
		"middle": middle,
		"upper":  upper,
		"lower":  lower,
		"close":  last,
	}

	if last <= lower {
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("price %.2f at or below lower band %.2f", last, lower),
			Confidence: 0.6,
			Indicators: indicators,
		}
	}
	if last >= upper {
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("price %.2f at or above upper band %.2f", last, upper),
			Confidence: 0.6,
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateSwing signals on a crossover of a short and a long simple moving
// average between the last two bars.
func EvaluateSwing(closes []float64, p SwingParams) *Signal {
	n := len(closes)
	if n < p.LongPeriod+1 {
		return nil
	}

	prevShort, _ := smaEnding(closes, p.ShortPeriod, n-1)
	prevLong, _ := smaEnding(closes, p.LongPeriod, n-1)
	currShort, _ := smaEnding(closes, p.ShortPeriod, n)
	currLong, _ := smaEnding(closes, p.LongPeriod, n)

	indicators := map[string]float64{
		"sma_short": currShort,
		"sma_long":  currLong,
	}

	if prevShort < prevLong && currShort > currLong {
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("SMA(%d) crossed above SMA(%d)", p.ShortPeriod, p.LongPeriod),
			Confidence: 0.55,
			Indicators: indicators,
		}
	}
	if prevShort > prevLong && currShort < currLong {
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("SMA(%d) crossed below SMA(%d)", p.ShortPeriod, p.LongPeriod),
			Confidence: 0.55,
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateTrend signals when the price crosses its moving average between
// the last two bars.
func EvaluateTrend(closes []float64, p TrendParams) *Signal {
	n := len(closes)
	if n < p.MovingAveragePeriod+1 {
		return nil
	}

	prevMA, _ := smaEnding(closes, p.MovingAveragePeriod, n-1)
	currMA, _ := smaEnding(closes, p.MovingAveragePeriod, n)
	prevClose := closes[n-2]
	lastClose := closes[n-1]

	indicators := map[string]float64{
		"sma":   currMA,
		"close": lastClose,
	}

	if prevClose <= prevMA && lastClose > currMA {
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("price crossed above SMA(%d)", p.MovingAveragePeriod),
			Confidence: 0.55,
			Indicators: indicators,
		}
	}
	if prevClose >= prevMA && lastClose < currMA {
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("price crossed below SMA(%d)", p.MovingAveragePeriod),
			Confidence: 0.55,
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateAveragePrice buys below the recent mean price and sells more than
// 5% above it.
func EvaluateAveragePrice(closes []float64, p AveragePriceParams) *Signal {
	if len(closes) < p.Period {
		return nil
	}

	avg := mean(closes[len(closes)-p.Period:])
	last := closes[len(closes)-1]

	indicators := map[string]float64{
		"average": avg,
		"close":   last,
	}

	if last < avg {
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("price %.2f below %d-bar average %.2f", last, p.Period, avg),
			Confidence: 0.5,
			Indicators: indicators,
		}
	}
	if last > avg*1.05 {
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("price %.2f more than 5%% above %d-bar average %.2f", last, p.Period, avg),
			Confidence: 0.5,
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateMomentum signals when the relative change over the lookback
// period exceeds the threshold in either direction.
func EvaluateMomentum(closes []float64, p MomentumParams) *Signal {
	n := len(closes)
	if n < p.Period {
		return nil
	}

	base := closes[n-p.Period]
	if base == 0 {
		return nil
	}
	change := (closes[n-1] - base) / base

	indicators := map[string]float64{"change": change}

	if change > p.Threshold {
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("momentum %.2f above threshold %.2f", change, p.Threshold),
			Confidence: 0.55,
			Indicators: indicators,
		}
	}
	if change < -p.Threshold {
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("momentum %.2f below threshold -%.2f", change, p.Threshold),
			Confidence: 0.55,
			Indicators: indicators,
		}
	}
	return nil
}

// EvaluateScalping reacts to the single-bar change: buy when it exceeds the
// margin, sell on a small positive drift below the margin.
func EvaluateScalping(closes []float64, p ScalpingParams) *Signal {
	n := len(closes)
	if n < 2 || closes[n-2] == 0 {
		return nil
	}

	change := (closes[n-1] - closes[n-2]) / closes[n-2]
	indicators := map[string]float64{"change": change}

	if change > p.ProfitMargin {
		return &Signal{
			Action:     ActionBuy,
			Reason:     fmt.Sprintf("single-bar change %.3f above margin %.3f", change, p.ProfitMargin),
			Confidence: 0.5,
			Indicators: indicators,
		}
	}
	if change > 0 && change < p.ProfitMargin {
		return &Signal{
			Action:     ActionSell,
			Reason:     fmt.Sprintf("single-bar change %.3f within margin %.3f", change, p.ProfitMargin),
			Confidence: 0.5,
			Indicators: indicators,
		}
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
