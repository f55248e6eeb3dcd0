package signal

import (
	"testing"

	"upbit-auto-trader/internal/upbit"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func candlesFromCloses(closes []float64) []upbit.Candle {
	candles := make([]upbit.Candle, len(closes))
	for i, c := range closes {
		candles[i] = upbit.Candle{Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return candles
}

func TestEngineEvaluate(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	t.Run("UnknownStrategyIsNil", func(t *testing.T) {
		closes := make([]float64, 30)
		sig := engine.Evaluate("martingale", candlesFromCloses(closes))
		assert.Nil(t, sig)
	})

	t.Run("InsufficientHistoryIsNil", func(t *testing.T) {
		sig := engine.Evaluate(StrategyRSIOversold, candlesFromCloses([]float64{1, 2, 3}))
		assert.Nil(t, sig)
	})

	t.Run("FallingMarketTriggersRSIBuy", func(t *testing.T) {
		closes := make([]float64, 15)
		for i := range closes {
			closes[i] = float64(100 - i)
		}

		sig := engine.Evaluate(StrategyRSIOversold, candlesFromCloses(closes))

		assert.NotNil(t, sig)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.InDelta(t, 1.0, sig.Confidence, 1e-9) // RSI 0 is maximal conviction
		assert.InDelta(t, 0.0, sig.Indicators["rsi"], 1e-9)
	})
}

func TestEvaluateRSI(t *testing.T) {
	t.Run("OverboughtSell", func(t *testing.T) {
		closes := make([]float64, 15)
		for i := range closes {
			closes[i] = float64(100 + i)
		}
		// All gains would read neutral 50; mix in one small loss.
		closes[7] = closes[6] - 0.1

		sig := EvaluateRSI(closes, DefaultRSIParams)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionSell, sig.Action)
		assert.GreaterOrEqual(t, sig.Indicators["rsi"], 70.0)
	})

	t.Run("NeutralIsNil", func(t *testing.T) {
		// Alternating equal gains and losses pin RSI at 50.
		closes := make([]float64, 15)
		for i := range closes {
			if i%2 == 0 {
				closes[i] = 100
			} else {
				closes[i] = 101
			}
		}
		assert.Nil(t, EvaluateRSI(closes, DefaultRSIParams))
	})
}

func TestEvaluateMACD(t *testing.T) {
	params := MACDParams{FastPeriod: 2, SlowPeriod: 4, SignalPeriod: 3}

	t.Run("BullishCrossover", func(t *testing.T) {
		closes := []float64{10, 9, 8, 7, 6, 5, 20}

		sig := EvaluateMACD(closes, params)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.Greater(t, sig.Indicators["histogram"], 0.0)
	})

	t.Run("NoSignalBeforeTheCross", func(t *testing.T) {
		// Same series one bar earlier: both diffs still negative.
		closes := []float64{10, 9, 8, 7, 6, 5}
		assert.Nil(t, EvaluateMACD(closes, params))
	})

	t.Run("BearishCrossover", func(t *testing.T) {
		closes := []float64{10, 11, 12, 13, 14, 15, 2}

		sig := EvaluateMACD(closes, params)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionSell, sig.Action)
	})

	t.Run("NotEnoughHistory", func(t *testing.T) {
		assert.Nil(t, EvaluateMACD([]float64{1, 2, 3}, params))
	})
}

func TestEvaluateBollinger(t *testing.T) {
	// Window chosen so the sample stddev is exactly 1: mean 2, four unit
	// deviations over four degrees of freedom.
	params := BollingerParams{Window: 5, NumStd: 1}

	t.Run("TouchingLowerBandBuys", func(t *testing.T) {
		sig := EvaluateBollinger([]float64{1, 3, 3, 2, 1}, params)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionBuy, sig.Action)
		assert.Equal(t, 1.0, sig.Indicators["lower"])
	})

	t.Run("TouchingUpperBandSells", func(t *testing.T) {
		sig := EvaluateBollinger([]float64{1, 1, 3, 2, 3}, params)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionSell, sig.Action)
		assert.Equal(t, 3.0, sig.Indicators["upper"])
	})

	t.Run("InsideTheBandsIsNil", func(t *testing.T) {
		assert.Nil(t, EvaluateBollinger([]float64{1, 3, 1, 3, 2}, params))
	})
}

func TestEvaluateSwing(t *testing.T) {
	params := SwingParams{ShortPeriod: 2, LongPeriod: 3}

	t.Run("GoldenCross", func(t *testing.T) {
		sig := EvaluateSwing([]float64{5, 4, 3, 10}, params)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionBuy, sig.Action)
	})

	t.Run("DeathCross", func(t *testing.T) {
		sig := EvaluateSwing([]float64{5, 6, 7, 1}, params)

		assert.NotNil(t, sig)
		assert.Equal(t, ActionSell, sig.Action)
	})

	t.Run("NoCross", func(t *testing.T) {
		assert.Nil(t, EvaluateSwing([]float64{1, 2, 3, 4}, params))
	})
}

func TestEvaluateTrend(t *testing.T) {
	params := TrendParams{MovingAveragePeriod: 3}

	sig := EvaluateTrend([]float64{5, 4, 3, 10}, params)
	assert.NotNil(t, sig)
	assert.Equal(t, ActionBuy, sig.Action)

	sig = EvaluateTrend([]float64{5, 6, 7, 1}, params)
	assert.NotNil(t, sig)
	assert.Equal(t, ActionSell, sig.Action)

	assert.Nil(t, EvaluateTrend([]float64{5, 4}, params))
}

func TestEvaluateAveragePrice(t *testing.T) {
	params := AveragePriceParams{Period: 3}

	sig := EvaluateAveragePrice([]float64{10, 10, 9}, params)
	assert.NotNil(t, sig)
	assert.Equal(t, ActionBuy, sig.Action)

	sig = EvaluateAveragePrice([]float64{10, 10, 11}, params)
	assert.NotNil(t, sig)
	assert.Equal(t, ActionSell, sig.Action)

	// At the average, and above it but within 5%, nothing fires.
	assert.Nil(t, EvaluateAveragePrice([]float64{10, 10, 10}, params))
	assert.Nil(t, EvaluateAveragePrice([]float64{10, 10, 10.2}, params))
}

func TestEvaluateMomentum(t *testing.T) {
	params := MomentumParams{Period: 3, Threshold: 0.5}

	sig := EvaluateMomentum([]float64{0, 10, 12, 16}, params)
	assert.NotNil(t, sig)
	assert.Equal(t, ActionBuy, sig.Action)

	sig = EvaluateMomentum([]float64{0, 10, 12, 4}, params)
	assert.NotNil(t, sig)
	assert.Equal(t, ActionSell, sig.Action)

	assert.Nil(t, EvaluateMomentum([]float64{0, 10, 12, 14}, params))
}

func TestEvaluateScalping(t *testing.T) {
	params := DefaultScalpingParams // 2% margin

	t.Run("JumpAboveMarginBuys", func(t *testing.T) {
		sig := EvaluateScalping([]float64{100, 103}, params)
		assert.NotNil(t, sig)
		assert.Equal(t, ActionBuy, sig.Action)
	})

	t.Run("SmallPositiveDriftSells", func(t *testing.T) {
		sig := EvaluateScalping([]float64{100, 101}, params)
		assert.NotNil(t, sig)
		assert.Equal(t, ActionSell, sig.Action)
	})

	t.Run("FlatOrNegativeIsNil", func(t *testing.T) {
		assert.Nil(t, EvaluateScalping([]float64{100, 100}, params))
		assert.Nil(t, EvaluateScalping([]float64{103, 100}, params))
	})
}

func TestStrategyRegistry(t *testing.T) {
	assert.True(t, IsValid(StrategyRSIOversold))
	assert.True(t, IsValid(StrategyScalping))
	assert.False(t, IsValid("martingale"))
	assert.Len(t, Strategies(), 8)
}
