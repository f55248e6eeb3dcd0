package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
	assert.Equal(t, 2.0, mean([]float64{1, 2, 3}))
}

func TestStddev(t *testing.T) {
	// Sample standard deviation: variance of {2,4,4,4,5,5,7,9} around
	// mean 5 is 32/7.
	got := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, math.Sqrt(32.0/7.0), got, 1e-9)

	assert.Equal(t, 0.0, stddev([]float64{42}))
}

func TestSmaEnding(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}

	got, ok := smaEnding(xs, 3, len(xs))
	assert.True(t, ok)
	assert.Equal(t, 4.0, got) // mean of 3,4,5

	got, ok = smaEnding(xs, 3, len(xs)-1)
	assert.True(t, ok)
	assert.Equal(t, 3.0, got) // mean of 2,3,4

	_, ok = smaEnding(xs, 6, len(xs))
	assert.False(t, ok)
}

func TestEMA(t *testing.T) {
	// span=3 gives alpha=0.5; the series is seeded with the first value.
	got := ema([]float64{2, 4, 8}, 3)

	assert.InDelta(t, 2.0, got[0], 1e-9)
	assert.InDelta(t, 3.0, got[1], 1e-9) // 0.5*4 + 0.5*2
	assert.InDelta(t, 5.5, got[2], 1e-9) // 0.5*8 + 0.5*3

	assert.Nil(t, ema(nil, 3))
}

func TestRSI(t *testing.T) {
	t.Run("NotEnoughHistory", func(t *testing.T) {
		_, ok := rsi(make([]float64, 14), 14)
		assert.False(t, ok)
	})

	t.Run("AllLossesIsZero", func(t *testing.T) {
		closes := make([]float64, 15)
		for i := range closes {
			closes[i] = float64(100 - i)
		}
		got, ok := rsi(closes, 14)
		assert.True(t, ok)
		assert.InDelta(t, 0.0, got, 1e-9)
	})

	t.Run("AllGainsIsNeutralNotPanic", func(t *testing.T) {
		// No losses in the window would divide by zero; the indicator
		// reports neutral instead.
		closes := make([]float64, 15)
		for i := range closes {
			closes[i] = float64(100 + i)
		}
		got, ok := rsi(closes, 14)
		assert.True(t, ok)
		assert.Equal(t, 50.0, got)
	})

	t.Run("BalancedGainsAndLosses", func(t *testing.T) {
		// Alternating +1/-1 deltas give equal average gain and loss, RSI 50.
		closes := make([]float64, 15)
		for i := range closes {
			if i%2 == 0 {
				closes[i] = 100
			} else {
				closes[i] = 101
			}
		}
		got, ok := rsi(closes, 14)
		assert.True(t, ok)
		assert.InDelta(t, 50.0, got, 1e-9)
	})
}

func TestMACDSeries(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	macd, signalLine := macdSeries(closes, 2, 4, 3)

	assert.Len(t, macd, len(closes))
	assert.Len(t, signalLine, len(closes))
	// Both EMAs are seeded with the same first value.
	assert.InDelta(t, 0.0, macd[0], 1e-9)
	// A steadily rising series keeps the fast EMA above the slow one.
	assert.Greater(t, macd[len(macd)-1], 0.0)
}
