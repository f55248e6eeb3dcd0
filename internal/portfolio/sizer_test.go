package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuyNotional(t *testing.T) {
	sizer := NewSizer()

	tests := []struct {
		name    string
		balance int64
		want    int64
		wantErr bool
	}{
		{"TenPercentOfBalance", 200000, 20000, false},
		{"ClampedUpToMinimum", 10000, 5000, false},
		{"ClampedDownToMaximum", 5000000, 100000, false},
		{"ExactMinimumBalance", 5000, 5000, false},
		{"BelowMinimumBalance", 4999, 0, true},
		{"ZeroBalance", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sizer.BuyNotional(decimal.NewFromInt(tt.balance))
			if tt.wantErr {
				var fundsErr *InsufficientFundsError
				assert.ErrorAs(t, err, &fundsErr)
				return
			}
			assert.NoError(t, err)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)),
				"got %s, want %d", got, tt.want)
		})
	}
}

func TestSellQuantity(t *testing.T) {
	sizer := NewSizer()

	t.Run("SellsTheEntireHolding", func(t *testing.T) {
		holding := decimal.NewFromFloat(0.0042)
		got, err := sizer.SellQuantity(holding)
		assert.NoError(t, err)
		assert.True(t, got.Equal(holding))
	})

	t.Run("NothingToSell", func(t *testing.T) {
		var fundsErr *InsufficientFundsError
		_, err := sizer.SellQuantity(decimal.Zero)
		assert.ErrorAs(t, err, &fundsErr)
		_, err = sizer.SellQuantity(decimal.NewFromFloat(-1))
		assert.ErrorAs(t, err, &fundsErr)
	})
}
