package upbit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateMarket(t *testing.T) {
	tests := []struct {
		name    string
		market  string
		wantErr bool
	}{
		{"ValidKRW", "KRW-BTC", false},
		{"ValidBTC", "BTC-ETH", false},
		{"ValidUSDT", "USDT-XRP", false},
		{"UnsupportedQuote", "EUR-BTC", true},
		{"MissingDash", "KRWBTC", true},
		{"EmptyBase", "KRW-", true},
		{"EmptyQuote", "-BTC", true},
		{"Empty", "", true},
		{"TooManyParts", "KRW-BTC-ETH", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMarket(tt.market)
			if tt.wantErr {
				assert.Error(t, err)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrderParams(t *testing.T) {
	one := decimal.NewFromInt(1)
	zero := decimal.Zero

	tests := []struct {
		name    string
		side    string
		ordType string
		volume  decimal.Decimal
		price   decimal.Decimal
		wantErr bool
	}{
		{"LimitBid", OrderSideBid, OrderTypeLimit, one, one, false},
		{"LimitAsk", OrderSideAsk, OrderTypeLimit, one, one, false},
		{"LimitMissingPrice", OrderSideBid, OrderTypeLimit, one, zero, true},
		{"LimitMissingVolume", OrderSideBid, OrderTypeLimit, zero, one, true},
		{"MarketBuyByNotional", OrderSideBid, OrderTypePrice, zero, one, false},
		{"MarketBuyMissingNotional", OrderSideBid, OrderTypePrice, zero, zero, true},
		{"MarketBuyAskRejected", OrderSideAsk, OrderTypePrice, zero, one, true},
		{"MarketSellByVolume", OrderSideAsk, OrderTypeMarket, one, zero, false},
		{"MarketSellMissingVolume", OrderSideAsk, OrderTypeMarket, zero, zero, true},
		{"MarketSellBidRejected", OrderSideBid, OrderTypeMarket, one, zero, true},
		{"UnknownSide", "buy", OrderTypeLimit, one, one, true},
		{"UnknownOrdType", OrderSideBid, "stop", one, one, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOrderParams(tt.side, tt.ordType, tt.volume, tt.price)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrderID(t *testing.T) {
	assert.NoError(t, validateOrderID("9ca023a5-851b-4fec-9f0a-48cd83c2eaae"))
	assert.Error(t, validateOrderID("not-a-uuid"))
	assert.Error(t, validateOrderID(""))
	// Uppercase parses but is not canonical.
	assert.Error(t, validateOrderID("9CA023A5-851B-4FEC-9F0A-48CD83C2EAAE"))
}
