package upbit

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderSideBid = "bid" // buy
	OrderSideAsk = "ask" // sell

	// Upbit order types: "limit" is a limit order, "price" a market buy by
	// notional, "market" a market sell by quantity.
	OrderTypeLimit  = "limit"
	OrderTypePrice  = "price"
	OrderTypeMarket = "market"
)

var validQuoteCurrencies = map[string]bool{
	"KRW":  true,
	"BTC":  true,
	"USDT": true,
}

// validateMarket checks a market code of the form QUOTE-BASE, e.g. KRW-BTC.
func validateMarket(market string) error {
	parts := strings.Split(market, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &ValidationError{Reason: "market code must look like KRW-BTC, got " + market}
	}
	if !validQuoteCurrencies[parts[0]] {
		return &ValidationError{Reason: "unsupported quote currency " + parts[0]}
	}
	return nil
}

// validateOrderParams checks the side/order-type/volume/price combination
// before a single byte is signed. Zero decimals mean "absent".
func validateOrderParams(side, ordType string, volume, price decimal.Decimal) error {
	if side != OrderSideBid && side != OrderSideAsk {
		return &ValidationError{Reason: "side must be bid or ask"}
	}

	switch ordType {
	case OrderTypeLimit:
		if price.IsZero() {
			return &ValidationError{Reason: "limit orders require a price"}
		}
		if volume.IsZero() {
			return &ValidationError{Reason: "limit orders require a volume"}
		}
	case OrderTypePrice:
		if price.IsZero() {
			return &ValidationError{Reason: "market buy orders require a notional price"}
		}
		if side != OrderSideBid {
			return &ValidationError{Reason: "ord_type price is only valid for bid orders"}
		}
	case OrderTypeMarket:
		if volume.IsZero() {
			return &ValidationError{Reason: "market sell orders require a volume"}
		}
		if side != OrderSideAsk {
			return &ValidationError{Reason: "ord_type market is only valid for ask orders"}
		}
	default:
		return &ValidationError{Reason: "ord_type must be limit, price or market"}
	}

	return nil
}

// validateOrderID checks that id is a canonical UUID, which is what the
// exchange uses for order identifiers.
func validateOrderID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return &ValidationError{Reason: "order id must be a canonical UUID"}
	}
	return nil
}
