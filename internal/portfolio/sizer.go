package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientFundsError means the balance cannot support a viable order.
// The orchestrator treats it as "skip this market", not as a failure.
type InsufficientFundsError struct {
	Balance decimal.Decimal
	Minimum decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s below minimum %s", e.Balance, e.Minimum)
}

var (
	defaultMinOrder = decimal.NewFromInt(5000)
	defaultMaxOrder = decimal.NewFromInt(100000)
	defaultRatio    = decimal.NewFromFloat(0.10)
)

// Sizer converts a signal plus a live balance into an executable order size.
type Sizer struct {
	minOrder decimal.Decimal
	maxOrder decimal.Decimal
	ratio    decimal.Decimal
}

// NewSizer creates a sizer with the default bounds: 10% of the quote
// balance per buy, clamped to [5000, 100000].
func NewSizer() *Sizer {
	return &Sizer{
		minOrder: defaultMinOrder,
		maxOrder: defaultMaxOrder,
		ratio:    defaultRatio,
	}
}

// BuyNotional returns the quote-currency amount to spend on a buy. The
// balance must cover at least one minimum order; the sized amount is the
// configured ratio of the balance clamped to the order bounds.
func (s *Sizer) BuyNotional(quoteBalance decimal.Decimal) (decimal.Decimal, error) {
	if quoteBalance.LessThan(s.minOrder) {
		return decimal.Zero, &InsufficientFundsError{Balance: quoteBalance, Minimum: s.minOrder}
	}

	amount := quoteBalance.Mul(s.ratio)
	if amount.LessThan(s.minOrder) {
		amount = s.minOrder
	}
	if amount.GreaterThan(s.maxOrder) {
		amount = s.maxOrder
	}
	return amount, nil
}

// SellQuantity returns the asset quantity to sell: the entire holding.
func (s *Sizer) SellQuantity(assetBalance decimal.Decimal) (decimal.Decimal, error) {
	if assetBalance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &InsufficientFundsError{Balance: assetBalance, Minimum: decimal.Zero}
	}
	return assetBalance, nil
}
