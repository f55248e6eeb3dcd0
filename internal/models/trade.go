package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"

	TradeStatusPending   = "pending"
	TradeStatusCompleted = "completed"
	TradeStatusCanceled  = "canceled"
)

// Trade is a single executed market order. Records are append-only: one row
// is created per successful order placement and never mutated afterwards.
// Total equals Amount*Price at creation time.
type Trade struct {
	gorm.Model
	UserID       uint      `json:"user_id"`
	Ticker       string    `json:"ticker"`
	Side         string    `json:"trade_type"` // "buy" or "sell"
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"`
	Total        float64   `json:"total"`
	Fee          float64   `json:"fee"`
	Status       string    `json:"status"` // pending, completed, canceled
	OrderID      string    `json:"order_id"`
	Strategy     string    `json:"strategy"`
	SignalReason string    `json:"signal_reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// TotalWithFee returns the effective cash flow of the trade: buys cost the
// notional plus fee, sells return the notional minus fee.
func (t *Trade) TotalWithFee() float64 {
	if t.Side == TradeSideBuy {
		return t.Total + t.Fee
	}
	return t.Total - t.Fee
}
