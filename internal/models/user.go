package models

import "gorm.io/gorm"

// User holds the per-user trading configuration read by the orchestrator
// once per cycle. Authentication and session handling live outside this
// service; only the trading settings are modeled here.
type User struct {
	gorm.Model
	Email              string  `gorm:"uniqueIndex" json:"email"`
	AutoTradingEnabled bool    `gorm:"default:false" json:"auto_trading_enabled"`
	Strategy           string  `gorm:"default:rsi_oversold" json:"strategy"`
	InvestmentAmount   float64 `gorm:"default:100000" json:"investment_amount"`
	RiskLevel          string  `gorm:"default:medium" json:"risk_level"` // low, medium, high
}
