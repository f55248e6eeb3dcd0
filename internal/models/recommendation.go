package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RecommendationStatusPending  = "pending"
	RecommendationStatusAccepted = "accepted"
	RecommendationStatusRejected = "rejected"
	RecommendationStatusExpired  = "expired"
)

// Recommendation is a signal that was surfaced to the user instead of being
// auto-executed. It starts pending and transitions to accepted or rejected
// through an explicit user action, or to expired lazily on the first read
// past its expiration time.
type Recommendation struct {
	gorm.Model
	UserID          uint       `json:"user_id"`
	Ticker          string     `json:"ticker"`
	Type            string     `json:"recommendation_type"` // "buy" or "sell"
	Price           float64    `json:"price"`
	Confidence      float64    `json:"confidence"` // 0..1
	Strategy        string     `json:"strategy"`
	Reason          string     `json:"reason"`
	Indicators      string     `json:"technical_indicators"` // indicator snapshot, JSON-encoded
	Status          string     `gorm:"default:pending" json:"status"`
	ActionTimestamp *time.Time `json:"action_timestamp,omitempty"`
	Expiration      *time.Time `json:"expiration,omitempty"`
}

// Expired reports whether the recommendation is pending but past its
// expiration time. It does not mutate status; the ledger does that on read.
func (r *Recommendation) Expired(now time.Time) bool {
	return r.Status == RecommendationStatusPending && r.Expiration != nil && now.After(*r.Expiration)
}
