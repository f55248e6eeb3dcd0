package ledger

import (
	"errors"
	"fmt"
	"time"

	"upbit-auto-trader/internal/models"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger owns the Trade and Recommendation records. Trades are append-only;
// recommendations transition through their status lifecycle here and nowhere
// else.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a ledger over an open database handle.
func New(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// CreateTrade inserts one trade record. The insert is a single atomic
// statement; a trade is never updated afterwards.
func (l *Ledger) CreateTrade(trade *models.Trade) error {
	if err := l.db.Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade record: %w", err)
	}
	return nil
}

// TradeHistory returns the most recent trades of a user, newest first.
func (l *Ledger) TradeHistory(userID uint, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 20
	}
	var trades []models.Trade
	err := l.db.Where("user_id = ?", userID).
		Order("timestamp desc").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}
	return trades, nil
}

// TradesByUser returns every trade of a user in chronological order.
func (l *Ledger) TradesByUser(userID uint) ([]models.Trade, error) {
	var trades []models.Trade
	err := l.db.Where("user_id = ?", userID).
		Order("timestamp asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// CreateRecommendation persists a new pending recommendation.
func (l *Ledger) CreateRecommendation(rec *models.Recommendation) error {
	if err := l.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save recommendation: %w", err)
	}
	return nil
}

// Recommendations returns a user's recommendations with the given status,
// newest first. Pending entries past their expiration are flipped to
// expired on this read and excluded from a pending listing.
func (l *Ledger) Recommendations(userID uint, status string, limit int) ([]models.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	var recs []models.Recommendation
	err := l.db.Where("user_id = ? AND status = ?", userID, status).
		Order("created_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}

	now := time.Now().UTC()
	expired := lo.Filter(recs, func(r models.Recommendation, _ int) bool { return r.Expired(now) })
	for _, r := range expired {
		if err := l.db.Model(&models.Recommendation{}).
			Where("id = ?", r.ID).
			Update("status", models.RecommendationStatusExpired).Error; err != nil {
			l.logger.Error("Failed to expire recommendation", zap.Uint("id", r.ID), zap.Error(err))
		}
	}
	if len(expired) == 0 {
		return recs, nil
	}

	expiredIDs := lo.SliceToMap(expired, func(r models.Recommendation) (uint, struct{}) { return r.ID, struct{}{} })
	return lo.Filter(recs, func(r models.Recommendation, _ int) bool {
		_, wasExpired := expiredIDs[r.ID]
		return !wasExpired
	}), nil
}

// ErrInvalidTransition is returned when a recommendation status change is
// not allowed, e.g. accepting an already expired recommendation.
var ErrInvalidTransition = errors.New("recommendation is not pending")

// UpdateRecommendationStatus applies an explicit accept or reject action.
// Only pending, unexpired recommendations may transition.
func (l *Ledger) UpdateRecommendationStatus(id uint, status string) error {
	if status != models.RecommendationStatusAccepted && status != models.RecommendationStatusRejected {
		return fmt.Errorf("unsupported recommendation status %q", status)
	}

	var rec models.Recommendation
	if err := l.db.First(&rec, id).Error; err != nil {
		return fmt.Errorf("failed to load recommendation %d: %w", id, err)
	}

	now := time.Now().UTC()
	if rec.Expired(now) {
		if err := l.db.Model(&rec).Update("status", models.RecommendationStatusExpired).Error; err != nil {
			return fmt.Errorf("failed to expire recommendation %d: %w", id, err)
		}
		return ErrInvalidTransition
	}
	if rec.Status != models.RecommendationStatusPending {
		return ErrInvalidTransition
	}

	err := l.db.Model(&rec).Updates(map[string]any{
		"status":           status,
		"action_timestamp": now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update recommendation %d: %w", id, err)
	}
	return nil
}

// TickerPosition aggregates a user's trades for one ticker.
type TickerPosition struct {
	BuyAmount   float64 `json:"buy_amount"`
	BuyTotal    float64 `json:"buy_total"`
	SellAmount  float64 `json:"sell_amount"`
	SellTotal   float64 `json:"sell_total"`
	CurrentHold float64 `json:"current_hold"`
	Profit      float64 `json:"profit"`
}

// AggregatePositions folds trades into per-ticker positions. Profit is left
// at zero; the caller values the open holding with current prices.
func AggregatePositions(trades []models.Trade) map[string]*TickerPosition {
	grouped := lo.GroupBy(trades, func(t models.Trade) string { return t.Ticker })

	positions := make(map[string]*TickerPosition, len(grouped))
	for ticker, ts := range grouped {
		pos := &TickerPosition{}
		for _, t := range ts {
			switch t.Side {
			case models.TradeSideBuy:
				pos.BuyAmount += t.Amount
				pos.BuyTotal += t.Total
				pos.CurrentHold += t.Amount
			case models.TradeSideSell:
				pos.SellAmount += t.Amount
				pos.SellTotal += t.Total
				pos.CurrentHold -= t.Amount
			}
		}
		positions[ticker] = pos
	}
	return positions
}
