package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"upbit-auto-trader/internal/config"
	"upbit-auto-trader/internal/ledger"
	"upbit-auto-trader/internal/models"
	"upbit-auto-trader/internal/signal"
	"upbit-auto-trader/internal/upbit"

	"go.uber.org/zap"
)

// recommendationTTL is how long a pending recommendation stays actionable.
const recommendationTTL = 24 * time.Hour

// Recommender scans the market the same way the auto-trading loop does, but
// instead of placing orders it records buy opportunities for the user to
// accept or reject.
type Recommender struct {
	logger *zap.Logger
	cfg    *config.Config
	ledger *ledger.Ledger
	engine *signal.Engine
}

// NewRecommender wires a recommender from its collaborators.
func NewRecommender(logger *zap.Logger, cfg *config.Config, led *ledger.Ledger, engine *signal.Engine) *Recommender {
	return &Recommender{logger: logger, cfg: cfg, ledger: led, engine: engine}
}

// Generate evaluates the user's strategy across the top-volume markets and
// persists a pending recommendation for each buy signal, up to limit. Each
// recommendation carries a snapshot of the indicator values that produced
// it so the user can review the evidence later.
func (r *Recommender) Generate(ctx context.Context, client upbit.RestClientInterface, user *models.User, limit int) ([]models.Recommendation, error) {
	if limit <= 0 {
		limit = r.cfg.Trading.TopMarketCount
	}

	quote := r.cfg.Trading.QuoteCurrency
	candidates, err := client.TopVolumeMarkets(ctx, quote, r.cfg.Trading.ScanCount, r.cfg.Trading.ScanCount)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidate markets: %w", err)
	}

	l := r.logger.With(zap.Uint("user_id", user.ID), zap.String("strategy", user.Strategy))

	recs := make([]models.Recommendation, 0, limit)
	for _, candidate := range candidates {
		if len(recs) >= limit {
			break
		}
		market := candidate.Market

		candles, err := client.GetOHLCV(ctx, market, r.cfg.Trading.CandleInterval, r.cfg.Trading.CandleCount)
		if err != nil {
			l.Warn("Failed to fetch candles, skipping market",
				zap.String("market", market), zap.Error(err))
			continue
		}
		if len(candles) < r.cfg.Trading.CandleCount {
			continue
		}

		sig := r.engine.Evaluate(signal.Strategy(user.Strategy), candles)
		if sig == nil || sig.Action != signal.ActionBuy {
			continue
		}

		indicators := ""
		if raw, merr := json.Marshal(sig.Indicators); merr == nil {
			indicators = string(raw)
		}

		expiration := time.Now().UTC().Add(recommendationTTL)
		rec := models.Recommendation{
			UserID:     user.ID,
			Ticker:     market,
			Type:       string(sig.Action),
			Price:      candles[len(candles)-1].Close,
			Confidence: sig.Confidence,
			Strategy:   user.Strategy,
			Reason:     sig.Reason,
			Indicators: indicators,
			Status:     models.RecommendationStatusPending,
			Expiration: &expiration,
		}
		if err := r.ledger.CreateRecommendation(&rec); err != nil {
			l.Error("Failed to save recommendation",
				zap.String("market", market), zap.Error(err))
			continue
		}

		l.Info("Recommendation created",
			zap.String("market", market),
			zap.Float64("confidence", sig.Confidence))
		recs = append(recs, rec)
	}

	return recs, nil
}
