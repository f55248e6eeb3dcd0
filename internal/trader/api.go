package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"upbit-auto-trader/internal/config"
	"upbit-auto-trader/internal/ledger"
	"upbit-auto-trader/internal/models"
	"upbit-auto-trader/internal/portfolio"
	"upbit-auto-trader/internal/signal"
	"upbit-auto-trader/internal/upbit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIServer exposes the trading operations over a small JSON API. All
// endpoints operate on the configured default user.
type APIServer struct {
	logger      *zap.Logger
	cfg         *config.Config
	db          *gorm.DB
	ledger      *ledger.Ledger
	orch        *Orchestrator
	recommender *Recommender
	server      *http.Server
}

// NewAPIServer wires the handlers and the underlying http.Server.
func NewAPIServer(
	logger *zap.Logger,
	cfg *config.Config,
	db *gorm.DB,
	led *ledger.Ledger,
	orch *Orchestrator,
	recommender *Recommender,
) *APIServer {
	s := &APIServer{
		logger:      logger,
		cfg:         cfg,
		db:          db,
		ledger:      led,
		orch:        orch,
		recommender: recommender,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/trading/execute", s.handleExecute)
	mux.HandleFunc("/api/trading/history", s.handleHistory)
	mux.HandleFunc("/api/trading/auto-trading", s.handleAutoTradingToggle)
	mux.HandleFunc("/api/trading/auto-trading/execute", s.handleAutoTradingExecute)
	mux.HandleFunc("/api/trading/profit-loss", s.handleProfitLoss)
	mux.HandleFunc("/api/recommendations", s.handleRecommendations)
	mux.HandleFunc("/api/recommendations/generate", s.handleGenerateRecommendations)
	mux.HandleFunc("/api/recommendations/action", s.handleRecommendationAction)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks serving the API until Shutdown is called.
func (s *APIServer) ListenAndServe() error {
	s.logger.Info("Starting API server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routing mux, used by tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps an error to the API's {"error": ...} shape. Domain
// rejections are 4xx; anything unrecognized is a 500.
func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validationErr *upbit.ValidationError
	var authErr *upbit.AuthError
	var fundsErr *portfolio.InsufficientFundsError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &fundsErr),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ErrAutoTradingDisabled):
		status = http.StatusBadRequest
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrCycleInFlight):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// defaultUser resolves the single user this deployment trades for.
func (s *APIServer) defaultUser() (*models.User, error) {
	var user models.User
	if err := s.db.Order("id asc").First(&user).Error; err != nil {
		return nil, fmt.Errorf("no user configured: %w", err)
	}
	return &user, nil
}

type executeRequest struct {
	Ticker    string  `json:"ticker"`
	TradeType string  `json:"trade_type"`
	Amount    float64 `json:"amount"`
	Strategy  string  `json:"strategy"`
}

func (s *APIServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &upbit.ValidationError{Reason: "invalid request body"})
		return
	}
	if req.Ticker == "" || req.TradeType == "" {
		s.writeError(w, &upbit.ValidationError{Reason: "ticker and trade_type are required"})
		return
	}
	if req.Amount < 0 {
		s.writeError(w, &upbit.ValidationError{Reason: "amount must not be negative"})
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "manual"
	} else if !signal.IsValid(signal.Strategy(strategy)) {
		s.writeError(w, &upbit.ValidationError{Reason: "unknown strategy " + strategy})
		return
	}

	client, err := s.orch.clientForUser(user)
	if err != nil {
		s.writeError(w, &upbit.AuthError{Reason: err.Error()})
		return
	}

	receipt, err := s.orch.ExecuteTrade(r.Context(), client, user, ExecuteParams{
		Ticker:   req.Ticker,
		Side:     req.TradeType,
		Amount:   decimal.NewFromFloat(req.Amount),
		Strategy: strategy,
		Reason:   "manual execution",
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, &upbit.ValidationError{Reason: "limit must be a non-negative integer"})
			return
		}
	}

	trades, err := s.ledger.TradeHistory(user.ID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *APIServer) handleAutoTradingToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		s.writeError(w, &upbit.ValidationError{Reason: "enabled is required"})
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.db.Model(user).Update("auto_trading_enabled", *req.Enabled).Error; err != nil {
		s.writeError(w, err)
		return
	}

	state := "disabled"
	if *req.Enabled {
		state = "enabled"
	}
	s.logger.Info("Auto trading toggled", zap.Uint("user_id", user.ID), zap.Bool("enabled", *req.Enabled))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "auto trading " + state,
		"enabled": *req.Enabled,
	})
}

func (s *APIServer) handleAutoTradingExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.orch.RunCycle(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// profitLossEntry is one ticker's aggregated position valued at the current
// market price.
type profitLossEntry struct {
	Ticker       string  `json:"ticker"`
	BuyTotal     float64 `json:"buy_total"`
	SellTotal    float64 `json:"sell_total"`
	CurrentHold  float64 `json:"current_hold"`
	CurrentPrice float64 `json:"current_price"`
	Profit       float64 `json:"profit"`
}

func (s *APIServer) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	trades, err := s.ledger.TradesByUser(user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	positions := ledger.AggregatePositions(trades)
	if len(positions) == 0 {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"positions":    []profitLossEntry{},
			"total_profit": 0.0,
		})
		return
	}

	client, err := s.orch.clientForUser(user)
	if err != nil {
		s.writeError(w, &upbit.AuthError{Reason: err.Error()})
		return
	}

	entries := make([]profitLossEntry, 0, len(positions))
	var totalProfit float64
	for ticker, pos := range positions {
		entry := profitLossEntry{
			Ticker:      ticker,
			BuyTotal:    pos.BuyTotal,
			SellTotal:   pos.SellTotal,
			CurrentHold: pos.CurrentHold,
		}

		// Realized plus the open holding at the latest price. A ticker whose
		// price lookup fails is reported with realized profit only.
		price, perr := client.GetTickerPrice(r.Context(), ticker)
		if perr != nil {
			s.logger.Warn("Failed to price open position",
				zap.String("ticker", ticker), zap.Error(perr))
		} else {
			entry.CurrentPrice = price
		}
		entry.Profit = pos.SellTotal + pos.CurrentHold*entry.CurrentPrice - pos.BuyTotal
		totalProfit += entry.Profit
		entries = append(entries, entry)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"positions":    entries,
		"total_profit": totalProfit,
	})
}

func (s *APIServer) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.RecommendationStatusPending
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, &upbit.ValidationError{Reason: "limit must be a non-negative integer"})
			return
		}
	}

	recs, err := s.ledger.Recommendations(user.ID, status, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (s *APIServer) handleGenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.defaultUser()
	if err != nil {
		s.writeError(w, err)
		return
	}

	client, err := s.orch.clientForUser(user)
	if err != nil {
		s.writeError(w, &upbit.AuthError{Reason: err.Error()})
		return
	}

	recs, err := s.recommender.Generate(r.Context(), client, user, 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"recommendations": recs,
	})
}

type actionRequest struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

func (s *APIServer) handleRecommendationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &upbit.ValidationError{Reason: "invalid request body"})
		return
	}
	if req.ID == 0 {
		s.writeError(w, &upbit.ValidationError{Reason: "id is required"})
		return
	}
	if req.Status != models.RecommendationStatusAccepted && req.Status != models.RecommendationStatusRejected {
		s.writeError(w, &upbit.ValidationError{Reason: "status must be accepted or rejected"})
		return
	}

	if err := s.ledger.UpdateRecommendationStatus(req.ID, req.Status); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"id":      req.ID,
		"status":  req.Status,
	})
}
