package trader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"upbit-auto-trader/internal/config"
	"upbit-auto-trader/internal/ledger"
	"upbit-auto-trader/internal/models"
	"upbit-auto-trader/internal/portfolio"
	"upbit-auto-trader/internal/secrets"
	"upbit-auto-trader/internal/signal"
	"upbit-auto-trader/internal/upbit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientFactory builds an exchange client for one decrypted key pair.
// Injected so tests can substitute a mock client.
type ClientFactory func(accessKey, secretKey string) upbit.RestClientInterface

// TradeReceipt is the result of one executed order, as surfaced to callers.
type TradeReceipt struct {
	Success bool    `json:"success"`
	TradeID uint    `json:"trade_id"`
	OrderID string  `json:"order_id"`
	Ticker  string  `json:"ticker"`
	Price   float64 `json:"price"`
	Amount  float64 `json:"amount"`
	Total   float64 `json:"total"`
	Fee     float64 `json:"fee"`
}

// TradeOutcome records what happened for one market that produced a signal
// during a cycle.
type TradeOutcome struct {
	Ticker     string        `json:"ticker"`
	Action     string        `json:"action"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Result     *TradeReceipt `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// CycleResult is the structured summary every cycle returns, including the
// empty case.
type CycleResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Trades  []TradeOutcome `json:"trades"`
}

// ErrCycleInFlight is returned when a cycle is triggered for a user whose
// previous cycle has not finished. The trigger is skipped, never queued.
var ErrCycleInFlight = errors.New("a trading cycle for this user is already running")

// ErrAutoTradingDisabled is returned by a manual trigger for a user who has
// auto-trading switched off.
var ErrAutoTradingDisabled = errors.New("auto trading is disabled for this user")

// Orchestrator runs the periodic trading loop: per enabled user it ranks
// candidate markets, evaluates the configured strategy, sizes and executes
// orders and records them in the ledger.
type Orchestrator struct {
	logger    *zap.Logger
	cfg       *config.Config
	db        *gorm.DB
	ledger    *ledger.Ledger
	engine    *signal.Engine
	sizer     *portfolio.Sizer
	secrets   *secrets.Manager
	newClient ClientFactory

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewOrchestrator wires the orchestrator from its collaborators.
func NewOrchestrator(
	logger *zap.Logger,
	cfg *config.Config,
	db *gorm.DB,
	led *ledger.Ledger,
	engine *signal.Engine,
	sizer *portfolio.Sizer,
	secretsMgr *secrets.Manager,
	factory ClientFactory,
) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		cfg:       cfg,
		db:        db,
		ledger:    led,
		engine:    engine,
		sizer:     sizer,
		secrets:   secretsMgr,
		newClient: factory,
		locks:     make(map[uint]*sync.Mutex),
	}
}

// Run starts the periodic loop and blocks until the context is canceled.
func (o *Orchestrator) Run(ctx context.Context) {
	interval := time.Duration(o.cfg.Trading.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.Info("Starting trading loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Stopping trading loop...")
			return
		case <-ticker.C:
			o.runAll(ctx)
		}
	}
}

// runAll executes one cycle for every enabled user with bounded parallelism.
// Users are independent; a failing user never affects another.
func (o *Orchestrator) runAll(ctx context.Context) {
	var users []models.User
	if err := o.db.Where("auto_trading_enabled = ?", true).Find(&users).Error; err != nil {
		o.logger.Error("Failed to load enabled users", zap.Error(err))
		return
	}
	if len(users) == 0 {
		o.logger.Debug("No users with auto trading enabled")
		return
	}

	parallel := o.cfg.Trading.MaxParallelUser
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for _, u := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(user models.User) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := o.RunCycle(ctx, &user)
			if err != nil {
				o.logger.Warn("Cycle skipped",
					zap.Uint("user_id", user.ID), zap.Error(err))
				return
			}
			o.logger.Info("Cycle complete",
				zap.Uint("user_id", user.ID),
				zap.Int("trades", len(result.Trades)))
		}(u)
	}

	wg.Wait()
}

// userLock returns the mutex guarding one user's cycles.
func (o *Orchestrator) userLock(userID uint) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[userID] = l
	}
	return l
}

// clientForUser resolves and decrypts the user's stored credentials and
// builds an exchange client. Plaintext keys only live for the call chain.
func (o *Orchestrator) clientForUser(user *models.User) (upbit.RestClientInterface, error) {
	var cred models.Credential
	err := o.db.Where("user_id = ? AND provider = ?", user.ID, "upbit").First(&cred).Error
	if err != nil {
		return nil, fmt.Errorf("no exchange credentials for user %d: %w", user.ID, err)
	}

	accessKey, err := o.secrets.Decrypt(cred.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access key: %w", err)
	}
	secretKey, err := o.secrets.Decrypt(cred.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret key: %w", err)
	}

	return o.newClient(accessKey, secretKey), nil
}

// RunCycle executes one full trading cycle for a user. Cycles for the same
// user never run concurrently: a second trigger while one is in flight
// fails with ErrCycleInFlight. Per-market failures are logged and skipped;
// they never abort the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, user *models.User) (CycleResult, error) {
	if !user.AutoTradingEnabled {
		return CycleResult{}, ErrAutoTradingDisabled
	}

	lock := o.userLock(user.ID)
	if !lock.TryLock() {
		return CycleResult{}, ErrCycleInFlight
	}
	defer lock.Unlock()

	client, err := o.clientForUser(user)
	if err != nil {
		return CycleResult{}, err
	}

	l := o.logger.With(zap.Uint("user_id", user.ID), zap.String("strategy", user.Strategy))

	quote := o.cfg.Trading.QuoteCurrency
	candidates, err := client.TopVolumeMarkets(ctx, quote, o.cfg.Trading.ScanCount, o.cfg.Trading.TopMarketCount)
	if err != nil {
		return CycleResult{}, fmt.Errorf("failed to select candidate markets: %w", err)
	}
	if len(candidates) == 0 {
		return CycleResult{Success: true, Message: "no candidate markets found", Trades: []TradeOutcome{}}, nil
	}

	outcomes := make([]TradeOutcome, 0, len(candidates))

	for _, candidate := range candidates {
		market := candidate.Market

		candles, err := client.GetOHLCV(ctx, market, o.cfg.Trading.CandleInterval, o.cfg.Trading.CandleCount)
		if err != nil {
			l.Warn("Failed to fetch candles, skipping market",
				zap.String("market", market), zap.Error(err))
			continue
		}
		if len(candles) < o.cfg.Trading.CandleCount {
			l.Warn("Not enough candle history, skipping market",
				zap.String("market", market), zap.Int("bars", len(candles)))
			continue
		}

		sig := o.engine.Evaluate(signal.Strategy(user.Strategy), candles)
		if sig == nil {
			continue
		}

		l.Info("Signal detected",
			zap.String("market", market),
			zap.String("action", string(sig.Action)),
			zap.String("reason", sig.Reason))

		outcome := TradeOutcome{
			Ticker:     market,
			Action:     string(sig.Action),
			Reason:     sig.Reason,
			Confidence: sig.Confidence,
		}

		switch sig.Action {
		case signal.ActionBuy:
			receipt, err := o.executeBuySignal(ctx, client, user, market, sig)
			if err != nil {
				l.Warn("Buy not executed", zap.String("market", market), zap.Error(err))
				continue
			}
			outcome.Result = receipt
			outcomes = append(outcomes, outcome)
			// Capital protection: at most one new position per cycle.
			l.Info("Buy executed, ending market scan for this cycle", zap.String("market", market))
			return CycleResult{Success: true, Trades: outcomes}, nil

		case signal.ActionSell:
			receipt, err := o.executeSellSignal(ctx, client, user, market, sig)
			if err != nil {
				l.Warn("Sell not executed", zap.String("market", market), zap.Error(err))
				continue
			}
			outcome.Result = receipt
			outcomes = append(outcomes, outcome)
		}
	}

	result := CycleResult{Success: true, Trades: outcomes}
	if len(outcomes) == 0 {
		result.Message = "no trades executed this cycle"
	}
	return result, nil
}

func (o *Orchestrator) executeBuySignal(ctx context.Context, client upbit.RestClientInterface, user *models.User, market string, sig *signal.Signal) (*TradeReceipt, error) {
	balance, err := client.GetBalance(ctx, o.cfg.Trading.QuoteCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote balance: %w", err)
	}

	notional, err := o.sizer.BuyNotional(balance)
	if err != nil {
		return nil, err
	}

	return o.ExecuteTrade(ctx, client, user, ExecuteParams{
		Ticker:   market,
		Side:     models.TradeSideBuy,
		Amount:   notional,
		Strategy: user.Strategy,
		Reason:   sig.Reason,
	})
}

func (o *Orchestrator) executeSellSignal(ctx context.Context, client upbit.RestClientInterface, user *models.User, market string, sig *signal.Signal) (*TradeReceipt, error) {
	currency := assetCurrency(market, o.cfg.Trading.QuoteCurrency)
	balance, err := client.GetBalance(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s balance: %w", currency, err)
	}

	quantity, err := o.sizer.SellQuantity(balance)
	if err != nil {
		return nil, err
	}

	return o.ExecuteTrade(ctx, client, user, ExecuteParams{
		Ticker:   market,
		Side:     models.TradeSideSell,
		Amount:   quantity,
		Strategy: user.Strategy,
		Reason:   sig.Reason,
	})
}

// ExecuteParams describes one order to execute. Amount is the quote-currency
// notional for buys and the asset quantity for sells; zero means "use the
// defaults" (the user's configured investment amount, or the full holding).
type ExecuteParams struct {
	Ticker   string
	Side     string
	Amount   decimal.Decimal
	Strategy string
	Reason   string
}

// ExecuteTrade places one market order and records it in the ledger. It is
// shared by the auto-trading loop and the manual API endpoint.
//
// The ledger insert happens only after the exchange accepts the order. If
// that insert fails the order is live on the exchange but missing from the
// ledger. TODO: reconcile ListOrders against the ledger at startup to close
// this window.
func (o *Orchestrator) ExecuteTrade(ctx context.Context, client upbit.RestClientInterface, user *models.User, p ExecuteParams) (*TradeReceipt, error) {
	if p.Side != models.TradeSideBuy && p.Side != models.TradeSideSell {
		return nil, &upbit.ValidationError{Reason: "trade_type must be buy or sell"}
	}

	price, err := client.GetTickerPrice(ctx, p.Ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price for %s: %w", p.Ticker, err)
	}
	if price <= 0 {
		return nil, &upbit.ValidationError{Reason: "no price available for " + p.Ticker}
	}

	var (
		order  *upbit.Order
		amount float64 // asset quantity
		total  float64 // quote notional
	)

	switch p.Side {
	case models.TradeSideBuy:
		notional := p.Amount
		if notional.IsZero() {
			notional = decimal.NewFromFloat(user.InvestmentAmount)
		}
		order, err = client.PlaceMarketBuy(ctx, p.Ticker, notional)
		if err != nil {
			return nil, err
		}
		total, _ = notional.Float64()
		amount = total / price

	case models.TradeSideSell:
		quantity := p.Amount
		if quantity.IsZero() {
			currency := assetCurrency(p.Ticker, o.cfg.Trading.QuoteCurrency)
			quantity, err = client.GetBalance(ctx, currency)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch %s balance: %w", currency, err)
			}
			if quantity.LessThanOrEqual(decimal.Zero) {
				return nil, &portfolio.InsufficientFundsError{Balance: quantity, Minimum: decimal.Zero}
			}
		}
		order, err = client.PlaceMarketSell(ctx, p.Ticker, quantity)
		if err != nil {
			return nil, err
		}
		amount, _ = quantity.Float64()
		total = amount * price
	}

	fee := total * o.cfg.Trading.FeeRate
	if order.PaidFee != "" {
		if paid, perr := decimal.NewFromString(order.PaidFee); perr == nil && paid.IsPositive() {
			fee, _ = paid.Float64()
		}
	}

	trade := models.Trade{
		UserID:       user.ID,
		Ticker:       p.Ticker,
		Side:         p.Side,
		Price:        price,
		Amount:       amount,
		Total:        total,
		Fee:          fee,
		Status:       models.TradeStatusCompleted,
		OrderID:      order.UUID,
		Strategy:     p.Strategy,
		SignalReason: p.Reason,
		Timestamp:    time.Now().UTC(),
	}

	if err := o.ledger.CreateTrade(&trade); err != nil {
		o.logger.Error("Order executed but ledger write failed; order is unrecorded",
			zap.String("order_id", order.UUID),
			zap.String("ticker", p.Ticker),
			zap.Error(err))
		return nil, err
	}

	o.logger.Info("Trade recorded",
		zap.Uint("trade_id", trade.ID),
		zap.String("ticker", p.Ticker),
		zap.String("side", p.Side),
		zap.Float64("total", total))

	return &TradeReceipt{
		Success: true,
		TradeID: trade.ID,
		OrderID: order.UUID,
		Ticker:  p.Ticker,
		Price:   price,
		Amount:  amount,
		Total:   total,
		Fee:     fee,
	}, nil
}

// assetCurrency extracts the asset side of a market code, e.g. KRW-BTC with
// quote KRW yields BTC.
func assetCurrency(market, quote string) string {
	return strings.TrimPrefix(market, quote+"-")
}
