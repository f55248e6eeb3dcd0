package upbit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"upbit-auto-trader/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RestClientInterface defines the interface for the Upbit REST API client.
type RestClientInterface interface {
	GetAccounts(ctx context.Context) ([]Account, error)
	GetBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	GetTickerPrice(ctx context.Context, market string) (float64, error)
	GetOHLCV(ctx context.Context, market, interval string, count int) ([]Candle, error)
	TopVolumeMarkets(ctx context.Context, quote string, scan, limit int) ([]MarketVolume, error)
	PlaceMarketBuy(ctx context.Context, market string, notional decimal.Decimal) (*Order, error)
	PlaceMarketSell(ctx context.Context, market string, volume decimal.Decimal) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	CancelOrder(ctx context.Context, id string) (*Order, error)
}

// RestClient is a client for the Upbit REST API. Every call is a pure
// request/response; the client holds no state beyond its keys and limiter.
type RestClient struct {
	client    *resty.Client
	accessKey string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Upbit REST API client for one key pair.
func NewRestClient(cfg *config.Upbit, accessKey, secretKey string, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	// One limiter per client bounds the call budget of a cycle and doubles
	// as the inter-call delay of the market scan.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		accessKey: accessKey,
		secretKey: secretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

// Account is one currency balance of the authenticated account.
type Account struct {
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	Locked      string `json:"locked"`
	AvgBuyPrice string `json:"avg_buy_price"`
}

// Ticker is the current market snapshot returned by /v1/ticker.
type Ticker struct {
	Market            string  `json:"market"`
	TradePrice        float64 `json:"trade_price"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	AccTradePrice24h  float64 `json:"acc_trade_price_24h"`
}

// MarketInfo is one entry of the market catalogue.
type MarketInfo struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// MarketVolume pairs a market with its latest price and 24h traded volume,
// used to rank candidate markets.
type MarketVolume struct {
	Market string  `json:"market"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Candle is a single OHLCV bar in chronological order.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type candleResponse struct {
	CandleDateTimeUTC    string  `json:"candle_date_time_utc"`
	OpeningPrice         float64 `json:"opening_price"`
	HighPrice            float64 `json:"high_price"`
	LowPrice             float64 `json:"low_price"`
	TradePrice           float64 `json:"trade_price"`
	Timestamp            int64   `json:"timestamp"`
	CandleAccTradeVolume float64 `json:"candle_acc_trade_volume"`
}

// Order is the exchange's view of an order.
type Order struct {
	UUID           string `json:"uuid"`
	Market         string `json:"market"`
	Side           string `json:"side"`
	OrdType        string `json:"ord_type"`
	State          string `json:"state"`
	Price          string `json:"price"`
	Volume         string `json:"volume"`
	ExecutedVolume string `json:"executed_volume"`
	PaidFee        string `json:"paid_fee"`
	CreatedAt      string `json:"created_at"`
}

// OrderFilter narrows ListOrders. Zero values mean "unset".
type OrderFilter struct {
	Market string
	States []string
	Page   int
	Limit  int
}

// requireKeys is the pre-flight check of every authenticated call: missing
// credentials fail here, before any network round trip.
func (c *RestClient) requireKeys() error {
	if c.accessKey == "" || c.secretKey == "" {
		return &AuthError{Reason: "missing access or secret key"}
	}
	return nil
}

// authorize signs params and attaches the bearer token to the request.
func (c *RestClient) authorize(req *resty.Request, params url.Values) error {
	token, err := authToken(c.accessKey, c.secretKey, params)
	if err != nil {
		return err
	}
	req.SetHeader("Authorization", "Bearer "+token)
	return nil
}

// doRequest executes the request with rate limiting and bounded retry.
// Only transient failures are retried: network errors, 429 and 5xx.
// Business rejections come back immediately as a TransportError.
func (c *RestClient) doRequest(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("path", path))
		resp, err = req.SetContext(ctx).Execute(method, path)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, &TransportError{StatusCode: resp.StatusCode(), Body: resp.String()}
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, &TransportError{Err: ctx.Err()}
		}
	}

	if resp != nil && err == nil {
		return nil, &TransportError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil, &TransportError{Err: err}
}

// GetAccounts fetches every balance of the authenticated account.
func (c *RestClient) GetAccounts(ctx context.Context) ([]Account, error) {
	if err := c.requireKeys(); err != nil {
		return nil, err
	}

	var accounts []Account
	req := c.client.R().SetResult(&accounts)
	if err := c.authorize(req, nil); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/accounts", req)
	if err != nil {
		return nil, err
	}

	return *resp.Result().(*[]Account), nil
}

// GetBalance returns the available balance of one currency. A currency the
// account does not hold yields zero, not an error.
func (c *RestClient) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	accounts, err := c.GetAccounts(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	account, found := lo.Find(accounts, func(a Account) bool { return a.Currency == currency })
	if !found {
		return decimal.Zero, nil
	}

	balance, err := decimal.NewFromString(account.Balance)
	if err != nil {
		return decimal.Zero, &TransportError{Err: err}
	}
	return balance, nil
}

func (c *RestClient) getTicker(ctx context.Context, market string) (*Ticker, error) {
	if err := validateMarket(market); err != nil {
		return nil, err
	}

	var tickers []Ticker
	req := c.client.R().
		SetQueryParam("markets", market).
		SetResult(&tickers)

	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/ticker", req)
	if err != nil {
		return nil, err
	}

	result := *resp.Result().(*[]Ticker)
	if len(result) == 0 {
		return nil, &TransportError{Err: fmt.Errorf("no ticker data for market %s", market)}
	}
	return &result[0], nil
}

// GetTickerPrice returns the latest trade price of a market.
func (c *RestClient) GetTickerPrice(ctx context.Context, market string) (float64, error) {
	ticker, err := c.getTicker(ctx, market)
	if err != nil {
		return 0, err
	}
	return ticker.TradePrice, nil
}

// GetMarkets lists every market the exchange supports.
func (c *RestClient) GetMarkets(ctx context.Context) ([]MarketInfo, error) {
	var markets []MarketInfo
	req := c.client.R().
		SetQueryParam("is_details", "false").
		SetResult(&markets)

	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/market/all", req)
	if err != nil {
		return nil, err
	}
	return *resp.Result().(*[]MarketInfo), nil
}

// candlePath maps a logical interval name to the exchange endpoint.
func candlePath(interval string) (string, error) {
	switch interval {
	case "day":
		return "/v1/candles/days", nil
	case "week":
		return "/v1/candles/weeks", nil
	case "month":
		return "/v1/candles/months", nil
	}
	if unit, ok := strings.CutPrefix(interval, "minute"); ok {
		if _, err := strconv.Atoi(unit); err == nil {
			return "/v1/candles/minutes/" + unit, nil
		}
	}
	return "", &ValidationError{Reason: "unsupported candle interval " + interval}
}

// GetOHLCV fetches up to count candles for a market and returns them in
// chronological order (oldest first), the order the signal engine expects.
func (c *RestClient) GetOHLCV(ctx context.Context, market, interval string, count int) ([]Candle, error) {
	if err := validateMarket(market); err != nil {
		return nil, err
	}
	if count <= 0 || count > 200 {
		return nil, &ValidationError{Reason: "candle count must be between 1 and 200"}
	}
	path, err := candlePath(interval)
	if err != nil {
		return nil, err
	}

	var raw []candleResponse
	req := c.client.R().
		SetQueryParam("market", market).
		SetQueryParam("count", strconv.Itoa(count)).
		SetResult(&raw)

	resp, err := c.doRequest(ctx, http.MethodGet, path, req)
	if err != nil {
		return nil, err
	}

	result := *resp.Result().(*[]candleResponse)

	// The exchange returns newest-first.
	candles := make([]Candle, len(result))
	for i, r := range result {
		candles[len(result)-1-i] = Candle{
			Timestamp: time.UnixMilli(r.Timestamp),
			Open:      r.OpeningPrice,
			High:      r.HighPrice,
			Low:       r.LowPrice,
			Close:     r.TradePrice,
			Volume:    r.CandleAccTradeVolume,
		}
	}
	return candles, nil
}

// TopVolumeMarkets ranks the first scan markets of a quote currency by 24h
// traded volume and returns the top limit entries. Tickers are polled
// sequentially; the client's rate limiter provides the inter-call delay.
func (c *RestClient) TopVolumeMarkets(ctx context.Context, quote string, scan, limit int) ([]MarketVolume, error) {
	markets, err := c.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}

	prefix := quote + "-"
	candidates := lo.Filter(markets, func(m MarketInfo, _ int) bool {
		return strings.HasPrefix(m.Market, prefix)
	})
	if len(candidates) > scan {
		candidates = candidates[:scan]
	}

	volumes := make([]MarketVolume, 0, len(candidates))
	for _, m := range candidates {
		ticker, err := c.getTicker(ctx, m.Market)
		if err != nil {
			c.logger.Warn("Failed to fetch ticker during volume scan",
				zap.String("market", m.Market), zap.Error(err))
			continue
		}
		volumes = append(volumes, MarketVolume{
			Market: m.Market,
			Price:  ticker.TradePrice,
			Volume: ticker.AccTradeVolume24h,
		})
	}

	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Volume > volumes[j].Volume })
	if len(volumes) > limit {
		volumes = volumes[:limit]
	}
	return volumes, nil
}

// placeOrder validates, signs and submits one order.
func (c *RestClient) placeOrder(ctx context.Context, market, side, ordType string, volume, price decimal.Decimal) (*Order, error) {
	if err := c.requireKeys(); err != nil {
		return nil, err
	}
	if err := validateMarket(market); err != nil {
		return nil, err
	}
	if err := validateOrderParams(side, ordType, volume, price); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("market", market)
	params.Set("side", side)
	params.Set("ord_type", ordType)
	body := map[string]string{
		"market":   market,
		"side":     side,
		"ord_type": ordType,
	}
	if !volume.IsZero() {
		params.Set("volume", volume.String())
		body["volume"] = volume.String()
	}
	if !price.IsZero() {
		params.Set("price", price.String())
		body["price"] = price.String()
	}

	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&Order{})
	if err := c.authorize(req, params); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/orders", req)
	if err != nil {
		c.logger.Error("Failed to place order",
			zap.String("market", market),
			zap.String("side", side),
			zap.Error(err),
		)
		return nil, err
	}

	order := resp.Result().(*Order)
	c.logger.Info("Order accepted by exchange",
		zap.String("market", market),
		zap.String("side", side),
		zap.String("order_id", order.UUID),
	)
	return order, nil
}

// PlaceMarketBuy submits a market buy spending notional units of the quote
// currency.
func (c *RestClient) PlaceMarketBuy(ctx context.Context, market string, notional decimal.Decimal) (*Order, error) {
	return c.placeOrder(ctx, market, OrderSideBid, OrderTypePrice, decimal.Zero, notional)
}

// PlaceMarketSell submits a market sell of volume units of the asset.
func (c *RestClient) PlaceMarketSell(ctx context.Context, market string, volume decimal.Decimal) (*Order, error) {
	return c.placeOrder(ctx, market, OrderSideAsk, OrderTypeMarket, volume, decimal.Zero)
}

// ListOrders fetches orders matching the filter.
func (c *RestClient) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	if err := c.requireKeys(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if filter.Market != "" {
		if err := validateMarket(filter.Market); err != nil {
			return nil, err
		}
		params.Set("market", filter.Market)
	}
	for _, state := range filter.States {
		params.Add("states[]", state)
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	var orders []Order
	req := c.client.R().
		SetQueryParamsFromValues(params).
		SetResult(&orders)
	if err := c.authorize(req, params); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/orders", req)
	if err != nil {
		return nil, err
	}
	return *resp.Result().(*[]Order), nil
}

// CancelOrder asks the exchange to cancel one order by id.
func (c *RestClient) CancelOrder(ctx context.Context, id string) (*Order, error) {
	if err := c.requireKeys(); err != nil {
		return nil, err
	}
	if err := validateOrderID(id); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("uuid", id)

	req := c.client.R().
		SetQueryParam("uuid", id).
		SetResult(&Order{})
	if err := c.authorize(req, params); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/order", req)
	if err != nil {
		return nil, err
	}
	return resp.Result().(*Order), nil
}
