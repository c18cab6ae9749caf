package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/service/ratelimit"
	"FxPulse/pkg/cache"
	xhttp "FxPulse/pkg/http"
	"FxPulse/pkg/logger"
)

// Config holds the chart endpoint settings.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	CacheTTL     time.Duration
	UserAgent    string
	SymbolMap    map[string]string
	Burst        float64
	RefillPerSec float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 90 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) fxpulse/1.0"
	}
	if c.Burst <= 0 {
		c.Burst = 4
	}
	if c.RefillPerSec <= 0 {
		c.RefillPerSec = 0.5
	}
	return c
}

// Client fetches candle history from a chart REST endpoint. Failed or
// throttled fetches fall back to the last cached window, re-tagged as cached
// so downstream can see the provenance.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	cache   cache.Service
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

var _ drepo.HistoryProvider = (*Client)(nil)

// New creates a chart client backed by store for fallbacks.
func New(cfg Config, store cache.Service, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		cache:   store,
		limiter: ratelimit.New(),
		log:     log,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns an ordered candle window for symbol. An empty slice with a
// nil error means the endpoint had no data, which callers treat as non-fatal.
func (c *Client) History(ctx context.Context, symbol string, interval drepo.Interval, span time.Duration) ([]models.Candle, error) {
	rng := rangeFor(span)
	key := cache.Key("chart", symbol, string(interval), rng)

	if !c.limiter.Allow("chart:"+symbol, c.cfg.Burst, c.cfg.RefillPerSec) {
		return c.cached(ctx, key, fmt.Errorf("chart fetch throttled for %s", symbol))
	}

	candles, err := c.fetch(ctx, symbol, interval, rng)
	if err != nil {
		c.log.Warn("chart fetch failed", logger.String("symbol", symbol), logger.Error(err))
		return c.cached(ctx, key, err)
	}
	if len(candles) > 0 {
		if b, merr := json.Marshal(candles); merr == nil {
			if cerr := c.cache.Set(ctx, key, string(b), c.cfg.CacheTTL); cerr != nil {
				c.log.Debug("chart cache store failed", logger.Error(cerr))
			}
		}
	}
	return candles, nil
}

// cached serves the last good window re-tagged as CACHED provenance. Without
// one, the original fetch error surfaces.
func (c *Client) cached(ctx context.Context, key string, cause error) ([]models.Candle, error) {
	var raw string
	if err := c.cache.Get(ctx, key, &raw); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.Warn("chart cache read failed", logger.Error(err))
		}
		return nil, cause
	}
	var candles []models.Candle
	if err := json.Unmarshal([]byte(raw), &candles); err != nil {
		return nil, cause
	}
	for i := range candles {
		candles[i].Source = models.QualityCached
	}
	c.log.Info("serving cached history", logger.String("key", key), logger.Int("candles", len(candles)))
	return candles, nil
}

func (c *Client) fetch(ctx context.Context, symbol string, interval drepo.Interval, rng string) ([]models.Candle, error) {
	mapped := c.mapSymbol(symbol)

	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(mapped)),
		Headers: map[string]string{
			"User-Agent": c.cfg.UserAgent,
			"Accept":     "application/json",
		},
		QueryParams: map[string][]string{
			"interval": {string(interval)},
			"range":    {rng},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chart request %s: %w", mapped, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := r.Indicators.Quote[0]

	out := make([]models.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			continue // null row, market pause
		}
		candle := models.Candle{
			Symbol:    symbol,
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     *cl,
			Source:    models.QualityAuthoritative,
		}
		if v := at(q.Open, i); v != nil {
			candle.Open = *v
		} else {
			candle.Open = *cl
		}
		if v := at(q.High, i); v != nil {
			candle.High = *v
		} else {
			candle.High = *cl
		}
		if v := at(q.Low, i); v != nil {
			candle.Low = *v
		} else {
			candle.Low = *cl
		}
		if v := at(q.Volume, i); v != nil {
			candle.Volume = *v
		}
		out = append(out, candle)
	}
	return out, nil
}

func (c *Client) mapSymbol(symbol string) string {
	if m, ok := c.cfg.SymbolMap[symbol]; ok {
		return m
	}
	if isFxPair(symbol) {
		return symbol + "=X"
	}
	return symbol
}

// isFxPair matches plain six-letter currency pairs like EURUSD.
func isFxPair(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func rangeFor(span time.Duration) string {
	switch {
	case span <= 24*time.Hour:
		return "1d"
	case span <= 5*24*time.Hour:
		return "5d"
	case span <= 30*24*time.Hour:
		return "1mo"
	default:
		return "3mo"
	}
}

func at(xs []*float64, i int) *float64 {
	if i < 0 || i >= len(xs) {
		return nil
	}
	return xs[i]
}
