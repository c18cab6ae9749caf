package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/logger"
)

// Config holds the capture daemon connection settings.
type Config struct {
	URL            string
	Symbols        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	StaleAfter     time.Duration
	FrameRate      float64
	FrameBurst     int
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Second
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 20
	}
	if c.FrameBurst <= 0 {
		c.FrameBurst = 40
	}
	return c
}

// frame is one price observation pushed by the capture daemon.
type frame struct {
	Type    string  `json:"type"`
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Quality string  `json:"quality"`
	TS      int64   `json:"ts"` // ms
}

// Client implements SampleProvider over the capture daemon WebSocket. It
// keeps only the newest frame per symbol; Next never waits for the wire.
type Client struct {
	cfg     Config
	log     *logger.Logger
	limiter *rate.Limiter

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	latest    map[string]models.PriceSample

	cancel context.CancelFunc
}

var _ drepo.SampleProvider = (*Client)(nil)

// New creates a capture client; Connect must be called before Next.
func New(cfg Config, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.FrameRate), cfg.FrameBurst),
		latest:  make(map[string]models.PriceSample),
	}
}

// Connect dials the daemon, registers the watched symbols, and starts the
// background read loop.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.pingLoop(loopCtx)
	go c.readLoop(loopCtx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("capture connect: %w", err)
	}
	for _, s := range c.cfg.Symbols {
		msg := map[string]string{"type": "watch", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return fmt.Errorf("watch %s: %w", s, err)
		}
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("capture connected", logger.String("url", c.cfg.URL), logger.Strings("symbols", c.cfg.Symbols))
	return nil
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			if !c.redial(ctx) {
				return
			}
			continue
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("capture read failed", logger.Error(err))
			c.mu.Lock()
			c.connected = false
			c.conn = nil
			c.mu.Unlock()
			conn.Close()
			if !c.redial(ctx) {
				return
			}
			continue
		}

		// Shed frames beyond the admission rate; only the newest matters.
		if !c.limiter.Allow() {
			continue
		}

		var f frame
		if err := json.Unmarshal(b, &f); err != nil {
			continue // ignore non-frame messages
		}
		if f.Symbol == "" || f.Price <= 0 {
			continue
		}
		c.store(f)
	}
}

// redial waits the reconnect delay and dials again. Returns false once the
// loop context is cancelled.
func (c *Client) redial(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.cfg.ReconnectDelay):
	}
	if err := c.dial(ctx); err != nil {
		c.log.Warn("capture reconnect failed", logger.Error(err))
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
	}
	return true
}

func (c *Client) store(f frame) {
	ts := time.Now()
	if f.TS > 0 {
		ts = time.UnixMilli(f.TS)
	}
	sample := models.PriceSample{
		Symbol:    f.Symbol,
		Timestamp: ts,
		Price:     f.Price,
		Quality:   parseQuality(f.Quality),
	}
	c.mu.Lock()
	c.latest[f.Symbol] = sample
	c.mu.Unlock()
}

// Next returns the freshest sample for symbol. Missing or stale samples are
// errors; the caller decides how to degrade.
func (c *Client) Next(ctx context.Context, symbol string) (models.PriceSample, error) {
	c.mu.RLock()
	sample, ok := c.latest[symbol]
	connected := c.connected
	c.mu.RUnlock()

	if !ok {
		return models.PriceSample{}, fmt.Errorf("capture: no sample for %s (connected=%v)", symbol, connected)
	}
	if age := time.Since(sample.Timestamp); age > c.cfg.StaleAfter {
		return models.PriceSample{}, fmt.Errorf("capture: sample for %s is stale (%s old)", symbol, age.Round(time.Second))
	}
	return sample, nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close stops the loops and closes the connection.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func parseQuality(s string) models.Quality {
	switch models.Quality(s) {
	case models.QualityVisualLive, models.QualityVisualSynth, models.QualityAuthoritative, models.QualityCached:
		return models.Quality(s)
	default:
		return models.QualityVisualLive
	}
}
