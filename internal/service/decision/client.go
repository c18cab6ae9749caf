package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/service"
	"FxPulse/internal/quant"
	xhttp "FxPulse/pkg/http"
	"FxPulse/pkg/logger"
)

const systemPrompt = `You are a senior decision-support engineer for financial probability estimation.
Your job is to estimate direction probabilities, never to execute trades.

Respond with JSON only, exactly this shape:
{"direction": "UP|DOWN|NEUTRAL", "confidence": 0-100, "reason": "short explanation"}

Rules:
- Always weigh the recent-failure memory before deciding. If the current setup
  resembles recent losses, lower the confidence or answer NEUTRAL.
- Prefer NEUTRAL under reasonable doubt.
- Never compensate for past losses by being more aggressive.
- No deterministic language. No text outside the JSON.`

// Config holds the decision endpoint settings.
type Config struct {
	URL       string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	return c
}

// Client calls an OpenAI-compatible chat endpoint and maps the reply to a
// directional decision. Every failure path yields a usable neutral fallback.
type Client struct {
	cfg  Config
	http *xhttp.Client
	log  *logger.Logger
}

var _ service.DecisionService = (*Client)(nil)

// New creates a decision client.
func New(cfg Config, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:  cfg,
		http: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		log:  log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Decide maps the snapshot to a direction. The returned result is always
// usable; a non-nil error explains why it degraded to the neutral fallback.
func (c *Client) Decide(ctx context.Context, req *models.DecisionRequest) (models.DecisionResult, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var resp chatResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     strings.TrimRight(c.cfg.URL, "/") + "/v1/chat/completions",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, &resp)
	if err != nil {
		c.log.Warn("decision request failed", logger.String("symbol", req.Symbol), logger.Error(err))
		return fallback("decision service unreachable"), fmt.Errorf("decision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fallback("decision service returned no choices"), fmt.Errorf("decision response empty")
	}

	content := resp.Choices[0].Message.Content
	raw, ok := extractJSON(content)
	if !ok {
		c.log.Warn("decision reply had no JSON object", logger.String("symbol", req.Symbol))
		return fallback("decision reply had no JSON object"), fmt.Errorf("no JSON in reply: %.120s", content)
	}
	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.log.Warn("decision reply was not valid JSON", logger.String("symbol", req.Symbol), logger.Error(err))
		return fallback("decision reply was not valid JSON"), fmt.Errorf("decode verdict: %w", err)
	}
	dir, ok := normalizeDirection(v.Direction)
	if !ok {
		return fallback("decision direction not recognized"), fmt.Errorf("bad direction %q", v.Direction)
	}
	return models.DecisionResult{
		Direction:  dir,
		Confidence: quant.Clamp(v.Confidence, 0, 100),
		Reason:     v.Reason,
	}, nil
}

// Healthy probes the models listing endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    strings.TrimRight(c.cfg.URL, "/") + "/v1/models",
	})
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// PickEndpoint probes candidates in order and returns the first healthy base
// URL. With none reachable it returns the first candidate; Decide degrades to
// the neutral fallback per call until the service comes up.
func PickEndpoint(ctx context.Context, candidates []string, timeout time.Duration, log *logger.Logger) string {
	if len(candidates) == 0 {
		return ""
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for _, u := range candidates {
		probe := New(Config{URL: u, Timeout: timeout}, log)
		pctx, cancel := context.WithTimeout(ctx, timeout)
		ok := probe.Healthy(pctx)
		cancel()
		if ok {
			log.Info("decision endpoint selected", logger.String("url", u))
			return u
		}
		log.Warn("decision endpoint unreachable", logger.String("url", u))
	}
	return candidates[0]
}

func fallback(reason string) models.DecisionResult {
	return models.DecisionResult{
		Direction:  models.DirectionNeutral,
		Confidence: 0,
		Reason:     reason,
		Fallback:   true,
	}
}

func buildPrompt(req *models.DecisionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MARKET CONTEXT:\n")
	fmt.Fprintf(&b, "symbol: %s\n", req.Symbol)
	fmt.Fprintf(&b, "price: %.5f\n", req.Price)
	fmt.Fprintf(&b, "market_state: %s\n", req.MarketState)
	if req.MarketState == string(models.ModeDegraded) {
		fmt.Fprintf(&b, "gap_pct: %+.4f\n", req.Gap)
	}

	ind := req.Indicators
	fmt.Fprintf(&b, "\nINDICATORS:\n")
	fmt.Fprintf(&b, "rsi: %.1f\n", ind.RSI)
	fmt.Fprintf(&b, "ema_fast: %.5f\n", ind.EMAFast)
	fmt.Fprintf(&b, "ema_slow: %.5f\n", ind.EMASlow)
	fmt.Fprintf(&b, "bb_position: %.2f\n", ind.BBPosition)
	fmt.Fprintf(&b, "vwap_signal: %+.3f\n", ind.VWAPSignal)
	fmt.Fprintf(&b, "volume_ratio: %.2f\n", ind.VolumeRatio)
	fmt.Fprintf(&b, "atr: %.5f\n", ind.ATR)

	fmt.Fprintf(&b, "\nREGIME:\n")
	fmt.Fprintf(&b, "trend: %s\n", req.Regime.PrimaryTrend)
	fmt.Fprintf(&b, "volatility: %s\n", req.Regime.Volatility)
	fmt.Fprintf(&b, "phase: %s\n", req.Regime.Phase)

	fmt.Fprintf(&b, "\nSCORE:\n")
	fmt.Fprintf(&b, "total: %.1f\n", req.Score.Total)
	fmt.Fprintf(&b, "direction: %s\n", req.Score.Direction)
	fmt.Fprintf(&b, "confidence: %.1f\n", req.Score.Confidence)

	fmt.Fprintf(&b, "\nRECENT FAILURE MEMORY:\n%s\n", req.MemorySummary)
	fmt.Fprintf(&b, "confidence_penalty: -%d%%\n", req.Penalty)
	fmt.Fprintf(&b, "\nRespond with JSON only:")
	return b.String()
}

// extractJSON strips markdown fences and cuts the first balanced-looking
// object out of the reply.
func extractJSON(s string) (string, bool) {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func normalizeDirection(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case models.DirectionUp:
		return models.DirectionUp, true
	case models.DirectionDown:
		return models.DirectionDown, true
	case models.DirectionNeutral:
		return models.DirectionNeutral, true
	default:
		return "", false
	}
}
