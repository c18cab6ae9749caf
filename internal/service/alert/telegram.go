package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FxPulse/internal/domain/models"
	"FxPulse/internal/domain/service"
	xhttp "FxPulse/pkg/http"
)

const telegramAPI = "https://api.telegram.org"

// TelegramConfig holds the bot credentials. The sink disables itself when
// either field is empty.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
}

func (c TelegramConfig) withDefaults() TelegramConfig {
	if c.BaseURL == "" {
		c.BaseURL = telegramAPI
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// TelegramSink delivers advisories as Telegram bot messages.
type TelegramSink struct {
	cfg  TelegramConfig
	http *xhttp.Client
}

var _ service.AlertSink = (*TelegramSink)(nil)

// NewTelegram creates the sink.
func NewTelegram(cfg TelegramConfig) *TelegramSink {
	cfg = cfg.withDefaults()
	return &TelegramSink{
		cfg:  cfg,
		http: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
	}
}

// Enabled reports whether credentials are present.
func (t *TelegramSink) Enabled() bool {
	return t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the advisory text. Disabled sinks accept silently.
func (t *TelegramSink) Notify(ctx context.Context, a *models.Advisory) error {
	if !t.Enabled() {
		return nil
	}

	var reply telegramReply
	err := t.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken),
		Body: map[string]interface{}{
			"chat_id":    t.cfg.ChatID,
			"text":       formatAdvisory(a),
			"parse_mode": "Markdown",
		},
	}, &reply)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("telegram rejected message: %s", reply.Description)
	}
	return nil
}

func formatAdvisory(a *models.Advisory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s %s* @ %.5f\n", a.Direction, a.Symbol, a.Price)
	fmt.Fprintf(&b, "confidence %.0f%% | score %.1f | %s\n", a.Confidence, a.Score, a.MarketState)
	fmt.Fprintf(&b, "trigger %s", a.Trigger)
	if a.Penalty > 0 {
		fmt.Fprintf(&b, " | memory penalty -%d%%", a.Penalty)
	}
	b.WriteString("\n")
	if a.RiskApproved {
		b.WriteString("risk: approved")
	} else {
		fmt.Fprintf(&b, "risk: blocked (%s)", a.RiskReason)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, "\n_%s_", a.Reason)
	}
	return b.String()
}
