package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"FxPulse/pkg/util"
)

// Config is the full application configuration loaded from YAML.
type Config struct {
	Environment string `yaml:"environment"`

	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`

	// DataDir is where file-backed state lives: session context, degraded
	// snapshots, daily risk state, the CSV journal.
	DataDir string `yaml:"data_dir"`

	Feed struct {
		Symbols          []string      `yaml:"symbols"`
		LiveCycle        time.Duration `yaml:"live_cycle"`
		DegradedCycle    time.Duration `yaml:"degraded_cycle"`
		HistorySpan      time.Duration `yaml:"history_span"`
		LiveCapacity     int           `yaml:"live_capacity"`
		DegradedCapacity int           `yaml:"degraded_capacity"`
	} `yaml:"feed"`

	Capture struct {
		URL            string        `yaml:"url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		StaleAfter     time.Duration `yaml:"stale_after"`
	} `yaml:"capture"`

	Chart struct {
		BaseURL   string            `yaml:"base_url"`
		Timeout   time.Duration     `yaml:"timeout"`
		CacheTTL  time.Duration     `yaml:"cache_ttl"`
		SymbolMap map[string]string `yaml:"symbol_map"`
	} `yaml:"chart"`

	Session struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"session"`

	Indicators struct {
		EMAFast          int     `yaml:"ema_fast"`
		EMASlow          int     `yaml:"ema_slow"`
		RSIPeriod        int     `yaml:"rsi_period"`
		MomentumPeriod   int     `yaml:"momentum_period"`
		BBPeriod         int     `yaml:"bb_period"`
		BBStdDev         float64 `yaml:"bb_std_dev"`
		VolumePeriod     int     `yaml:"volume_period"`
		ATRPeriod        int     `yaml:"atr_period"`
		VolatilityPeriod int     `yaml:"volatility_period"`
		MinCandles       int     `yaml:"min_candles"`
	} `yaml:"indicators"`

	Score struct {
		Trend         float64 `yaml:"trend"`
		Momentum      float64 `yaml:"momentum"`
		MeanReversion float64 `yaml:"mean_reversion"`
		Volume        float64 `yaml:"volume"`
		Volatility    float64 `yaml:"volatility"`
		Structure     float64 `yaml:"structure"`
	} `yaml:"score"`

	Gate struct {
		RSIHigh         float64 `yaml:"rsi_high"`
		RSILow          float64 `yaml:"rsi_low"`
		VolumeSurge     float64 `yaml:"volume_surge"`
		DegradedRSIHigh float64 `yaml:"degraded_rsi_high"`
		DegradedRSILow  float64 `yaml:"degraded_rsi_low"`
		GapPct          float64 `yaml:"gap_pct"`
		MicroVolPips    float64 `yaml:"micro_vol_pips"`
	} `yaml:"gate"`

	Risk struct {
		MaxDailyLoss     float64       `yaml:"max_daily_loss"`
		MaxConsecutive   int           `yaml:"max_consecutive"`
		MaxVolatilityPct float64       `yaml:"max_volatility_pct"`
		MinConfidence    float64       `yaml:"min_confidence"`
		Cooldown         time.Duration `yaml:"cooldown"`
	} `yaml:"risk"`

	Memory struct {
		Lookback time.Duration `yaml:"lookback"`
	} `yaml:"memory"`

	Decision struct {
		URLs      []string      `yaml:"urls"`
		Model     string        `yaml:"model"`
		Timeout   time.Duration `yaml:"timeout"`
		MaxTokens int           `yaml:"max_tokens"`
	} `yaml:"decision"`

	Advisor struct {
		Interval      time.Duration `yaml:"interval"`
		AlertLive     float64       `yaml:"alert_live"`
		AlertDegraded float64       `yaml:"alert_degraded"`
		OutcomeDelay  time.Duration `yaml:"outcome_delay"`
	} `yaml:"advisor"`

	Journal struct {
		Backend    string `yaml:"backend"` // file | clickhouse
		Path       string `yaml:"path"`
		RetainDays int    `yaml:"retain_days"`
	} `yaml:"journal"`

	Queue struct {
		Backend    string        `yaml:"backend"` // memory | redis
		Workers    int           `yaml:"workers"`
		Size       int           `yaml:"size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Kafka struct {
		Enabled         bool     `yaml:"enabled"`
		Brokers         []string `yaml:"brokers"`
		AdvisoriesTopic string   `yaml:"advisories_topic"`
		OutcomesTopic   string   `yaml:"outcomes_topic"`
		RequiredAcks    int      `yaml:"required_acks"` // -1 all, 0 none, 1 leader
		Compression     string   `yaml:"compression"`
		Producer        struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int64         `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = util.SplitCSV(v)
	}
	for i, s := range c.Feed.Symbols {
		c.Feed.Symbols[i] = util.NormalizeSymbol(s)
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CAPTURE_URL"); v != "" {
		c.Capture.URL = v
	}
	if v := os.Getenv("DECISION_URL"); v != "" {
		c.Decision.URLs = util.SplitCSV(v)
	}
	if v := os.Getenv("JOURNAL_BACKEND"); v != "" {
		c.Journal.Backend = v
	}
	if v := os.Getenv("QUEUE_BACKEND"); v != "" {
		c.Queue.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols cannot be empty")
	}
	if len(c.Decision.URLs) == 0 {
		return fmt.Errorf("decision.urls cannot be empty")
	}
	switch c.Journal.Backend {
	case "", "file", "clickhouse":
	default:
		return fmt.Errorf("journal.backend must be 'file' or 'clickhouse', got '%s'", c.Journal.Backend)
	}
	if c.Journal.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for journal.backend 'clickhouse'")
	}
	switch c.Queue.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("queue.backend must be 'memory' or 'redis', got '%s'", c.Queue.Backend)
	}
	if c.Queue.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis must be enabled for queue.backend 'redis'")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when redis is enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.AdvisoriesTopic == "" && c.Kafka.OutcomesTopic == "" {
		return fmt.Errorf("kafka needs advisories_topic or outcomes_topic when enabled")
	}
	if sum := c.Score.Trend + c.Score.Momentum + c.Score.MeanReversion + c.Score.Volume + c.Score.Volatility + c.Score.Structure; sum != 0 && (sum < 0.999 || sum > 1.001) {
		return fmt.Errorf("score weights must sum to 1, got %.4f", sum)
	}
	if c.Gate.RSIHigh != 0 && c.Gate.RSILow != 0 && c.Gate.RSIHigh <= c.Gate.RSILow {
		return fmt.Errorf("gate.rsi_high must be above gate.rsi_low")
	}
	if c.Session.Timezone != "" {
		if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
			return fmt.Errorf("session.timezone: %w", err)
		}
	}
	return nil
}
