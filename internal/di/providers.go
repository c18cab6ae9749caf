package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/domain/service"
	"FxPulse/internal/feed"
	"FxPulse/internal/gate"
	"FxPulse/internal/handler/api"
	"FxPulse/internal/memory"
	mid "FxPulse/internal/middleware"
	"FxPulse/internal/quant"
	internalrepo "FxPulse/internal/repository"
	"FxPulse/internal/risk"
	"FxPulse/internal/service/alert"
	"FxPulse/internal/service/capture"
	"FxPulse/internal/service/chart"
	"FxPulse/internal/service/decision"
	"FxPulse/internal/session"
	"FxPulse/internal/usecase"
	"FxPulse/pkg/cache"
	pkgch "FxPulse/pkg/clickhouse"
	"FxPulse/pkg/config"
	pkgkafka "FxPulse/pkg/kafka"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/metrics"
	"FxPulse/pkg/queue"
	"FxPulse/pkg/server"
)

// ProvideLogger creates the application logger with the error aggregation
// window that backs /api/errors.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 50,
		RetainCount:    200,
	})
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideCache creates the chart response cache. With Redis enabled the
// local tier reads through to the shared one; otherwise it is in-process
// only.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	shared, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(cache.NewMemoryCache(), shared), nil
}

// ProvideClickHouseClient creates a ClickHouse client when the journal runs
// on ClickHouse. Returns nil for the file backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Journal.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.JournalSchema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideJournal creates the advisory journal on the configured backend.
func ProvideJournal(cfg *config.Config, chClient *pkgch.Client, log *logger.Logger) (drepo.Journal, error) {
	if cfg.Journal.Backend == "clickhouse" {
		j := internalrepo.NewCHJournal(chClient)
		j.SetLogger(log)
		return j, nil
	}
	path := cfg.Journal.Path
	if path == "" {
		path = filepath.Join(cfg.DataDir, "journal.csv")
	}
	j, err := internalrepo.NewCSVJournal(path)
	if err != nil {
		return nil, fmt.Errorf("csv journal: %w", err)
	}
	return j, nil
}

// ProvideRiskStore persists daily risk counters across restarts.
func ProvideRiskStore(cfg *config.Config) drepo.RiskStore {
	return internalrepo.NewFileRiskStore(filepath.Join(cfg.DataDir, "risk_state.json"))
}

// ProvideContextStore persists session context and degraded-mode snapshots.
func ProvideContextStore(cfg *config.Config) drepo.ContextStore {
	return internalrepo.NewFileContextStore(cfg.DataDir)
}

// ProvideSessionClock creates the market session clock.
func ProvideSessionClock(cfg *config.Config) (*session.Clock, error) {
	if cfg.Session.Timezone == "" {
		return session.New(), nil
	}
	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("session timezone: %w", err)
	}
	return session.New(session.WithLocation(loc)), nil
}

// ProvideSampleProvider creates the WebSocket price capture client shared by
// all feed controllers.
func ProvideSampleProvider(cfg *config.Config, log *logger.Logger) drepo.SampleProvider {
	return capture.New(capture.Config{
		URL:            cfg.Capture.URL,
		Symbols:        cfg.Feed.Symbols,
		ReconnectDelay: cfg.Capture.ReconnectDelay,
		PingInterval:   cfg.Capture.PingInterval,
		StaleAfter:     cfg.Capture.StaleAfter,
	}, log)
}

// ProvideHistoryProvider creates the candle history client.
func ProvideHistoryProvider(cfg *config.Config, store cache.Service, log *logger.Logger) drepo.HistoryProvider {
	return chart.New(chart.Config{
		BaseURL:   cfg.Chart.BaseURL,
		Timeout:   cfg.Chart.Timeout,
		CacheTTL:  cfg.Chart.CacheTTL,
		SymbolMap: cfg.Chart.SymbolMap,
	}, store, log)
}

// ProvideFeedSet creates one feed controller per configured symbol.
func ProvideFeedSet(
	cfg *config.Config,
	history drepo.HistoryProvider,
	samples drepo.SampleProvider,
	store drepo.ContextStore,
	clock *session.Clock,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.FeedSet {
	fcfg := feed.Config{
		LiveCycle:        cfg.Feed.LiveCycle,
		DegradedCycle:    cfg.Feed.DegradedCycle,
		HistorySpan:      cfg.Feed.HistorySpan,
		LiveCapacity:     cfg.Feed.LiveCapacity,
		DegradedCapacity: cfg.Feed.DegradedCapacity,
	}
	controllers := make([]*feed.Controller, 0, len(cfg.Feed.Symbols))
	for _, symbol := range cfg.Feed.Symbols {
		controllers = append(controllers, feed.NewController(symbol, fcfg, history, samples, store, clock, m, log))
	}
	return usecase.NewFeedSet(controllers)
}

// ProvideIndicatorEngine creates the indicator engine from config periods.
func ProvideIndicatorEngine(cfg *config.Config) *quant.IndicatorEngine {
	return quant.NewIndicatorEngine(quant.Config{
		EMAFast:          cfg.Indicators.EMAFast,
		EMASlow:          cfg.Indicators.EMASlow,
		RSIPeriod:        cfg.Indicators.RSIPeriod,
		MomentumPeriod:   cfg.Indicators.MomentumPeriod,
		BBPeriod:         cfg.Indicators.BBPeriod,
		BBStdDev:         cfg.Indicators.BBStdDev,
		VolumePeriod:     cfg.Indicators.VolumePeriod,
		ATRPeriod:        cfg.Indicators.ATRPeriod,
		VolatilityPeriod: cfg.Indicators.VolatilityPeriod,
		MinCandles:       cfg.Indicators.MinCandles,
	})
}

// ProvideScoreEngine creates the probability score engine.
func ProvideScoreEngine(cfg *config.Config) *quant.ScoreEngine {
	return quant.NewScoreEngine(quant.Weights{
		Trend:         cfg.Score.Trend,
		Momentum:      cfg.Score.Momentum,
		MeanReversion: cfg.Score.MeanReversion,
		Volume:        cfg.Score.Volume,
		Volatility:    cfg.Score.Volatility,
		Structure:     cfg.Score.Structure,
	})
}

// ProvideSignalGate creates the wake-up gate.
func ProvideSignalGate(cfg *config.Config) *gate.SignalGate {
	return gate.New(gate.Config{
		RSIHigh:         cfg.Gate.RSIHigh,
		RSILow:          cfg.Gate.RSILow,
		VolumeSurge:     cfg.Gate.VolumeSurge,
		DegradedRSIHigh: cfg.Gate.DegradedRSIHigh,
		DegradedRSILow:  cfg.Gate.DegradedRSILow,
		GapPct:          cfg.Gate.GapPct,
		MicroVolPips:    cfg.Gate.MicroVolPips,
	})
}

// ProvideErrorMemory creates the loss-pattern memory over the journal.
func ProvideErrorMemory(cfg *config.Config, journal drepo.Journal, log *logger.Logger) *memory.ErrorMemory {
	return memory.New(memory.Config{Lookback: cfg.Memory.Lookback}, journal, log)
}

// ProvideRiskGate creates the risk gate with persisted daily state.
func ProvideRiskGate(cfg *config.Config, store drepo.RiskStore, log *logger.Logger) *risk.Gate {
	return risk.NewGate(risk.Config{
		MaxDailyLoss:     cfg.Risk.MaxDailyLoss,
		MaxConsecutive:   cfg.Risk.MaxConsecutive,
		MaxVolatilityPct: cfg.Risk.MaxVolatilityPct,
		MinConfidence:    cfg.Risk.MinConfidence,
		Cooldown:         cfg.Risk.Cooldown,
	}, store, log)
}

// ProvideDecisionService probes the configured endpoints and builds a client
// against the first reachable one.
func ProvideDecisionService(cfg *config.Config, log *logger.Logger) service.DecisionService {
	url := decision.PickEndpoint(context.Background(), cfg.Decision.URLs, cfg.Decision.Timeout, log)
	return decision.New(decision.Config{
		URL:       url,
		Model:     cfg.Decision.Model,
		Timeout:   cfg.Decision.Timeout,
		MaxTokens: cfg.Decision.MaxTokens,
	}, log)
}

// ProvideEvaluator creates the per-cycle evaluation pipeline.
func ProvideEvaluator(
	cfg *config.Config,
	indicators *quant.IndicatorEngine,
	scorer *quant.ScoreEngine,
	signalGate *gate.SignalGate,
	errMemory *memory.ErrorMemory,
	riskGate *risk.Gate,
	dec service.DecisionService,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.Evaluator {
	return usecase.NewEvaluator(usecase.EvaluatorConfig{
		MinCandles:      cfg.Indicators.MinCandles,
		DecisionTimeout: cfg.Decision.Timeout,
	}, indicators, scorer, signalGate, errMemory, riskGate, dec, m, log)
}

// ProvideQueue creates the delayed-job queue on the configured backend.
func ProvideQueue(cfg *config.Config, log *logger.Logger) queue.Queue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.Size,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	if cfg.Queue.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return queue.NewRedisQueue(log, qcfg, client, queue.ModeProducerConsumer,
			queue.WithKeyPrefix("fxpulse"))
	}
	return queue.NewMemoryQueue(log, qcfg)
}

// ProvidePipeline creates the dispatch pipeline with the configured sinks.
func ProvidePipeline(cfg *config.Config, m drepo.Metrics, log *logger.Logger) *mid.DispatchPipeline {
	pipe := mid.NewDispatchPipeline(m)
	pipe.AddSink("log", alert.NewLogSink(log))
	if cfg.Telegram.Enabled {
		pipe.AddSink("telegram", alert.NewTelegram(alert.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
		}))
	}
	return pipe
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAdvisoryPublisher bridges dispatched advisories onto Kafka, nil
// when Kafka is disabled.
func ProvideAdvisoryPublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.AdvisoryPublisher {
	if producer == nil || cfg.Kafka.AdvisoriesTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaAdvisories(producer, cfg.Kafka.AdvisoriesTopic)
}

// ProvideKafkaConsumer creates the executions-bridge consumer, nil when
// Kafka or the outcomes topic is not configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.OutcomesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideOutcomeWatcher creates the delayed outcome validator.
func ProvideOutcomeWatcher(
	cfg *config.Config,
	journal drepo.Journal,
	riskGate *risk.Gate,
	feeds *usecase.FeedSet,
	q queue.Queue,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.OutcomeWatcher {
	return usecase.NewOutcomeWatcher(usecase.WatcherConfig{
		Delay: cfg.Advisor.OutcomeDelay,
	}, journal, riskGate, feeds, q, m, log)
}

// ProvideKafkaOutcomesHandler registers the handler for the outcomes topic,
// nil when the topic is not configured.
func ProvideKafkaOutcomesHandler(
	cfg *config.Config,
	watcher *usecase.OutcomeWatcher,
	journal drepo.Journal,
	m drepo.Metrics,
) pkgkafka.MessageHandler {
	if !cfg.Kafka.Enabled || cfg.Kafka.OutcomesTopic == "" {
		return nil
	}
	return usecase.NewKafkaOutcomesHandler(cfg.Kafka.OutcomesTopic, watcher, journal, m)
}

// ProvideAdvisor creates the advisory loop over all feeds.
func ProvideAdvisor(
	cfg *config.Config,
	feeds *usecase.FeedSet,
	eval *usecase.Evaluator,
	journal drepo.Journal,
	pipe *mid.DispatchPipeline,
	publisher drepo.AdvisoryPublisher,
	watcher *usecase.OutcomeWatcher,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.Advisor {
	return usecase.NewAdvisor(usecase.AdvisorConfig{
		Interval:      cfg.Advisor.Interval,
		AlertLive:     cfg.Advisor.AlertLive,
		AlertDegraded: cfg.Advisor.AlertDegraded,
	}, feeds, eval, journal, pipe, publisher, watcher, m, log)
}

// ProvideStatusHandler creates the HTTP status API handler.
func ProvideStatusHandler(
	log *logger.Logger,
	feeds *usecase.FeedSet,
	advisor *usecase.Advisor,
	journal drepo.Journal,
	riskGate *risk.Gate,
	errMemory *memory.ErrorMemory,
	watcher *usecase.OutcomeWatcher,
	dec service.DecisionService,
) *api.StatusHandler {
	return api.NewStatusHandler(log, feeds, advisor, journal, riskGate, errMemory, watcher, dec)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	feeds *usecase.FeedSet,
	advisor *usecase.Advisor,
	watcher *usecase.OutcomeWatcher,
	q queue.Queue,
	consumer *pkgkafka.Consumer,
	oh pkgkafka.MessageHandler,
	publisher drepo.AdvisoryPublisher,
	journal drepo.Journal,
	chClient *pkgch.Client,
	status *api.StatusHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, log, feeds, advisor, watcher, q, consumer, oh, publisher, journal, chClient)
	app.SetHTTPHandler(status)
	return app
}
