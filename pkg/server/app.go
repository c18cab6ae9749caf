package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/feed"
	"FxPulse/internal/usecase"
	pkgch "FxPulse/pkg/clickhouse"
	"FxPulse/pkg/config"
	xhttp "FxPulse/pkg/http"
	pkgkafka "FxPulse/pkg/kafka"
	"FxPulse/pkg/logger"
	"FxPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *logger.Logger
	feeds       *usecase.FeedSet
	advisor     *usecase.Advisor
	watcher     *usecase.OutcomeWatcher
	queue       queue.Queue
	consumer    *pkgkafka.Consumer
	oh          pkgkafka.MessageHandler
	publisher   drepo.AdvisoryPublisher
	journal     drepo.Journal
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
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
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		feeds:     feeds,
		advisor:   advisor,
		watcher:   watcher,
		queue:     q,
		consumer:  consumer,
		oh:        oh,
		publisher: publisher,
		journal:   journal,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
	}
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	// Start feed controllers
	a.feeds.Each(func(c *feed.Controller) {
		if err := c.Start(ctx); err != nil {
			a.log.Error("feed start error",
				logger.String("symbol", c.Symbol()), logger.Error(err))
		}
		go c.Run(ctx)
	})
	a.log.Info("feeds started", logger.Strings("symbols", a.feeds.Symbols()))

	// Queue workers run the delayed outcome validations
	a.queue.RegisterJob(a.watcher)
	if err := a.queue.Start(); err != nil {
		a.log.Error("queue start error", logger.Error(err))
		return err
	}

	a.advisor.Start(ctx)
	a.log.Info("advisor started",
		logger.Duration("interval", a.cfg.Advisor.Interval))

	// Start consumer if configured
	if a.consumer != nil && a.oh != nil {
		a.consumer.RegisterHandler(a.oh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", logger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", logger.String("topic", a.oh.Topic()))
	}

	if a.cfg.Journal.RetainDays > 0 {
		go a.pruneLoop(ctx)
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// pruneLoop trims journal rows older than the retention window once a day.
func (a *App) pruneLoop(ctx context.Context) {
	keep := time.Duration(a.cfg.Journal.RetainDays) * 24 * time.Hour
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.journal.Prune(ctx, keep)
			if err != nil {
				a.log.Warn("journal prune error", logger.Error(err))
				continue
			}
			if n > 0 {
				a.log.Info("journal pruned", logger.Int("rows", n))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	// Stop the evaluation loops first so nothing new reaches the sinks.
	a.advisor.Stop()

	// Feed shutdown persists the degraded-mode session snapshots.
	a.feeds.Each(func(c *feed.Controller) {
		if err := c.Shutdown(ctx); err != nil {
			a.log.Warn("feed stop error",
				logger.String("symbol", c.Symbol()), logger.Error(err))
		}
	})

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	// Drain queued outcome validations
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", logger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", logger.Error(err))
		}
	}
	if err := a.journal.Close(); err != nil {
		a.log.Warn("journal close error", logger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
