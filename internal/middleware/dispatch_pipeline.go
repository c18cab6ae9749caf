package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FxPulse/internal/domain/models"
	drepo "FxPulse/internal/domain/repository"
	"FxPulse/internal/domain/service"
)

// DispatchPipeline sits between the evaluation loop and the alert sinks.
// It validates advisories, throttles per symbol, and buffers deliveries that
// fail so a flaky sink does not stall an evaluation cycle.
type DispatchPipeline struct {
	sinks    []namedSink
	metrics  drepo.Metrics
	minGap   time.Duration
	bufCh    chan delivery
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSent map[string]time.Time // per-symbol last dispatched time
}

type namedSink struct {
	name string
	sink service.AlertSink
}

type delivery struct {
	sink namedSink
	adv  *models.Advisory
}

type PipelineOption func(*DispatchPipeline)

// WithMinInterval sets the minimum spacing between advisories per symbol.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *DispatchPipeline) {
		if d > 0 {
			p.minGap = d
		}
	}
}

// WithBufferSize sets the retry buffer size for failed deliveries.
func WithBufferSize(n int) PipelineOption {
	return func(p *DispatchPipeline) {
		if n > 0 {
			p.bufCh = make(chan delivery, n)
		}
	}
}

// NewDispatchPipeline creates a pipeline over the given sinks.
func NewDispatchPipeline(metrics drepo.Metrics, opts ...PipelineOption) *DispatchPipeline {
	p := &DispatchPipeline{
		metrics:  metrics,
		minGap:   time.Minute,
		bufCh:    make(chan delivery, 256),
		stopCh:   make(chan struct{}),
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddSink registers a delivery target. Not safe after Start.
func (p *DispatchPipeline) AddSink(name string, s service.AlertSink) {
	p.sinks = append(p.sinks, namedSink{name: name, sink: s})
}

// Start launches background redelivery of buffered advisories.
func (p *DispatchPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case d := <-p.bufCh:
				if d.adv == nil {
					continue
				}
				if err := d.sink.sink.Notify(ctx, d.adv); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("dispatch_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- d:
					default:
						p.metrics.RecordError("dispatch_buffer_drop")
					}
				} else {
					p.metrics.RecordMessageSent(d.sink.name, d.adv.Symbol)
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts redelivery and drains what remains with a short budget.
func (p *DispatchPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case d := <-p.bufCh:
			if d.adv == nil {
				continue
			}
			if err := d.sink.sink.Notify(ctx, d.adv); err != nil {
				p.metrics.RecordError("dispatch_drain")
				return
			}
			p.metrics.RecordMessageSent(d.sink.name, d.adv.Symbol)
		default:
			return
		}
	}
}

// Dispatch validates and delivers the advisory to every sink, buffering the
// ones that fail. A throttled advisory is dropped without error.
func (p *DispatchPipeline) Dispatch(ctx context.Context, a *models.Advisory) error {
	start := time.Now()
	if err := validateAdvisory(a); err != nil {
		p.metrics.RecordError("dispatch_validate")
		return err
	}
	if !p.allow(a.Symbol, start) {
		p.metrics.RecordError("dispatch_throttle")
		return nil
	}

	var failed int
	for _, s := range p.sinks {
		if err := s.sink.Notify(ctx, a); err != nil {
			failed++
			p.metrics.RecordError("dispatch_deliver")
			select {
			case p.bufCh <- delivery{sink: s, adv: a}:
			default:
				p.metrics.RecordError("dispatch_buffer_full")
			}
			continue
		}
		p.metrics.RecordMessageSent(s.name, a.Symbol)
	}
	p.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	if failed > 0 {
		return fmt.Errorf("dispatch: %d of %d sinks failed, buffered for retry", failed, len(p.sinks))
	}
	return nil
}

func validateAdvisory(a *models.Advisory) error {
	if a == nil {
		return fmt.Errorf("advisory nil")
	}
	if a.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	switch a.Direction {
	case models.DirectionCall, models.DirectionPut, models.DirectionNeutral:
	default:
		return fmt.Errorf("direction %q invalid", a.Direction)
	}
	if a.Time.IsZero() {
		return fmt.Errorf("timestamp zero")
	}
	if a.Price <= 0 {
		return fmt.Errorf("price %v invalid", a.Price)
	}
	if a.Confidence < 0 || a.Confidence > 100 {
		return fmt.Errorf("confidence %v out of range", a.Confidence)
	}
	return nil
}

func (p *DispatchPipeline) allow(symbol string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSent[symbol]
	if !last.IsZero() && now.Sub(last) < p.minGap {
		return false
	}
	p.lastSent[symbol] = now
	return true
}
