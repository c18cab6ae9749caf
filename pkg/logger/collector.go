package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher forwards flushed log batches to an external sink, e.g. a
// queue topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig tunes the aggregation window.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // unique entries that force a flush
	RetainCount    int           // flushed entries kept for the API, default 100
	Topic          string        // topic for published batches
	Publisher      Publisher     // optional; nil keeps aggregation local
}

// AggregatedLogEntry is one deduplicated log line with its repeat
// count and first/last sighting.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates log lines into a pending map, flushes them
// on a timer or when the map grows past the threshold, and keeps a
// bounded window of flushed entries for the API.
type LogCollector struct {
	config *CollectionConfig
	logMap map[string]*AggregatedLogEntry
	recent []AggregatedLogEntry
	mutex  sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLogCollector starts the periodic flush goroutine.
func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.RetainCount <= 0 {
		config.RetainCount = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()
	return c
}

// AddLog records one occurrence of a log line. Identical lines (same
// level, message, fields and call site) aggregate into one entry.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := dedupeKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, exists := c.logMap[key]; exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.logMap) >= c.config.CountThreshold {
		c.flushLogs()
	}
}

// dedupeKey is stable because encoding/json writes map keys sorted.
func dedupeKey(level, message string, fields map[string]interface{}, caller string) string {
	raw, _ := json.Marshal(fields)
	sum := sha256.Sum256([]byte(level + "\x00" + message + "\x00" + caller + "\x00" + string(raw)))
	return hex.EncodeToString(sum[:])
}

func (c *LogCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flushNow()
		case <-c.ctx.Done():
			// Final flush so shutdown loses nothing.
			c.flushNow()
			return
		}
	}
}

func (c *LogCollector) flushNow() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.flushLogs()
}

// flushLogs drains the pending map into the retained window and, with
// a publisher configured, ships the batch. Callers hold the mutex.
func (c *LogCollector) flushLogs() {
	if len(c.logMap) == 0 {
		return
	}

	logs := make([]AggregatedLogEntry, 0, len(c.logMap))
	for _, entry := range c.logMap {
		logs = append(logs, *entry)
	}
	c.logMap = make(map[string]*AggregatedLogEntry)

	c.recent = append(c.recent, logs...)
	if len(c.recent) > c.config.RetainCount {
		c.recent = c.recent[len(c.recent)-c.config.RetainCount:]
	}

	if c.config.Publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, logs); err != nil {
			fmt.Fprintf(os.Stderr, "publish aggregated logs: %v\n", err)
		}
	}()
}

// Recent returns up to limit aggregated entries ordered by last seen,
// newest first. Entries not yet flushed are included.
func (c *LogCollector) Recent(limit int) []AggregatedLogEntry {
	c.mutex.RLock()
	out := make([]AggregatedLogEntry, 0, len(c.recent)+len(c.logMap))
	out = append(out, c.recent...)
	for _, entry := range c.logMap {
		out = append(out, *entry)
	}
	c.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Close flushes once more and stops the collector.
func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
