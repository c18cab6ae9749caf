package feed

import (
	"sync"

	"FxPulse/internal/domain/models"
)

// CandleRing is a fixed-capacity ring of candles. Once full, a push evicts
// the oldest entry. All methods are safe for concurrent use.
type CandleRing struct {
	mu   sync.RWMutex
	buf  []models.Candle
	head int
	size int
}

// NewCandleRing creates a ring holding at most cap candles.
func NewCandleRing(capacity int) *CandleRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &CandleRing{buf: make([]models.Candle, capacity)}
}

// Push appends one candle, evicting the oldest when full.
func (r *CandleRing) Push(c models.Candle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[(r.head+r.size)%len(r.buf)] = c
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// Replace discards the current contents and loads candles, keeping only the
// newest entries when the slice exceeds capacity.
func (r *CandleRing) Replace(candles []models.Candle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
	start := 0
	if len(candles) > len(r.buf) {
		start = len(candles) - len(r.buf)
	}
	for _, c := range candles[start:] {
		r.buf[r.size] = c
		r.size++
	}
}

// Snapshot returns a copy of the contents, oldest first.
func (r *CandleRing) Snapshot() []models.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Candle, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Last returns the newest candle, or false when empty.
func (r *CandleRing) Last() (models.Candle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size == 0 {
		return models.Candle{}, false
	}
	return r.buf[(r.head+r.size-1)%len(r.buf)], true
}

// Len returns the number of stored candles.
func (r *CandleRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Clear empties the ring without releasing capacity.
func (r *CandleRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
}
