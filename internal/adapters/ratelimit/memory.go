package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow keeps the attempt times of every key in process memory. It is
// meant for single instance deployments and tests.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time

	lastSweep time.Time
}

func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{max: max, window: window, hits: map[string][]time.Time{}, now: time.Now}
}

func (w *SlidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.lastSweep) >= w.window {
		w.sweep(now)
	}
	hits := w.hits[key]
	validStart := len(hits)
	for i, t := range hits {
		if now.Sub(t) < w.window {
			validStart = i
			break
		}
	}
	hits = hits[validStart:]
	if len(hits) >= w.max {
		w.hits[key] = hits
		return false, nil
	}
	w.hits[key] = append(hits, now)
	return true, nil
}

// sweep drops keys whose newest attempt has left the window.
func (w *SlidingWindow) sweep(now time.Time) {
	for k, hits := range w.hits {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= w.window {
			delete(w.hits, k)
		}
	}
	w.lastSweep = now
}
