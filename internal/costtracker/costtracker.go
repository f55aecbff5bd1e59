// Package costtracker is a process-wide, mutex-guarded accumulator of
// LLM usage and cost, exposed as a singleton.
//
// Grounded on the mutex-guarded-accumulator idiom the teacher uses
// elsewhere (translator/cache.go's Cache.mutex sync.RWMutex,
// handlers/translate.go's cache map[string]*TaskStatus + sync.RWMutex);
// no direct teacher equivalent of cost_tracker.py exists in the
// retrieved pack, so this is built fresh in that idiom.
package costtracker

import (
	"sync"

	"github.com/Emasoft/enchant-cli-sub000/internal/model"
)

// Tracker accumulates usage reported by the translation client (C4).
// All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	summary model.CostSummary
}

var (
	defaultOnce    sync.Once
	defaultTracker *Tracker
)

// Default returns the process-wide singleton tracker.
func Default() *Tracker {
	defaultOnce.Do(func() {
		defaultTracker = New()
	})
	return defaultTracker
}

// New returns a fresh, independent tracker (used by tests and by any
// caller that wants isolated accounting rather than the singleton).
func New() *Tracker {
	return &Tracker{}
}

// Add folds one LLM response's usage into the running totals and
// increments the request count. Local-API responses report zero cost;
// that's just added as zero.
func (t *Tracker) Add(usage model.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.TotalCost += usage.Cost
	t.summary.TotalTokens += usage.TotalTokens
	t.summary.PromptTokens += usage.PromptTokens
	t.summary.CompletionTokens += usage.CompletionTokens
	t.summary.RequestCount++
}

// Summary returns an immutable snapshot of the running totals.
func (t *Tracker) Summary() model.CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.summary
}

// Reset zeroes all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = model.CostSummary{}
}
