package costtracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Emasoft/enchant-cli-sub000/internal/model"
)

func TestAdd_AccumulatesTotals(t *testing.T) {
	tr := New()
	tr.Add(model.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Cost: 0.01})
	tr.Add(model.Usage{PromptTokens: 200, CompletionTokens: 80, TotalTokens: 280, Cost: 0.02})

	s := tr.Summary()
	assert.Equal(t, int64(300), s.PromptTokens)
	assert.Equal(t, int64(130), s.CompletionTokens)
	assert.Equal(t, int64(430), s.TotalTokens)
	assert.InDelta(t, 0.03, s.TotalCost, 1e-9)
	assert.Equal(t, int64(2), s.RequestCount)
}

func TestReset_ZeroesCounters(t *testing.T) {
	tr := New()
	tr.Add(model.Usage{TotalTokens: 10, Cost: 1})
	tr.Reset()
	assert.Equal(t, model.CostSummary{}, tr.Summary())
}

func TestAdd_ConcurrentSafe(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(model.Usage{TotalTokens: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), tr.Summary().RequestCount)
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
