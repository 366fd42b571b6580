package sequence

import (
	"context"
	"sync"
	"time"
)

// MemoryGenerator is the single-process fallback used when redis is not
// configured and in tests.
type MemoryGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
	now      func() time.Time
}

func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[string]int64), now: time.Now}
}

func (g *MemoryGenerator) next(key string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[key]++
	return g.counters[key]
}

func (g *MemoryGenerator) NextReferralCodeSeq(_ context.Context, prefix string) (int64, error) {
	return g.next("referral_code:" + prefix), nil
}

func (g *MemoryGenerator) NextBatchCode(_ context.Context) (string, error) {
	today := g.now().UTC().Format("060102")
	return formatBatchCode(today, g.next("batch:"+today))
}
