// Package budget tracks credit quotas for metered data sources. One Ledger
// is shared by all concurrently running sessions, so spending is atomic:
// two sessions can never jointly exceed a source's quota.
package budget

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrExhausted = fmt.Errorf("credit budget exhausted")

type Ledger struct {
	mu     sync.Mutex
	quotas map[string]*atomic.Int64
	spent  map[string]*atomic.Int64
}

func NewLedger(quotas map[string]int64) *Ledger {
	l := &Ledger{
		quotas: make(map[string]*atomic.Int64, len(quotas)),
		spent:  make(map[string]*atomic.Int64, len(quotas)),
	}
	for source, quota := range quotas {
		q := &atomic.Int64{}
		q.Store(quota)
		l.quotas[source] = q
		l.spent[source] = &atomic.Int64{}
	}
	return l
}

// TrySpend reserves n credits against source's quota. Unknown sources are
// unmetered and always succeed. Returns ErrExhausted without spending when
// the reservation would overdraw the quota.
func (l *Ledger) TrySpend(source string, n int64) error {
	quota, ok := l.counter(source)
	if !ok {
		return nil
	}
	spent, _ := l.spentCounter(source)
	for {
		used := spent.Load()
		if used+n > quota.Load() {
			return fmt.Errorf("%w: source=%s used=%d quota=%d", ErrExhausted, source, used, quota.Load())
		}
		if spent.CompareAndSwap(used, used+n) {
			return nil
		}
	}
}

// Refund returns credits reserved by TrySpend, e.g. when a metered call
// found nothing and the provider does not charge.
func (l *Ledger) Refund(source string, n int64) {
	if spent, ok := l.spentCounter(source); ok {
		spent.Add(-n)
	}
}

func (l *Ledger) Spent(source string) int64 {
	if spent, ok := l.spentCounter(source); ok {
		return spent.Load()
	}
	return 0
}

func (l *Ledger) counter(source string) (*atomic.Int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.quotas[source]
	return q, ok
}

func (l *Ledger) spentCounter(source string) (*atomic.Int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.spent[source]
	return s, ok
}
