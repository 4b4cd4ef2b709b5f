package profit

import (
	"sync"
	"time"
)

// Summary is the session's equity picture.
type Summary struct {
	Initial     float64 // configured initial balance
	Current     float64 // last validated balance
	Peak        float64 // highest validated balance seen
	MaxDrawdown float64 // largest fall from a peak, as a fraction of that peak
	PnL         float64 // Current - Initial
	Samples     int
	Started     time.Time
}

// Accountant tracks equity over the session. The settled balance already contains
// realized grid profit and fees, so no per-trade bookkeeping is needed.
type Accountant struct {
	mu      sync.Mutex
	summary Summary
}

// NewAccountant creates a new accounting core.
func NewAccountant(initialBalance float64, started time.Time) *Accountant {
	return &Accountant{
		summary: Summary{
			Initial: initialBalance,
			Current: initialBalance,
			Peak:    initialBalance,
			Started: started,
		},
	}
}

// RecordEquity records a validated balance reading.
func (a *Accountant) RecordEquity(balance float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.summary
	s.Samples++
	s.Current = balance
	s.PnL = balance - s.Initial
	if balance > s.Peak {
		s.Peak = balance
	}
	if s.Peak > 0 {
		if dd := (s.Peak - balance) / s.Peak; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
}

// GetSummary returns a copy of the current summary.
func (a *Accountant) GetSummary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}
