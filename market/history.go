// market/history.go
package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfOrder is returned when a sample is older than the newest recorded one.
var ErrOutOfOrder = errors.New("price sample older than newest sample")

// Sample is one observed price.
type Sample struct {
	At    time.Time
	Price float64
}

// PriceHistory is a time-ordered buffer of price samples bounded by a retention span.
// On each insert, samples older than the retention cutoff are purged except the newest
// of them, which stays as the anchor for "at or before" lookups at the window boundary.
// Not safe for concurrent use; the engine loop owns it.
type PriceHistory struct {
	retention time.Duration
	samples   []Sample
}

// NewPriceHistory creates a history retaining at least the given span.
func NewPriceHistory(retention time.Duration) *PriceHistory {
	return &PriceHistory{retention: retention}
}

// Record appends a sample and purges expired entries.
func (h *PriceHistory) Record(at time.Time, price float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %f", price)
	}
	if n := len(h.samples); n > 0 && at.Before(h.samples[n-1].At) {
		return fmt.Errorf("%w: %s < %s", ErrOutOfOrder, at.Format(time.RFC3339), h.samples[n-1].At.Format(time.RFC3339))
	}
	h.samples = append(h.samples, Sample{At: at, Price: price})
	h.purge(at.Add(-h.retention))
	return nil
}

func (h *PriceHistory) purge(cutoff time.Time) {
	// index of the newest sample at or before the cutoff
	anchor := -1
	for i, s := range h.samples {
		if s.At.After(cutoff) {
			break
		}
		anchor = i
	}
	if anchor > 0 {
		h.samples = append(h.samples[:0], h.samples[anchor:]...)
	}
}

// Len returns the number of retained samples.
func (h *PriceHistory) Len() int { return len(h.samples) }

// Latest returns the newest sample.
func (h *PriceHistory) Latest() (Sample, bool) {
	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// At returns the newest sample taken at or before t.
func (h *PriceHistory) At(t time.Time) (Sample, bool) {
	for i := len(h.samples) - 1; i >= 0; i-- {
		if !h.samples[i].At.After(t) {
			return h.samples[i], true
		}
	}
	return Sample{}, false
}

// Since returns a copy of the samples taken at or after t, oldest first.
func (h *PriceHistory) Since(t time.Time) []Sample {
	out := make([]Sample, 0, len(h.samples))
	for _, s := range h.samples {
		if !s.At.Before(t) {
			out = append(out, s)
		}
	}
	return out
}

// Range returns (max-min)/average over the samples. ok is false for an empty set.
func Range(samples []Sample) (rng float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}
	lo, hi, sum := samples[0].Price, samples[0].Price, 0.0
	for _, s := range samples {
		if s.Price < lo {
			lo = s.Price
		}
		if s.Price > hi {
			hi = s.Price
		}
		sum += s.Price
	}
	avg := sum / float64(len(samples))
	return (hi - lo) / avg, true
}
