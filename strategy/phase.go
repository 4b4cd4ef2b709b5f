// strategy/phase.go
package strategy

import (
	"captain_grid_go/config"
	"captain_grid_go/logs"
)

// PhaseClassifier maps equity to a phase tier using the configured threshold table.
type PhaseClassifier struct {
	phases []config.PhaseConfig
}

// NewPhaseClassifier expects a validated table: phase 1 at threshold 0, thresholds strictly increasing.
func NewPhaseClassifier(phases []config.PhaseConfig) *PhaseClassifier {
	return &PhaseClassifier{phases: phases}
}

// Classify returns the highest phase whose threshold is at or below balance.
func (c *PhaseClassifier) Classify(balance float64) int {
	phase := 1
	for _, p := range c.phases {
		if balance >= p.Threshold {
			phase = p.Phase
		}
	}
	return phase
}

// PhaseTracker remembers the last classification and reports transitions.
// The callback is observability only; Observe's result never depends on it.
type PhaseTracker struct {
	classifier *PhaseClassifier
	current    int
	onChange   func(from, to int, balance float64)
}

// NewPhaseTracker creates a tracker. onChange may be nil.
func NewPhaseTracker(classifier *PhaseClassifier, onChange func(from, to int, balance float64)) *PhaseTracker {
	return &PhaseTracker{classifier: classifier, onChange: onChange}
}

// Observe classifies balance and fires the transition notice when the phase changed.
func (t *PhaseTracker) Observe(balance float64) int {
	phase := t.classifier.Classify(balance)
	if t.current != 0 && phase != t.current {
		logs.Infof("[Phase] Phase %d -> %d at balance %.4f USDT", t.current, phase, balance)
		if t.onChange != nil {
			t.onChange(t.current, phase, balance)
		}
	}
	t.current = phase
	return phase
}

// Current returns the last observed phase, 0 before the first observation.
func (t *PhaseTracker) Current() int { return t.current }
