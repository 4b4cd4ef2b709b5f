// risk/actions.go
package risk

import "fmt"

// Detector names a risk check. The names double as pause reasons.
type Detector string

const (
	DetectorNone       Detector = ""
	DetectorVolatility Detector = "volatility"
	DetectorDecline    Detector = "gradual decline"
	DetectorLossLimit  Detector = "loss limit"
	DetectorImbalance  Detector = "position imbalance"
	DetectorExposure   Detector = "net position"
)

// Bias tells the placer which ladder sides to leave out. It is advisory: it never pauses trading.
type Bias struct {
	SuppressBuy  bool
	SuppressSell bool
}

// Merge combines two advisories; a side suppressed by either stays suppressed.
func (b Bias) Merge(o Bias) Bias {
	return Bias{
		SuppressBuy:  b.SuppressBuy || o.SuppressBuy,
		SuppressSell: b.SuppressSell || o.SuppressSell,
	}
}

// Any reports whether at least one side is suppressed.
func (b Bias) Any() bool { return b.SuppressBuy || b.SuppressSell }

func (b Bias) String() string {
	switch {
	case b.SuppressBuy && b.SuppressSell:
		return "buy+sell suppressed"
	case b.SuppressBuy:
		return "buy suppressed"
	case b.SuppressSell:
		return "sell suppressed"
	}
	return "none"
}

// Verdict is the outcome of one guard evaluation.
type Verdict struct {
	Tripped  bool
	Detector Detector
	Rate     float64
	Bias     Bias
	// Imbalance is open buys minus open sells for the traded contract.
	Imbalance int
}

// Reason is the short pause reason, e.g. "loss limit".
func (v Verdict) Reason() string { return string(v.Detector) }

// Description is the human-readable explanation used in logs and notifications.
func (v Verdict) Description() string {
	if !v.Tripped {
		return fmt.Sprintf("no trip (imbalance %d, bias %s)", v.Imbalance, v.Bias)
	}
	return fmt.Sprintf("%s tripped at rate %.2f%%", v.Detector, v.Rate*100)
}
