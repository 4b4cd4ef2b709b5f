// state/pause.go
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"captain_grid_go/config"
	"captain_grid_go/logs"
	"captain_grid_go/notify"
)

// Status is the trading state of the bot.
type Status int

const (
	Active Status = iota
	Paused
)

func (s Status) String() string {
	if s == Paused {
		return "PAUSED"
	}
	return "ACTIVE"
}

// PauseInfo describes the current pause. Zero while active.
type PauseInfo struct {
	Reason string
	Since  time.Time
}

// Canceler removes every resting order of the traded contract.
type Canceler interface {
	CancelAll(ctx context.Context) error
}

// ResumeInput is the market and account snapshot a resume decision looks at.
type ResumeInput struct {
	Balance float64
	// Stability is (max-min)/average over the stability window. StabilityOK is false
	// when the window holds no samples, which counts as unstable.
	Stability   float64
	StabilityOK bool
}

// Decision is the outcome of one resume evaluation.
type Decision struct {
	Resume  bool
	Forced  bool // resumed past the max cooldown without the stability gate
	Elapsed time.Duration
	Reason  string
}

// PauseController is the ACTIVE/PAUSED state machine with cooldown-gated resume.
type PauseController struct {
	mu       sync.RWMutex
	cfg      *config.ResumeConfig
	canceler Canceler
	notifier notify.Notifier
	status   Status
	info     PauseInfo
}

func NewPauseController(cfg *config.ResumeConfig, canceler Canceler, notifier notify.Notifier) *PauseController {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &PauseController{cfg: cfg, canceler: canceler, notifier: notifier}
}

// Status returns the current state.
func (p *PauseController) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Info returns the current pause reason and start. Zero while active.
func (p *PauseController) Info() PauseInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

// IsPaused reports whether trading is paused.
func (p *PauseController) IsPaused() bool { return p.Status() == Paused }

// Trip cancels all orders and enters PAUSED. Tripping while paused does nothing.
// The pause is entered even if the cancel fails; the cancel error is returned so the
// caller can count it.
func (p *PauseController) Trip(ctx context.Context, reason string, now time.Time) error {
	p.mu.Lock()
	if p.status == Paused {
		current := p.info.Reason
		p.mu.Unlock()
		logs.Debugf("[Pause] Already paused (%s), ignoring trip: %s", current, reason)
		return nil
	}
	p.status = Paused
	p.info = PauseInfo{Reason: reason, Since: now}
	p.mu.Unlock()

	var cancelErr error
	if p.canceler != nil {
		if err := p.canceler.CancelAll(ctx); err != nil {
			cancelErr = fmt.Errorf("cancel orders on pause: %w", err)
			logs.Errorf("[Pause] %v", cancelErr)
		}
	}
	logs.Warnf("[Pause] !!! Trading paused: %s. Cooldown %dm, max %dm", reason, p.cfg.CooldownMinutes, p.cfg.MaxCooldownMinutes)
	notify.BestEffort(ctx, p.notifier, fmt.Sprintf("⏸️ Trading paused: %s", reason))
	return cancelErr
}

// Evaluate decides whether a pause may end. It does not change state; call Resume for that.
//
// Before the cooldown nothing is checked. Between cooldown and max cooldown both the
// balance floor and the stability gate must pass. Past the max cooldown only the balance
// floor applies when force resume is on; otherwise the bot waits for an operator.
func (p *PauseController) Evaluate(now time.Time, in ResumeInput) Decision {
	p.mu.RLock()
	status, since := p.status, p.info.Since
	p.mu.RUnlock()

	if status != Paused {
		return Decision{Reason: "not paused"}
	}

	elapsed := now.Sub(since)
	d := Decision{Elapsed: elapsed}
	cooldown := time.Duration(p.cfg.CooldownMinutes) * time.Minute
	maxCooldown := time.Duration(p.cfg.MaxCooldownMinutes) * time.Minute
	balanceOK := in.Balance >= p.cfg.MinResumeBalance

	switch {
	case elapsed < cooldown:
		d.Reason = fmt.Sprintf("cooling down, %s left", (cooldown - elapsed).Truncate(time.Second))
	case elapsed <= maxCooldown:
		stable := in.StabilityOK && in.Stability <= p.cfg.StabilityThreshold
		switch {
		case !balanceOK:
			d.Reason = fmt.Sprintf("balance %.4f below resume floor %.4f", in.Balance, p.cfg.MinResumeBalance)
		case !stable:
			d.Reason = fmt.Sprintf("market unstable: range %.4f%% over threshold %.4f%%", in.Stability*100, p.cfg.StabilityThreshold*100)
		default:
			d.Resume = true
			d.Reason = fmt.Sprintf("stable market (range %.4f%%) and balance %.4f", in.Stability*100, in.Balance)
		}
	case !p.cfg.ForceResumeAfterMax:
		d.Reason = "max cooldown exceeded, force resume disabled, waiting for operator"
	case !balanceOK:
		d.Reason = fmt.Sprintf("max cooldown exceeded but balance %.4f below resume floor %.4f", in.Balance, p.cfg.MinResumeBalance)
	default:
		d.Resume = true
		d.Forced = true
		d.Reason = fmt.Sprintf("forced after max cooldown with balance %.4f", in.Balance)
	}
	return d
}

// Resume returns to ACTIVE and notifies. It is a no-op while active.
func (p *PauseController) Resume(ctx context.Context, now time.Time, d Decision) bool {
	p.mu.Lock()
	if p.status != Paused {
		p.mu.Unlock()
		return false
	}
	prev := p.info
	p.status = Active
	p.info = PauseInfo{}
	p.mu.Unlock()

	logs.Infof("[Pause] Trading resumed after %s (paused for %s): %s", now.Sub(prev.Since).Truncate(time.Second), prev.Reason, d.Reason)
	notify.BestEffort(ctx, p.notifier, fmt.Sprintf("▶️ Trading resumed: %s", d.Reason))
	return true
}
