// Package retransmit decides when an unacknowledged frame is resent.
//
// The decision is a plain predicate over the frame's history and the peer's
// current round-trip estimate, so alternative curves can be swapped in
// without touching the node:
//
//	Multiplier(2):  resend once  sinceLast >= 2 × latency
//	Backoff(2, max): resend once sinceLast >= min(2 × latency × 2^cycles, max)
package retransmit

import (
	"rigelnet/remote"
	"time"
)

// Policy reports whether a frame last sent sinceLast ago, already
// retransmitted cycles times, should be sent again given latency.
type Policy func(cycles int, sinceLast, latency time.Duration) bool

// Default resends after twice the round-trip estimate.
var Default = Multiplier(2)

// Multiplier resends once sinceLast reaches m × latency.
func Multiplier(m float64) Policy {
	return func(_ int, sinceLast, latency time.Duration) bool {
		return sinceLast >= scale(latency, m)
	}
}

// Backoff doubles the Multiplier threshold on every retransmission, capped
// at max. A zero max leaves it uncapped.
func Backoff(m float64, max time.Duration) Policy {
	return func(cycles int, sinceLast, latency time.Duration) bool {
		threshold := scale(latency, m)
		for i := 0; i < cycles && (max <= 0 || threshold < max); i++ {
			threshold *= 2
		}
		if max > 0 && threshold > max {
			threshold = max
		}
		return sinceLast >= threshold
	}
}

func scale(d time.Duration, m float64) time.Duration {
	return time.Duration(float64(d) * m)
}

// Engine applies a policy to a peer's pending frames.
type Engine struct {
	Policy Policy
}

// NewEngine returns an engine using p, or Default when p is nil.
func NewEngine(p Policy) *Engine {
	if p == nil {
		p = Default
	}
	return &Engine{Policy: p}
}

// Due reports whether p should be resent now.
func (e *Engine) Due(p *remote.PendingFrame, now time.Time, latency time.Duration) bool {
	return e.Policy(p.Cycles, now.Sub(p.LastSent), latency)
}

// Scan calls resend for every frame of d that is due, then records the
// retransmission on the frame. The ordinal and bytes are left untouched:
// the receiver deduplicates by ordinal, so a resend racing a late original
// is harmless. If resend returns false the frame is left as it was.
func (e *Engine) Scan(d *remote.Descriptor, now time.Time, resend func(*remote.PendingFrame) bool) {
	latency := d.Latency()
	for _, p := range d.Pending().Frames() {
		if !e.Due(p, now, latency) {
			continue
		}
		if !resend(p) {
			continue
		}
		p.Cycles++
		p.LastSent = now
	}
}
