// Package score computes the points awarded for an answer.
package score

import "time"

const (
	basePoints = 10

	fastBonus     = 5
	fastThreshold = 10 // seconds remaining

	quickBonus     = 2
	quickThreshold = 5 // seconds remaining
)

// Policy maps a round deadline, the submission time (both epoch seconds) and correctness to a point delta.
type Policy interface {
	Score(deadline, submittedAt int64, correct bool) int
}

// Points is the latency weighted rule shared by all policies.
// Late answers keep the base points.
func Points(remaining int64, correct bool) int {
	if !correct {
		return 0
	}

	switch {
	case remaining > fastThreshold:
		return basePoints + fastBonus
	case remaining > quickThreshold:
		return basePoints + quickBonus
	default:
		return basePoints
	}
}

// ClientClock trusts the submission time reported by the client.
type ClientClock struct{}

func (ClientClock) Score(deadline, submittedAt int64, correct bool) int {
	return Points(deadline-submittedAt, correct)
}

// ServerClock ignores the reported submission time and measures against the server clock.
type ServerClock struct {
	Now func() time.Time
}

func (p ServerClock) Score(deadline, _ int64, correct bool) int {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	return Points(deadline-now().Unix(), correct)
}

// New returns the policy registered under name: "client" (default) or "server".
func New(name string, now func() time.Time) Policy {
	if name == "server" {
		return ServerClock{Now: now}
	}

	return ClientClock{}
}
