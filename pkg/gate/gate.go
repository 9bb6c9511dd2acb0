// Package gate serializes the application of operation batches so that two
// batches never mutate a document at the same time.
package gate

import (
	"context"
	"sync"

	"github.com/grovetools/editsync/errors"
)

// Policy decides what happens to a batch submitted while another is applying.
type Policy int

const (
	// PolicyReject fails the second submission with CONCURRENT_APPLY.
	PolicyReject Policy = iota
	// PolicyQueue makes the second submission wait for the first.
	PolicyQueue
)

// ParsePolicy maps a config value to a Policy. Unknown values reject.
func ParsePolicy(name string) Policy {
	if name == "queue" {
		return PolicyQueue
	}
	return PolicyReject
}

func (p Policy) String() string {
	if p == PolicyQueue {
		return "queue"
	}
	return "reject"
}

// Gate is a single-slot lock with a configurable overlap policy.
type Gate struct {
	policy Policy
	slot   chan struct{}
}

// New creates an open gate.
func New(policy Policy) *Gate {
	return &Gate{
		policy: policy,
		slot:   make(chan struct{}, 1),
	}
}

// Policy returns the gate's overlap policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Acquire takes the gate. The returned release func may be called any
// number of times; only the first call opens the gate.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	switch g.policy {
	case PolicyQueue:
		select {
		case g.slot <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	default:
		select {
		case g.slot <- struct{}{}:
		default:
			return nil, errors.ConcurrentApply()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-g.slot })
	}, nil
}

// Run executes fn while holding the gate and returns fn's error unchanged.
// The gate is released on every exit path, including a panic in fn.
func (g *Gate) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Busy reports whether a batch currently holds the gate.
func (g *Gate) Busy() bool {
	return len(g.slot) == 1
}
