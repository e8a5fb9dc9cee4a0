package app

import (
	"context"
	"sync"

	"flag-quiz-service/internal/domain"
)

// ReadinessGate is a one-shot barrier: it leaves pending exactly once, for ready
// or failed, and every waiter observes the same outcome.
type ReadinessGate struct {
	start sync.Once
	done  chan struct{}

	mu    sync.RWMutex
	state domain.ReadinessState
	err   error
}

func NewReadinessGate() *ReadinessGate {
	return &ReadinessGate{
		done:  make(chan struct{}),
		state: domain.ReadinessPending,
	}
}

// Start runs load in the background and records its outcome. Only the first call
// has any effect.
func (g *ReadinessGate) Start(ctx context.Context, load func(context.Context) error) {
	g.start.Do(func() {
		go func() {
			g.finish(load(ctx))
		}()
	})
}

func (g *ReadinessGate) finish(err error) {
	g.mu.Lock()
	if err != nil {
		g.state, g.err = domain.ReadinessFailed, err
	} else {
		g.state = domain.ReadinessReady
	}
	g.mu.Unlock()
	close(g.done)
}

// Wait blocks until the gate leaves pending or ctx is done. It returns the load
// error to every caller when the gate failed.
func (g *ReadinessGate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		g.mu.RLock()
		defer g.mu.RUnlock()
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the gate has transitioned.
func (g *ReadinessGate) Done() <-chan struct{} {
	return g.done
}

// State returns the current state and, when failed, the load error.
func (g *ReadinessGate) State() (domain.ReadinessState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.err
}
