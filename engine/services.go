package engine

import (
	"context"
	"time"

	"github.com/ashgrove-labs/prolink-core/identity"
	"github.com/ashgrove-labs/prolink-core/registry"
	"github.com/ashgrove-labs/prolink-core/wire"
)

// sweepService periodically expires registry entries that have gone
// silent longer than the configured window. Supervised so a panic
// inside a Listener callback restarts the ticker instead of leaving
// presence tracking stuck.
type sweepService struct {
	reg      *registry.Registry
	clock    wire.Clock
	interval time.Duration
}

func (s *sweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reg.Sweep(s.clock.Now())
		}
	}
}

func (s *sweepService) String() string { return "registry-sweep" }

// identityWorkerService supervises the signature worker's lifetime.
// The worker's goroutine is already running by the time this service
// is added (identity.New starts it), so Serve's job is purely to tear
// it down cleanly on shutdown.
type identityWorkerService struct {
	worker *identity.Worker
}

func (s *identityWorkerService) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.worker.Close()
	return ctx.Err()
}

func (s *identityWorkerService) String() string { return "identity-worker" }
