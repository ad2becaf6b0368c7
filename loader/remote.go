package loader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/ashgrove-labs/prolink-core/model"
)

// RemoteClient talks to one player's dbserver menu protocol. A real
// implementation opens the vendor's binary menu protocol over TCP;
// this core only depends on the interface so it can be faked in tests.
type RemoteClient interface {
	// Query fetches one artifact kind for key from the owning player.
	// Implementations return model.ErrTransportFailure on socket/framing
	// faults so the breaker trips, and model.ErrStillAnalyzing when the
	// remote replies empty for an UNANALYZED track.
	Query(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error)

	// Close releases the underlying connection.
	Close() error
}

// breakerClient wraps a RemoteClient with a per-player circuit
// breaker so a flaky dbserver connection cannot wedge every caller
// behind a string of slow timeouts: a tripped breaker surfaces as
// ErrTransportFailure immediately instead of queuing behind retries.
type breakerClient struct {
	inner   RemoteClient
	breaker *gobreaker.CircuitBreaker[any]
	log     zerolog.Logger
}

// BreakerSettings configures a per-player circuit breaker.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	FailureThreshold uint32
}

// DefaultBreakerSettings returns conservative production defaults,
// named for the player the breaker guards.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{Name: name, MaxRequests: 3, FailureThreshold: 5}
}

func newBreakerClient(inner RemoteClient, settings BreakerSettings, log zerolog.Logger) *breakerClient {
	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("component", "loader").Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
	return &breakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](st),
		log:     log,
	}
}

func (c *breakerClient) query(ctx context.Context, key model.TrackKey, kind model.ArtifactKind) (any, error) {
	v, err := c.breaker.Execute(func() (any, error) {
		return c.inner.Query(ctx, key, kind)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: breaker %s", model.ErrTransportFailure, c.breaker.Name())
		}
		return nil, err
	}
	return v, nil
}

func (c *breakerClient) state() gobreaker.State {
	return c.breaker.State()
}
