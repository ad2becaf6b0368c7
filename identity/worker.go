package identity

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/fanout"
	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/telemetry"
	"github.com/ashgrove-labs/prolink-core/track"
)

// queueDepth bounds how many pending signature requests the worker
// will hold before new enqueues start getting dropped.
const queueDepth = 20

type request struct {
	player    model.PlayerId
	artifacts *track.Artifacts
}

// Worker computes track signatures off the position engine's dispatch
// thread. One goroutine drains a bounded queue; a full queue drops the
// newest request with a logged warning rather than blocking the
// caller, trusting that the engine will re-request on the player's
// next metadata change.
type Worker struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics
	hub     *fanout.Hub[*Signature]

	queue chan request
	done  chan struct{}
	wg    sync.WaitGroup

	mu         sync.RWMutex
	signatures map[model.PlayerId]Signature
}

// New creates a Worker and starts its single background goroutine.
// Call Close to stop it.
func New(log zerolog.Logger, metrics *telemetry.Metrics) *Worker {
	w := &Worker{
		log:        log.With().Str("component", "identity").Logger(),
		metrics:    metrics,
		hub:        fanout.NewHub[*Signature](log, metrics),
		queue:      make(chan request, queueDepth),
		done:       make(chan struct{}),
		signatures: make(map[model.PlayerId]Signature),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Close stops the worker goroutine. Pending queued requests are
// discarded.
func (w *Worker) Close() {
	close(w.done)
	w.wg.Wait()
}

// Enqueue schedules a signature computation for player from artifacts.
// Non-blocking: if the queue is full the request is dropped and a
// warning is logged.
func (w *Worker) Enqueue(player model.PlayerId, artifacts *track.Artifacts) {
	select {
	case w.queue <- request{player: player, artifacts: artifacts}:
		w.metrics.SignatureQueueDepth(len(w.queue))
	default:
		w.metrics.SignatureQueueDropped()
		w.log.Warn().Int("player", int(player)).Msg("signature queue full, dropping request")
	}
}

// Clear removes player's cached signature and notifies subscribers
// with nil, e.g. on Lost(player) or when metadata artifacts vanish.
func (w *Worker) Clear(player model.PlayerId) {
	w.mu.Lock()
	delete(w.signatures, player)
	w.mu.Unlock()
	w.hub.Publish(player, nil)
}

// Current returns the cached signature for player, if one has been
// computed.
func (w *Worker) Current(player model.PlayerId) (Signature, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	sig, ok := w.signatures[player]
	return sig, ok
}

// Subscribe registers sub for signature-change notifications on
// player.
func (w *Worker) Subscribe(player model.PlayerId, sub fanout.Subscriber[*Signature]) fanout.Handle {
	return w.hub.Subscribe(player, sub)
}

// Unsubscribe removes a previously-registered subscription.
func (w *Worker) Unsubscribe(player model.PlayerId, h fanout.Handle) {
	w.hub.Unsubscribe(player, h)
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.queue:
			w.metrics.SignatureQueueDepth(len(w.queue))
			w.process(req)
		case <-w.done:
			return
		}
	}
}

func (w *Worker) process(req request) {
	sig, ok := Compute(req.artifacts)
	if !ok {
		w.Clear(req.player)
		return
	}

	w.mu.Lock()
	prev, existed := w.signatures[req.player]
	w.signatures[req.player] = sig
	w.mu.Unlock()

	if existed && prev == sig {
		return
	}
	s := sig
	w.hub.Publish(req.player, &s)
}
