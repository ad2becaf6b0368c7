package fanout

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashgrove-labs/prolink-core/model"
	"github.com/ashgrove-labs/prolink-core/telemetry"
)

// Handle identifies one active subscription, returned by Subscribe and
// used to Unsubscribe later.
type Handle string

// Subscriber receives delivered values. Implementations should be
// comparable (typically a pointer) so that a repeated Subscribe call
// with the same Subscriber is recognized as idempotent.
type Subscriber[T any] interface {
	OnEvent(T)
}

// mailbox serializes delivery to one subscriber on its own goroutine.
// It holds at most one pending value: a producer that outruns the
// subscriber overwrites the pending value rather than blocking, since
// the engine thread must never block on a subscriber. At most one
// delivery is in flight per subscriber at a time; that is not a
// promise that every intermediate value is seen.
type mailbox[T any] struct {
	mu      sync.Mutex
	pending T
	has     bool
	wake    chan struct{}
	done    chan struct{}
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

func newMailbox[T any](sub Subscriber[T], log zerolog.Logger, metrics *telemetry.Metrics) *mailbox[T] {
	m := &mailbox[T]{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     log,
		metrics: metrics,
	}
	go m.run(sub)
	return m
}

func (m *mailbox[T]) run(sub Subscriber[T]) {
	for {
		select {
		case <-m.wake:
			m.mu.Lock()
			v := m.pending
			m.has = false
			m.mu.Unlock()
			m.deliver(sub, v)
		case <-m.done:
			// push() happens-before stop() for every caller (both are
			// called in sequence from the same goroutine), so a wake
			// that raced this select and lost is still sitting in the
			// channel buffer here. Drain it before returning so a
			// terminal push is never silently dropped.
			select {
			case <-m.wake:
				m.mu.Lock()
				v := m.pending
				m.has = false
				m.mu.Unlock()
				m.deliver(sub, v)
			default:
			}
			return
		}
	}
}

func (m *mailbox[T]) deliver(sub Subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.FanoutSubscriberFault()
			m.log.Error().Interface("panic", r).Msg("subscriber fault, contained")
		}
	}()
	sub.OnEvent(v)
	m.metrics.FanoutDelivered()
}

func (m *mailbox[T]) push(v T) {
	m.mu.Lock()
	m.pending = v
	m.has = true
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) stop() {
	close(m.done)
}

// Hub fans out values of type T to Subscribers registered per
// PlayerId.
type Hub[T any] struct {
	mu       sync.RWMutex
	boxes    map[model.PlayerId]map[Handle]*mailbox[T]
	identity map[model.PlayerId]map[Subscriber[T]]Handle
	log      zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewHub creates an empty Hub. metrics may be nil.
func NewHub[T any](log zerolog.Logger, metrics *telemetry.Metrics) *Hub[T] {
	return &Hub[T]{
		boxes:    make(map[model.PlayerId]map[Handle]*mailbox[T]),
		identity: make(map[model.PlayerId]map[Subscriber[T]]Handle),
		log:      log,
		metrics:  metrics,
	}
}

// Subscribe registers sub for player's events. Subscribing the same
// sub to the same player again returns the existing Handle instead of
// creating a second subscription.
func (h *Hub[T]) Subscribe(player model.PlayerId, sub Subscriber[T]) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if byId, ok := h.identity[player]; ok {
		if existing, ok := byId[sub]; ok {
			return existing
		}
	}

	id := Handle(uuid.New().String())
	box := newMailbox[T](sub, h.log, h.metrics)

	if h.boxes[player] == nil {
		h.boxes[player] = make(map[Handle]*mailbox[T])
	}
	h.boxes[player][id] = box

	if h.identity[player] == nil {
		h.identity[player] = make(map[Subscriber[T]]Handle)
	}
	h.identity[player][sub] = id

	return id
}

// Unsubscribe removes a previously-registered subscription.
func (h *Hub[T]) Unsubscribe(player model.PlayerId, id Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.boxes[player]
	if !ok {
		return
	}
	box, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	box.stop()

	for sub, handle := range h.identity[player] {
		if handle == id {
			delete(h.identity[player], sub)
			break
		}
	}
}

// UnsubscribeAll removes every subscription for player, e.g. on
// Lost(player). Each subscriber receives one final delivery of
// terminal before its mailbox is torn down.
func (h *Hub[T]) UnsubscribeAll(player model.PlayerId, terminal T) {
	h.mu.Lock()
	subs := h.boxes[player]
	delete(h.boxes, player)
	delete(h.identity, player)
	h.mu.Unlock()

	for _, box := range subs {
		box.push(terminal)
		box.stop()
	}
}

// Publish delivers v to every subscriber of player, tolerating
// concurrent Subscribe/Unsubscribe by snapshotting the set first.
func (h *Hub[T]) Publish(player model.PlayerId, v T) {
	h.mu.RLock()
	subs := h.boxes[player]
	snapshot := make([]*mailbox[T], 0, len(subs))
	for _, box := range subs {
		snapshot = append(snapshot, box)
	}
	h.mu.RUnlock()

	for _, box := range snapshot {
		box.push(v)
	}
}

// Count returns the number of active subscriptions for player.
func (h *Hub[T]) Count(player model.PlayerId) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boxes[player])
}
