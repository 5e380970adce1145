/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package hub tracks live event stream subscribers. Publish never
// blocks: a subscriber that cannot keep up loses events, and one that
// falls too far behind is evicted outright.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	defaultQueueSize = 256

	// a subscriber dropping this many events in a row is dead weight
	maxConsecutiveDrops = 64
	// a transport failing this many sends gets closed
	maxSendFailures = 3
)

// StatsFunc supplies the stats body pushed on connect and on the
// periodic stats_update message.
type StatsFunc func() interface{}

// Subscriber is one live consumer with its own bounded queue.
type Subscriber struct {
	id          uint64
	out         chan *capture.CanonicalEvent
	drops       atomic.Uint64
	consecutive int
	failures    int
	closed      bool
}

// ID returns the subscriber's hub-assigned id.
func (s *Subscriber) ID() uint64 {
	return s.id
}

// C is the subscriber's event queue; the hub closes it on eviction.
func (s *Subscriber) C() <-chan *capture.CanonicalEvent {
	return s.out
}

// Drops reports how many events this subscriber has lost.
func (s *Subscriber) Drops() uint64 {
	return s.drops.Load()
}

// Hub is the subscriber registry. All map and queue mutation happens
// under one mutex; Publish does only non-blocking sends under it.
type Hub struct {
	mtx       sync.Mutex
	subs      map[uint64]*Subscriber
	nextID    uint64
	queueSize int
	statsFn   StatsFunc
	lgr       *log.Logger
	published atomic.Uint64
	dropped   atomic.Uint64
	evicted   atomic.Uint64
	badMsgs   atomic.Uint64
	closed    bool
}

// New builds a hub. queueSize <= 0 takes the default; statsFn may be
// nil if no stats source is wired yet.
func New(queueSize int, statsFn StatsFunc, lgr *log.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		subs:      make(map[uint64]*Subscriber),
		queueSize: queueSize,
		statsFn:   statsFn,
		lgr:       lgr,
	}
}

// Register adds a subscriber and returns it. The caller owns draining
// the queue; Unregister (or eviction) closes it.
func (h *Hub) Register() *Subscriber {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.nextID++
	s := &Subscriber{
		id:  h.nextID,
		out: make(chan *capture.CanonicalEvent, h.queueSize),
	}
	if h.closed {
		s.closed = true
		close(s.out)
		return s
	}
	h.subs[s.id] = s
	return s
}

// Unregister removes a subscriber and closes its queue.
func (h *Hub) Unregister(s *Subscriber) {
	h.mtx.Lock()
	h.remove(s)
	h.mtx.Unlock()
}

// remove must be called with the hub lock held.
func (h *Hub) remove(s *Subscriber) {
	if s.closed {
		return
	}
	s.closed = true
	delete(h.subs, s.id)
	close(s.out)
}

// Publish enqueues the event to every live subscriber. Full queues
// drop; a subscriber that drops maxConsecutiveDrops in a row is
// evicted. Never blocks.
func (h *Hub) Publish(ev *capture.CanonicalEvent) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	for _, s := range h.subs {
		select {
		case s.out <- ev:
			s.consecutive = 0
			continue
		default:
		}
		s.drops.Add(1)
		h.dropped.Add(1)
		s.consecutive++
		if s.consecutive >= maxConsecutiveDrops {
			h.evicted.Add(1)
			h.lgr.Warn("evicting unresponsive subscriber",
				log.KV("subscriber", s.id),
				log.KV("drops", s.drops.Load()))
			h.remove(s)
		}
	}
}

// SendFailed records a failed transport write for a subscriber and
// reports whether it should be evicted. The hub evicts it as a side
// effect when the failure budget is spent.
func (h *Hub) SendFailed(s *Subscriber) (evicted bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	s.failures++
	if s.failures >= maxSendFailures {
		h.evicted.Add(1)
		h.remove(s)
		return true
	}
	return false
}

// Stats invokes the wired stats source, nil safe.
func (h *Hub) Stats() interface{} {
	if h.statsFn == nil {
		return nil
	}
	return h.statsFn()
}

// Subscribers reports the current live subscriber count.
func (h *Hub) Subscribers() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.subs)
}

// Published reports events accepted by the hub.
func (h *Hub) Published() uint64 {
	return h.published.Load()
}

// Dropped reports events lost across all subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Evicted reports subscribers removed for falling behind or failing.
func (h *Hub) Evicted() uint64 {
	return h.evicted.Load()
}

// Close evicts every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, s := range h.subs {
		h.remove(s)
	}
}
