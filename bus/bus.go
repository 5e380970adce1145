/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package bus fans canonical events out to registered sinks over
// bounded queues. Event ids are assigned at publish under a single
// lock, so every sink observes a strictly increasing id sequence.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const defaultQueueSize = 1024

// Sink is one registered consumer queue. Durable sinks get blocking
// delivery up to the bus enqueue timeout; best effort sinks lose the
// event the moment their queue is full.
type Sink struct {
	name    string
	durable bool
	ch      chan *capture.CanonicalEvent
	drops   atomic.Uint64
}

// C is the receive side of the sink queue. The bus closes it on
// shutdown, so consumers may simply range over it.
func (s *Sink) C() <-chan *capture.CanonicalEvent {
	return s.ch
}

func (s *Sink) Name() string {
	return s.name
}

// Drops reports how many events this sink has lost.
func (s *Sink) Drops() uint64 {
	return s.drops.Load()
}

type Bus struct {
	mtx            sync.Mutex
	seq            uint64
	published      atomic.Uint64
	sinks          []*Sink
	queueSize      int
	enqueueTimeout time.Duration
	lgr            *log.Logger
	closed         bool
}

func New(queueSize int, enqueueTimeout time.Duration, lgr *log.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		queueSize:      queueSize,
		enqueueTimeout: enqueueTimeout,
		lgr:            lgr,
	}
}

// Register adds a sink before or during operation. size <= 0 takes the
// bus default.
func (b *Bus) Register(name string, durable bool, size int) *Sink {
	if size <= 0 {
		size = b.queueSize
	}
	s := &Sink{
		name:    name,
		durable: durable,
		ch:      make(chan *capture.CanonicalEvent, size),
	}
	b.mtx.Lock()
	if !b.closed {
		b.sinks = append(b.sinks, s)
	} else {
		close(s.ch)
	}
	b.mtx.Unlock()
	return s
}

// Publish assigns the next event id and hands the event to every sink.
// Delivery is serialized under the bus lock; a full durable sink stalls
// the publisher up to the enqueue timeout before the event is dropped
// and counted, a full best effort sink drops immediately.
func (b *Bus) Publish(ev *capture.CanonicalEvent) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	b.seq++
	ev.EventID = b.seq
	b.published.Add(1)
	for _, s := range b.sinks {
		select {
		case s.ch <- ev:
			continue
		default:
		}
		if !s.durable {
			s.drops.Add(1)
			continue
		}
		if !b.blockingSend(s, ev) {
			s.drops.Add(1)
			b.lgr.Warn("durable sink dropped event",
				log.KV("sink", s.name),
				log.KV("eventid", ev.EventID))
		}
	}
}

func (b *Bus) blockingSend(s *Sink, ev *capture.CanonicalEvent) bool {
	if b.enqueueTimeout <= 0 {
		s.ch <- ev
		return true
	}
	tmr := time.NewTimer(b.enqueueTimeout)
	defer tmr.Stop()
	select {
	case s.ch <- ev:
		return true
	case <-tmr.C:
		return false
	}
}

// Published reports how many events have been assigned ids.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Dropped sums drops across all sinks.
func (b *Bus) Dropped() (total uint64) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, s := range b.sinks {
		total += s.drops.Load()
	}
	return
}

// DropsBySink reports the per sink loss counters.
func (b *Bus) DropsBySink() map[string]uint64 {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	mp := make(map[string]uint64, len(b.sinks))
	for _, s := range b.sinks {
		mp[s.name] = s.drops.Load()
	}
	return mp
}

// Close stops delivery and closes every sink channel so consumers
// drain and exit.
func (b *Bus) Close() {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.sinks {
		close(s.ch)
	}
}
