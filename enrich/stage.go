/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package enrich

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rootxtrem3/Cyber-Group-20/bus"
	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const defaultStageQueue = 1024

// Stage is the running enrichment step between the decoys and the
// bus: a bounded input queue and a worker that enriches and publishes.
// Decoys hold only the Emit face of it.
type Stage struct {
	enr      *Enricher
	b        *bus.Bus
	in       chan *capture.RawCapture
	timeout  time.Duration
	lgr      *log.Logger
	dropped  atomic.Uint64
	rejected atomic.Uint64
	mtx      sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
}

// NewStage spins up the enrichment worker. A timeout of zero makes
// Emit drop immediately when the queue is full.
func NewStage(enr *Enricher, b *bus.Bus, queue int, timeout time.Duration, lgr *log.Logger) *Stage {
	if queue <= 0 {
		queue = defaultStageQueue
	}
	s := &Stage{
		enr:     enr,
		b:       b,
		in:      make(chan *capture.RawCapture, queue),
		timeout: timeout,
		lgr:     lgr,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Emit hands a raw capture to the stage, waiting up to the configured
// timeout when the queue is full before dropping with a counted
// warning. It never stalls a decoy handler indefinitely.
func (s *Stage) Emit(rc *capture.RawCapture) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.in <- rc:
		return
	default:
	}
	if s.timeout > 0 {
		tmr := time.NewTimer(s.timeout)
		defer tmr.Stop()
		select {
		case s.in <- rc:
			return
		case <-tmr.C:
		}
	}
	s.dropped.Add(1)
	s.lgr.Warn("enrichment queue saturated, capture dropped",
		log.KV("service", rc.Service),
		log.KV("eventtype", rc.EventType))
}

func (s *Stage) worker() {
	defer s.wg.Done()
	for rc := range s.in {
		ev, err := s.enr.Process(rc)
		if err != nil {
			s.rejected.Add(1)
			s.lgr.Error("capture failed validation",
				log.KV("captureid", rc.CaptureID), log.KVErr(err))
			continue
		}
		s.b.Publish(ev)
	}
}

// Dropped reports captures lost to queue saturation.
func (s *Stage) Dropped() uint64 {
	return s.dropped.Load()
}

// Rejected reports captures that failed validation.
func (s *Stage) Rejected() uint64 {
	return s.rejected.Load()
}

// Close drains the queue and stops the worker. Emit calls racing the
// close are counted as drops, never panics.
func (s *Stage) Close() {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return
	}
	s.closed = true
	close(s.in)
	s.mtx.Unlock()
	s.wg.Wait()
}
