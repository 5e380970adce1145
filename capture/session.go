/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package capture

import (
	"net"
	"time"

	"github.com/google/uuid"
)

const (
	maxTranscriptLines = 256
	maxSummaryLen      = 256
)

// Session tracks one attacker connection. A session is owned by exactly
// one handler goroutine, so nothing here locks; counters are read by
// other goroutines only after the session is closed and published.
type Session struct {
	ID            string
	Service       Service
	SourceIP      net.IP
	SourcePort    int
	Started       time.Time
	Authenticated bool

	bytesIn   int64
	bytesOut  int64
	commands  int
	events    int
	maxEvents int
	truncated bool
	lines     []TranscriptLine
}

func NewSession(svc Service, ip net.IP, port, maxEvents int) *Session {
	return &Session{
		ID:         uuid.New().String(),
		Service:    svc,
		SourceIP:   ip,
		SourcePort: port,
		Started:    time.Now(),
		maxEvents:  maxEvents,
	}
}

// Track records a mid-session event in the transcript and reports
// whether the per-session event budget still allows emitting it.
// Lifecycle events do not go through Track; they are always emitted.
func (s *Session) Track(kind EventType, summary string) bool {
	s.events++
	if len(s.lines) < maxTranscriptLines {
		s.lines = append(s.lines, TranscriptLine{
			TS:      time.Now(),
			Kind:    kind,
			Summary: trimSummary(summary),
		})
	} else {
		s.truncated = true
	}
	if kind == EventCommand {
		s.commands++
	}
	return s.maxEvents <= 0 || s.events <= s.maxEvents
}

func (s *Session) AddBytesIn(n int) int64 {
	s.bytesIn += int64(n)
	return s.bytesIn
}

func (s *Session) AddBytesOut(n int) int64 {
	s.bytesOut += int64(n)
	return s.bytesOut
}

func (s *Session) BytesIn() int64  { return s.bytesIn }
func (s *Session) BytesOut() int64 { return s.bytesOut }
func (s *Session) Commands() int   { return s.commands }
func (s *Session) Events() int     { return s.events }

// OpenDetails builds the payload for the connection_opened capture.
func (s *Session) OpenDetails() Details {
	return Details{}
}

// CloseDetails builds the payload for the session_closed capture. The
// cause names why the session ended: client_closed, idle_timeout,
// max_duration, byte_limit, event_limit, shutdown or error.
func (s *Session) CloseDetails(cause string) Details {
	auth := s.Authenticated
	d := Details{
		Duration:      time.Since(s.Started).Seconds(),
		Authenticated: &auth,
		Transcript:    s.lines,
		Cause:         cause,
		BytesIn:       s.bytesIn,
		BytesOut:      s.bytesOut,
		Commands:      s.commands,
	}
	if s.truncated {
		d.Error = `transcript truncated`
	}
	return d
}

func trimSummary(v string) string {
	if len(v) > maxSummaryLen {
		return v[:maxSummaryLen]
	}
	return v
}
