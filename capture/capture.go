/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package capture defines the records that move through the pipeline:
// the RawCapture a decoy emits, the CanonicalEvent the enricher produces
// from it, the per-connection Session bookkeeping, and the FileCapture
// metadata for quarantined uploads.
package capture

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

type Service string

const (
	ServiceSSH    Service = `ssh`
	ServiceHTTP   Service = `http`
	ServiceTelnet Service = `telnet`
	ServiceMQTT   Service = `mqtt`
	ServiceCamera Service = `camera`
)

type EventType string

// raw event types as emitted by decoy handlers
const (
	EventConnection  EventType = `connection`
	EventAuthAttempt EventType = `auth_attempt`
	EventCommand     EventType = `command`
	EventHTTPRequest EventType = `http_request`
	EventFileUpload  EventType = `file_upload`
	EventDisconnect  EventType = `disconnect`
	EventProbe       EventType = `probe`
	EventVideoAccess EventType = `video_access`
	EventError       EventType = `error`
)

var (
	ErrUnknownService   = errors.New("unknown service")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingSource    = errors.New("missing source address")
	ErrMissingTimestamp = errors.New("missing start timestamp")
)

// RawCapture is a single observation from a decoy handler. It is
// immutable once emitted; the enricher owns everything after that.
type RawCapture struct {
	CaptureID  string     `json:"capture_id"`
	Service    Service    `json:"service"`
	SourceIP   net.IP     `json:"source_ip"`
	SourcePort int        `json:"source_port"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	EventType  EventType  `json:"event_type"`
	Details    Details    `json:"details"`
}

// Details is the service specific body of a capture; unused fields stay
// empty and drop out of the JSON form.
type Details struct {
	Username      string            `json:"username,omitempty"`
	Password      string            `json:"password,omitempty"`
	Command       string            `json:"command,omitempty"`
	ClientVersion string            `json:"client_version,omitempty"`
	Method        string            `json:"method,omitempty"`
	Path          string            `json:"path,omitempty"`
	Query         string            `json:"query,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	BodyPreview   string            `json:"body_preview,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Files         []FileCapture     `json:"files,omitempty"`
	Probe         string            `json:"probe,omitempty"`
	ProbeBytes    int               `json:"probe_bytes,omitempty"`
	Duration      float64           `json:"duration,omitempty"`
	Authenticated *bool             `json:"authenticated,omitempty"`
	Transcript    []TranscriptLine  `json:"transcript,omitempty"`
	Cause         string            `json:"cause,omitempty"`
	BytesIn       int64             `json:"bytes_in,omitempty"`
	BytesOut      int64             `json:"bytes_out,omitempty"`
	Commands      int               `json:"commands,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// TranscriptLine is one entry in a session's ordered transcript.
type TranscriptLine struct {
	TS      time.Time `json:"ts"`
	Kind    EventType `json:"kind"`
	Summary string    `json:"summary"`
}

// FileCapture describes one quarantined upload. The stored bytes hash to
// SHA256 and are never rewritten after first store.
type FileCapture struct {
	SHA256           string `json:"sha256"`
	OriginalFilename string `json:"original_filename"`
	Size             int64  `json:"size"`
	ContentType      string `json:"content_type"`
	DetectedType     string `json:"detected_type,omitempty"`
	StoredPath       string `json:"stored_path"`
}

func (s Service) Valid() bool {
	switch s {
	case ServiceSSH, ServiceHTTP, ServiceTelnet, ServiceMQTT, ServiceCamera:
		return true
	}
	return false
}

func (et EventType) Valid() bool {
	switch et {
	case EventConnection, EventAuthAttempt, EventCommand, EventHTTPRequest,
		EventFileUpload, EventDisconnect, EventProbe, EventVideoAccess, EventError:
		return true
	}
	return false
}

// Validate checks the structural invariants every capture must satisfy
// before it may enter the pipeline.
func (rc *RawCapture) Validate() error {
	if !rc.Service.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownService, rc.Service)
	}
	if !rc.EventType.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownEventType, rc.EventType)
	}
	if len(rc.SourceIP) == 0 {
		return ErrMissingSource
	}
	if rc.StartedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// IDGen hands out capture ids unique for one emulator lifetime, formed
// as <service>-<n>.
type IDGen struct {
	svc Service
	n   atomic.Uint64
}

func NewIDGen(svc Service) *IDGen {
	return &IDGen{svc: svc}
}

func (g *IDGen) Next() string {
	return fmt.Sprintf("%s-%d", g.svc, g.n.Add(1))
}
