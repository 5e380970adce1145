/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package decoys carries the machinery every protocol decoy shares:
// the accept loop, per-connection budget enforcement, session
// lifecycle events, and the emit path into the pipeline. The decoys
// themselves live in the subpackages.
package decoys

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const acceptFailLimit = 3

// termination causes recorded on session_closed
const (
	CauseClientClosed = `client_closed`
	CauseIdleTimeout  = `idle_timeout`
	CauseMaxDuration  = `max_duration`
	CauseByteLimit    = `byte_limit`
	CauseEventLimit   = `event_limit`
	CauseAuthLimit    = `auth_limit`
	CauseProtocol     = `protocol_violation`
	CauseShutdown     = `shutdown`
	CauseError        = `error`
)

var (
	ErrByteLimit  = errors.New("session byte budget exceeded")
	ErrEventLimit = errors.New("session event budget exceeded")
	ErrAuthLimit  = errors.New("auth attempt budget exceeded")
	ErrProtocol   = errors.New("protocol violation")
)

// Pipeline is the send-only face of the enrichment stage. Decoys hold
// this and nothing else of the pipeline; there are no back-pointers.
type Pipeline interface {
	Emit(rc *capture.RawCapture)
}

// Limits are the per-connection budgets every decoy enforces.
type Limits struct {
	IdleTimeout time.Duration
	MaxDuration time.Duration
	MaxBytes    int64
	MaxEvents   int
}

func (l Limits) withDefaults() Limits {
	if l.IdleTimeout <= 0 {
		l.IdleTimeout = time.Minute
	}
	if l.MaxDuration <= 0 {
		l.MaxDuration = 10 * time.Minute
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = 1024 * 1024
	}
	if l.MaxEvents <= 0 {
		l.MaxEvents = 1024
	}
	return l
}

// Base is the common core a decoy embeds: it owns the accept loop,
// connection registry, session bookkeeping, and shutdown draining.
type Base struct {
	svc      capture.Service
	pipe     Pipeline
	limits   Limits
	lgr      *log.Logger
	scoped   bool
	ids      *capture.IDGen
	wg       sync.WaitGroup
	active   atomic.Int64
	accepted atomic.Uint64
	shutdown atomic.Bool

	mtx     sync.Mutex
	connID  int
	closers map[int]net.Conn
}

// NewBase wires a decoy core. scoped decoys bracket every connection
// with connection_opened and session_closed events; unscoped ones only
// emit what their handler produces.
func NewBase(svc capture.Service, pipe Pipeline, limits Limits, lgr *log.Logger, scoped bool) *Base {
	return &Base{
		svc:     svc,
		pipe:    pipe,
		limits:  limits.withDefaults(),
		lgr:     lgr,
		scoped:  scoped,
		ids:     capture.NewIDGen(svc),
		closers: make(map[int]net.Conn),
	}
}

func (b *Base) Service() capture.Service {
	return b.svc
}

func (b *Base) Limits() Limits {
	return b.limits
}

func (b *Base) Logger() *log.Logger {
	return b.lgr
}

// Active reports connections currently being handled.
func (b *Base) Active() int64 {
	return b.active.Load()
}

// Accepted reports total connections accepted since start.
func (b *Base) Accepted() uint64 {
	return b.accepted.Load()
}

// Handler drives one connection. The returned error selects the
// session_closed cause; nil means the peer ended the conversation
// normally.
type Handler func(c *Conn, sess *capture.Session) error

// Serve accepts connections until the listener closes, handing each to
// the handler in its own goroutine. A handler can never take down the
// accept loop.
func (b *Base) Serve(lst net.Listener, handler Handler) error {
	var failCount int
	for {
		conn, err := lst.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			failCount++
			b.lgr.Warn("failed to accept connection",
				log.KV("service", b.svc), log.KVErr(err))
			if failCount > acceptFailLimit {
				return err
			}
			continue
		}
		failCount = 0
		b.accepted.Add(1)
		b.wg.Add(1)
		go b.handleConn(conn, handler)
	}
}

func (b *Base) handleConn(nc net.Conn, handler Handler) {
	defer b.wg.Done()
	id := b.addConn(nc)
	defer b.delConn(id)
	defer nc.Close()
	b.active.Add(1)
	defer b.active.Add(-1)

	ip, port := peerAddr(nc.RemoteAddr())
	if ip == nil {
		b.lgr.Warn("unparseable peer address",
			log.KV("service", b.svc), log.KV("address", nc.RemoteAddr()))
		return
	}
	sess := capture.NewSession(b.svc, ip, port, b.limits.MaxEvents)
	c := newConn(nc, sess, b.limits)

	b.lgr.Info("accepted connection",
		log.KV("service", b.svc),
		log.KV("session", sess.ID),
		log.KV("address", nc.RemoteAddr()))
	if b.scoped {
		b.emit(sess, capture.EventConnection, sess.OpenDetails())
	}

	err := handler(c, sess)
	cause := b.cause(c, err)
	if cause == CauseError {
		b.emit(sess, capture.EventError, capture.Details{Error: err.Error()})
	}
	if b.scoped {
		b.emit(sess, capture.EventDisconnect, sess.CloseDetails(cause))
	}
	b.lgr.Info("session closed",
		log.KV("service", b.svc),
		log.KV("session", sess.ID),
		log.KV("cause", cause),
		log.KV("bytesin", sess.BytesIn()),
		log.KV("bytesout", sess.BytesOut()))
}

// cause maps the handler's exit error onto the recorded termination
// cause. Shutdown wins over everything: a force-closed socket shows up
// here as a read error.
func (b *Base) cause(c *Conn, err error) string {
	if b.shutdown.Load() {
		return CauseShutdown
	}
	if v := c.violation(); v != `` {
		return v
	}
	if err == nil {
		return CauseClientClosed
	}
	switch {
	case errors.Is(err, io.EOF):
		return CauseClientClosed
	case errors.Is(err, ErrByteLimit):
		return CauseByteLimit
	case errors.Is(err, ErrEventLimit):
		return CauseEventLimit
	case errors.Is(err, ErrAuthLimit):
		return CauseAuthLimit
	case errors.Is(err, ErrProtocol):
		return CauseProtocol
	case isTimeout(err):
		return CauseIdleTimeout
	case isPeerReset(err):
		return CauseClientClosed
	}
	return CauseError
}

// emit builds and sends a lifecycle capture; these bypass the event
// budget so every session always gets its open and close records.
func (b *Base) emit(sess *capture.Session, et capture.EventType, d capture.Details) {
	b.pipe.Emit(&capture.RawCapture{
		CaptureID:  b.ids.Next(),
		Service:    b.svc,
		SourceIP:   sess.SourceIP,
		SourcePort: sess.SourcePort,
		StartedAt:  time.Now(),
		SessionID:  sess.ID,
		EventType:  et,
		Details:    d,
	})
}

// EmitTracked records a mid-session observation: it lands in the
// session transcript, counts against the event budget, and flows into
// the pipeline. Returns ErrEventLimit once the budget is spent.
func (b *Base) EmitTracked(sess *capture.Session, et capture.EventType, d capture.Details, summary string) error {
	if !sess.Track(et, summary) {
		return ErrEventLimit
	}
	b.emit(sess, et, d)
	return nil
}

// Emit records an observation with no session attached; the camera and
// MQTT decoys use this for request-shaped traffic.
func (b *Base) Emit(ip net.IP, port int, et capture.EventType, d capture.Details) {
	b.pipe.Emit(&capture.RawCapture{
		CaptureID:  b.ids.Next(),
		Service:    b.svc,
		SourceIP:   ip,
		SourcePort: port,
		StartedAt:  time.Now(),
		EventType:  et,
		Details:    d,
	})
}

// NextCaptureID exposes the decoy's capture id stream for handlers
// that build raw captures themselves.
func (b *Base) NextCaptureID() string {
	return b.ids.Next()
}

// Pipe returns the wired pipeline.
func (b *Base) Pipe() Pipeline {
	return b.pipe
}

// BeginShutdown marks the decoy as draining; sessions that end from
// here on record cause=shutdown.
func (b *Base) BeginShutdown() {
	b.shutdown.Store(true)
}

// Drain waits up to grace for in-flight handlers to finish, then
// force-closes whatever is left and waits for the stragglers to
// unwind. The caller must have closed the listener already.
func (b *Base) Drain(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-time.After(grace):
	}
	b.mtx.Lock()
	for _, c := range b.closers {
		c.Close()
	}
	b.mtx.Unlock()
	<-done
}

func (b *Base) addConn(c net.Conn) int {
	b.mtx.Lock()
	b.connID++
	id := b.connID
	b.closers[id] = c
	b.mtx.Unlock()
	return id
}

func (b *Base) delConn(id int) {
	b.mtx.Lock()
	delete(b.closers, id)
	b.mtx.Unlock()
}

func peerAddr(addr net.Addr) (net.IP, int) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, 0
	}
	port, _ := strconv.Atoi(portStr)
	return net.ParseIP(host), port
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isPeerReset(err error) bool {
	var oe *net.OpError
	return errors.As(err, &oe)
}
