/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package decoys

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

// memPipe collects emitted captures for assertions.
type memPipe struct {
	mtx sync.Mutex
	rcs []*capture.RawCapture
}

func (p *memPipe) Emit(rc *capture.RawCapture) {
	p.mtx.Lock()
	p.rcs = append(p.rcs, rc)
	p.mtx.Unlock()
}

func (p *memPipe) captures() []*capture.RawCapture {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return append([]*capture.RawCapture(nil), p.rcs...)
}

func (p *memPipe) waitFor(t *testing.T, et capture.EventType) *capture.RawCapture {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, rc := range p.captures() {
			if rc.EventType == et {
				return rc
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s capture emitted", et)
	return nil
}

func serveBase(t *testing.T, b *Base, handler Handler) net.Addr {
	t.Helper()
	lst, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		lst.Close()
	})
	go b.Serve(lst, handler)
	return lst.Addr()
}

func TestSessionLifecycle(t *testing.T) {
	pipe := &memPipe{}
	b := NewBase(capture.ServiceTelnet, pipe, Limits{}, log.NewDiscardLogger(), true)
	addr := serveBase(t, b, func(c *Conn, sess *capture.Session) error {
		buf := make([]byte, 128)
		for {
			if _, err := c.Read(buf); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	})

	conn, err := net.Dial(`tcp`, addr.String())
	if err != nil {
		t.Fatal(err)
	}
	conn.Write([]byte("hello\r\n"))
	conn.Close()

	closed := pipe.waitFor(t, capture.EventDisconnect)
	if closed.Details.Cause != CauseClientClosed {
		t.Fatal("cause", closed.Details.Cause)
	}
	var opened, ended int
	for _, rc := range pipe.captures() {
		switch rc.EventType {
		case capture.EventConnection:
			opened++
			if rc.SessionID != closed.SessionID {
				t.Fatal("session id mismatch")
			}
		case capture.EventDisconnect:
			ended++
		}
	}
	if opened != 1 || ended != 1 {
		t.Fatalf("lifecycle events opened=%d closed=%d", opened, ended)
	}
	if closed.Details.BytesIn != 7 {
		t.Fatal("bytes in", closed.Details.BytesIn)
	}
}

func TestByteBudget(t *testing.T) {
	pipe := &memPipe{}
	b := NewBase(capture.ServiceTelnet, pipe, Limits{MaxBytes: 16}, log.NewDiscardLogger(), true)
	addr := serveBase(t, b, func(c *Conn, sess *capture.Session) error {
		buf := make([]byte, 128)
		for {
			if _, err := c.Read(buf); err != nil {
				return err
			}
		}
	})

	conn, err := net.Dial(`tcp`, addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write(make([]byte, 64))

	closed := pipe.waitFor(t, capture.EventDisconnect)
	if closed.Details.Cause != CauseByteLimit {
		t.Fatal("cause", closed.Details.Cause)
	}
}

func TestIdleTimeout(t *testing.T) {
	pipe := &memPipe{}
	b := NewBase(capture.ServiceTelnet, pipe, Limits{IdleTimeout: 50 * time.Millisecond}, log.NewDiscardLogger(), true)
	addr := serveBase(t, b, func(c *Conn, sess *capture.Session) error {
		buf := make([]byte, 128)
		_, err := c.Read(buf)
		return err
	})

	conn, err := net.Dial(`tcp`, addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	// send nothing; the idle deadline must fire

	closed := pipe.waitFor(t, capture.EventDisconnect)
	if closed.Details.Cause != CauseIdleTimeout {
		t.Fatal("cause", closed.Details.Cause)
	}
}

func TestEventBudget(t *testing.T) {
	pipe := &memPipe{}
	b := NewBase(capture.ServiceTelnet, pipe, Limits{MaxEvents: 3}, log.NewDiscardLogger(), true)
	addr := serveBase(t, b, func(c *Conn, sess *capture.Session) error {
		for i := 0; ; i++ {
			if err := b.EmitTracked(sess, capture.EventCommand,
				capture.Details{Command: `ls`}, `ls`); err != nil {
				return err
			}
		}
	})

	conn, err := net.Dial(`tcp`, addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	closed := pipe.waitFor(t, capture.EventDisconnect)
	if closed.Details.Cause != CauseEventLimit {
		t.Fatal("cause", closed.Details.Cause)
	}
	var cmds int
	for _, rc := range pipe.captures() {
		if rc.EventType == capture.EventCommand {
			cmds++
		}
	}
	if cmds != 3 {
		t.Fatal("commands emitted past budget", cmds)
	}
}

func TestShutdownCause(t *testing.T) {
	pipe := &memPipe{}
	b := NewBase(capture.ServiceTelnet, pipe, Limits{}, log.NewDiscardLogger(), true)
	lst, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		t.Fatal(err)
	}
	go b.Serve(lst, func(c *Conn, sess *capture.Session) error {
		buf := make([]byte, 128)
		for {
			if _, err := c.Read(buf); err != nil {
				return err
			}
		}
	})

	conn, err := net.Dial(`tcp`, lst.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	pipe.waitFor(t, capture.EventConnection)

	lst.Close()
	b.BeginShutdown()
	b.Drain(50 * time.Millisecond)

	closed := pipe.waitFor(t, capture.EventDisconnect)
	if closed.Details.Cause != CauseShutdown {
		t.Fatal("cause", closed.Details.Cause)
	}
}
