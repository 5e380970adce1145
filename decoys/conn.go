/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package decoys

import (
	"net"
	"sync"
	"time"
)

// Conn wraps an attacker connection with the session budgets: an idle
// deadline refreshed on every read, an absolute session deadline, and
// a cap on bytes read. It also feeds the session byte counters.
type Conn struct {
	net.Conn
	sess     sessionCounters
	idle     time.Duration
	deadline time.Time
	maxBytes int64

	mtx   sync.Mutex
	viol  string
	nread int64
}

type sessionCounters interface {
	AddBytesIn(n int) int64
	AddBytesOut(n int) int64
}

func newConn(nc net.Conn, sess sessionCounters, lim Limits) *Conn {
	return &Conn{
		Conn:     nc,
		sess:     sess,
		idle:     lim.IdleTimeout,
		deadline: time.Now().Add(lim.MaxDuration),
		maxBytes: lim.MaxBytes,
	}
}

// Read refreshes the idle deadline, clamps it to the absolute session
// deadline, and enforces the byte budget.
func (c *Conn) Read(b []byte) (int, error) {
	c.mtx.Lock()
	if c.nread >= c.maxBytes {
		c.viol = CauseByteLimit
		c.mtx.Unlock()
		return 0, ErrByteLimit
	}
	c.mtx.Unlock()

	dl := time.Now().Add(c.idle)
	if dl.After(c.deadline) {
		dl = c.deadline
	}
	if err := c.Conn.SetReadDeadline(dl); err != nil {
		return 0, err
	}
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.sess.AddBytesIn(n)
		c.mtx.Lock()
		c.nread += int64(n)
		over := c.nread > c.maxBytes
		if over {
			c.viol = CauseByteLimit
		}
		c.mtx.Unlock()
		if over {
			return n, ErrByteLimit
		}
	}
	if err != nil && c.expired() {
		c.note(CauseMaxDuration)
	} else if err != nil && isTimeout(err) {
		c.note(CauseIdleTimeout)
	}
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	c.Conn.SetWriteDeadline(time.Now().Add(c.idle))
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.sess.AddBytesOut(n)
	}
	return n, err
}

func (c *Conn) expired() bool {
	return !time.Now().Before(c.deadline)
}

// note records the first budget violation only; later errors keep the
// original cause.
func (c *Conn) note(v string) {
	c.mtx.Lock()
	if c.viol == `` {
		c.viol = v
	}
	c.mtx.Unlock()
}

// violation reports which budget this connection blew, if any.
func (c *Conn) violation() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.viol
}

// BytesRead reports total bytes consumed off the wire.
func (c *Conn) BytesRead() int64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.nread
}
