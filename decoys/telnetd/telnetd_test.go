/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package telnetd

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

type memPipe struct {
	mtx sync.Mutex
	rcs []*capture.RawCapture
}

func (p *memPipe) Emit(rc *capture.RawCapture) {
	p.mtx.Lock()
	p.rcs = append(p.rcs, rc)
	p.mtx.Unlock()
}

func (p *memPipe) byType(et capture.EventType) (r []*capture.RawCapture) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for _, rc := range p.rcs {
		if rc.EventType == et {
			r = append(r, rc)
		}
	}
	return
}

func (p *memPipe) waitClosed(t *testing.T) *capture.RawCapture {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rcs := p.byType(capture.EventDisconnect); len(rcs) > 0 {
			return rcs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never closed")
	return nil
}

func startTelnet(t *testing.T) (*memPipe, string) {
	t.Helper()
	pipe := &memPipe{}
	tn := New(pipe, decoys.Limits{}, log.NewDiscardLogger())
	lst, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		lst.Close()
	})
	go tn.Serve(lst)
	return pipe, lst.Addr().String()
}

func TestLoginNeverGranted(t *testing.T) {
	pipe, addr := startTelnet(t)
	conn, err := net.Dial(`tcp`, addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	bio := bufio.NewReader(conn)

	expect := func(marker string) string {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var sb strings.Builder
		buf := make([]byte, 1)
		for !strings.Contains(sb.String(), marker) {
			if _, err := bio.Read(buf); err != nil {
				t.Fatalf("waiting for %q: %v (got %q)", marker, err, sb.String())
			}
			sb.Write(buf)
		}
		return sb.String()
	}

	expect(loginPrompt)
	conn.Write([]byte("root\r\n"))
	expect(passPrompt)
	conn.Write([]byte("toor\r\n"))
	out := expect(loginPrompt) // second round proves rejection
	if !strings.Contains(out, "Login incorrect") {
		t.Fatal("no rejection line in", out)
	}

	conn.Write([]byte("admin\r\n"))
	expect(passPrompt)
	conn.Write([]byte("admin\r\n"))
	conn.Close()

	closed := pipe.waitClosed(t)
	if closed.Details.Authenticated == nil || *closed.Details.Authenticated {
		t.Fatal("telnet session must never authenticate")
	}
	attempts := pipe.byType(capture.EventAuthAttempt)
	if len(attempts) != 2 {
		t.Fatal("auth attempts", len(attempts))
	}
	if attempts[0].Details.Username != `root` || attempts[0].Details.Password != `toor` {
		t.Fatal("first attempt", attempts[0].Details)
	}
	if attempts[1].Details.Username != `admin` || attempts[1].Details.Password != `admin` {
		t.Fatal("second attempt", attempts[1].Details)
	}
}

func TestIACStripped(t *testing.T) {
	pipe, addr := startTelnet(t)
	conn, err := net.Dial(`tcp`, addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// IAC DO ECHO interleaved with the username
	conn.Write([]byte{0xff, 0xfd, 0x01})
	conn.Write([]byte("gu"))
	conn.Write([]byte{0xff, 0xfb, 0x03})
	conn.Write([]byte("est\r\n"))
	conn.Write([]byte("guest\r\n"))
	conn.Close()

	pipe.waitClosed(t)
	attempts := pipe.byType(capture.EventAuthAttempt)
	if len(attempts) != 1 {
		t.Fatal("attempts", len(attempts))
	}
	if attempts[0].Details.Username != `guest` {
		t.Fatalf("IAC bytes leaked into username %q", attempts[0].Details.Username)
	}
}

func TestThreeAttemptsThenClose(t *testing.T) {
	pipe, addr := startTelnet(t)
	conn, err := net.Dial(`tcp`, addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	for i := 0; i < maxAttempts; i++ {
		conn.Write([]byte("user\r\npass\r\n"))
	}
	closed := pipe.waitClosed(t)
	if closed.Details.Cause != decoys.CauseClientClosed {
		t.Fatal("cause", closed.Details.Cause)
	}
	if got := len(pipe.byType(capture.EventAuthAttempt)); got != maxAttempts {
		t.Fatal("attempts", got)
	}
}
