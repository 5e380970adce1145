/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type memWriter struct {
	bytes.Buffer
}

func (mw *memWriter) Close() error {
	return nil
}

func TestNewFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), `test.log`)
	lgr, err := NewFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Criticalf("test: %d", 99); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
	bts, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bts), `test: 99`) {
		t.Fatalf("missing log line: %q", string(bts))
	}

	//reopen and append, both lines must survive
	if lgr, err = NewFile(p); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Errorf("second"); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
	if bts, err = os.ReadFile(p); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bts), `test: 99`) || !strings.Contains(string(bts), `second`) {
		t.Fatalf("append lost a line: %q", string(bts))
	}
}

func TestLevelGate(t *testing.T) {
	mw := &memWriter{}
	lgr := New(mw)
	if err := lgr.SetLevel(ERROR); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Info("should not appear"); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Error("should appear"); err != nil {
		t.Fatal(err)
	}
	out := mw.String()
	if strings.Contains(out, `should not appear`) {
		t.Fatalf("INFO leaked through ERROR gate: %q", out)
	}
	if !strings.Contains(out, `should appear`) {
		t.Fatalf("ERROR missing: %q", out)
	}
}

func TestStructuredOutput(t *testing.T) {
	mw := &memWriter{}
	lgr := New(mw)
	if err := lgr.Info("session done", KV("service", "ssh"), KV("count", 3)); err != nil {
		t.Fatal(err)
	}
	out := mw.String()
	if !strings.Contains(out, DefaultID) {
		t.Fatalf("missing SD id: %q", out)
	}
	if !strings.Contains(out, `service="ssh"`) {
		t.Fatalf("missing kv: %q", out)
	}
	if !strings.Contains(out, `count="3"`) {
		t.Fatalf("missing converted kv: %q", out)
	}
}

func TestKVLogger(t *testing.T) {
	mw := &memWriter{}
	kvl := NewLoggerWithKV(New(mw), KV("service", "telnet"))
	kvl.AddKV(KV("session", "abc"))
	if err := kvl.Warn("probe", KV("bytes", 12)); err != nil {
		t.Fatal(err)
	}
	out := mw.String()
	for _, want := range []string{`service="telnet"`, `session="abc"`, `bytes="12"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	for _, v := range []string{`OFF`, `DEBUG`, `INFO`, `WARN`, `ERROR`, `CRITICAL`, `FATAL`, `info`, `Error`} {
		if _, err := LevelFromString(v); err != nil {
			t.Fatalf("%v: %v", v, err)
		}
	}
	if _, err := LevelFromString(`chatty`); err != ErrInvalidLevel {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestClosedLogger(t *testing.T) {
	lgr := NewDiscardLogger()
	if err := lgr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := lgr.SetLevel(DEBUG); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if err := lgr.AddWriter(&memWriter{}); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if lvl := lgr.GetLevel(); lvl != OFF {
		t.Fatalf("closed logger level %v != OFF", lvl)
	}
}

func TestWriterInterface(t *testing.T) {
	mw := &memWriter{}
	lgr := New(mw)
	n, err := lgr.Write([]byte("raw passthrough\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 16 {
		t.Fatalf("short write: %d", n)
	}
	if !strings.Contains(mw.String(), "raw passthrough") {
		t.Fatal("raw write missing")
	}
}

func TestKVValues(t *testing.T) {
	if r := KV("name", "value"); r.Name != `name` || r.Value != `value` {
		t.Fatalf("bad string KV: %+v", r)
	}
	if r := KV("port", 2222); r.Value != `2222` {
		t.Fatalf("bad int KV: %+v", r)
	}
	if r := KVErr(ErrNotOpen); r.Name != `error` || !strings.Contains(r.Value, "not open") {
		t.Fatalf("bad err KV: %+v", r)
	}
}
