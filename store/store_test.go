/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), `events.db`), log.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mkEvent(id uint64, svc capture.Service, ip string, ts time.Time) *capture.CanonicalEvent {
	return &capture.CanonicalEvent{
		EventID:    id,
		Timestamp:  ts,
		Service:    svc,
		EventType:  capture.EventAuthAttempt,
		SessionID:  `11111111-2222-3333-4444-555555555555`,
		SourceIP:   net.ParseIP(ip),
		SourcePort: 55000,
		RiskScore:  50,
		RiskLevel:  capture.RiskMedium,
		Payload: capture.Details{
			Username: `root`,
			Password: `root`,
		},
	}
}

func TestMigrationIdempotent(t *testing.T) {
	pth := filepath.Join(t.TempDir(), `events.db`)
	lgr := log.NewDiscardLogger()
	st, err := Open(pth, lgr)
	if err != nil {
		t.Fatal(err)
	}
	if err = st.AddEvent(mkEvent(1, capture.ServiceSSH, `203.0.113.1`, time.Now())); err != nil {
		t.Fatal(err)
	}
	st.Close()

	// reopen over existing schema and data
	st, err = Open(pth, lgr)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	_, total, err := st.ListEvents(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatal("total", total)
	}
}

func TestListEventsFilterAndPaging(t *testing.T) {
	st := openStore(t)
	base := time.Now().UTC().Add(-time.Hour)
	for i := uint64(1); i <= 10; i++ {
		svc := capture.ServiceSSH
		if i%2 == 0 {
			svc = capture.ServiceHTTP
		}
		if err := st.AddEvent(mkEvent(i, svc, `203.0.113.9`, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()

	evs, total, err := st.ListEvents(ctx, Filter{Service: `ssh`})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(evs) != 5 {
		t.Fatal("ssh events", total, len(evs))
	}
	// newest first by event id
	if evs[0].EventID != 9 || evs[4].EventID != 1 {
		t.Fatal("ordering", evs[0].EventID, evs[4].EventID)
	}

	evs, total, err = st.ListEvents(ctx, Filter{Limit: 3, Offset: 3})
	if err != nil {
		t.Fatal(err)
	}
	if total != 10 || len(evs) != 3 || evs[0].EventID != 7 {
		t.Fatal("paging", total, len(evs))
	}

	evs, _, err = st.ListEvents(ctx, Filter{
		Since: base.Add(8*time.Minute - time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 3 {
		t.Fatal("since window", len(evs))
	}

	if _, _, err = st.ListEvents(ctx, Filter{Limit: -1}); err != ErrBadLimit {
		t.Fatal("expected ErrBadLimit, got", err)
	}
	if _, _, err = st.ListEvents(ctx, Filter{Offset: -1}); err != ErrBadOffset {
		t.Fatal("expected ErrBadOffset, got", err)
	}
}

func TestSchemaContract(t *testing.T) {
	st := openStore(t)
	in := mkEvent(3, capture.ServiceSSH, `198.51.100.7`, time.Now().UTC())
	in.Geo = &capture.GeoInfo{
		Country:     `Netherlands`,
		CountryCode: `NL`,
		City:        `Amsterdam`,
		Latitude:    52.37,
		Longitude:   4.89,
	}
	if err := st.AddEvent(in); err != nil {
		t.Fatal(err)
	}

	var country, cc, city string
	var lat, lon float64
	if err := st.db.QueryRow(
		`SELECT country, country_code, city, latitude, longitude FROM events WHERE event_id = 3`).
		Scan(&country, &cc, &city, &lat, &lon); err != nil {
		t.Fatal(err)
	}
	if country != `Netherlands` || cc != `NL` || city != `Amsterdam` || lat != 52.37 || lon != 4.89 {
		t.Fatal("geo columns", country, cc, city, lat, lon)
	}

	rows, err := st.db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'events'`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	got := make(map[string]bool)
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		got[name] = true
	}
	if err = rows.Err(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`idx_events_ts`, `idx_events_source`, `idx_events_type`,
		`idx_events_risk`, `idx_events_ts_source`,
	} {
		if !got[want] {
			t.Fatal("missing index", want)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	st := openStore(t)
	in := mkEvent(7, capture.ServiceTelnet, `198.51.100.2`, time.Now().UTC().Truncate(time.Microsecond))
	in.Geo = &capture.GeoInfo{Country: `Netherlands`, CountryCode: `NL`}
	if err := st.AddEvent(in); err != nil {
		t.Fatal(err)
	}
	evs, _, err := st.ListEvents(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 {
		t.Fatal("count", len(evs))
	}
	out := evs[0]
	if out.EventID != 7 || out.Service != capture.ServiceTelnet ||
		out.Payload.Username != `root` || out.Geo.CountryCode != `NL` {
		t.Fatalf("round trip mismatch %+v", out)
	}
	if !out.SourceIP.Equal(in.SourceIP) {
		t.Fatal("source ip", out.SourceIP)
	}
}

func TestStatsAggregates(t *testing.T) {
	st := openStore(t)
	now := time.Now().UTC()
	ips := []string{`203.0.113.1`, `203.0.113.1`, `203.0.113.2`, `198.51.100.5`}
	for i, ip := range ips {
		if err := st.AddEvent(mkEvent(uint64(i+1), capture.ServiceSSH, ip, now)); err != nil {
			t.Fatal(err)
		}
	}
	// one stale event outside the 24h window
	if err := st.AddEvent(mkEvent(5, capture.ServiceMQTT, `192.0.2.99`, now.Add(-48*time.Hour))); err != nil {
		t.Fatal(err)
	}
	agg, err := st.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if agg.TotalEvents != 5 {
		t.Fatal("total", agg.TotalEvents)
	}
	if agg.UniqueSources24h != 3 {
		t.Fatal("unique sources", agg.UniqueSources24h)
	}
	if agg.EventsByService[`ssh`] != 4 || agg.EventsByService[`mqtt`] != 1 {
		t.Fatal("by service", agg.EventsByService)
	}
	if len(agg.TopSources) == 0 || agg.TopSources[0].SourceIP != `203.0.113.1` || agg.TopSources[0].Count != 2 {
		t.Fatal("top sources", agg.TopSources)
	}
	if len(agg.EventsPerHour) == 0 {
		t.Fatal("events per hour empty")
	}
}

func TestAddEventsBatch(t *testing.T) {
	st := openStore(t)
	var evs []*capture.CanonicalEvent
	for i := uint64(1); i <= 20; i++ {
		evs = append(evs, mkEvent(i, capture.ServiceHTTP, `203.0.113.3`, time.Now()))
	}
	if err := st.AddEvents(evs); err != nil {
		t.Fatal(err)
	}
	_, total, err := st.ListEvents(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 20 {
		t.Fatal("total", total)
	}
	if st.WriteErrors() != 0 {
		t.Fatal("write errors", st.WriteErrors())
	}
}

func TestAuditLogAppend(t *testing.T) {
	pth := filepath.Join(t.TempDir(), `events.jsonl`)
	al, err := OpenAuditLog(pth, log.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(1); i <= 3; i++ {
		if err = al.Append(mkEvent(i, capture.ServiceSSH, `203.0.113.8`, time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	if !al.Healthy() || al.Appends() != 3 {
		t.Fatal("audit state", al.Healthy(), al.Appends())
	}
	if err = al.Close(); err != nil {
		t.Fatal(err)
	}

	fin, err := os.Open(pth)
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()
	sc := bufio.NewScanner(fin)
	var ids []uint64
	for sc.Scan() {
		var ev capture.CanonicalEvent
		if err = json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		ids = append(ids, ev.EventID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatal("lines", ids)
	}
}

func TestAuditLogAppendOnly(t *testing.T) {
	pth := filepath.Join(t.TempDir(), `events.jsonl`)
	lgr := log.NewDiscardLogger()
	al, err := OpenAuditLog(pth, lgr)
	if err != nil {
		t.Fatal(err)
	}
	if err = al.Append(mkEvent(1, capture.ServiceSSH, `203.0.113.8`, time.Now())); err != nil {
		t.Fatal(err)
	}
	al.Close()

	// reopen must append, never truncate
	al, err = OpenAuditLog(pth, lgr)
	if err != nil {
		t.Fatal(err)
	}
	if err = al.Append(mkEvent(2, capture.ServiceSSH, `203.0.113.8`, time.Now())); err != nil {
		t.Fatal(err)
	}
	al.Close()

	b, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	var lines int
	for _, c := range b {
		if c == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatal("lines after reopen", lines)
	}
}
