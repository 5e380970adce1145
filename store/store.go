/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store persists canonical events twice: an indexed sqlite
// database for queries and an append only JSON audit log for replay.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	driverName = `sqlite`
	// WAL so API reads never block the writer, busy_timeout so a
	// contended write waits instead of failing with SQLITE_BUSY
	dsnParams = `?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)`

	defaultListLimit = 100
	maxListLimit     = 1000
	topSourceCount   = 5
)

var (
	ErrBadLimit  = errors.New("invalid limit")
	ErrBadOffset = errors.New("invalid offset")
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		event_id     INTEGER PRIMARY KEY,
		ts           INTEGER NOT NULL,
		service      TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		session_id   TEXT,
		source_ip    TEXT NOT NULL,
		source_port  INTEGER NOT NULL,
		risk_score   INTEGER NOT NULL,
		risk_level   TEXT NOT NULL,
		country      TEXT,
		country_code TEXT,
		city         TEXT,
		latitude     REAL,
		longitude    REAL,
		payload      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_service ON events(service)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
	`CREATE INDEX IF NOT EXISTS idx_events_source ON events(source_ip)`,
	`CREATE INDEX IF NOT EXISTS idx_events_risk ON events(risk_score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_ts_source ON events(ts, source_ip)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
}

// Store is the sqlite event index. Exactly one goroutine writes; reads
// may come from anywhere.
type Store struct {
	db      *sql.DB
	lgr     *log.Logger
	wrtErrs atomic.Uint64
}

// Open creates or opens the database at pth and applies the schema.
func Open(pth string, lgr *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(pth), 0770); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, pth+dsnParams)
	if err != nil {
		return nil, err
	}
	for _, m := range migrations {
		if _, err = db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return &Store{
		db:  db,
		lgr: lgr,
	}, nil
}

const insertEvent = `INSERT INTO events
	(event_id, ts, service, event_type, session_id, source_ip, source_port, risk_score, risk_level, country, country_code, city, latitude, longitude, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// insertArgs flattens one event into the insert bind list; geo columns
// stay NULL-ish when the lookup produced only an error.
func insertArgs(ev *capture.CanonicalEvent, pl []byte) []interface{} {
	var country, cc, city string
	var lat, lon float64
	if ev.Geo != nil {
		country = ev.Geo.Country
		cc = ev.Geo.CountryCode
		city = ev.Geo.City
		lat = ev.Geo.Latitude
		lon = ev.Geo.Longitude
	}
	return []interface{}{
		int64(ev.EventID), ev.Timestamp.UnixNano(), string(ev.Service), string(ev.EventType),
		ev.SessionID, ev.SourceIP.String(), ev.SourcePort, ev.RiskScore, string(ev.RiskLevel),
		country, cc, city, lat, lon, string(pl),
	}
}

// AddEvent indexes one event. The full canonical form goes into the
// payload column so queries reconstruct exactly what the bus carried.
func (s *Store) AddEvent(ev *capture.CanonicalEvent) error {
	pl, err := json.Marshal(ev)
	if err != nil {
		s.wrtErrs.Add(1)
		return err
	}
	_, err = s.db.Exec(insertEvent, insertArgs(ev, pl)...)
	if err != nil {
		s.wrtErrs.Add(1)
	}
	return err
}

// AddEvents writes a batch inside one transaction.
func (s *Store) AddEvents(evs []*capture.CanonicalEvent) error {
	if len(evs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		s.wrtErrs.Add(1)
		return err
	}
	stmt, err := tx.Prepare(insertEvent)
	if err != nil {
		tx.Rollback()
		s.wrtErrs.Add(1)
		return err
	}
	for _, ev := range evs {
		pl, lerr := json.Marshal(ev)
		if lerr != nil {
			err = lerr
			break
		}
		if _, lerr = stmt.Exec(insertArgs(ev, pl)...); lerr != nil {
			err = lerr
			break
		}
	}
	stmt.Close()
	if err != nil {
		tx.Rollback()
		s.wrtErrs.Add(1)
		return err
	}
	if err = tx.Commit(); err != nil {
		s.wrtErrs.Add(1)
	}
	return err
}

// Filter narrows a ListEvents query. Zero values mean no constraint.
type Filter struct {
	Service   string
	EventType string
	RiskLevel string
	SourceIP  string
	SessionID string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

func (f *Filter) where() (clause string, args []interface{}) {
	var conds []string
	add := func(c string, v interface{}) {
		conds = append(conds, c)
		args = append(args, v)
	}
	if f.Service != `` {
		add(`service = ?`, f.Service)
	}
	if f.EventType != `` {
		add(`event_type = ?`, f.EventType)
	}
	if f.RiskLevel != `` {
		add(`risk_level = ?`, f.RiskLevel)
	}
	if f.SourceIP != `` {
		add(`source_ip = ?`, f.SourceIP)
	}
	if f.SessionID != `` {
		add(`session_id = ?`, f.SessionID)
	}
	if !f.Since.IsZero() {
		add(`ts >= ?`, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		add(`ts < ?`, f.Until.UnixNano())
	}
	if len(conds) > 0 {
		clause = ` WHERE ` + strings.Join(conds, ` AND `)
	}
	return
}

// ListEvents returns a newest first page of events plus the total count
// matching the filter. The limit is clamped to 1000.
func (s *Store) ListEvents(ctx context.Context, f Filter) (evs []*capture.CanonicalEvent, total int64, err error) {
	if f.Limit < 0 {
		err = ErrBadLimit
		return
	}
	if f.Offset < 0 {
		err = ErrBadOffset
		return
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	} else if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	clause, args := f.where()
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+clause, args...).Scan(&total); err != nil {
		return
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events`+clause+` ORDER BY event_id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var pl string
		if err = rows.Scan(&pl); err != nil {
			return
		}
		ev := &capture.CanonicalEvent{}
		if err = json.Unmarshal([]byte(pl), ev); err != nil {
			return
		}
		evs = append(evs, ev)
	}
	err = rows.Err()
	return
}

// Stats is the aggregate view the dashboard polls.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	UniqueSources24h int64            `json:"unique_sources_24h"`
	EventsByService  map[string]int64 `json:"events_by_service"`
	EventsPerHour    []HourCount      `json:"events_per_hour"`
	TopSources       []SourceCount    `json:"top_sources"`
}

type HourCount struct {
	Hour  time.Time `json:"hour"`
	Count int64     `json:"count"`
}

type SourceCount struct {
	SourceIP string `json:"source_ip"`
	Count    int64  `json:"count"`
}

// Stats aggregates counters over the whole table plus the trailing 24
// hours for the windowed figures.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		EventsByService: make(map[string]int64),
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&st.TotalEvents); err != nil {
		return nil, err
	}
	dayAgo := time.Now().Add(-24 * time.Hour).UnixNano()
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT source_ip) FROM events WHERE ts >= ?`, dayAgo).Scan(&st.UniqueSources24h); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT service, COUNT(*) FROM events GROUP BY service`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var svc string
		var cnt int64
		if err = rows.Scan(&svc, &cnt); err != nil {
			rows.Close()
			return nil, err
		}
		st.EventsByService[svc] = cnt
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	const hourNs = int64(time.Hour)
	rows, err = s.db.QueryContext(ctx,
		`SELECT (ts/?)*? AS bucket, COUNT(*) FROM events WHERE ts >= ? GROUP BY bucket ORDER BY bucket`,
		hourNs, hourNs, dayAgo)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var bucket, cnt int64
		if err = rows.Scan(&bucket, &cnt); err != nil {
			rows.Close()
			return nil, err
		}
		st.EventsPerHour = append(st.EventsPerHour, HourCount{
			Hour:  time.Unix(0, bucket).UTC(),
			Count: cnt,
		})
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT source_ip, COUNT(*) AS c FROM events GROUP BY source_ip ORDER BY c DESC, source_ip LIMIT ?`,
		topSourceCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sc SourceCount
		if err = rows.Scan(&sc.SourceIP, &sc.Count); err != nil {
			return nil, err
		}
		st.TopSources = append(st.TopSources, sc)
	}
	return st, rows.Err()
}

// Healthy reports whether the database is reachable.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

// WriteErrors reports how many inserts have failed since open.
func (s *Store) WriteErrors() uint64 {
	return s.wrtErrs.Load()
}

func (s *Store) Close() error {
	return s.db.Close()
}
