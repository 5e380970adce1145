/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package api is the operator-facing query surface: event queries,
// quarantine listing and download, aggregate stats, health, prometheus
// metrics, and the live websocket stream. Read only; nothing here can
// mutate the capture record.
package api

import (
	"context"
	"errors"
	"io"
	dlog "log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/hub"
	"github.com/rootxtrem3/Cyber-Group-20/log"
	"github.com/rootxtrem3/Cyber-Group-20/quarantine"
	"github.com/rootxtrem3/Cyber-Group-20/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	requestTimeout    = 30 * time.Second
	dropCheckInterval = 15 * time.Second
	degradedWindow    = time.Minute
)

// Counters feeds the health and stats surfaces from the pipeline's
// atomic counters without the api package importing the whole daemon.
type Counters struct {
	Published func() uint64
	Dropped   func() uint64
	Sessions  func() int64
}

func (c Counters) published() uint64 {
	if c.Published == nil {
		return 0
	}
	return c.Published()
}

func (c Counters) dropped() uint64 {
	if c.Dropped == nil {
		return 0
	}
	return c.Dropped()
}

func (c Counters) sessions() int64 {
	if c.Sessions == nil {
		return 0
	}
	return c.Sessions()
}

type Server struct {
	st    *store.Store
	audit *store.AuditLog
	quar  *quarantine.Store
	hb    *hub.Hub
	mtr   *Metrics
	ctrs  Counters
	lgr   *log.Logger

	srv     *http.Server
	started time.Time
	done    chan struct{}

	mtx        sync.Mutex
	prevDrops  uint64
	lastGrowth time.Time
}

// New assembles the API server; Serve starts it.
func New(st *store.Store, audit *store.AuditLog, quar *quarantine.Store, hb *hub.Hub, mtr *Metrics, ctrs Counters, lgr *log.Logger) *Server {
	return &Server{
		st:      st,
		audit:   audit,
		quar:    quar,
		hb:      hb,
		mtr:     mtr,
		ctrs:    ctrs,
		lgr:     lgr,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Serve runs the HTTP front on the listener until Shutdown.
func (s *Server) Serve(lst net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc(`/events`, s.get(s.handleEvents))
	mux.HandleFunc(`/captures`, s.get(s.handleCaptures))
	mux.HandleFunc(`/captures/`, s.get(s.handleDownload))
	mux.HandleFunc(`/stats`, s.get(s.handleStats))
	mux.HandleFunc(`/health`, s.get(s.handleHealth))
	mux.Handle(`/metrics`, s.mtr.Handler())
	mux.HandleFunc(`/ws/events`, s.hb.ServeWS)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          dlog.New(io.Discard, ``, 0),
	}
	s.srv = srv
	go s.watchDrops()
	if err := srv.Serve(lst); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for inflight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// watchDrops samples the pipeline drop counter so /health can report
// degraded while losses are fresh, not just at the instant of a poll.
func (s *Server) watchDrops() {
	tckr := time.NewTicker(dropCheckInterval)
	defer tckr.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-tckr.C:
			s.noteDrops()
		}
	}
}

func (s *Server) noteDrops() {
	cur := s.ctrs.dropped()
	s.mtx.Lock()
	if cur > s.prevDrops {
		s.lastGrowth = time.Now()
		s.prevDrops = cur
	}
	s.mtx.Unlock()
}

func (s *Server) recentlyDropping() bool {
	s.noteDrops()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return !s.lastGrowth.IsZero() && time.Since(s.lastGrowth) < degradedWindow
}

// get wraps a handler with the method check every read endpoint shares.
func (s *Server) get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.writeErr(w, http.StatusMethodNotAllowed, `method not allowed`)
			return
		}
		h(w, r)
	}
}

type eventsResponse struct {
	Total  int64       `json:"total"`
	Count  int         `json:"count"`
	Events interface{} `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	evs, total, err := s.st.ListEvents(ctx, f)
	if err != nil {
		if errors.Is(err, store.ErrBadLimit) || errors.Is(err, store.ErrBadOffset) {
			s.writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s.lgr.Error("event query failed", log.KVErr(err))
		s.writeErr(w, http.StatusInternalServerError, `query failed`)
		return
	}
	if evs == nil {
		// keep the empty page as [] on the wire, not null
		evs = []*capture.CanonicalEvent{}
	}
	s.writeJSON(w, http.StatusOK, eventsResponse{
		Total:  total,
		Count:  len(evs),
		Events: evs,
	})
}

func filterFromQuery(r *http.Request) (f store.Filter, err error) {
	q := r.URL.Query()
	if v := q.Get(`limit`); v != `` {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			err = errors.New("invalid limit")
			return
		}
	}
	if v := q.Get(`offset`); v != `` {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			err = errors.New("invalid offset")
			return
		}
	}
	f.Service = q.Get(`service`)
	f.EventType = q.Get(`event_type`)
	f.RiskLevel = q.Get(`risk_level`)
	f.SourceIP = q.Get(`source_ip`)
	f.SessionID = q.Get(`session_id`)
	if v := q.Get(`from`); v != `` {
		if f.Since, err = time.Parse(time.RFC3339, v); err != nil {
			err = errors.New("invalid from timestamp")
			return
		}
	}
	if v := q.Get(`to`); v != `` {
		if f.Until, err = time.Parse(time.RFC3339, v); err != nil {
			err = errors.New("invalid to timestamp")
			return
		}
	}
	return
}

func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	fcs, err := s.quar.List()
	if err != nil {
		s.lgr.Error("capture listing failed", log.KVErr(err))
		s.writeErr(w, http.StatusInternalServerError, `listing failed`)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		`count`:    len(fcs),
		`captures`: fcs,
	})
}

// handleDownload serves /captures/<sha256>/download as raw bytes.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, `/captures/`)
	parts := strings.Split(rest, `/`)
	if len(parts) != 2 || parts[1] != `download` || parts[0] == `` {
		s.writeErr(w, http.StatusNotFound, `not found`)
		return
	}
	rdr, fc, err := s.quar.OpenFile(parts[0])
	if err != nil {
		if errors.Is(err, quarantine.ErrNotFound) {
			s.writeErr(w, http.StatusNotFound, `no such capture`)
			return
		}
		s.lgr.Error("capture download failed",
			log.KV("sha256", parts[0]), log.KVErr(err))
		s.writeErr(w, http.StatusInternalServerError, `download failed`)
		return
	}
	defer rdr.Close()
	// always octet-stream: these are attacker supplied bytes and must
	// never render in a browser
	w.Header().Set(`Content-Type`, `application/octet-stream`)
	w.Header().Set(`Content-Disposition`, `attachment; filename="`+fc.StoredPath+`"`)
	w.Header().Set(`Content-Length`, strconv.FormatInt(fc.Size, 10))
	w.Header().Set(`X-Content-Type-Options`, `nosniff`)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rdr)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	st, err := s.st.Stats(ctx)
	if err != nil {
		s.lgr.Error("stats query failed", log.KVErr(err))
		s.writeErr(w, http.StatusInternalServerError, `query failed`)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

type healthResponse struct {
	Status              string `json:"status"`
	UptimeS             int64  `json:"uptime_s"`
	EventsTotal         uint64 `json:"events_total"`
	EventsDropped       uint64 `json:"events_dropped"`
	StoreOK             bool   `json:"store_ok"`
	AuditOK             bool   `json:"audit_ok"`
	QuarantineFreeBytes uint64 `json:"quarantine_free_bytes"`
	SessionsActive      int64  `json:"sessions_active"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	hr := healthResponse{
		Status:              `ok`,
		UptimeS:             int64(time.Since(s.started).Seconds()),
		EventsTotal:         s.ctrs.published(),
		EventsDropped:       s.ctrs.dropped(),
		StoreOK:             s.st.Healthy(ctx),
		AuditOK:             s.audit.Healthy(),
		QuarantineFreeBytes: freeBytes(s.quar.Dir()),
		SessionsActive:      s.ctrs.sessions(),
	}
	if !hr.StoreOK || !hr.AuditOK || s.recentlyDropping() {
		hr.Status = `degraded`
	}
	s.writeJSON(w, http.StatusOK, hr)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.lgr.Error("response encode failed", log.KVErr(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set(`Content-Type`, `application/json`)
	w.WriteHeader(code)
	w.Write(b)
}

func (s *Server) writeErr(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{`error`: msg})
}
