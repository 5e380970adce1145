/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package enrich turns raw captures into canonical events: geo lookup,
// additive risk scoring, and optional reverse DNS annotation.
package enrich

import (
	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

type Enricher struct {
	geo  GeoLookup
	rdns *Resolver
	lgr  *log.Logger
}

// New builds an enricher. rdns may be nil to disable hostname
// annotation.
func New(geo GeoLookup, rdns *Resolver, lgr *log.Logger) *Enricher {
	return &Enricher{
		geo:  geo,
		rdns: rdns,
		lgr:  lgr,
	}
}

// Process converts a raw capture into a canonical event. The event id
// stays zero here; the bus assigns it at publish so ids are strictly
// ordered. A capture that fails validation is rejected, never silently
// repaired.
func (e *Enricher) Process(rc *capture.RawCapture) (*capture.CanonicalEvent, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	score := Score(rc)
	ev := &capture.CanonicalEvent{
		Timestamp:  rc.StartedAt.UTC(),
		Service:    rc.Service,
		EventType:  capture.CanonicalType(rc.EventType),
		SessionID:  rc.SessionID,
		SourceIP:   rc.SourceIP,
		SourcePort: rc.SourcePort,
		Geo:        e.geo.Lookup(rc.SourceIP),
		RiskScore:  score,
		RiskLevel:  capture.RiskLevelFor(score),
		Payload:    rc.Details,
		Raw:        rc,
	}
	if e.rdns != nil {
		ev.SourceHost = e.rdns.Annotate(rc.SourceIP)
	}
	return ev, nil
}

// Close releases the geo reader and resolver.
func (e *Enricher) Close() error {
	var err error
	if e.rdns != nil {
		if lerr := e.rdns.Close(); lerr != nil {
			err = lerr
		}
	}
	if e.geo != nil {
		if lerr := e.geo.Close(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}
