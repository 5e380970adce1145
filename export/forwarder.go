/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package export ships canonical events to a remote collector over
// HTTP. The forwarder consumes its own bus sink, so a slow or dead
// collector costs dropped exports and never stalls capture.
package export

import (
	"bytes"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/rootxtrem3/Cyber-Group-20/bus"
	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultWaitMin    = 250 * time.Millisecond
	defaultWaitMax    = 2 * time.Second
)

type Config struct {
	URL          string
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

func (c *Config) withDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = defaultWaitMin
	}
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = defaultWaitMax
	}
}

// Forwarder POSTs each event from its sink as a JSON document. Failures
// are counted and the event abandoned; the collector is best effort by
// contract.
type Forwarder struct {
	url    string
	cl     *retryablehttp.Client
	snk    *bus.Sink
	lgr    *log.Logger
	sent   atomic.Uint64
	failed atomic.Uint64
	wg     sync.WaitGroup
}

// New builds a forwarder over an already registered sink.
func New(cfg Config, snk *bus.Sink, lgr *log.Logger) *Forwarder {
	cfg.withDefaults()
	cl := retryablehttp.NewClient()
	cl.RetryMax = cfg.MaxRetries
	cl.RetryWaitMin = cfg.RetryWaitMin
	cl.RetryWaitMax = cfg.RetryWaitMax
	cl.HTTPClient.Timeout = cfg.Timeout
	cl.Logger = nil
	return &Forwarder{
		url: cfg.URL,
		cl:  cl,
		snk: snk,
		lgr: lgr,
	}
}

// Start launches the delivery loop; it exits when the bus closes the
// sink. Wait blocks until then.
func (f *Forwarder) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for ev := range f.snk.C() {
			f.deliver(ev)
		}
	}()
}

func (f *Forwarder) Wait() {
	f.wg.Wait()
}

func (f *Forwarder) deliver(ev *capture.CanonicalEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		f.failed.Add(1)
		f.lgr.Error("event encode failed",
			log.KV("eventid", ev.EventID), log.KVErr(err))
		return
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, f.url, bytes.NewReader(b))
	if err != nil {
		f.failed.Add(1)
		return
	}
	req.Header.Set(`Content-Type`, `application/json`)
	resp, err := f.cl.Do(req)
	if err != nil {
		f.failed.Add(1)
		f.lgr.Warn("event forward failed",
			log.KV("eventid", ev.EventID), log.KVErr(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.failed.Add(1)
		f.lgr.Warn("collector rejected event",
			log.KV("eventid", ev.EventID),
			log.KV("status", resp.StatusCode))
		return
	}
	f.sent.Add(1)
}

// Sent reports events acknowledged by the collector.
func (f *Forwarder) Sent() uint64 {
	return f.sent.Load()
}

// Failed reports events abandoned after retries.
func (f *Forwarder) Failed() uint64 {
	return f.failed.Load()
}
