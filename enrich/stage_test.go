/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package enrich

import (
	"net"
	"testing"
	"time"

	"github.com/rootxtrem3/Cyber-Group-20/bus"
	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

func stageCapture(n int) *capture.RawCapture {
	return &capture.RawCapture{
		CaptureID: `ssh-1`,
		Service:   capture.ServiceSSH,
		SourceIP:  net.ParseIP(`192.0.2.10`),
		StartedAt: time.Now(),
		EventType: capture.EventConnection,
	}
}

func TestStageDelivers(t *testing.T) {
	lgr := log.NewDiscardLogger()
	b := bus.New(64, time.Second, lgr)
	snk := b.Register(`store`, true, 64)
	st := NewStage(New(stubGeo{}, nil, lgr), b, 64, time.Second, lgr)

	const total = 32
	for i := 0; i < total; i++ {
		st.Emit(stageCapture(i))
	}
	st.Close()
	b.Close()

	var got int
	var last uint64
	for ev := range snk.C() {
		got++
		if ev.EventID <= last {
			t.Fatal("ordering broken")
		}
		last = ev.EventID
		if ev.RiskScore != 10 { // ssh service contribution
			t.Fatal("risk score", ev.RiskScore)
		}
	}
	if got != total {
		t.Fatal("delivered", got)
	}
	if st.Dropped() != 0 {
		t.Fatal("drops", st.Dropped())
	}
}

func TestStageRejectsInvalid(t *testing.T) {
	lgr := log.NewDiscardLogger()
	b := bus.New(8, time.Second, lgr)
	snk := b.Register(`store`, true, 8)
	st := NewStage(New(stubGeo{}, nil, lgr), b, 8, time.Second, lgr)

	st.Emit(&capture.RawCapture{Service: `bogus`})
	st.Emit(stageCapture(0))
	st.Close()
	b.Close()

	var got int
	for range snk.C() {
		got++
	}
	if got != 1 {
		t.Fatal("delivered", got)
	}
	if st.Rejected() != 1 {
		t.Fatal("rejected", st.Rejected())
	}
}

func TestStageEmitAfterClose(t *testing.T) {
	lgr := log.NewDiscardLogger()
	b := bus.New(8, time.Second, lgr)
	b.Register(`store`, true, 8)
	st := NewStage(New(stubGeo{}, nil, lgr), b, 8, 0, lgr)
	st.Close()
	st.Emit(stageCapture(0)) // must not panic
	if st.Dropped() != 1 {
		t.Fatal("drops", st.Dropped())
	}
	b.Close()
}
