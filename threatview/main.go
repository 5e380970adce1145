/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// threatview is the honeypot daemon: it binds the decoy listeners,
// runs the capture pipeline, and serves the operator API. Exit codes:
// 0 clean shutdown, 1 bind failure, 2 bad configuration, 3 storage
// init failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/rootxtrem3/Cyber-Group-20/api"
	"github.com/rootxtrem3/Cyber-Group-20/bus"
	"github.com/rootxtrem3/Cyber-Group-20/config"
	"github.com/rootxtrem3/Cyber-Group-20/debug"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/decoys/camerad"
	"github.com/rootxtrem3/Cyber-Group-20/decoys/httpd"
	"github.com/rootxtrem3/Cyber-Group-20/decoys/mqttd"
	"github.com/rootxtrem3/Cyber-Group-20/decoys/sshd"
	"github.com/rootxtrem3/Cyber-Group-20/decoys/telnetd"
	"github.com/rootxtrem3/Cyber-Group-20/enrich"
	"github.com/rootxtrem3/Cyber-Group-20/export"
	"github.com/rootxtrem3/Cyber-Group-20/hub"
	"github.com/rootxtrem3/Cyber-Group-20/log"
	"github.com/rootxtrem3/Cyber-Group-20/log/rotate"
	"github.com/rootxtrem3/Cyber-Group-20/quarantine"
	"github.com/rootxtrem3/Cyber-Group-20/store"
	"github.com/rootxtrem3/Cyber-Group-20/utils"
	"github.com/rootxtrem3/Cyber-Group-20/version"
)

const (
	appName = `threatview`

	exitBind    = 1
	exitConfig  = 2
	exitStorage = 3
)

var (
	configLoc      = flag.String("config-file", ``, "Location of configuration file")
	configOverlays = flag.String("config-overlays", ``, "Location of configuration overlay directory")
	ver            = flag.Bool("version", false, "Print version information and exit")
	verbose        = flag.Bool("verbose", false, "Force DEBUG level logging")
)

// runSnapshot is what a clean shutdown leaves behind for the next run.
type runSnapshot struct {
	Published uint64    `json:"published"`
	Dropped   uint64    `json:"dropped"`
	StoppedAt time.Time `json:"stopped_at"`
	Signal    string    `json:"signal"`
}

// decoy is the supervisor's view of one listener: how to run it and
// how to take it down.
type decoy struct {
	name   string
	lst    net.Listener
	serve  func(net.Listener) error
	stop   func(grace time.Duration)
	active func() int64
}

func main() {
	flag.Parse()
	if *ver {
		version.PrintVersion(os.Stdout)
		log.PrintOSInfo(os.Stdout)
		return
	}
	debug.HandleDebugSignals(appName)

	cfg, err := config.GetConfig(*configLoc, *configOverlays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitConfig)
	}
	lgr, err := log.NewStderrLogger(``)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(exitConfig)
	}
	if *verbose {
		lgr.SetLevel(log.DEBUG)
	} else if err = lgr.SetLevelString(cfg.LogLevel()); err != nil {
		lgr.FatalCode(exitConfig, "invalid log level",
			log.KV("level", cfg.LogLevel()), log.KVErr(err))
	}
	if cfg.Global.Log_File != `` {
		fr, lerr := rotate.Open(cfg.Global.Log_File, 0660)
		if lerr != nil {
			lgr.FatalCode(exitConfig, "failed to open log file",
				log.KV("path", cfg.Global.Log_File), log.KVErr(lerr))
		}
		if lerr = lgr.AddWriter(fr); lerr != nil {
			lgr.FatalCode(exitConfig, "failed to attach log file", log.KVErr(lerr))
		}
	}
	lgr.Info("starting", log.KV("version", version.String()))
	log.PrintOSInfo(lgr)

	// one instance per data directory
	dataDir := filepath.Dir(cfg.Global.Store_Path)
	if err = os.MkdirAll(dataDir, 0770); err != nil {
		lgr.FatalCode(exitStorage, "failed to create data directory",
			log.KV("path", dataDir), log.KVErr(err))
	}
	fl := flock.New(filepath.Join(dataDir, appName+`.lock`))
	if held, lerr := fl.TryLock(); lerr != nil || !held {
		lgr.FatalCode(exitStorage, "another instance holds the data directory lock",
			log.KV("path", fl.Path()), log.KVErr(lerr))
	}
	defer fl.Unlock()

	st, err := store.Open(cfg.Global.Store_Path, lgr)
	if err != nil {
		lgr.FatalCode(exitStorage, "failed to open event store",
			log.KV("path", cfg.Global.Store_Path), log.KVErr(err))
	}
	audit, err := store.OpenAuditLog(cfg.Global.Audit_Log_Path, lgr)
	if err != nil {
		lgr.FatalCode(exitStorage, "failed to open audit log",
			log.KV("path", cfg.Global.Audit_Log_Path), log.KVErr(err))
	}
	quar, err := quarantine.Open(cfg.Global.Quarantine_Dir, lgr)
	if err != nil {
		lgr.FatalCode(exitStorage, "failed to open quarantine",
			log.KV("path", cfg.Global.Quarantine_Dir), log.KVErr(err))
	}

	state, err := utils.NewState(filepath.Join(dataDir, appName+`.state`), 0640)
	if err != nil {
		lgr.Warn("run state snapshot unavailable", log.KVErr(err))
	} else {
		var prev runSnapshot
		if state.Read(&prev) == nil {
			lgr.Info("previous run",
				log.KV("published", prev.Published),
				log.KV("dropped", prev.Dropped),
				log.KV("stopped", prev.StoppedAt.Format(time.RFC3339)),
				log.KV("signal", prev.Signal))
		}
	}

	// enrichment chain
	geo := enrich.NewGeoDB(cfg.Global.GeoIP_DB_Path, lgr)
	var rdns *enrich.Resolver
	if cfg.Global.Enable_RDNS {
		if rdns, err = enrich.NewResolver(lgr); err != nil {
			lgr.Warn("reverse dns annotation disabled", log.KVErr(err))
			rdns = nil
		}
	}
	enr := enrich.New(geo, rdns, lgr)

	b := bus.New(cfg.Global.Bus_Queue_Size, cfg.BusEnqueueTimeout(), lgr)
	stage := enrich.NewStage(enr, b, cfg.Global.Bus_Queue_Size, cfg.BusEnqueueTimeout(), lgr)

	var statsFn func() interface{}
	hb := hub.New(cfg.Global.Subscriber_Queue_Size, func() interface{} {
		if statsFn == nil {
			return nil
		}
		return statsFn()
	}, lgr)
	mtr := api.NewMetrics()

	storeSink := b.Register(`store`, true, 0)
	hubSink := b.Register(`hub`, false, 0)
	var fwd *export.Forwarder
	if cfg.Forwarder.URL != `` {
		fwd = export.New(export.Config{
			URL:        cfg.Forwarder.URL,
			Timeout:    cfg.ForwarderTimeout(),
			MaxRetries: cfg.Forwarder.Max_Retries,
		}, b.Register(`export`, false, 0), lgr)
		fwd.Start()
		lgr.Info("event forwarder enabled", log.KV("url", cfg.Forwarder.URL))
	}

	// the store writer is the single durable consumer: index first,
	// then the audit line; only a double failure loses the event
	var storeDrops atomic.Uint64
	var pumpWG sync.WaitGroup
	pumpWG.Add(2)
	go func() {
		defer pumpWG.Done()
		for ev := range storeSink.C() {
			t0 := time.Now()
			serr := st.AddEvent(ev)
			mtr.ObserveStoreWrite(time.Since(t0))
			aerr := audit.Append(ev)
			if serr != nil && aerr != nil {
				storeDrops.Add(1)
				lgr.Error("event lost to storage",
					log.KV("eventid", ev.EventID), log.KVErr(serr))
				continue
			}
			mtr.IncEvent(string(ev.Service))
		}
	}()
	go func() {
		defer pumpWG.Done()
		for ev := range hubSink.C() {
			hb.Publish(ev)
		}
	}()

	limits := decoys.Limits{
		IdleTimeout: cfg.SessionIdleTimeout(),
		MaxDuration: cfg.SessionMaxDuration(),
		MaxBytes:    cfg.MaxSessionBytes(),
		MaxEvents:   cfg.Global.Max_Session_Events,
	}
	grace := cfg.ShutdownGrace()

	// bind everything before serving anything, so a taken port fails
	// fast with nothing half-started
	listen := func(name, addr string) net.Listener {
		lst, lerr := net.Listen(`tcp`, addr)
		if lerr != nil {
			lgr.FatalCode(exitBind, "failed to bind listener",
				log.KV("listener", name), log.KV("address", addr), log.KVErr(lerr))
		}
		return lst
	}

	var dcys []decoy
	if !cfg.SSH.Disabled {
		sd, serr := sshd.New(stage, limits, sshd.Config{
			Banner:          cfg.SSH.Banner,
			MaxAuthAttempts: cfg.SSH.Max_Auth_Attempts,
			EnableShell:     cfg.SSH.Enable_Shell,
		}, lgr)
		if serr != nil {
			lgr.FatalCode(exitConfig, "failed to build ssh decoy", log.KVErr(serr))
		}
		lst := listen(`ssh`, cfg.SSHAddr())
		dcys = append(dcys, decoy{
			name:  `ssh`,
			lst:   lst,
			serve: sd.Serve,
			stop: func(g time.Duration) {
				sd.BeginShutdown()
				lst.Close()
				sd.Drain(g)
			},
			active: sd.Active,
		})
	}
	if !cfg.Telnet.Disabled {
		td := telnetd.New(stage, limits, lgr)
		lst := listen(`telnet`, cfg.TelnetAddr())
		dcys = append(dcys, decoy{
			name:  `telnet`,
			lst:   lst,
			serve: td.Serve,
			stop: func(g time.Duration) {
				td.BeginShutdown()
				lst.Close()
				td.Drain(g)
			},
			active: td.Active,
		})
	}
	if !cfg.MQTT.Disabled {
		md := mqttd.New(stage, limits, lgr)
		lst := listen(`mqtt`, cfg.MQTTAddr())
		dcys = append(dcys, decoy{
			name:  `mqtt`,
			lst:   lst,
			serve: md.Serve,
			stop: func(g time.Duration) {
				md.BeginShutdown()
				lst.Close()
				md.Drain(g)
			},
			active: md.Active,
		})
	}
	if !cfg.HTTP.Disabled {
		hd, herr := httpd.New(stage, limits, httpd.Config{
			ServerHeader:   cfg.HTTP.Server_Header,
			MaxUploadBytes: cfg.MaxUploadBytes(),
		}, quar, lgr)
		if herr != nil {
			lgr.FatalCode(exitConfig, "failed to build http decoy", log.KVErr(herr))
		}
		lst := listen(`http`, cfg.HTTPAddr())
		dcys = append(dcys, decoy{
			name:  `http`,
			lst:   lst,
			serve: hd.Serve,
			stop: func(g time.Duration) {
				ctx, cancel := context.WithTimeout(context.Background(), g)
				defer cancel()
				if hd.Shutdown(ctx) != nil {
					hd.Close()
				}
			},
			active: hd.Active,
		})
	}
	if !cfg.Camera.Disabled {
		cd := camerad.New(stage, limits, lgr)
		lst := listen(`camera`, cfg.CameraAddr())
		dcys = append(dcys, decoy{
			name:  `camera`,
			lst:   lst,
			serve: cd.Serve,
			stop: func(g time.Duration) {
				ctx, cancel := context.WithTimeout(context.Background(), g)
				defer cancel()
				if cd.Shutdown(ctx) != nil {
					cd.Close()
				}
			},
			active: cd.Active,
		})
	}

	sessions := func() (total int64) {
		for _, d := range dcys {
			total += d.active()
		}
		return
	}
	droppedTotal := func() uint64 {
		return b.Dropped() + stage.Dropped() + storeDrops.Load()
	}
	statsFn = func() interface{} {
		return map[string]interface{}{
			`events_total`:    b.Published(),
			`events_dropped`:  droppedTotal(),
			`sessions_active`: sessions(),
			`subscribers`:     hb.Subscribers(),
		}
	}

	for _, d := range dcys {
		mtr.RegisterSessionGauge(d.name, d.active)
	}
	mtr.RegisterSinkDrops(`store`, storeSink.Drops)
	mtr.RegisterSinkDrops(`hub`, hubSink.Drops)
	mtr.RegisterSubscriberGauge(hb.Subscribers)

	var grp errgroup.Group
	for _, d := range dcys {
		d := d
		grp.Go(func() error {
			if serr := d.serve(d.lst); serr != nil {
				lgr.Error("decoy serve loop failed",
					log.KV("listener", d.name), log.KVErr(serr))
				return serr
			}
			return nil
		})
		lgr.Info("decoy listening",
			log.KV("listener", d.name),
			log.KV("address", d.lst.Addr().String()))
	}

	var apiSrv *api.Server
	if !cfg.API.Disabled {
		apiSrv = api.New(st, audit, quar, hb, mtr, api.Counters{
			Published: b.Published,
			Dropped:   droppedTotal,
			Sessions:  sessions,
		}, lgr)
		apiLst := listen(`api`, cfg.APIAddr())
		grp.Go(func() error { return apiSrv.Serve(apiLst) })
		lgr.Info("api listening", log.KV("address", apiLst.Addr().String()))
	}

	sig := utils.WaitForQuit()
	lgr.Info("shutdown requested", log.KV("signal", sig.String()))

	// take the decoys down together; each gets the same grace window
	var stopWG sync.WaitGroup
	for _, d := range dcys {
		stopWG.Add(1)
		go func(d decoy) {
			defer stopWG.Done()
			d.stop(grace)
		}(d)
	}
	stopWG.Wait()

	// listeners are quiet, drain the pipeline end to end
	stage.Close()
	b.Close()
	pumpWG.Wait()
	if fwd != nil {
		fwd.Wait()
		lgr.Info("forwarder finished",
			log.KV("sent", fwd.Sent()), log.KV("failed", fwd.Failed()))
	}

	if apiSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		apiSrv.Shutdown(ctx)
		cancel()
	}
	if err = grp.Wait(); err != nil {
		lgr.Error("serve group exited with error", log.KVErr(err))
	}
	hb.Close()

	if err = audit.Close(); err != nil {
		lgr.Error("audit log close failed", log.KVErr(err))
	}
	if err = st.Close(); err != nil {
		lgr.Error("event store close failed", log.KVErr(err))
	}
	quar.Close()
	enr.Close()

	if state != nil {
		state.Write(runSnapshot{
			Published: b.Published(),
			Dropped:   droppedTotal(),
			StoppedAt: time.Now().UTC(),
			Signal:    sig.String(),
		})
	}
	lgr.Info("shutdown complete",
		log.KV("published", b.Published()),
		log.KV("dropped", droppedTotal()))
}
