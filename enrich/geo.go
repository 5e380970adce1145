/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package enrich

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/asergeyev/nradix"
	"github.com/fsnotify/fsnotify"
	"github.com/oschwald/geoip2-golang"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const reloadSettle = 250 * time.Millisecond

// error strings handed back in the geo object when no lookup happened
const (
	geoErrPrivate     = `private`
	geoErrUnavailable = `geoip database unavailable`
	geoErrNotFound    = `address not found`
	geoErrInvalid     = `invalid address`
)

// GeoLookup resolves a source address to a location. Lookup never
// returns nil; failures come back as a GeoInfo carrying only Error.
type GeoLookup interface {
	Lookup(ip net.IP) *capture.GeoInfo
	Close() error
}

// reserved CIDRs that short-circuit before any database lookup
var reservedBlocks = []string{
	`0.0.0.0/8`,
	`10.0.0.0/8`,
	`100.64.0.0/10`,
	`127.0.0.0/8`,
	`169.254.0.0/16`,
	`172.16.0.0/12`,
	`192.168.0.0/16`,
	`::1/128`,
	`fc00::/7`,
	`fe80::/10`,
}

var (
	reservedTree     *nradix.Tree
	reservedTreeOnce sync.Once
)

func reserved() *nradix.Tree {
	reservedTreeOnce.Do(func() {
		reservedTree = nradix.NewTree(len(reservedBlocks))
		for _, c := range reservedBlocks {
			if err := reservedTree.AddCIDR(c, true); err != nil {
				panic(fmt.Sprintf("bad reserved block %s: %v", c, err))
			}
		}
	})
	return reservedTree
}

func isReserved(ip net.IP) bool {
	r, err := reserved().FindCIDR(ip.String())
	if err != nil || r == nil {
		return false
	}
	v, ok := r.(bool)
	return ok && v
}

// GeoDB wraps a MaxMind city database. The file may be missing at
// startup; a watcher picks it up when it appears or is replaced, so a
// database refresh never requires a restart.
type GeoDB struct {
	mtx     sync.RWMutex
	pth     string
	rdr     *geoip2.Reader
	watcher *fsnotify.Watcher
	lgr     *log.Logger
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewGeoDB opens pth if possible and starts the reload watcher. An
// unreadable or absent database is not fatal; lookups degrade to error
// geo objects until a usable file shows up.
func NewGeoDB(pth string, lgr *log.Logger) *GeoDB {
	g := &GeoDB{
		pth:  filepath.Clean(pth),
		lgr:  lgr,
		done: make(chan struct{}),
	}
	if rdr, err := geoip2.Open(g.pth); err != nil {
		lgr.Warn("geoip database not loaded", log.KV("path", g.pth), log.KVErr(err))
	} else {
		g.rdr = rdr
		lgr.Info("geoip database loaded", log.KV("path", g.pth))
	}
	if w, err := fsnotify.NewWatcher(); err != nil {
		lgr.Warn("geoip reload watcher disabled", log.KVErr(err))
	} else if err = w.Add(filepath.Dir(g.pth)); err != nil {
		lgr.Warn("geoip reload watcher disabled", log.KV("dir", filepath.Dir(g.pth)), log.KVErr(err))
		w.Close()
	} else {
		g.watcher = w
		g.wg.Add(1)
		go g.watch()
	}
	return g
}

func (g *GeoDB) watch() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case ev, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != g.pth {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// let the writer finish before we open it
			time.Sleep(reloadSettle)
			g.reload()
		case _, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (g *GeoDB) reload() {
	rdr, err := geoip2.Open(g.pth)
	if err != nil {
		g.lgr.Warn("geoip database reload failed", log.KV("path", g.pth), log.KVErr(err))
		return
	}
	g.mtx.Lock()
	old := g.rdr
	g.rdr = rdr
	g.mtx.Unlock()
	if old != nil {
		old.Close()
	}
	g.lgr.Info("geoip database reloaded", log.KV("path", g.pth))
}

func (g *GeoDB) Lookup(ip net.IP) *capture.GeoInfo {
	if len(ip) == 0 {
		return &capture.GeoInfo{Error: geoErrInvalid}
	}
	if isReserved(ip) {
		return &capture.GeoInfo{Error: geoErrPrivate}
	}
	// the read lock pins the reader for the whole City call: reload
	// swaps under the write lock and closes the old reader only after
	// every in-flight lookup has released it
	g.mtx.RLock()
	defer g.mtx.RUnlock()
	if g.rdr == nil {
		return &capture.GeoInfo{Error: geoErrUnavailable}
	}
	rec, err := g.rdr.City(ip)
	if err != nil {
		return &capture.GeoInfo{Error: err.Error()}
	}
	// an unknown address decodes to an empty record rather than an error
	if rec == nil || (rec.Country.IsoCode == `` && rec.City.GeoNameID == 0) {
		return &capture.GeoInfo{Error: geoErrNotFound}
	}
	return &capture.GeoInfo{
		Country:        rec.Country.Names[`en`],
		CountryCode:    rec.Country.IsoCode,
		City:           rec.City.Names[`en`],
		Latitude:       rec.Location.Latitude,
		Longitude:      rec.Location.Longitude,
		AccuracyRadius: rec.Location.AccuracyRadius,
	}
}

func (g *GeoDB) Close() error {
	close(g.done)
	if g.watcher != nil {
		g.watcher.Close()
	}
	g.wg.Wait()
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if g.rdr != nil {
		err := g.rdr.Close()
		g.rdr = nil
		return err
	}
	return nil
}
