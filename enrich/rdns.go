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
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	rdnsWorkers     = 2
	rdnsQueueDepth  = 512
	rdnsTimeout     = 2 * time.Second
	rdnsCacheMax    = 4096
	rdnsPendingTTL  = 30 * time.Second
	rdnsNegativeTTL = 10 * time.Minute
	rdnsMaxTTL      = time.Hour
	cacheScanDur    = 30 * time.Second
	resolvConfPath  = `/etc/resolv.conf`
)

type rdnsVal struct {
	host   string
	expire time.Time
}

// Resolver annotates events with reverse DNS names without ever
// stalling the pipeline. Annotate only reads the cache; misses are
// queued for background resolution and the queue sheds its oldest
// request under pressure, so a slow or dead nameserver costs nothing.
type Resolver struct {
	client  *dns.Client
	servers []string
	lgr     *log.Logger
	lookup  func(ip string) (host string, ttl time.Duration)

	reqs chan string
	done chan struct{}
	wg   sync.WaitGroup

	mtx      sync.Mutex
	mp       map[string]rdnsVal
	lastScan time.Time
}

// NewResolver builds a resolver from the system resolver configuration.
func NewResolver(lgr *log.Logger) (*Resolver, error) {
	cc, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, err
	}
	var servers []string
	for _, s := range cc.Servers {
		servers = append(servers, net.JoinHostPort(s, cc.Port))
	}
	r := &Resolver{
		client: &dns.Client{
			Net:     `udp`,
			Timeout: rdnsTimeout,
		},
		servers: servers,
		lgr:     lgr,
		reqs:    make(chan string, rdnsQueueDepth),
		done:    make(chan struct{}),
		mp:      make(map[string]rdnsVal, 128),
	}
	r.lookup = r.resolve
	r.start(rdnsWorkers)
	return r, nil
}

func (r *Resolver) start(workers int) {
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

func (r *Resolver) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case key := <-r.reqs:
			host, ttl := r.lookup(key)
			r.cacheSet(key, host, ttl)
		}
	}
}

// Annotate returns the cached hostname for ip, which may be empty. A
// miss schedules a background lookup so a later event from the same
// source gets the name.
func (r *Resolver) Annotate(ip net.IP) string {
	if len(ip) == 0 {
		return ``
	}
	key := ip.String()
	now := time.Now()
	r.mtx.Lock()
	if now.Sub(r.lastScan) > cacheScanDur || len(r.mp) > rdnsCacheMax {
		r.scanLocked(now)
	}
	if v, ok := r.mp[key]; ok && now.Before(v.expire) {
		r.mtx.Unlock()
		return v.host
	}
	// mark pending so repeated events do not refill the queue
	r.mp[key] = rdnsVal{expire: now.Add(rdnsPendingTTL)}
	r.mtx.Unlock()
	r.enqueue(key)
	return ``
}

func (r *Resolver) enqueue(key string) {
	select {
	case r.reqs <- key:
		return
	default:
	}
	// full, shed the oldest request and try once more
	select {
	case <-r.reqs:
	default:
	}
	select {
	case r.reqs <- key:
	default:
	}
}

func (r *Resolver) cacheSet(key, host string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = rdnsNegativeTTL
	} else if ttl > rdnsMaxTTL {
		ttl = rdnsMaxTTL
	}
	r.mtx.Lock()
	r.mp[key] = rdnsVal{host: host, expire: time.Now().Add(ttl)}
	r.mtx.Unlock()
}

// caller must hold the lock
func (r *Resolver) scanLocked(now time.Time) {
	r.lastScan = now
	for k, v := range r.mp {
		if v.expire.Before(now) {
			delete(r.mp, k)
		}
	}
	if len(r.mp) > rdnsCacheMax {
		// still over, nuke 10% of the entries
		toKill := len(r.mp) / 10
		for k := range r.mp {
			delete(r.mp, k)
			if toKill--; toKill <= 0 {
				break
			}
		}
	}
}

func (r *Resolver) resolve(key string) (host string, ttl time.Duration) {
	rev, err := dns.ReverseAddr(key)
	if err != nil {
		return
	}
	m := new(dns.Msg)
	m.SetQuestion(rev, dns.TypePTR)
	for _, srv := range r.servers {
		resp, _, err := r.client.Exchange(m, srv)
		if err != nil || resp == nil {
			continue
		}
		for _, ans := range resp.Answer {
			if ptr, ok := ans.(*dns.PTR); ok && ptr.Ptr != `` {
				host = strings.TrimSuffix(ptr.Ptr, `.`)
				if sec := ptr.Hdr.Ttl; sec > 0 {
					ttl = time.Duration(sec) * time.Second
				}
				return
			}
		}
		// the server answered with no PTR record, cache the miss
		return
	}
	return
}

func (r *Resolver) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}
