/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package camerad is the IP camera decoy: a tiny login form that
// denies everyone and an MJPEG feed that loops a rendered sample clip
// until the viewer hangs up. Every feed access and every credential
// submission is captured.
package camerad

import (
	"context"
	"fmt"
	"io"
	dlog "log"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	maxConcurrent = 64
	frameRate     = 10 // frames per second on the feed
	boundary      = `frame`

	serverHeader = `Hipcam RealServer/V1.0`
)

const loginPage = `<!DOCTYPE html>
<html>
<head><title>IP Camera Login</title></head>
<body>
<h2>IP Camera Login</h2>
<form method="POST" action="/login">
<label>Username: <input type="text" name="username"></label><br>
<label>Password: <input type="password" name="password"></label><br>
<input type="submit" value="Login">
</form>
<p><a href="/video">Live View</a></p>
</body>
</html>
`

const deniedPage = `<!DOCTYPE html>
<html>
<head><title>Access Denied</title></head>
<body><h2>Access Denied</h2><p>Invalid username or password.</p></body>
</html>
`

type Camera struct {
	*decoys.Base
	srv     *http.Server
	viewers atomic.Int64
}

func New(pipe decoys.Pipeline, limits decoys.Limits, lgr *log.Logger) *Camera {
	return &Camera{
		Base: decoys.NewBase(capture.ServiceCamera, pipe, limits, lgr, false),
	}
}

// Viewers reports feeds currently streaming.
func (cam *Camera) Viewers() int64 {
	return cam.viewers.Load()
}

// Serve runs the camera HTTP front until Shutdown.
func (cam *Camera) Serve(lst net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc(`/`, cam.handleRoot)
	mux.HandleFunc(`/login`, cam.handleLogin)
	mux.HandleFunc(`/video`, cam.handleFeed)
	mux.HandleFunc(`/stream`, cam.handleFeed)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: the feed is meant to run for the whole
		// session budget; the absolute cap below cuts it off
		ErrorLog: dlog.New(io.Discard, ``, 0),
	}
	cam.srv = srv
	if err := srv.Serve(netutil.LimitListener(lst, maxConcurrent)); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting and tears down live feeds.
func (cam *Camera) Shutdown(ctx context.Context) error {
	if cam.srv == nil {
		return nil
	}
	return cam.srv.Shutdown(ctx)
}

// Close force-closes live feeds that outstayed the shutdown grace.
func (cam *Camera) Close() error {
	if cam.srv == nil {
		return nil
	}
	return cam.srv.Close()
}

func (cam *Camera) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(`Server`, serverHeader)
	w.Header().Set(`Content-Type`, `text/html; charset=utf-8`)
	io.WriteString(w, loginPage)
}

func (cam *Camera) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip, port := remoteAddr(r)
	r.ParseForm()
	cam.Emit(ip, port, capture.EventAuthAttempt, capture.Details{
		Username: r.PostFormValue(`username`),
		Password: r.PostFormValue(`password`),
		Path:     r.URL.Path,
	})
	w.Header().Set(`Server`, serverHeader)
	w.Header().Set(`Content-Type`, `text/html; charset=utf-8`)
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, deniedPage)
}

// handleFeed streams the MJPEG loop until the client goes away or the
// session duration budget runs out. The frame pacer keeps one slow
// loop from saturating the uplink.
func (cam *Camera) handleFeed(w http.ResponseWriter, r *http.Request) {
	ip, port := remoteAddr(r)
	cam.Emit(ip, port, capture.EventVideoAccess, capture.Details{
		Path:      r.URL.Path,
		UserAgent: r.UserAgent(),
	})
	cam.viewers.Add(1)
	defer cam.viewers.Add(-1)

	w.Header().Set(`Server`, serverHeader)
	w.Header().Set(`Content-Type`, `multipart/x-mixed-replace; boundary=`+boundary)
	w.Header().Set(`Cache-Control`, `no-cache`)
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(r.Context(), cam.Limits().MaxDuration)
	defer cancel()
	lim := rate.NewLimiter(rate.Limit(frameRate), 1)
	clip := sampleFrames()
	flusher, _ := w.(http.Flusher)
	for i := 0; ; i = (i + 1) % len(clip) {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		frame := clip[i]
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func remoteAddr(r *http.Request) (net.IP, int) {
	host, portStr, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr), 0
	}
	port, _ := strconv.Atoi(portStr)
	return net.ParseIP(host), port
}
