/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package httpd is the HTTP decoy. Any method on any path gets a
// plausible canned response; the request itself, bounded body and all,
// becomes an http_request capture. Multipart uploads stream straight
// into quarantine and credentials found in form or JSON bodies are
// recorded as auth attempts.
package httpd

import (
	"context"
	"io"
	dlog "log"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gravwell/jsonparser"
	"golang.org/x/net/netutil"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/decoys"
	"github.com/rootxtrem3/Cyber-Group-20/log"
	"github.com/rootxtrem3/Cyber-Group-20/quarantine"
)

const (
	maxConcurrent  = 256
	maxHeaderBytes = 16 * 1024
	maxHeaderCount = 48
	maxHeaderVal   = 512
	maxPreview     = 4096
	maxFormFields  = 64

	readHeaderTimeout = 10 * time.Second
)

// form and JSON keys sniffed for credentials
var (
	userKeys = []string{`username`, `user`, `login`, `email`}
	passKeys = []string{`password`, `pass`, `passwd`, `pwd`}
)

type Config struct {
	ServerHeader   string
	MaxUploadBytes int64
}

type HTTP struct {
	*decoys.Base
	cfg      Config
	quar     *quarantine.Store
	policy   *policyTable
	srv      *http.Server
	requests atomic.Uint64
	uploads  atomic.Uint64
}

// New wires the HTTP decoy; quar may be nil to refuse uploads.
func New(pipe decoys.Pipeline, limits decoys.Limits, cfg Config, quar *quarantine.Store, lgr *log.Logger) (*HTTP, error) {
	pt, err := newPolicyTable()
	if err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 8 * 1024 * 1024
	}
	return &HTTP{
		Base:   decoys.NewBase(capture.ServiceHTTP, pipe, limits, lgr, false),
		cfg:    cfg,
		quar:   quar,
		policy: pt,
	}, nil
}

// Requests reports requests handled since start.
func (h *HTTP) Requests() uint64 {
	return h.requests.Load()
}

// Uploads reports files quarantined since start.
func (h *HTTP) Uploads() uint64 {
	return h.uploads.Load()
}

// Serve runs an HTTP server over the listener until Shutdown. The
// listener is capped so a connection flood cannot starve the host.
func (h *HTTP) Serve(lst net.Listener) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       h.Limits().IdleTimeout,
		WriteTimeout:      h.Limits().IdleTimeout,
		IdleTimeout:       h.Limits().IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		ErrorLog:          dlog.New(io.Discard, ``, 0),
	}
	h.srv = srv
	if err := srv.Serve(netutil.LimitListener(lst, maxConcurrent)); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting and drains in-flight requests.
func (h *HTTP) Shutdown(ctx context.Context) error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Shutdown(ctx)
}

// Close force-closes whatever Shutdown could not drain.
func (h *HTTP) Close() error {
	if h.srv == nil {
		return nil
	}
	return h.srv.Close()
}

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests.Add(1)
	ip, port := remoteAddr(r)

	d := capture.Details{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Headers:   flattenHeaders(r.Header),
		UserAgent: r.UserAgent(),
	}
	var user, pass string
	ct, _, _ := mime.ParseMediaType(r.Header.Get(`Content-Type`))
	switch {
	case strings.HasPrefix(ct, `multipart/`):
		d.Files, d.BodyPreview, user, pass = h.consumeMultipart(r)
		for _, fc := range d.Files {
			h.Emit(ip, port, capture.EventFileUpload, capture.Details{Files: []capture.FileCapture{fc}})
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(r.Body, maxPreview))
		d.BodyPreview = string(body)
		user, pass = sniffCreds(ct, body)
	}
	h.Emit(ip, port, capture.EventHTTPRequest, d)
	if user != `` || pass != `` {
		h.Emit(ip, port, capture.EventAuthAttempt, capture.Details{
			Username: user,
			Password: pass,
			Path:     r.URL.Path,
		})
	}

	status, body := h.policy.respond(r.URL.Path)
	if h.cfg.ServerHeader != `` {
		w.Header().Set(`Server`, h.cfg.ServerHeader)
	}
	w.Header().Set(`Content-Type`, `text/html; charset=utf-8`)
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		io.WriteString(w, body)
	}
}

// consumeMultipart streams every part: file fields land in quarantine,
// value fields are captured verbatim into the preview.
func (h *HTTP) consumeMultipart(r *http.Request) (files []capture.FileCapture, preview, user, pass string) {
	mr, err := r.MultipartReader()
	if err != nil {
		return
	}
	var kv []string
	for i := 0; i < maxFormFields; i++ {
		part, perr := mr.NextPart()
		if perr != nil {
			break
		}
		if part.FileName() != `` {
			if h.quar == nil {
				io.Copy(io.Discard, io.LimitReader(part, h.cfg.MaxUploadBytes))
				part.Close()
				continue
			}
			fc, ierr := h.quar.Ingest(part, part.FileName(), part.Header.Get(`Content-Type`), h.cfg.MaxUploadBytes)
			part.Close()
			if ierr != nil {
				h.Logger().Warn("upload rejected",
					log.KV("filename", part.FileName()), log.KVErr(ierr))
				continue
			}
			h.uploads.Add(1)
			h.Logger().Info("upload quarantined",
				log.KV("sha256", fc.SHA256),
				log.KV("size", fc.Size),
				log.KV("filename", fc.OriginalFilename))
			files = append(files, fc)
			continue
		}
		val, _ := io.ReadAll(io.LimitReader(part, maxHeaderVal))
		part.Close()
		name := part.FormName()
		kv = append(kv, name+`=`+string(val))
		if isUserKey(name) {
			user = string(val)
		} else if isPassKey(name) {
			pass = string(val)
		}
	}
	preview = truncate(strings.Join(kv, `&`), maxPreview)
	return
}

// sniffCreds pulls credential-looking fields out of urlencoded or JSON
// bodies; anything unparseable is just not a credential.
func sniffCreds(ct string, body []byte) (user, pass string) {
	switch ct {
	case `application/x-www-form-urlencoded`:
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return
		}
		for _, k := range userKeys {
			if v := vals.Get(k); v != `` {
				user = v
				break
			}
		}
		for _, k := range passKeys {
			if v := vals.Get(k); v != `` {
				pass = v
				break
			}
		}
	case `application/json`:
		for _, k := range userKeys {
			if v, err := jsonparser.GetString(body, k); err == nil && v != `` {
				user = v
				break
			}
		}
		for _, k := range passKeys {
			if v, err := jsonparser.GetString(body, k); err == nil && v != `` {
				pass = v
				break
			}
		}
	}
	return
}

func isUserKey(name string) bool {
	name = strings.ToLower(name)
	for _, k := range userKeys {
		if name == k {
			return true
		}
	}
	return false
}

func isPassKey(name string) bool {
	name = strings.ToLower(name)
	for _, k := range passKeys {
		if name == k {
			return true
		}
	}
	return false
}

func flattenHeaders(hdr http.Header) map[string]string {
	mp := make(map[string]string, len(hdr))
	var n int
	for k, vals := range hdr {
		if n >= maxHeaderCount {
			break
		}
		if len(vals) > 0 {
			mp[k] = truncate(vals[0], maxHeaderVal)
			n++
		}
	}
	return mp
}

func truncate(v string, max int) string {
	if len(v) > max {
		return v[:max]
	}
	return v
}

func remoteAddr(r *http.Request) (net.IP, int) {
	host, portStr, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr), 0
	}
	port, _ := strconv.Atoi(portStr)
	return net.ParseIP(host), port
}
