/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	auditSyncBatch = 64
	auditSyncIdle  = time.Second
	auditFilePerm  = 0640
)

// AuditLog is the append only JSON line record of every event. Writes
// are fsynced every auditSyncBatch appends and again when the stream
// goes idle, so a crash costs at most one small batch.
type AuditLog struct {
	mtx     sync.Mutex
	fout    *os.File
	pending int
	lastErr error
	appends uint64
	lgr     *log.Logger
	done    chan struct{}
	wg      sync.WaitGroup
}

// OpenAuditLog appends to pth, creating parents as needed. The file is
// never truncated or rewritten.
func OpenAuditLog(pth string, lgr *log.Logger) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(pth), 0770); err != nil {
		return nil, err
	}
	fout, err := os.OpenFile(pth, os.O_WRONLY|os.O_APPEND|os.O_CREATE, auditFilePerm)
	if err != nil {
		return nil, err
	}
	al := &AuditLog{
		fout: fout,
		lgr:  lgr,
		done: make(chan struct{}),
	}
	al.wg.Add(1)
	go al.idleSync()
	return al, nil
}

// Append writes one event as a single JSON line.
func (al *AuditLog) Append(ev *capture.CanonicalEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		al.noteErr(err)
		return err
	}
	b = append(b, '\n')
	al.mtx.Lock()
	defer al.mtx.Unlock()
	if _, err = al.fout.Write(b); err != nil {
		al.lastErr = err
		return err
	}
	al.appends++
	al.pending++
	if al.pending >= auditSyncBatch {
		if err = al.fout.Sync(); err != nil {
			al.lastErr = err
			return err
		}
		al.pending = 0
	}
	al.lastErr = nil
	return nil
}

func (al *AuditLog) idleSync() {
	defer al.wg.Done()
	tckr := time.NewTicker(auditSyncIdle)
	defer tckr.Stop()
	for {
		select {
		case <-al.done:
			return
		case <-tckr.C:
			al.mtx.Lock()
			if al.pending > 0 {
				if err := al.fout.Sync(); err != nil {
					al.lastErr = err
				} else {
					al.pending = 0
				}
			}
			al.mtx.Unlock()
		}
	}
}

func (al *AuditLog) noteErr(err error) {
	al.mtx.Lock()
	al.lastErr = err
	al.mtx.Unlock()
}

// Healthy reports whether the last append landed.
func (al *AuditLog) Healthy() bool {
	al.mtx.Lock()
	defer al.mtx.Unlock()
	return al.lastErr == nil
}

// Appends reports the total line count written since open.
func (al *AuditLog) Appends() uint64 {
	al.mtx.Lock()
	defer al.mtx.Unlock()
	return al.appends
}

// Close flushes and closes the log.
func (al *AuditLog) Close() error {
	close(al.done)
	al.wg.Wait()
	al.mtx.Lock()
	defer al.mtx.Unlock()
	if err := al.fout.Sync(); err != nil {
		al.fout.Close()
		return err
	}
	return al.fout.Close()
}
