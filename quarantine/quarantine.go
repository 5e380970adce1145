/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package quarantine stores attacker uploads in a write-once,
// content-addressed directory. Files land as <sha256>.<ext> with mode
// 0444; a second upload of the same bytes is a no-op. Metadata rides in
// a bbolt index next to the payloads.
package quarantine

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	bolt "go.etcd.io/bbolt"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	indexFilename = `index.db`
	stagingDir    = `.staging`
	storedPerm    = 0444
	dirPerm       = 0770

	// filetype needs no more than this many leading bytes to classify
	sniffLen = 262

	defaultExt = `bin`
)

var (
	ErrTooLarge  = errors.New("upload exceeds size cap")
	ErrNotFound  = errors.New("no such capture")
	ErrEmptyFile = errors.New("empty upload")

	bucketCaptures = []byte(`captures`)
)

// Store is the quarantine directory plus its metadata index. Safe for
// concurrent ingest; identical bytes dedupe on the content hash no
// matter what the client named them, and the first indexed record
// wins.
type Store struct {
	dir    string
	db     *bolt.DB
	lgr    *log.Logger
	stored atomic.Uint64
	dupes  atomic.Uint64
}

// Open creates the quarantine directory structure and its index.
func Open(dir string, lgr *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, stagingDir), dirPerm); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, indexFilename), 0640, &bolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err = db.Update(func(tx *bolt.Tx) error {
		_, lerr := tx.CreateBucketIfNotExists(bucketCaptures)
		return lerr
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		dir: dir,
		db:  db,
		lgr: lgr,
	}, nil
}

// Ingest streams one upload into quarantine, hashing as it goes. The
// reader is consumed up to max bytes; anything longer aborts with
// ErrTooLarge and nothing is stored. The returned FileCapture always
// reflects the bytes actually on disk.
func (q *Store) Ingest(rdr io.Reader, originalName, contentType string, max int64) (fc capture.FileCapture, err error) {
	tmp, err := os.CreateTemp(filepath.Join(q.dir, stagingDir), `up-*`)
	if err != nil {
		return
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()
	h := sha256.New()
	var sniff sniffBuffer
	n, err := io.Copy(io.MultiWriter(tmp, h, &sniff), io.LimitReader(rdr, max+1))
	if err != nil {
		return
	} else if n > max {
		err = ErrTooLarge
		return
	} else if n == 0 {
		err = ErrEmptyFile
		return
	}
	sum := hex.EncodeToString(h.Sum(nil))
	// dedupe on the hash alone: the same bytes under a different client
	// filename must not land a second copy on disk
	if prev, gerr := q.Get(sum); gerr == nil {
		tmp.Close()
		os.Remove(tmpName)
		q.dupes.Add(1)
		return prev, nil
	}
	kind := filetype.Unknown
	if k, kerr := filetype.Match(sniff.head()); kerr == nil {
		kind = k
	}
	fc = capture.FileCapture{
		SHA256:           sum,
		OriginalFilename: originalName,
		Size:             n,
		ContentType:      contentType,
		DetectedType:     detectedType(kind),
		StoredPath:       sum + `.` + storedExt(originalName, kind),
	}
	dest := filepath.Join(q.dir, fc.StoredPath)
	if _, serr := os.Lstat(dest); serr == nil {
		// on disk but unindexed (a crash between rename and index);
		// keep the first copy and repair the index entry
		tmp.Close()
		os.Remove(tmpName)
		q.dupes.Add(1)
		return fc, q.index(fc)
	}
	if err = tmp.Sync(); err != nil {
		return
	}
	if err = tmp.Chmod(storedPerm); err != nil {
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return
	}
	q.stored.Add(1)
	return fc, q.index(fc)
}

// index records metadata for a capture, first writer wins.
func (q *Store) index(fc capture.FileCapture) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketCaptures)
		if bkt.Get([]byte(fc.SHA256)) != nil {
			return nil
		}
		val, err := json.Marshal(fc)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(fc.SHA256), val)
	})
}

// Get returns the metadata for one capture by sha256.
func (q *Store) Get(sha string) (fc capture.FileCapture, err error) {
	err = q.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketCaptures).Get([]byte(sha))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &fc)
	})
	return
}

// List returns every capture's metadata ordered by sha256.
func (q *Store) List() (fcs []capture.FileCapture, err error) {
	err = q.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCaptures).ForEach(func(_, val []byte) error {
			var fc capture.FileCapture
			if lerr := json.Unmarshal(val, &fc); lerr != nil {
				return lerr
			}
			fcs = append(fcs, fc)
			return nil
		})
	})
	return
}

// OpenFile hands back a reader over the stored bytes for download.
func (q *Store) OpenFile(sha string) (io.ReadCloser, capture.FileCapture, error) {
	fc, err := q.Get(sha)
	if err != nil {
		return nil, fc, err
	}
	// StoredPath is always <hex>.<ext>; reject anything else before
	// touching the filesystem
	if filepath.Base(fc.StoredPath) != fc.StoredPath || strings.Contains(fc.StoredPath, `..`) {
		return nil, fc, fmt.Errorf("malformed stored path %q", fc.StoredPath)
	}
	fin, err := os.Open(filepath.Join(q.dir, fc.StoredPath))
	if err != nil {
		return nil, fc, err
	}
	return fin, fc, nil
}

// Stored reports how many new files have landed since open.
func (q *Store) Stored() uint64 {
	return q.stored.Load()
}

// Duplicates reports how many ingests matched an existing file.
func (q *Store) Duplicates() uint64 {
	return q.dupes.Load()
}

// Dir returns the quarantine directory path.
func (q *Store) Dir() string {
	return q.dir
}

func (q *Store) Close() error {
	return q.db.Close()
}

// storedExt picks the on-disk extension: the original filename wins,
// then the sniffed type, then a generic fallback.
func storedExt(originalName string, kind types.Type) string {
	if ext := strings.TrimPrefix(filepath.Ext(filepath.Base(originalName)), `.`); ext != `` && safeExt(ext) {
		return strings.ToLower(ext)
	}
	if kind != filetype.Unknown && kind.Extension != `` {
		return kind.Extension
	}
	return defaultExt
}

func safeExt(ext string) bool {
	if len(ext) > 8 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func detectedType(kind types.Type) string {
	if kind == filetype.Unknown {
		return ``
	}
	if mt := kind.MIME.Value; mt != `` {
		return mt
	}
	return mime.TypeByExtension(`.` + kind.Extension)
}

// sniffBuffer keeps the first sniffLen bytes that flow through it.
type sniffBuffer struct {
	buf []byte
}

func (sb *sniffBuffer) Write(b []byte) (int, error) {
	if len(sb.buf) < sniffLen {
		need := sniffLen - len(sb.buf)
		if need > len(b) {
			need = len(b)
		}
		sb.buf = append(sb.buf, b[:need]...)
	}
	return len(b), nil
}

func (sb *sniffBuffer) head() []byte {
	return sb.buf
}
