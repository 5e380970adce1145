/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package rotate implements size-based rotation for the daemon's
// diagnostic log file. Rotated segments are numbered <base>.N.<ext> with
// the oldest deleted past the history cap; old segments are gzipped.
package rotate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

const (
	mb = 1024 * 1024

	defaultMaxSize    = 4 * mb
	defaultMaxHistory = 3

	gzExt = `.gz`
)

var (
	ErrAlreadyClosed = errors.New("already closed")
)

type FileRotator struct {
	sync.Mutex
	perm       os.FileMode
	pth        string
	baseName   string
	fout       *os.File
	currSize   int64
	maxSize    int64
	maxHistory uint
	compress   bool
}

// Open creates or appends to the log file at pth with default rotation
// parameters (4MB segments, 3 history files, gzip old segments).
func Open(pth string, perm os.FileMode) (*FileRotator, error) {
	return OpenEx(pth, perm, defaultMaxSize, defaultMaxHistory, true)
}

func OpenEx(pth string, perm os.FileMode, maxSize int64, maxHistory uint, compressOld bool) (*FileRotator, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if maxHistory == 0 {
		maxHistory = 1
	}
	pth = filepath.Clean(pth)
	_, file := filepath.Split(pth)
	if file == `` {
		return nil, fmt.Errorf("file path does not contain a filename")
	}
	bn, _, ok := splitExt(file)
	if !ok {
		return nil, fmt.Errorf("file extension required on path")
	}
	fout, sz, err := openAppend(pth, perm)
	if err != nil {
		return nil, err
	}
	fr := &FileRotator{
		perm:       perm,
		pth:        pth,
		baseName:   bn,
		fout:       fout,
		currSize:   sz,
		maxSize:    maxSize,
		maxHistory: maxHistory,
		compress:   compressOld,
	}
	//the existing file may already be over the cap
	if fr.currSize >= fr.maxSize {
		if err = fr.rotate(); err != nil {
			fr.Close()
			return nil, fmt.Errorf("failed to rotate log file %s %w", pth, err)
		}
	}
	return fr, nil
}

func (fr *FileRotator) Close() (err error) {
	fr.Lock()
	defer fr.Unlock()
	if fr.fout == nil {
		return ErrAlreadyClosed
	}
	if err = fr.fout.Close(); err != nil {
		return
	}
	fr.fout = nil
	return
}

// Write appends to the current segment; rotation only happens on a
// newline-terminated write so lines are never split across segments.
func (fr *FileRotator) Write(buf []byte) (n int, err error) {
	var doRotate bool
	fr.Lock()
	if fr.fout == nil {
		fr.Unlock()
		return 0, ErrAlreadyClosed
	}
	if n, err = fr.fout.Write(buf); err == nil {
		fr.currSize += int64(n)
		if fr.currSize >= fr.maxSize && newlineTerminated(buf) {
			doRotate = true
		}
	}
	fr.Unlock()
	if doRotate {
		err = fr.rotate()
	}
	return
}

func newlineTerminated(buf []byte) bool {
	l := len(buf)
	return l >= 1 && (buf[l-1] == '\n' || buf[l-1] == '\r')
}

func (fr *FileRotator) rotate() (err error) {
	fr.Lock()
	defer fr.Unlock()
	if err = fr.shiftHistory(); err != nil {
		return
	}
	err = fr.rollCurrent()
	return
}

// segment is a numbered history file next to the live log.
type segment struct {
	dir  string
	orig string // filename as found on disk
	base string
	ext  string // .log or .log.gz
	id   uint   // 1, 2, 3...
}

func (s segment) origpath() string {
	return filepath.Join(s.dir, s.orig)
}

func (s segment) path() string {
	if s.id > 0 {
		return filepath.Join(s.dir, fmt.Sprintf("%s.%d%s", s.base, s.id, s.ext))
	}
	return filepath.Join(s.dir, s.base+s.ext)
}

func resolveSegment(dir, filename string) (s segment, ok bool) {
	s.orig = filename
	s.dir = dir
	var rest string
	if rest, s.ext, ok = splitExt(filename); !ok {
		return
	}
	if ext := filepath.Ext(rest); ext != `` {
		if id, err := strconv.ParseUint(strings.TrimPrefix(ext, "."), 10, 32); err == nil {
			s.id = uint(id)
			rest = strings.TrimSuffix(rest, ext)
		}
	}
	s.base = rest
	return
}

func (fr *FileRotator) history() (r []segment, err error) {
	var dents []fs.DirEntry
	dir, file := filepath.Split(fr.pth)
	if dir == `` {
		dir = `.`
	}
	if dents, err = os.ReadDir(dir); err != nil {
		return
	}
	for _, dent := range dents {
		if !dent.Type().IsRegular() {
			continue
		} else if name := dent.Name(); name == file {
			continue //the live file does not count as history
		} else if s, ok := resolveSegment(dir, name); !ok {
			continue
		} else if s.base != fr.baseName {
			continue
		} else {
			r = append(r, s)
		}
	}
	sort.SliceStable(r, func(i, j int) bool {
		return r[i].id < r[j].id
	})
	return
}

// shiftHistory renumbers existing segments up by one and deletes any past
// the cap, leaving room for the live file to roll in as .1
func (fr *FileRotator) shiftHistory() (err error) {
	if fr.maxHistory <= 1 {
		return
	}
	var hist []segment
	if hist, err = fr.history(); err != nil {
		return fmt.Errorf("failed to get log history for %v %w", fr.pth, err)
	}
	max := fr.maxHistory - 1
	if uint(len(hist)) >= max {
		for _, v := range hist[max:] {
			if err = os.Remove(v.origpath()); err != nil {
				return fmt.Errorf("failed to remove old file %v %w", v.origpath(), err)
			}
		}
		hist = hist[0:max]
	}
	for i := len(hist) - 1; i >= 0; i-- {
		s := hist[i]
		s.id++
		if err = os.Rename(s.origpath(), s.path()); err != nil {
			return fmt.Errorf("failed to rotate %v -> %v %w", s.origpath(), s.path(), err)
		}
	}
	return
}

func (fr *FileRotator) rollCurrent() (err error) {
	dir, name := filepath.Split(fr.pth)
	s, ok := resolveSegment(dir, name)
	if !ok {
		return fmt.Errorf("failed to resolve history state of (%v) %v", name, fr.pth)
	}
	s.id = 1
	if fr.compress {
		s.ext = s.ext + gzExt
	}
	if err = fr.fout.Close(); err != nil {
		return fmt.Errorf("failed to close %v %w", fr.pth, err)
	}
	if fr.compress {
		if err = compressFile(s.origpath(), s.path(), fr.perm); err != nil {
			return
		}
		if err = os.Remove(s.origpath()); err != nil {
			return fmt.Errorf("failed to remove original file %s after compression %w", s.origpath(), err)
		}
	} else {
		if err = os.Rename(s.origpath(), s.path()); err != nil {
			return fmt.Errorf("failed to rename %v -> %v %w", s.origpath(), s.path(), err)
		}
	}
	if fr.fout, fr.currSize, err = openAppend(fr.pth, fr.perm); err != nil {
		err = fmt.Errorf("failed to open %v (%v) %w", fr.pth, fr.perm, err)
	}
	return
}

func openAppend(pth string, perm os.FileMode) (fout *os.File, sz int64, err error) {
	if fout, err = os.OpenFile(pth, os.O_CREATE|os.O_WRONLY, perm); err != nil {
		return
	}
	if sz, err = fout.Seek(0, io.SeekEnd); err != nil {
		fout.Close()
		err = fmt.Errorf("failed to detect filesize %w", err)
	}
	return
}

func compressFile(src, dst string, perm os.FileMode) (err error) {
	var fin, fout *os.File
	var wtr *gzip.Writer
	if fin, err = os.Open(src); err != nil {
		return
	}
	defer fin.Close()
	if fout, err = os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm); err != nil {
		return
	}
	defer fout.Close()
	if wtr, err = gzip.NewWriterLevel(fout, gzip.BestCompression); err != nil {
		return fmt.Errorf("failed to create gzip writer on %v %w", dst, err)
	}
	if _, err = io.Copy(wtr, fin); err == nil {
		err = wtr.Close()
	}
	if err != nil {
		err = fmt.Errorf("failed to compress file %v -> %v %w", src, dst, err)
	}
	return
}

// splitExt splits foo.1.log into (foo.1, .log) and treats a trailing .gz
// as part of a compound extension, so foo.1.log.gz yields (foo.1, .log.gz).
// The extension is required so segment numbering has somewhere to go.
func splitExt(filename string) (base, ext string, ok bool) {
	base = filename
	if strings.HasSuffix(base, gzExt) {
		base = strings.TrimSuffix(base, gzExt)
		ext = gzExt
	}
	if e := filepath.Ext(base); e != `` && e != base {
		ext = e + ext
		base = strings.TrimSuffix(base, e)
		ok = base != ``
		return
	}
	ok = ext != `` && base != ``
	return
}
