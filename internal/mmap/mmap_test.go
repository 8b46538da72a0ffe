// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	dir, err := os.MkdirTemp("", "ocb-mmap-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	defer os.RemoveAll(dir)

	fname := filepath.Join(dir, "data.raw")
	want := []byte{0x01, 0x00, 0x00, 0x80, 0x00, 0x00, 0x00, 0x90}
	err = os.WriteFile(fname, want, 0644)
	if err != nil {
		t.Fatalf("could not create data file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not mmap %q: %+v", fname, err)
	}

	if got, want := h.Len(), len(want); got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}

	got, err := io.ReadAll(h.Reader())
	if err != nil {
		t.Fatalf("could not read mapping: %+v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("invalid data: got=%v, want=%v", got, want)
	}

	p := make([]byte, 4)
	n, err := h.ReadAt(p, 4)
	if err != nil {
		t.Fatalf("could not read at offset: %+v", err)
	}
	if n != 4 || !bytes.Equal(p, want[4:]) {
		t.Fatalf("invalid read-at: n=%d p=%v", n, p)
	}

	if _, err := h.ReadAt(p, int64(len(want)+1)); err == nil {
		t.Fatalf("expected an error for an out-of-range offset")
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not close mapping: %+v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("double close failed: %+v", err)
	}
	if _, err := h.ReadAt(p, 0); err != errClosed {
		t.Fatalf("invalid error after close: got=%v, want=%v", err, errClosed)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/path/to/nowhere.raw")
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
