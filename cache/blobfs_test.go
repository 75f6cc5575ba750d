package cache

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSBodyStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBodyStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}

	dgst, size, err := s.Put("k1", strings.NewReader("the quick brown fox"))
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len("the quick brown fox")) {
		t.Fatalf("size = %d", size)
	}

	r, err := s.Get("k1", dgst)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.String() != "the quick brown fox" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestFSBodyStoreWithCompression(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBodyStore(filepath.Join(dir, "blobs"), WithCompression())
	if err != nil {
		t.Fatal(err)
	}

	payload := strings.Repeat("compress me please ", 100)
	dgst, _, err := s.Put("k1", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Get("k1", dgst)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.String() != payload {
		t.Fatal("round trip through compression changed content")
	}
}

func TestFSBodyStoreDigestMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBodyStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Put("k1", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("k1", "sha256:0000000000000000000000000000000000000000000000000000000000000000"); err != ErrDigestMismatch {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestFSBodyStoreDeleteThenGetFails(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBodyStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	s.Put("k1", strings.NewReader("x"))
	if err := s.Delete("k1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("k1", ""); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestFSBodyStoreKeysListsStoredKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBodyStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	s.Put("k1", strings.NewReader("one"))
	s.Put("k2", strings.NewReader("two"))

	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["k1"] || !seen["k2"] || len(keys) != 2 {
		t.Fatalf("keys = %v", keys)
	}
}

func TestFSBodyStoreDeleteRemovesFromKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSBodyStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	s.Put("k1", strings.NewReader("one"))
	if err := s.Delete("k1"); err != nil {
		t.Fatal(err)
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no keys after delete, got %v", keys)
	}
}
