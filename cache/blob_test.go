package cache

import (
	"bytes"
	"strings"
	"testing"
)

func TestMemBodyStorePutGet(t *testing.T) {
	s := NewMemBodyStore()
	dgst, size, err := s.Put("k1", strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if size != 11 {
		t.Fatalf("size = %d", size)
	}

	r, err := s.Get("k1", dgst)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.String() != "hello world" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestMemBodyStoreDigestMismatch(t *testing.T) {
	s := NewMemBodyStore()
	if _, _, err := s.Put("k1", strings.NewReader("hello world")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("k1", "sha256:0000000000000000000000000000000000000000000000000000000000000000"); err != ErrDigestMismatch {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestMemBodyStoreDelete(t *testing.T) {
	s := NewMemBodyStore()
	s.Put("k1", strings.NewReader("x"))
	if err := s.Delete("k1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("k1", ""); err == nil {
		t.Fatal("expected error after delete")
	}
}
