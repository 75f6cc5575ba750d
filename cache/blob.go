package cache

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	digest "github.com/opencontainers/go-digest"
)

// BodyStore is byte-addressable blob storage indexed by secondary key.
// A Put under a key that already holds a blob replaces it; concurrent
// readers see a consistent, complete blob once Put returns.
type BodyStore interface {
	// Put stores the bytes read from r under key, returning the digest
	// computed over the stream and the number of bytes written.
	Put(key string, r io.Reader) (dgst digest.Digest, size int64, err error)
	// Get opens the blob stored under key for reading. The caller must
	// Close the returned reader. wantDigest, if non-empty, is verified
	// against the blob's content; a mismatch returns ErrDigestMismatch.
	Get(key string, wantDigest digest.Digest) (io.ReadCloser, error)
	// Delete removes the blob stored under key, if any.
	Delete(key string) error
}

// ErrDigestMismatch is returned by BodyStore.Get when a stored blob's
// content no longer matches its recorded digest - treated identically to
// the body blob being missing.
var ErrDigestMismatch = fmt.Errorf("cache: blob digest mismatch")

// BlobLister is implemented by BodyStore backends that can enumerate the
// keys of every blob they hold. Cache uses it at startup to reconcile the
// journal against the body store: a blob with no matching entry, or an
// entry with no matching blob, is deleted rather than left to drift.
type BlobLister interface {
	Keys() ([]string, error)
}

// MemBodyStore is an in-memory BodyStore. It never compresses, since it
// already avoids the disk I/O cost compression is meant to offset.
type MemBodyStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemBodyStore returns an empty MemBodyStore.
func NewMemBodyStore() *MemBodyStore {
	return &MemBodyStore{blobs: make(map[string][]byte)}
}

func (s *MemBodyStore) Put(key string, r io.Reader) (digest.Digest, int64, error) {
	digester := digest.Canonical.Digester()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.TeeReader(r, digester.Hash()))
	if err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	s.blobs[key] = buf.Bytes()
	s.mu.Unlock()

	return digester.Digest(), n, nil
}

func (s *MemBodyStore) Get(key string, wantDigest digest.Digest) (io.ReadCloser, error) {
	s.mu.RLock()
	b, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache: blob %q not found", key)
	}
	if wantDigest != "" {
		if digest.FromBytes(b) != wantDigest {
			return nil, ErrDigestMismatch
		}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *MemBodyStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Keys implements BlobLister.
func (s *MemBodyStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		out = append(out, k)
	}
	return out, nil
}
