package cache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	digest "github.com/opencontainers/go-digest"
)

// FSBodyStore is a chrooted-filesystem BodyStore. Each blob is written to
// its own file under root, named by a hash of its key so arbitrary keys
// never need escaping or collide with path separators. Bodies are
// optionally zstd-compressed on write and transparently decompressed on
// read, grounded on meigma-blob's use of klauspost/compress/zstd for
// archive member compression (see DESIGN.md).
//
// Concurrent Put/Get calls must proceed independently, so encoders and
// decoders are never shared across calls - each Put/Get borrows its own
// from a sync.Pool instead of Reset-ing one long-lived instance.
type FSBodyStore struct {
	root     string
	compress bool

	encoders sync.Pool
	decoders sync.Pool
}

// FSBodyStoreOption configures an FSBodyStore.
type FSBodyStoreOption func(*FSBodyStore)

// WithCompression enables zstd compression of blob contents at rest.
func WithCompression() FSBodyStoreOption {
	return func(s *FSBodyStore) { s.compress = true }
}

// NewFSBodyStore creates (if needed) root and returns a BodyStore backed
// by it.
func NewFSBodyStore(root string, opts ...FSBodyStoreOption) (*FSBodyStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	s := &FSBodyStore{root: root}
	for _, opt := range opts {
		opt(s)
	}
	if s.compress {
		// Probe that a writer/reader can actually be constructed before
		// handing back a store whose pools would otherwise fail lazily.
		enc, err := zstd.NewWriter(io.Discard, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if err != nil {
			return nil, err
		}
		enc.Close()
		dec, err := zstd.NewReader(nil, zstd.WithDecoderLowmem(true))
		if err != nil {
			return nil, err
		}
		dec.Close()

		s.encoders.New = func() interface{} {
			enc, _ := zstd.NewWriter(io.Discard, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
			return enc
		}
		s.decoders.New = func() interface{} {
			dec, _ := zstd.NewReader(nil, zstd.WithDecoderLowmem(true))
			return dec
		}
	}
	return s, nil
}

func (s *FSBodyStore) pathFor(key string) string {
	sum := digest.FromString(key).Encoded()
	return filepath.Join(s.root, sum[:2], sum)
}

// keyPathFor is the sidecar file recording the original key for a blob
// path, since the path itself is only a content hash of the key and
// cannot be reversed - Keys needs this to enumerate blobs by key.
func keyPathFor(path string) string {
	return path + ".key"
}

func (s *FSBodyStore) Put(key string, r io.Reader) (digest.Digest, int64, error) {
	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*.tmp")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	digester := digest.Canonical.Digester()
	tee := io.TeeReader(r, digester.Hash())

	var n int64
	if s.compress {
		enc := s.encoders.Get().(*zstd.Encoder)
		enc.Reset(tmp)
		n, err = io.Copy(enc, tee)
		if err == nil {
			err = enc.Close()
		}
		s.encoders.Put(enc)
	} else {
		n, err = io.Copy(tmp, tee)
	}
	if err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", 0, err
	}
	if err := os.WriteFile(keyPathFor(path), []byte(key), 0o644); err != nil {
		return "", 0, err
	}
	return digester.Digest(), n, nil
}

func (s *FSBodyStore) Get(key string, wantDigest digest.Digest) (io.ReadCloser, error) {
	path := s.pathFor(key)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	var dec *zstd.Decoder
	if s.compress {
		dec = s.decoders.Get().(*zstd.Decoder)
		if err := dec.Reset(f); err != nil {
			f.Close()
			s.decoders.Put(dec)
			return nil, err
		}
		r = dec.IOReadCloser()
	}

	digester := digest.Canonical.Digester()
	buf, err := io.ReadAll(io.TeeReader(r, digester.Hash()))
	f.Close()
	if dec != nil {
		s.decoders.Put(dec)
	}
	if err != nil {
		return nil, err
	}
	if wantDigest != "" && digester.Digest() != wantDigest {
		return nil, ErrDigestMismatch
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (s *FSBodyStore) Delete(key string) error {
	path := s.pathFor(key)
	os.Remove(keyPathFor(path))
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Keys implements BlobLister by reading back the sidecar key file written
// alongside each blob at Put time.
func (s *FSBodyStore) Keys() ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".key") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		keys = append(keys, string(b))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
