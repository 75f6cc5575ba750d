package cache

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"time"
)

// snapshot format: a 4-byte magic + 1-byte version, then a count of
// primary keys, then for each: a length-prefixed key string, a count of
// secondary keys, then for each: a length-prefixed key string and a
// length-prefixed encoded Entry. Hand-rolled rather than reaching for a
// codegen'd schema format (see DESIGN.md).
var snapshotMagic = [4]byte{'H', 'C', 'J', 'S'}

const snapshotVersion = 2

func writeSnapshot(w io.Writer, entries []*Entry) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(snapshotMagic[:]); err != nil {
		return err
	}
	if err := bw.WriteByte(snapshotVersion); err != nil {
		return err
	}

	byPrimary := make(map[string][]*Entry)
	for _, e := range entries {
		byPrimary[e.PrimaryKey] = append(byPrimary[e.PrimaryKey], e)
	}

	if err := writeUint32(bw, uint32(len(byPrimary))); err != nil {
		return err
	}
	for primaryKey, variants := range byPrimary {
		if err := writeString(bw, primaryKey); err != nil {
			return err
		}
		if err := writeUint32(bw, uint32(len(variants))); err != nil {
			return err
		}
		for _, e := range variants {
			if err := writeString(bw, e.SecondaryKey); err != nil {
				return err
			}
			encoded := encodeEntry(e)
			if err := writeUint32(bw, uint32(len(encoded))); err != nil {
				return err
			}
			if _, err := bw.Write(encoded); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func readSnapshot(r io.Reader) ([]*Entry, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if magic != snapshotMagic {
		return nil, ErrCorruptSnapshot
	}
	version, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, ErrCorruptSnapshot
	}

	primaryCount, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0)
	for i := uint32(0); i < primaryCount; i++ {
		primaryKey, err := readString(br)
		if err != nil {
			return nil, err
		}
		secondaryCount, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < secondaryCount; j++ {
			secondaryKey, err := readString(br)
			if err != nil {
				return nil, err
			}
			size, err := readUint32(br)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, err
			}
			e, err := decodeEntry(buf)
			if err != nil {
				return nil, err
			}
			e.PrimaryKey = primaryKey
			e.SecondaryKey = secondaryKey
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// EncodeEntry and DecodeEntry expose the per-entry wire format to other
// Journal backends (cache/sqlitejournal) so every implementation agrees on
// one encoding instead of inventing its own. Neither encodes PrimaryKey or
// SecondaryKey - callers are expected to store those as their own index
// columns/keys and set them on the decoded Entry themselves.
func EncodeEntry(e *Entry) []byte { return encodeEntry(e) }

func DecodeEntry(b []byte) (*Entry, error) { return decodeEntry(b) }

func encodeEntry(e *Entry) []byte {
	buf := newFieldBuffer()
	buf.writeString(e.URL)
	buf.writeTime(e.CreatedAt)
	buf.writeInt64(int64(e.StatusCode))
	buf.writeString(e.ReasonPhrase)
	buf.writeHeader(e.Header)
	buf.writeInt64(e.ContentLength)
	buf.writeStringSlice(e.VaryHeader)
	buf.writeHeader(e.VarySnapshot)
	buf.writeTime(e.RequestTime)
	buf.writeTime(e.ResponseTime)
	buf.writeInt64(e.HitCount)
	buf.writeTime(e.LastAccessedAt)
	buf.writeInt64(e.PersistedResponseSize)
	buf.writeString(e.BodyDigest)
	return buf.Bytes()
}

func decodeEntry(b []byte) (*Entry, error) {
	buf := newFieldReader(b)
	e := &Entry{}
	var err error
	if e.URL, err = buf.readString(); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = buf.readTime(); err != nil {
		return nil, err
	}
	var statusCode int64
	if statusCode, err = buf.readInt64(); err != nil {
		return nil, err
	}
	e.StatusCode = int(statusCode)
	if e.ReasonPhrase, err = buf.readString(); err != nil {
		return nil, err
	}
	if e.Header, err = buf.readHeader(); err != nil {
		return nil, err
	}
	if e.ContentLength, err = buf.readInt64(); err != nil {
		return nil, err
	}
	if e.VaryHeader, err = buf.readStringSlice(); err != nil {
		return nil, err
	}
	if e.VarySnapshot, err = buf.readHeader(); err != nil {
		return nil, err
	}
	if e.RequestTime, err = buf.readTime(); err != nil {
		return nil, err
	}
	if e.ResponseTime, err = buf.readTime(); err != nil {
		return nil, err
	}
	if e.HitCount, err = buf.readInt64(); err != nil {
		return nil, err
	}
	if e.LastAccessedAt, err = buf.readTime(); err != nil {
		return nil, err
	}
	if e.PersistedResponseSize, err = buf.readInt64(); err != nil {
		return nil, err
	}
	if e.BodyDigest, err = buf.readString(); err != nil {
		return nil, err
	}
	return e, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// fieldBuffer/fieldReader implement the fixed-width-timestamp,
// length-prefixed-string encoding used inside a single Entry.

type fieldBuffer struct {
	b []byte
}

func newFieldBuffer() *fieldBuffer { return &fieldBuffer{} }

func (f *fieldBuffer) Bytes() []byte { return f.b }

func (f *fieldBuffer) writeInt64(v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	f.b = append(f.b, tmp[:]...)
}

func (f *fieldBuffer) writeTime(t time.Time) {
	f.writeInt64(t.Unix())
	f.writeInt64(int64(t.Nanosecond()))
}

func (f *fieldBuffer) writeString(s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	f.b = append(f.b, lenBuf[:]...)
	f.b = append(f.b, s...)
}

func (f *fieldBuffer) writeStringSlice(ss []string) {
	f.writeInt64(int64(len(ss)))
	for _, s := range ss {
		f.writeString(s)
	}
}

func (f *fieldBuffer) writeHeader(h http.Header) {
	f.writeInt64(int64(len(h)))
	for k, vv := range h {
		f.writeString(k)
		f.writeStringSlice(vv)
	}
}

type fieldReader struct {
	b   []byte
	pos int
}

func newFieldReader(b []byte) *fieldReader { return &fieldReader{b: b} }

func (f *fieldReader) readInt64() (int64, error) {
	if f.pos+8 > len(f.b) {
		return 0, fmt.Errorf("journal: truncated entry")
	}
	v := int64(binary.BigEndian.Uint64(f.b[f.pos : f.pos+8]))
	f.pos += 8
	return v, nil
}

func (f *fieldReader) readTime() (time.Time, error) {
	sec, err := f.readInt64()
	if err != nil {
		return time.Time{}, err
	}
	nsec, err := f.readInt64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, nsec).UTC(), nil
}

func (f *fieldReader) readString() (string, error) {
	if f.pos+4 > len(f.b) {
		return "", fmt.Errorf("journal: truncated entry")
	}
	n := binary.BigEndian.Uint32(f.b[f.pos : f.pos+4])
	f.pos += 4
	if f.pos+int(n) > len(f.b) {
		return "", fmt.Errorf("journal: truncated entry")
	}
	s := string(f.b[f.pos : f.pos+int(n)])
	f.pos += int(n)
	return s, nil
}

func (f *fieldReader) readStringSlice() ([]string, error) {
	n, err := f.readInt64()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		s, err := f.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fieldReader) readHeader() (http.Header, error) {
	n, err := f.readInt64()
	if err != nil {
		return nil, err
	}
	h := make(http.Header, n)
	for i := int64(0); i < n; i++ {
		k, err := f.readString()
		if err != nil {
			return nil, err
		}
		vv, err := f.readStringSlice()
		if err != nil {
			return nil, err
		}
		h[k] = vv
	}
	return h, nil
}
