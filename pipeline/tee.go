package pipeline

import (
	"io"
)

// TeeBody splits a one-shot response body into two independent readers:
// the one returned to the caller (client delivery) and one fed to a
// background consumer (typically the cache interceptor's body writer). The
// client reader pulls from body and writes each chunk into a pipe that
// the observer reads from; nothing is buffered in between, so a slow
// observer slows the client down (see below).
//
// Adapted from the response-writer-tee buffering idea (there, a
// http.ResponseWriter is tee'd into a byte buffer); here both sides are
// streams rather than one side being a fixed byte buffer, since response
// bodies in this system are not assumed to fit in memory.
//
// The observer side MUST be drained concurrently with the client side (by
// a background goroutine, as the cache interceptor does for its body
// writer) - the mirror is an unbuffered pipe, so an unread observer would
// otherwise block the client's reads.
func TeeBody(body io.ReadCloser) (client io.ReadCloser, observer io.ReadCloser) {
	pr, pw := io.Pipe()
	return &teeReadCloser{body: body, mirror: pw, pipeReader: pr}, pr
}

// teeReadCloser is the side returned to the caller. Every Read also
// forwards the bytes read to the mirror pipe; Close closes both the
// underlying body and the write end of the mirror, which in turn causes
// the observer side to see io.EOF (or the Close error, via CloseWithError)
// once it has drained whatever was already written.
type teeReadCloser struct {
	body       io.ReadCloser
	mirror     *io.PipeWriter
	pipeReader *io.PipeReader
}

func (t *teeReadCloser) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	if n > 0 {
		if _, werr := t.mirror.Write(p[:n]); werr != nil {
			// observer side gave up reading; stop mirroring but keep
			// serving the caller.
			t.mirror.CloseWithError(werr)
		}
	}
	if err != nil {
		if err == io.EOF {
			t.mirror.Close()
		} else {
			t.mirror.CloseWithError(err)
		}
	}
	return n, err
}

func (t *teeReadCloser) Close() error {
	t.mirror.Close()
	return t.body.Close()
}
