package executor

import "bytes"

// capWriter keeps the first limit bytes written to it and discards the rest.
// It never reports an error, so a chatty child can stream gigabytes without
// growing memory or breaking the pipe.
type capWriter struct {
	limit     int64
	buf       bytes.Buffer
	truncated bool
}

func newCapWriter(limit int64) *capWriter {
	return &capWriter{limit: limit}
}

func (w *capWriter) Write(p []byte) (int, error) {
	remain := w.limit - int64(w.buf.Len())
	if remain <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > remain {
		w.buf.Write(p[:remain])
		w.truncated = true
	} else {
		w.buf.Write(p)
	}
	return len(p), nil
}

func (w *capWriter) String() string { return w.buf.String() }

// Truncated reports whether any bytes were discarded.
func (w *capWriter) Truncated() bool { return w.truncated }
