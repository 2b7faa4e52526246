// Package mempipe provides a bounded in-memory byte pipe for wiring a
// writer directly to a reader in tests, without touching the network.
package mempipe

import (
	"bytes"
	"io"
	"sync"
)

// DefaultLimit is the buffer bound used when New gets a non-positive
// limit.
const DefaultLimit = 64 << 10

type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf     bytes.Buffer
	limit   int
	eof     bool // writer closed
	rclosed bool // reader closed
}

// New returns the connected ends of an in-memory pipe. Writes block
// once limit bytes are buffered; reads block until data or EOF.
func New(limit int) (*Reader, *Writer) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	p := &pipe{limit: limit}
	p.cond = sync.NewCond(&p.mu)
	return &Reader{p: p}, &Writer{p: p}
}

// Reader is the receiving end of the pipe.
type Reader struct{ p *pipe }

func (r *Reader) Read(b []byte) (int, error) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 {
		if p.rclosed {
			return 0, io.ErrClosedPipe
		}
		if p.eof {
			return 0, io.EOF
		}
		p.cond.Wait()
	}
	n, _ := p.buf.Read(b)
	p.cond.Broadcast()
	return n, nil
}

// Close makes further reads and writes fail with io.ErrClosedPipe.
func (r *Reader) Close() error {
	p := r.p
	p.mu.Lock()
	p.rclosed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// Writer is the sending end of the pipe.
type Writer struct{ p *pipe }

func (w *Writer) Write(b []byte) (int, error) {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for len(b) > 0 {
		if p.eof || p.rclosed {
			return n, io.ErrClosedPipe
		}
		free := p.limit - p.buf.Len()
		if free == 0 {
			p.cond.Wait()
			continue
		}
		chunk := b
		if len(chunk) > free {
			chunk = chunk[:free]
		}
		p.buf.Write(chunk)
		n += len(chunk)
		b = b[len(chunk):]
		p.cond.Broadcast()
	}
	return n, nil
}

// Close signals EOF to the reader once the buffered bytes drain.
// Further writes fail with io.ErrClosedPipe.
func (w *Writer) Close() error {
	p := w.p
	p.mu.Lock()
	p.eof = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}
