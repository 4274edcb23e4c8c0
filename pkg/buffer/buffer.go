// Package buffer provides the in-memory byte accumulator the library sink
// uses to collect a response body as it streams in from the decoder.
package buffer

import (
	"bytes"
	"io"
	"sync"

	"github.com/mardiros/cabot/pkg/errors"
)

// Buffer accumulates written bytes in memory. Response bodies in this client
// are not expected to need disk spilling (no streaming-to-disk requirement in
// the Response model), so it stays purely in-memory and simply tracks size.
type Buffer struct {
	buf    bytes.Buffer
	size   int64
	mu     sync.Mutex
	closed bool
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// NewWithData creates a buffer pre-seeded with data.
func NewWithData(data []byte) *Buffer {
	b := &Buffer{size: int64(len(data))}
	b.buf.Write(data)
	return b
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errors.IO("buffer is closed", nil)
	}
	b.size += int64(len(p))
	return b.buf.Write(p)
}

// Bytes returns the accumulated data.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

// Size returns the total number of bytes written.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Reader returns a fresh reader over the stored data.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.IO("buffer is closed", nil)
	}
	return io.NopCloser(bytes.NewReader(b.buf.Bytes())), nil
}

// Close marks the buffer closed; further writes fail.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Reset clears the buffer for reuse.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.size = 0
	b.closed = false
}
