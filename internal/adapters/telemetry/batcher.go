// Package telemetry provides tracing adapters that record jobs as spans.
package telemetry

import (
	"bytes"
	"sync"
	"time"

	"go.trai.ch/zerr"
)

const (
	// DefaultBatchSize is the number of buffered bytes that forces a flush.
	DefaultBatchSize = 4096
	// DefaultBatchInterval is the longest time output stays buffered.
	DefaultBatchInterval = 50 * time.Millisecond
)

// ErrBatcherClosed is returned when writing to a closed Batcher.
var ErrBatcherClosed = zerr.New("batcher is closed")

// Batcher coalesces small writes into chunks handed to a sink. A chunk is
// emitted once the buffer reaches the size limit or when the oldest buffered
// byte has waited for the interval, whichever comes first.
type Batcher struct {
	size     int
	interval time.Duration
	sink     func([]byte)

	mu     sync.Mutex
	buf    bytes.Buffer
	timer  *time.Timer
	closed bool
}

// NewBatcher returns a Batcher delivering chunks to sink. Non-positive limits
// select the defaults.
func NewBatcher(size int, interval time.Duration, sink func([]byte)) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	return &Batcher{size: size, interval: interval, sink: sink}
}

// Write buffers p.
func (b *Batcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBatcherClosed
	}

	n, _ := b.buf.Write(p)
	switch {
	case b.buf.Len() >= b.size:
		b.flushLocked()
	case b.timer == nil:
		b.timer = time.AfterFunc(b.interval, b.Flush)
	}
	return n, nil
}

// Flush emits any buffered bytes now.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.flushLocked()
}

// Close emits the remaining bytes. Later writes fail.
func (b *Batcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.flushLocked()
	b.closed = true
	return nil
}

// flushLocked must be called with mu held.
func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.buf.Len() == 0 {
		return
	}

	chunk := bytes.Clone(b.buf.Bytes())
	b.buf.Reset()
	if b.sink != nil {
		b.sink(chunk)
	}
}
