package sshterminal

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// defaultOutputBufferSize bounds unread output per terminal (1 MB). Once it
// is full the reader goroutine stops consuming the channel until a caller
// polls, and the SSH window holds the remote back.
const defaultOutputBufferSize = 1024 * 1024

// ReadChunkSize is the most output one ReadOutput call returns.
const ReadChunkSize = 8192

// OutputBuffer is a thread-safe byte queue between the channel reader
// goroutine and pollers. Write blocks while the queue is full.
type OutputBuffer struct {
	mu       sync.Mutex
	room     *sync.Cond // signaled when Take frees space or the buffer is released
	data     []byte
	maxLen   int
	err      error // terminal read error, reported once the queue is drained
	closed   bool
	released bool
	notify   chan struct{} // signaled (non-blocking) when new data arrives
}

// NewOutputBuffer creates a buffer holding at most maxLen unread bytes.
// If maxLen <= 0, defaultOutputBufferSize is used.
func NewOutputBuffer(maxLen int) *OutputBuffer {
	if maxLen <= 0 {
		maxLen = defaultOutputBufferSize
	}
	b := &OutputBuffer{
		maxLen: maxLen,
		notify: make(chan struct{}, 1),
	}
	b.room = sync.NewCond(&b.mu)
	return b
}

// Write appends p, waiting for pollers to make room whenever the queue
// holds maxLen bytes. After Release the rest of p is discarded.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		b.mu.Lock()
		for len(b.data) >= b.maxLen && !b.released {
			b.room.Wait()
		}
		if b.released {
			b.mu.Unlock()
			return total, nil
		}
		n := min(b.maxLen-len(b.data), len(p))
		b.data = append(b.data, p[:n]...)
		b.mu.Unlock()

		p = p[n:]
		b.signal()
	}
	return total, nil
}

// CloseWithError marks the producer as finished. A nil err is stored as
// io.EOF so pollers can tell a finished stream from a quiet one.
func (b *OutputBuffer) CloseWithError(err error) {
	if err == nil {
		err = io.EOF
	}
	b.mu.Lock()
	b.closed = true
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	b.signal()
}

// Release drops unread data and unblocks any pending Write. Used at
// teardown, when nobody will poll again.
func (b *OutputBuffer) Release() {
	b.mu.Lock()
	b.released = true
	b.data = nil
	b.room.Broadcast()
	b.mu.Unlock()
}

func (b *OutputBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Take removes and returns up to max buffered bytes as text without
// waiting. An incomplete UTF-8 sequence at the end is left in the buffer
// while the producer is still running. The stored producer error is
// returned only once no data remains.
func (b *OutputBuffer) Take(max int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return "", b.err
	}
	n := len(b.data)
	if n > max {
		n = max
	}
	if !b.closed || n < len(b.data) {
		// A full queue holding nothing but a partial rune is flushed, or
		// the writer would wait forever.
		if whole := n - incompleteTail(b.data[:n]); whole > 0 || len(b.data) < b.maxLen {
			n = whole
		}
	}
	if n == 0 {
		return "", nil
	}
	chunk := b.data[:n]
	out := strings.ToValidUTF8(string(chunk), "\uFFFD")
	b.data = append(b.data[:0], b.data[n:]...)
	b.room.Broadcast()
	return out, nil
}

// Len returns the number of unread bytes.
func (b *OutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Notify returns the channel that is signaled when new data is available.
func (b *OutputBuffer) Notify() <-chan struct{} {
	return b.notify
}

// incompleteTail returns the length of a trailing UTF-8 sequence in p that
// has a valid start byte but is missing continuation bytes.
func incompleteTail(p []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(p); i++ {
		c := p[len(p)-i]
		if utf8.RuneStart(c) {
			if c >= utf8.RuneSelf && !utf8.FullRune(p[len(p)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}
