package sshterminal

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestOutputBuffer_TakeEmpty(t *testing.T) {
	b := NewOutputBuffer(0)
	got, err := b.Take(ReadChunkSize)
	if err != nil {
		t.Fatalf("Take() error: %v", err)
	}
	if got != "" {
		t.Errorf("Take() = %q, want empty", got)
	}
}

func TestOutputBuffer_TakeChunks(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Write([]byte(strings.Repeat("a", 10000)))

	first, _ := b.Take(ReadChunkSize)
	if len(first) != ReadChunkSize {
		t.Errorf("first Take() returned %d bytes, want %d", len(first), ReadChunkSize)
	}
	second, _ := b.Take(ReadChunkSize)
	if len(second) != 10000-ReadChunkSize {
		t.Errorf("second Take() returned %d bytes, want %d", len(second), 10000-ReadChunkSize)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after draining", b.Len())
	}
}

func TestOutputBuffer_InvalidUTF8Replaced(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Write([]byte("ok\xffok"))
	got, err := b.Take(ReadChunkSize)
	if err != nil {
		t.Fatalf("Take() error: %v", err)
	}
	if got != "ok�ok" {
		t.Errorf("Take() = %q, want replacement character", got)
	}
}

func TestOutputBuffer_SplitRuneHeldBack(t *testing.T) {
	b := NewOutputBuffer(0)
	euro := []byte("€") // 3 bytes
	b.Write(append([]byte("x"), euro[:2]...))

	got, _ := b.Take(ReadChunkSize)
	if got != "x" {
		t.Fatalf("Take() = %q, want %q", got, "x")
	}
	b.Write(euro[2:])
	got, _ = b.Take(ReadChunkSize)
	if got != "€" {
		t.Errorf("Take() = %q, want %q", got, "€")
	}
}

func TestOutputBuffer_SplitRuneAtChunkBoundary(t *testing.T) {
	b := NewOutputBuffer(0)
	data := strings.Repeat("a", ReadChunkSize-1) + "é"
	b.Write([]byte(data))

	first, _ := b.Take(ReadChunkSize)
	if len(first) != ReadChunkSize-1 || strings.ContainsRune(first, '�') {
		t.Fatalf("first chunk split a rune: %d bytes", len(first))
	}
	second, _ := b.Take(ReadChunkSize)
	if second != "é" {
		t.Errorf("second chunk = %q, want %q", second, "é")
	}
}

func TestOutputBuffer_ClosedFlushesIncompleteTail(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Write([]byte{'x', 0xe2, 0x82})
	b.CloseWithError(nil)
	got, err := b.Take(ReadChunkSize)
	if err != nil {
		t.Fatalf("Take() error: %v", err)
	}
	if got != "x�" {
		t.Errorf("Take() = %q, want %q", got, "x�")
	}
}

func TestOutputBuffer_ErrorAfterDrain(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Write([]byte("last words"))
	boom := errors.New("connection reset")
	b.CloseWithError(boom)

	got, err := b.Take(ReadChunkSize)
	if err != nil || got != "last words" {
		t.Fatalf("Take() = %q, %v; want pending data first", got, err)
	}
	if _, err := b.Take(ReadChunkSize); !errors.Is(err, boom) {
		t.Errorf("Take() after drain error = %v, want %v", err, boom)
	}
}

func TestOutputBuffer_CleanEOFAfterDrain(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Write([]byte("bye\n"))
	b.CloseWithError(nil)

	got, err := b.Take(ReadChunkSize)
	if err != nil || got != "bye\n" {
		t.Fatalf("Take() = %q, %v; want pending data first", got, err)
	}
	for i := 0; i < 3; i++ {
		if got, err := b.Take(ReadChunkSize); got != "" || !errors.Is(err, io.EOF) {
			t.Errorf("Take() #%d after EOF = %q, %v; want io.EOF", i, got, err)
		}
	}
}

func TestOutputBuffer_WriteWaitsForRoom(t *testing.T) {
	b := NewOutputBuffer(8)
	data := "0123456789abcdefghij"
	done := make(chan struct{})
	go func() {
		b.Write([]byte(data))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Write returned before the buffer was drained")
	case <-time.After(100 * time.Millisecond):
	}
	if n := b.Len(); n != 8 {
		t.Errorf("Len() while writer waits = %d, want 8", n)
	}

	var got strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for got.Len() < len(data) && time.Now().Before(deadline) {
		out, err := b.Take(3)
		if err != nil {
			t.Fatalf("Take() error: %v", err)
		}
		if out == "" {
			time.Sleep(time.Millisecond)
		}
		got.WriteString(out)
	}
	if got.String() != data {
		t.Errorf("drained %q, want %q", got.String(), data)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write still blocked after the buffer was drained")
	}
}

func TestOutputBuffer_FullPartialRuneIsFlushed(t *testing.T) {
	b := NewOutputBuffer(2)
	done := make(chan struct{})
	go func() {
		b.Write([]byte("€"))
		close(done)
	}()

	var got strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for got.Len() < 3 && time.Now().Before(deadline) {
		out, _ := b.Take(ReadChunkSize)
		if out == "" {
			time.Sleep(time.Millisecond)
		}
		got.WriteString(out)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write blocked on a buffer smaller than one rune")
	}
}

func TestOutputBuffer_ReleaseUnblocksWriter(t *testing.T) {
	b := NewOutputBuffer(4)
	done := make(chan struct{})
	go func() {
		b.Write([]byte("0123456789"))
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	b.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write still blocked after Release")
	}
	if n := b.Len(); n != 0 {
		t.Errorf("Len() after Release = %d, want 0", n)
	}
	if n, err := b.Write([]byte("more")); n != 4 || err != nil {
		t.Errorf("Write() after Release = %d, %v; want input discarded", n, err)
	}
}

func TestOutputBuffer_Notify(t *testing.T) {
	b := NewOutputBuffer(0)
	b.Write([]byte("x"))
	select {
	case <-b.Notify():
	default:
		t.Fatal("expected notification after Write")
	}
}
