package protocol

import (
	"bytes"
	"testing"
)

func TestFifoBufferWriteRead(t *testing.T) {
	f := NewFifoBuffer(16)

	data := []byte{1, 2, 3, 4, 5}
	if n := f.Write(data); n != len(data) {
		t.Fatalf("wrote %d bytes, want %d", n, len(data))
	}
	if f.Available() != 5 {
		t.Errorf("available = %d, want 5", f.Available())
	}

	out := make([]byte, 5)
	if n := f.Read(out); n != 5 {
		t.Fatalf("read %d bytes, want 5", n)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("read %v, want %v", out, data)
	}
	if !f.IsEmpty() {
		t.Error("buffer should be empty after full read")
	}
}

func TestFifoBufferFull(t *testing.T) {
	// Capacity of n holds n-1 bytes
	f := NewFifoBuffer(4)

	if n := f.Write([]byte{1, 2, 3, 4, 5}); n != 3 {
		t.Errorf("wrote %d bytes into capacity-4 fifo, want 3", n)
	}
	if f.Free() != 0 {
		t.Errorf("free = %d, want 0", f.Free())
	}
}

func TestFifoBufferWrappedData(t *testing.T) {
	f := NewFifoBuffer(8)

	// Push the read pointer forward so the next write wraps
	f.Write([]byte{1, 2, 3, 4, 5})
	f.Pop(5)
	f.Write([]byte{6, 7, 8, 9, 10})

	// Data must come back contiguous even though storage wrapped
	got := f.Data()
	want := []byte{6, 7, 8, 9, 10}
	if !bytes.Equal(got, want) {
		t.Errorf("wrapped Data() = %v, want %v", got, want)
	}
}

func TestFifoBufferPop(t *testing.T) {
	f := NewFifoBuffer(16)
	f.Write([]byte{1, 2, 3, 4})

	f.Pop(2)
	if !bytes.Equal(f.Data(), []byte{3, 4}) {
		t.Errorf("after Pop(2), Data() = %v, want [3 4]", f.Data())
	}

	// Popping more than available drains without panicking
	f.Pop(10)
	if !f.IsEmpty() {
		t.Error("buffer should be empty after over-pop")
	}
}

func TestScratchOutputUpdateAndDataSince(t *testing.T) {
	s := NewScratchOutput()

	s.Output([]byte{0, MessageDest})
	cursor := 0
	s.Output([]byte{0xAA, 0xBB})

	s.Update(cursor, 7)

	got := s.DataSince(cursor)
	want := []byte{7, MessageDest, 0xAA, 0xBB}
	if !bytes.Equal(got, want) {
		t.Errorf("DataSince = %v, want %v", got, want)
	}

	s.Reset()
	if s.CurPosition() != 0 {
		t.Errorf("position after Reset = %d, want 0", s.CurPosition())
	}
}

func TestSliceInputBuffer(t *testing.T) {
	b := NewSliceInputBuffer([]byte{1, 2, 3})

	if b.Available() != 3 {
		t.Errorf("available = %d, want 3", b.Available())
	}

	b.Pop(2)
	if !bytes.Equal(b.Data(), []byte{3}) {
		t.Errorf("after Pop(2), Data() = %v, want [3]", b.Data())
	}
}
