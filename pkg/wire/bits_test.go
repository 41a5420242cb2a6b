package wire

import "testing"

func TestWriteUvarintZero(t *testing.T) {
	w := NewWriter(UvarintBitSize(0, width32))
	if err := w.WriteUvarint(0, width32); err != nil {
		t.Fatalf("WriteUvarint(0) = %v", err)
	}
	if got, want := w.BitLen(), 1; got != want {
		t.Errorf("BitLen() = %d, want %d", got, want)
	}
	if got, want := w.Bytes(), []byte{0x00}; got[0] != want[0] {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}

	r := NewReader(w.Bytes())
	v, err := r.ReadUvarint(width32)
	if err != nil || v != 0 {
		t.Fatalf("ReadUvarint() = (%v, %v), want (0, nil)", v, err)
	}
}

func TestWriteUvarintDeadbeef(t *testing.T) {
	const v = uint64(0xDEADBEEF)
	size := UvarintBitSize(v, width32)
	if size != 36 {
		t.Fatalf("UvarintBitSize(0xDEADBEEF, 4) = %d, want 36", size)
	}

	w := NewWriter(size)
	if err := w.WriteUvarint(v, width32); err != nil {
		t.Fatalf("WriteUvarint() = %v", err)
	}
	if w.BitLen() != size {
		t.Errorf("BitLen() = %d, want %d", w.BitLen(), size)
	}

	r := NewReader(w.Bytes())
	got, err := r.ReadUvarint(width32)
	if err != nil {
		t.Fatalf("ReadUvarint() error = %v", err)
	}
	if got != v {
		t.Errorf("ReadUvarint() = 0x%X, want 0x%X", got, v)
	}
	if r.BitsRead() != size {
		t.Errorf("BitsRead() = %d, want %d", r.BitsRead(), size)
	}
}

func TestWriteVarintNegativeOne(t *testing.T) {
	const v = int64(-1)
	size := VarintBitSize(v, width32)
	if size != 11 {
		t.Fatalf("VarintBitSize(-1, 4) = %d, want 11", size)
	}

	w := NewWriter(size)
	if err := w.WriteVarint(v, width32); err != nil {
		t.Fatalf("WriteVarint() = %v", err)
	}
	if w.BitLen() != size {
		t.Errorf("BitLen() = %d, want %d", w.BitLen(), size)
	}

	r := NewReader(w.Bytes())
	got, err := r.ReadVarint(width32)
	if err != nil {
		t.Fatalf("ReadVarint() error = %v", err)
	}
	if got != v {
		t.Errorf("ReadVarint() = %d, want %d", got, v)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 127, -127, 128, -128, 300, -300,
		1 << 20, -(1 << 20), 1<<31 - 1, -(1 << 31),
	}
	for _, v := range values {
		size := VarintBitSize(v, width64)
		w := NewWriter(size)
		if err := w.WriteVarint(v, width64); err != nil {
			t.Fatalf("WriteVarint(%d) = %v", v, err)
		}
		if w.BitLen() != size {
			t.Errorf("WriteVarint(%d): BitLen() = %d, want %d", v, w.BitLen(), size)
		}
		r := NewReader(w.Bytes())
		got, err := r.ReadVarint(width64)
		if err != nil {
			t.Fatalf("ReadVarint(%d) error = %v", v, err)
		}
		if got != v {
			t.Errorf("round-trip %d: got %d", v, got)
		}
	}
}

func TestUvarintExactlyMaxBytesNoTerminator(t *testing.T) {
	// A value whose lowest maxBytes octets are all nonzero consumes exactly
	// maxBytes continuation-1 units with no terminator bit.
	v := uint64(0xFFFFFFFF)
	size := UvarintBitSize(v, width32)
	if size != width32*9 {
		t.Fatalf("UvarintBitSize() = %d, want %d", size, width32*9)
	}
}
