package wire

import "testing"

func TestWriteBitsAssembly(t *testing.T) {
	w := NewWriter(16)
	if err := w.WriteBits(0x3, 2); err != nil { // 0b11
		t.Fatal(err)
	}
	if err := w.WriteBits(0x5, 3); err != nil { // 0b101
		t.Fatal(err)
	}
	if err := w.WriteBits(0x7, 3); err != nil { // 0b111
		t.Fatal(err)
	}
	if w.BitLen() != 8 {
		t.Fatalf("BitLen() = %d, want 8", w.BitLen())
	}
	// LSB-first packing: bit0..1 = 11, bit2..4 = 101, bit5..7 = 111
	// byte = 1 1101 11_1 read LSB to MSB: 11(bits0-1) 101(bits2-4) 111(bits5-7)
	want := byte(0x3) | byte(0x5)<<2 | byte(0x7)<<5
	if got := w.Bytes()[0]; got != want {
		t.Errorf("Bytes()[0] = %08b, want %08b", got, want)
	}
}

func TestViewWriterOverflow(t *testing.T) {
	buf := make([]byte, 1)
	w := NewViewWriter(buf)
	if err := w.WriteByte(0xAB); err != nil {
		t.Fatalf("first WriteByte() = %v", err)
	}
	if err := w.WriteByte(0xCD); err != ErrBufferOverflow {
		t.Fatalf("second WriteByte() = %v, want ErrBufferOverflow", err)
	}
}

func TestWriterResetReusable(t *testing.T) {
	w := NewWriter(8)
	_ = w.WriteByte(0xFF)
	w.Reset()
	if w.BitLen() != 0 {
		t.Fatalf("BitLen() after Reset() = %d, want 0", w.BitLen())
	}
	_ = w.WriteBits(1, 1)
	if got := w.Bytes()[0]; got != 0x01 {
		t.Errorf("Bytes()[0] after reuse = %08b, want %08b (no leftover bits)", got, 0x01)
	}
}

func TestWriteBytesUnalignedMatchesScalarLoop(t *testing.T) {
	src := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0, 0x11}

	// WriteBytes after a 3-bit pad, which takes its unaligned path.
	w1 := NewWriter(3 + 8*len(src))
	_ = w1.WriteBits(0x5, 3)
	if err := w1.WriteBytes(src); err != nil {
		t.Fatal(err)
	}

	// Reference scalar path: one WriteByte per octet.
	w2 := NewWriter(3 + 8*len(src))
	_ = w2.WriteBits(0x5, 3)
	for _, b := range src {
		if err := w2.WriteByte(b); err != nil {
			t.Fatal(err)
		}
	}

	b1, b2 := w1.Bytes(), w2.Bytes()
	if len(b1) != len(b2) {
		t.Fatalf("length mismatch: %d vs %d", len(b1), len(b2))
	}
	for i := range b1 {
		if b1[i] != b2[i] {
			t.Fatalf("byte %d mismatch: %08b vs %08b", i, b1[i], b2[i])
		}
	}
}
