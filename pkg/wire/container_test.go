package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSliceRoundTrip(t *testing.T) {
	in := []uint32{1, 2, 3, 4_000_000_000}

	size := SliceBitSize(in, Uint32BitSize)
	w := NewWriter(size)
	if err := WriteSlice(w, in, WriteUint32); err != nil {
		t.Fatal(err)
	}
	if w.BitLen() != size {
		t.Fatalf("BitLen() = %d, want %d", w.BitLen(), size)
	}

	r := NewReader(w.Bytes())
	out, err := ReadSlice(r, ReadUint32)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptySliceRoundTrip(t *testing.T) {
	var in []string
	w := NewWriter(SliceBitSize(in, StringBitSize))
	if err := WriteSlice(w, in, WriteString); err != nil {
		t.Fatal(err)
	}
	r := NewReader(w.Bytes())
	out, err := ReadSlice(r, ReadString)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("empty slice round-trip mismatch (-want +got):\n%s", diff)
	}
}

// TestSetRoundTripAsMultiset exercises the unordered-container property from
// §8: the decoded element multiset must match the input regardless of the
// in-memory order the implementation chooses to keep it in.
func TestSetRoundTripAsMultiset(t *testing.T) {
	in := []string{"c", "a", "b"}

	w := NewWriter(SetBitSize(in, StringBitSize))
	if err := WriteSet(w, in, WriteString); err != nil {
		t.Fatal(err)
	}

	r := NewReader(w.Bytes())
	out, err := ReadSet[string](r, ReadString)
	if err != nil {
		t.Fatal(err)
	}

	got := make([]string, 0, len(out))
	for k := range out {
		got = append(got, k)
	}

	if diff := cmp.Diff(in, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("set round-trip multiset mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRoundTripUnordered(t *testing.T) {
	keys := []string{"a", "b"}
	vals := []uint32{1, 2}

	w := NewWriter(MapBitSize(keys, vals, StringBitSize, Uint32BitSize))
	if err := WriteMap(w, keys, vals, WriteString, WriteUint32); err != nil {
		t.Fatal(err)
	}

	r := NewReader(w.Bytes())
	out, err := ReadMap[string, uint32](r, ReadString, ReadUint32)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]uint32{"a": 1, "b": 2}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("map round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFixedArrayNoLengthPrefix(t *testing.T) {
	in := []uint8{10, 20, 30}

	w := NewWriter(FixedArrayBitSize(in, func(uint8) int { return Uint8BitSize() }))
	if err := WriteFixedArray(w, in, WriteUint8); err != nil {
		t.Fatal(err)
	}
	if got, want := w.BitLen(), 24; got != want {
		t.Fatalf("BitLen() = %d, want %d (no length prefix)", got, want)
	}

	r := NewReader(w.Bytes())
	out, err := ReadFixedArray(r, len(in), ReadUint8)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("fixed array round-trip mismatch (-want +got):\n%s", diff)
	}
}
