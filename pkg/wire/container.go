package wire

// Containers are generic over their element codec, expressed as the same
// (bit_size, serialize, deserialize) triad used for scalars, since Go has no
// way to ask a type parameter for its own wire methods without either an
// interface constraint or an explicit function argument. Generated composite
// code supplies the triad; these helpers supply the length-prefix and
// looping behavior common to every ordered/unordered container.

// WriteSlice encodes an ordered sequence: varuint32(len) followed by each
// element in order.
func WriteSlice[T any](w *Writer, s []T, writeElem func(*Writer, T) error) error {
	if err := WriteUint32(w, uint32(len(s))); err != nil {
		return err
	}
	for _, v := range s {
		if err := writeElem(w, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadSlice decodes a sequence written by WriteSlice, preserving order.
func ReadSlice[T any](r *Reader, readElem func(*Reader) (T, error)) ([]T, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := readElem(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SliceBitSize returns the bit size WriteSlice would produce.
func SliceBitSize[T any](s []T, elemBitSize func(T) int) int {
	size := Uint32BitSize(uint32(len(s)))
	for _, v := range s {
		size += elemBitSize(v)
	}
	return size
}

// WriteSet encodes an (ordered or unordered) set using the same wire shape
// as WriteSlice; callers of an unordered set pass its elements in whatever
// iteration order their container produces.
func WriteSet[T any](w *Writer, elems []T, writeElem func(*Writer, T) error) error {
	return WriteSlice(w, elems, writeElem)
}

// SetBitSize mirrors SliceBitSize.
func SetBitSize[T any](elems []T, elemBitSize func(T) int) int {
	return SliceBitSize(elems, elemBitSize)
}

// ReadSet decodes a set written by WriteSet into a map keyed by its elements;
// the decoded iteration order is unspecified. Each distinct element is kept;
// an element repeated on the wire appears once in the map.
func ReadSet[T comparable](r *Reader, readElem func(*Reader) (T, error)) (map[T]struct{}, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[T]struct{}, n)
	for i := uint32(0); i < n; i++ {
		v, err := readElem(r)
		if err != nil {
			return nil, err
		}
		out[v] = struct{}{}
	}
	return out, nil
}

// WriteMap encodes a mapping from K to V: varuint32(len) ‖ (K0 ‖ V0) ‖ ….
// keys/vals must be parallel slices of equal length (generated code builds
// these from the map being encoded, in whatever order range produces).
func WriteMap[K any, V any](w *Writer, keys []K, vals []V, writeKey func(*Writer, K) error, writeVal func(*Writer, V) error) error {
	if err := WriteUint32(w, uint32(len(keys))); err != nil {
		return err
	}
	for i := range keys {
		if err := writeKey(w, keys[i]); err != nil {
			return err
		}
		if err := writeVal(w, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// MapBitSize returns the bit size WriteMap would produce.
func MapBitSize[K any, V any](keys []K, vals []V, keyBitSize func(K) int, valBitSize func(V) int) int {
	size := Uint32BitSize(uint32(len(keys)))
	for i := range keys {
		size += keyBitSize(keys[i]) + valBitSize(vals[i])
	}
	return size
}

// ReadMap decodes a mapping written by WriteMap into a Go map.
func ReadMap[K comparable, V any](r *Reader, readKey func(*Reader) (K, error), readVal func(*Reader) (V, error)) (map[K]V, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	out := make(map[K]V, n)
	for i := uint32(0); i < n; i++ {
		k, err := readKey(r)
		if err != nil {
			return nil, err
		}
		v, err := readVal(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// WriteFixedArray encodes a compile-time-length array with no length prefix:
// exactly len(arr) elements in order. Callers (generated code) are
// responsible for the array's declared length matching arr's length.
func WriteFixedArray[T any](w *Writer, arr []T, writeElem func(*Writer, T) error) error {
	for _, v := range arr {
		if err := writeElem(w, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadFixedArray decodes exactly n elements with no length prefix.
func ReadFixedArray[T any](r *Reader, n int, readElem func(*Reader) (T, error)) ([]T, error) {
	out := make([]T, n)
	for i := 0; i < n; i++ {
		v, err := readElem(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// FixedArrayBitSize returns the bit size WriteFixedArray would produce.
func FixedArrayBitSize[T any](arr []T, elemBitSize func(T) int) int {
	size := 0
	for _, v := range arr {
		size += elemBitSize(v)
	}
	return size
}
