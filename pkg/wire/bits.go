package wire

// byteLen returns the number of octets needed to hold v (ceil(bitlen(v)/8)),
// 0 for v == 0.
func byteLen(v uint64) int {
	n := 0
	for v != 0 {
		n++
		v >>= 8
	}
	return n
}

// UvarintBitSize returns the number of bits that WriteUvarint would produce
// for v, given a payload width of at most maxBytes octets.
func UvarintBitSize(v uint64, maxBytes int) int {
	if v == 0 {
		return 1
	}
	k := byteLen(v)
	if k > maxBytes {
		k = maxBytes
	}
	size := k * 9
	if k < maxBytes {
		size++
	}
	return size
}

// WriteUvarint writes v as a sequence of continuation units: a 1-bit
// continuation flag followed, when set, by 8 payload bits (low-order octet
// of the remaining value, LSB-first across units). The loop writes one
// continuation-1 unit per octet up to and including the highest nonzero one
// (a zero octet below it still gets a unit), then terminates with a single
// continuation-0 bit once the remaining value is zero, or stops after exactly
// maxBytes units with no terminator.
func (w *Writer) WriteUvarint(v uint64, maxBytes int) error {
	for i := 0; i < maxBytes; i++ {
		octet := byte(v)
		v >>= 8
		if octet == 0 && v == 0 {
			// This and every remaining octet are zero: terminate.
			return w.WriteBits(0, 1)
		}
		if err := w.WriteBits(1, 1); err != nil {
			return err
		}
		if err := w.WriteBits(octet, 8); err != nil {
			return err
		}
	}
	// Exactly maxBytes continuation-1 units were written; no terminator.
	return nil
}

// ReadUvarint reads a value written by WriteUvarint.
func (r *Reader) ReadUvarint(maxBytes int) (uint64, error) {
	var v uint64
	for i := 0; i < maxBytes; i++ {
		cont, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if cont == 0 {
			return v, nil
		}
		octet, err := r.ReadBits(8)
		if err != nil {
			return 0, err
		}
		v |= uint64(octet) << (8 * uint(i))
	}
	return v, nil
}

// zigzagEncode maps a signed value to an unsigned one so that small-magnitude
// negatives cost as few bits as their positive counterparts.
func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// VarintBitSize returns the number of bits WriteVarint would produce for v.
func VarintBitSize(v int64, maxBytes int) int {
	if v >= 0 {
		return 1 + UvarintBitSize(uint64(v), maxBytes)
	}
	return 1 + UvarintBitSize(zigzagEncode(v), maxBytes)
}

// WriteVarint writes a 1-bit sign flag (0 nonnegative, 1 negative) followed
// by a varuint payload: v itself when nonnegative, or zigzag(v) when negative.
func (w *Writer) WriteVarint(v int64, maxBytes int) error {
	if v >= 0 {
		if err := w.WriteBits(0, 1); err != nil {
			return err
		}
		return w.WriteUvarint(uint64(v), maxBytes)
	}
	if err := w.WriteBits(1, 1); err != nil {
		return err
	}
	return w.WriteUvarint(zigzagEncode(v), maxBytes)
}

// ReadVarint reads a value written by WriteVarint.
func (r *Reader) ReadVarint(maxBytes int) (int64, error) {
	sign, err := r.ReadBits(1)
	if err != nil {
		return 0, err
	}
	u, err := r.ReadUvarint(maxBytes)
	if err != nil {
		return 0, err
	}
	if sign == 0 {
		return int64(u), nil
	}
	return zigzagDecode(u), nil
}
