package wire

import "math"

// Composite is implemented by every user-defined, generated (or hand-written
// stand-in for generated) record type. Its wire form is the concatenation of
// BitSize/Serialize/Deserialize over its fields in declared order; an empty
// composite encodes to zero bits, and a derived composite calls its base's
// methods before its own fields.
type Composite interface {
	BitSize() int
	Serialize(w *Writer) error
	Deserialize(r *Reader) error
}

// Scalar width budgets in payload octets.
const (
	width16 = 2
	width32 = 4
	width64 = 8
)

// --- Unsigned integers ---

func WriteUint8(w *Writer, v uint8) error { return w.WriteByte(v) }
func ReadUint8(r *Reader) (uint8, error)  { return r.ReadByte() }
func Uint8BitSize() int                   { return 8 }

func WriteUint16(w *Writer, v uint16) error { return w.WriteUvarint(uint64(v), width16) }
func ReadUint16(r *Reader) (uint16, error) {
	v, err := r.ReadUvarint(width16)
	return uint16(v), err
}
func Uint16BitSize(v uint16) int { return UvarintBitSize(uint64(v), width16) }

func WriteUint32(w *Writer, v uint32) error { return w.WriteUvarint(uint64(v), width32) }
func ReadUint32(r *Reader) (uint32, error) {
	v, err := r.ReadUvarint(width32)
	return uint32(v), err
}
func Uint32BitSize(v uint32) int { return UvarintBitSize(uint64(v), width32) }

func WriteUint64(w *Writer, v uint64) error { return w.WriteUvarint(v, width64) }
func ReadUint64(r *Reader) (uint64, error)  { return r.ReadUvarint(width64) }
func Uint64BitSize(v uint64) int            { return UvarintBitSize(v, width64) }

// --- Signed integers ---

func WriteInt8(w *Writer, v int8) error { return w.WriteByte(byte(v)) }
func ReadInt8(r *Reader) (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}
func Int8BitSize() int { return 8 }

func WriteInt16(w *Writer, v int16) error { return w.WriteVarint(int64(v), width16) }
func ReadInt16(r *Reader) (int16, error) {
	v, err := r.ReadVarint(width16)
	return int16(v), err
}
func Int16BitSize(v int16) int { return VarintBitSize(int64(v), width16) }

func WriteInt32(w *Writer, v int32) error { return w.WriteVarint(int64(v), width32) }
func ReadInt32(r *Reader) (int32, error) {
	v, err := r.ReadVarint(width32)
	return int32(v), err
}
func Int32BitSize(v int32) int { return VarintBitSize(int64(v), width32) }

func WriteInt64(w *Writer, v int64) error { return w.WriteVarint(v, width64) }
func ReadInt64(r *Reader) (int64, error)  { return r.ReadVarint(width64) }
func Int64BitSize(v int64) int            { return VarintBitSize(v, width64) }

// --- Floats: big-endian, bit-exact (NaN/Inf preserved), no compaction ---

func WriteFloat32(w *Writer, v float32) error {
	bits := math.Float32bits(v)
	return w.WriteBytes([]byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)})
}

func ReadFloat32(r *Reader) (float32, error) {
	var b [4]byte
	if err := r.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return math.Float32frombits(bits), nil
}

func Float32BitSize() int { return 32 }

func WriteFloat64(w *Writer, v float64) error {
	bits := math.Float64bits(v)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> uint(56-8*i))
	}
	return w.WriteBytes(buf)
}

func ReadFloat64(r *Reader) (float64, error) {
	var b [8]byte
	if err := r.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits = bits<<8 | uint64(b[i])
	}
	return math.Float64frombits(bits), nil
}

func Float64BitSize() int { return 64 }

// --- string: varuint32 length, then N raw octets ---

func WriteString(w *Writer, s string) error {
	if err := WriteUint32(w, uint32(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}

func ReadString(r *Reader) (string, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := r.ReadBytes(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func StringBitSize(s string) int { return Uint32BitSize(uint32(len(s))) + 8*len(s) }

// --- Error value: absence (empty string) means "no error" ---

func WriteErrorValue(w *Writer, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return WriteString(w, msg)
}

func ReadErrorValue(r *Reader) (string, error) {
	return ReadString(r)
}

func ErrorValueBitSize(err error) int {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return StringBitSize(msg)
}

// --- Enum: u16 varuint; unknown values deserialize successfully ---

func WriteEnum(w *Writer, v uint16) error { return WriteUint16(w, v) }
func ReadEnum(r *Reader) (uint16, error)  { return ReadUint16(r) }
func EnumBitSize(v uint16) int            { return Uint16BitSize(v) }
