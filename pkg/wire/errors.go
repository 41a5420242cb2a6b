// Package wire implements the bit-packed binary codec: variable-length
// integer coding, IEEE-754 float packing, and the growable/view writer and
// reader pair that every scalar, container, and user composite is encoded
// and decoded through.
package wire

import "errors"

// ErrInsufficientData is returned by a Reader when the source does not
// contain enough bits at the current cursor to satisfy a read.
var ErrInsufficientData = errors.New("wire: insufficient data")

// ErrBufferOverflow is returned by a view Writer when a write would exceed
// its pre-sized destination buffer. It signals a programmer error: the
// buffer was not sized from BitSize before encoding began.
var ErrBufferOverflow = errors.New("wire: buffer overflow")

// ErrInvalidEncoding reports a field that decodes to a value outside the
// type's contract, e.g. a malformed length prefix or an unrecognized
// response-kind tag. No decoder in this module returns it.
var ErrInvalidEncoding = errors.New("wire: invalid encoding")
