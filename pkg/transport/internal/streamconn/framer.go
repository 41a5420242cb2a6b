// Package streamconn implements the shared length-delimited framing and
// [transport.Connection] wiring used by the TCP and Unix domain socket
// transports: a compact 1-byte length header for payloads up to
// 254 bytes, with an escape octet plus a 4-byte big-endian length for
// anything larger.
package streamconn

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrTooLong is returned when a payload exceeds what the framer's extended
// length field can represent.
var ErrTooLong = errors.New("streamconn: payload too long")

const (
	maxDirectLen = 0xFE
	escapeByte   = 0xFF
)

func writeFrame(w io.Writer, payload []byte) error {
	n := len(payload)
	if n > math.MaxUint32 {
		return ErrTooLong
	}
	if n <= maxDirectLen {
		if _, err := w.Write([]byte{byte(n)}); err != nil {
			return err
		}
	} else {
		hdr := make([]byte, 5)
		hdr[0] = escapeByte
		binary.BigEndian.PutUint32(hdr[1:], uint32(n))
		if _, err := w.Write(hdr); err != nil {
			return err
		}
	}
	if n == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := int(hdr[0])
	if hdr[0] == escapeByte {
		var ext [4]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		n = int(binary.BigEndian.Uint32(ext[:]))
	}
	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
