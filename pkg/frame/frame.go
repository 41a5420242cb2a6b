// Package frame implements the 16-octet-prefixed frame shapes:
// request, response, stream-message, stream-response, and stream-close. It
// does not interpret payload bytes — callers serialize/deserialize their own
// request/response composites directly against the same [wire.Writer] /
// [wire.Reader] so that framing fields and payload concatenate bit-exactly,
// with no byte-alignment padding between them.
package frame

import (
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

func writePrefix(w *wire.Writer, p [PrefixLen]byte) error {
	return wire.WriteFixedArray(w, p[:], wire.WriteUint8)
}

// ReadPrefix reads the next 16 octets and classifies them. An unrecognized
// prefix is always fatal for the connection.
func ReadPrefix(r *wire.Reader) (Kind, error) {
	var p [PrefixLen]byte
	if err := r.ReadBytes(p[:]); err != nil {
		return KindUnknown, err
	}
	if k := kindOf(p); k != KindUnknown {
		return k, nil
	}
	return KindUnknown, ErrInvalidPrefix
}

// RequestHeader is the fixed portion of a request frame preceding its
// payload: context, requestID, serviceID, methodID.
type RequestHeader struct {
	Context   *rpcctx.Context
	RequestID uint64
	ServiceID uint64
	MethodID  uint64
}

// WriteRequest pre-sizes a writer for the whole frame (prefix ‖ context ‖
// requestID ‖ serviceID ‖ methodID ‖ payload) and writes it in one pass,
// then hands the same writer to writePayload so the payload concatenates
// without byte realignment.
func WriteRequest(hdr RequestHeader, payloadBitSize int, writePayload func(*wire.Writer) error) ([]byte, error) {
	size := PrefixLen*8 + hdr.Context.BitSize() +
		wire.Uint64BitSize(hdr.RequestID) + wire.Uint64BitSize(hdr.ServiceID) + wire.Uint64BitSize(hdr.MethodID) +
		payloadBitSize

	w := wire.NewWriter(size)
	if err := writePrefix(w, RequestPrefix); err != nil {
		return nil, err
	}
	if err := hdr.Context.Serialize(w); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, hdr.RequestID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, hdr.ServiceID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, hdr.MethodID); err != nil {
		return nil, err
	}
	if err := writePayload(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ReadRequestHeader parses the fixed fields of a request frame, assuming the
// 16-octet prefix has already been consumed by ReadPrefix. The reader is
// left positioned at the start of the payload, ready for the caller's
// generated request composite to deserialize from it directly.
func ReadRequestHeader(r *wire.Reader) (RequestHeader, error) {
	ctx := rpcctx.New(nil)
	if err := ctx.Deserialize(r); err != nil {
		return RequestHeader{}, err
	}
	reqID, err := wire.ReadUint64(r)
	if err != nil {
		return RequestHeader{}, err
	}
	svcID, err := wire.ReadUint64(r)
	if err != nil {
		return RequestHeader{}, err
	}
	methodID, err := wire.ReadUint64(r)
	if err != nil {
		return RequestHeader{}, err
	}
	return RequestHeader{Context: ctx, RequestID: reqID, ServiceID: svcID, MethodID: methodID}, nil
}

// Response kinds.
const (
	ResponseKindError   uint8 = 0x01
	ResponseKindMessage uint8 = 0x02
)

// ValidateResponseKind rejects any byte other than ResponseKindError or
// ResponseKindMessage.
func ValidateResponseKind(k uint8) error {
	if k != ResponseKindError && k != ResponseKindMessage {
		return ErrInvalidResponseKind
	}
	return nil
}

// WriteResponse writes prefix ‖ requestID ‖ responseKind ‖ body in one pass.
func WriteResponse(requestID uint64, kind uint8, bodyBitSize int, writeBody func(*wire.Writer) error) ([]byte, error) {
	size := PrefixLen*8 + wire.Uint64BitSize(requestID) + wire.Uint8BitSize() + bodyBitSize
	w := wire.NewWriter(size)
	if err := writePrefix(w, ResponsePrefix); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, requestID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint8(w, kind); err != nil {
		return nil, err
	}
	if err := writeBody(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ReadResponseHeader parses requestID and responseKind, assuming the prefix
// has already been consumed. The reader is left positioned at the body.
func ReadResponseHeader(r *wire.Reader) (requestID uint64, kind uint8, err error) {
	requestID, err = wire.ReadUint64(r)
	if err != nil {
		return 0, 0, err
	}
	kind, err = wire.ReadUint8(r)
	if err != nil {
		return 0, 0, err
	}
	if err := ValidateResponseKind(kind); err != nil {
		return 0, 0, err
	}
	return requestID, kind, nil
}

// StreamMessageHeader is the fixed portion of a stream-message frame:
// streamID ‖ requestID ‖ methodID, preceding the payload.
type StreamMessageHeader struct {
	StreamID  uint64
	RequestID uint64
	MethodID  uint64
}

// WriteStreamMessage writes prefix ‖ streamID ‖ requestID ‖ methodID ‖
// payload in one pass.
func WriteStreamMessage(hdr StreamMessageHeader, payloadBitSize int, writePayload func(*wire.Writer) error) ([]byte, error) {
	size := PrefixLen*8 + wire.Uint64BitSize(hdr.StreamID) + wire.Uint64BitSize(hdr.RequestID) + wire.Uint64BitSize(hdr.MethodID) + payloadBitSize
	w := wire.NewWriter(size)
	if err := writePrefix(w, StreamMessagePrefix); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, hdr.StreamID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, hdr.RequestID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, hdr.MethodID); err != nil {
		return nil, err
	}
	if err := writePayload(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ReadStreamMessageHeader parses a stream-message frame's fixed fields,
// assuming the prefix has already been consumed.
func ReadStreamMessageHeader(r *wire.Reader) (StreamMessageHeader, error) {
	streamID, err := wire.ReadUint64(r)
	if err != nil {
		return StreamMessageHeader{}, err
	}
	reqID, err := wire.ReadUint64(r)
	if err != nil {
		return StreamMessageHeader{}, err
	}
	methodID, err := wire.ReadUint64(r)
	if err != nil {
		return StreamMessageHeader{}, err
	}
	return StreamMessageHeader{StreamID: streamID, RequestID: reqID, MethodID: methodID}, nil
}

// WriteStreamResponse writes prefix ‖ streamID ‖ requestID ‖ responseKind ‖
// body in one pass (the stream-message analogue of WriteResponse).
func WriteStreamResponse(streamID, requestID uint64, kind uint8, bodyBitSize int, writeBody func(*wire.Writer) error) ([]byte, error) {
	size := PrefixLen*8 + wire.Uint64BitSize(streamID) + wire.Uint64BitSize(requestID) + wire.Uint8BitSize() + bodyBitSize
	w := wire.NewWriter(size)
	if err := writePrefix(w, StreamResponsePrefix); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, streamID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, requestID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint8(w, kind); err != nil {
		return nil, err
	}
	if err := writeBody(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ReadStreamResponseHeader parses streamID, requestID, and responseKind,
// assuming the prefix has already been consumed.
func ReadStreamResponseHeader(r *wire.Reader) (streamID, requestID uint64, kind uint8, err error) {
	streamID, err = wire.ReadUint64(r)
	if err != nil {
		return 0, 0, 0, err
	}
	requestID, err = wire.ReadUint64(r)
	if err != nil {
		return 0, 0, 0, err
	}
	kind, err = wire.ReadUint8(r)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := ValidateResponseKind(kind); err != nil {
		return 0, 0, 0, err
	}
	return streamID, requestID, kind, nil
}

// WriteStreamClose writes prefix ‖ streamID, with no other fields.
func WriteStreamClose(streamID uint64) ([]byte, error) {
	size := PrefixLen*8 + wire.Uint64BitSize(streamID)
	w := wire.NewWriter(size)
	if err := writePrefix(w, StreamClosePrefix); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(w, streamID); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// ReadStreamClose parses the streamID of a stream-close frame, assuming the
// prefix has already been consumed.
func ReadStreamClose(r *wire.Reader) (uint64, error) {
	return wire.ReadUint64(r)
}
