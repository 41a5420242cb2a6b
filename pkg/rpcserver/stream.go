package rpcserver

import (
	"log/slog"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// dispatchStreamMessage routes an inbound stream-message frame to the
// stream it names and lets the stream answer it.
func (s *Server) dispatchStreamMessage(entry *Conn, r *wire.Reader) {
	hdr, err := frame.ReadStreamMessageHeader(r)
	if err != nil {
		s.logger.Error("rpc server: malformed stream-message frame", slog.Any("error", err))
		return
	}

	stream, ok := entry.streams.Get(hdr.StreamID)
	if !ok {
		s.logger.Warn("rpc server: stream-message for unknown stream", slog.Uint64("stream_id", hdr.StreamID))
		return
	}

	if err := stream.HandleIncoming(hdr, r); err != nil {
		s.logger.Error("rpc server: failed to answer stream message", slog.Any("error", err))
	}
}

// dispatchStreamClose removes and closes the named stream, completing any
// of its outstanding requests with "Stream closed".
func (s *Server) dispatchStreamClose(entry *Conn, r *wire.Reader) {
	streamID, err := frame.ReadStreamClose(r)
	if err != nil {
		s.logger.Error("rpc server: malformed stream-close frame", slog.Any("error", err))
		return
	}

	if stream, ok := entry.streams.Get(streamID); ok {
		stream.Close(nil)
		entry.streams.Remove(streamID)
	}
}
