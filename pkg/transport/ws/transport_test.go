package ws

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"
)

type nopCloser struct{}

func (nopCloser) Read([]byte) (int, error)    { return 0, io.EOF }
func (nopCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopCloser) Close() error                { return nil }

// TestConnReadMessagesDispatchesBinaryMessagesOnly exercises Conn's merged
// transport.Connection behavior end to end: readMessages must hand binary
// data messages to the installed message handler, drop non-binary ones
// silently, and fire the close handler once the peer's close frame ends the
// read loop.
func TestConnReadMessagesDispatchesBinaryMessagesOnly(t *testing.T) {
	frames := []byte{
		0x82, 0x02, 'h', 'i', // unmasked binary "hi"
		0x81, 0x07, 'i', 'g', 'n', 'o', 'r', 'e', 'd', // unmasked text "ignored"
		0x88, 0x00, // unmasked close, empty payload
	}

	c := &Conn{
		logger: slog.Default(),
		bufio:  bufio.NewReadWriter(bufio.NewReader(bytes.NewReader(frames)), bufio.NewWriter(io.Discard)),
		writer: make(chan internalMessage),
		closer: nopCloser{},
	}
	go c.writeMessages()

	got := make(chan []byte, 4)
	closed := make(chan struct{}, 1)
	c.SetMessageHandler(func(msg []byte) { got <- msg })
	c.SetCloseHandler(func() { closed <- struct{}{} })

	go c.readMessages()

	select {
	case msg := <-got:
		if string(msg) != "hi" {
			t.Errorf("dispatched message = %q, want %q", msg, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched binary message")
	}

	select {
	case <-got:
		t.Fatal("text message must not reach the message handler")
	case <-closed:
		// Expected: the close frame ends the read loop and fires onClose.
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close handler")
	}
}
