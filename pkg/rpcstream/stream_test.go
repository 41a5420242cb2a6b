package rpcstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

type stringPayload struct{ s string }

func (p stringPayload) BitSize() int                   { return wire.StringBitSize(p.s) }
func (p stringPayload) Serialize(w *wire.Writer) error { return wire.WriteString(w, p.s) }
func (p *stringPayload) Deserialize(r *wire.Reader) error {
	s, err := wire.ReadString(r)
	if err != nil {
		return err
	}
	p.s = s
	return nil
}

type recordingSender struct {
	sent [][]byte
}

func (s *recordingSender) Send(msg []byte) error {
	s.sent = append(s.sent, msg)
	return nil
}

func TestCallDeliversMatchingResponse(t *testing.T) {
	sender := &recordingSender{}
	s := New(7, sender)

	done := make(chan struct {
		r   *wire.Reader
		err error
	}, 1)
	go func() {
		ctx := rpcctx.New(context.Background())
		r, err := Call(ctx, s, 5, &stringPayload{s: "hi"})
		done <- struct {
			r   *wire.Reader
			err error
		}{r, err}
	}()

	time.Sleep(10 * time.Millisecond)
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sender.sent))
	}

	r := wire.NewReader(sender.sent[0])
	kind, err := frame.ReadPrefix(r)
	if err != nil || kind != frame.KindStreamMessage {
		t.Fatalf("ReadPrefix = %v, %v, want KindStreamMessage", kind, err)
	}
	hdr, err := frame.ReadStreamMessageHeader(r)
	if err != nil {
		t.Fatalf("ReadStreamMessageHeader: %v", err)
	}
	if hdr.StreamID != 7 || hdr.MethodID != 5 {
		t.Fatalf("header = %+v, want StreamID=7 MethodID=5", hdr)
	}

	resp := stringPayload{s: "echo:hi"}
	respMsg, err := frame.WriteStreamResponse(7, hdr.RequestID, frame.ResponseKindMessage, resp.BitSize(), resp.Serialize)
	if err != nil {
		t.Fatalf("WriteStreamResponse: %v", err)
	}
	respReader := wire.NewReader(respMsg)
	if _, err := frame.ReadPrefix(respReader); err != nil {
		t.Fatalf("ReadPrefix(resp): %v", err)
	}
	_, reqID, respKind, err := frame.ReadStreamResponseHeader(respReader)
	if err != nil {
		t.Fatalf("ReadStreamResponseHeader: %v", err)
	}
	if !s.Deliver(reqID, respKind, respReader) {
		t.Fatal("Deliver reported no match")
	}

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("Call err = %v", got.err)
		}
		var p stringPayload
		if err := p.Deserialize(got.r); err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if p.s != "echo:hi" {
			t.Errorf("response = %q, want %q", p.s, "echo:hi")
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not return")
	}
}

func TestCallSurfacesRemoteError(t *testing.T) {
	sender := &recordingSender{}
	s := New(7, sender)

	errCh := make(chan error, 1)
	go func() {
		ctx := rpcctx.New(context.Background())
		_, err := Call(ctx, s, 5, &stringPayload{s: "hi"})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sender.sent))
	}

	r := wire.NewReader(sender.sent[0])
	if _, err := frame.ReadPrefix(r); err != nil {
		t.Fatalf("ReadPrefix: %v", err)
	}
	hdr, err := frame.ReadStreamMessageHeader(r)
	if err != nil {
		t.Fatalf("ReadStreamMessageHeader: %v", err)
	}

	respMsg, err := frame.WriteStreamResponse(7, hdr.RequestID, frame.ResponseKindError,
		wire.StringBitSize("boom"), func(w *wire.Writer) error { return wire.WriteString(w, "boom") })
	if err != nil {
		t.Fatalf("WriteStreamResponse: %v", err)
	}
	respReader := wire.NewReader(respMsg)
	if _, err := frame.ReadPrefix(respReader); err != nil {
		t.Fatalf("ReadPrefix(resp): %v", err)
	}
	_, reqID, kind, err := frame.ReadStreamResponseHeader(respReader)
	if err != nil {
		t.Fatalf("ReadStreamResponseHeader: %v", err)
	}
	if !s.Deliver(reqID, kind, respReader) {
		t.Fatal("Deliver reported no match")
	}

	select {
	case err := <-errCh:
		var remote RemoteError
		if !errors.As(err, &remote) || string(remote) != "boom" {
			t.Fatalf("err = %v, want RemoteError(\"boom\")", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not return")
	}
}

func TestCloseCompletesPendingCallsWithCause(t *testing.T) {
	sender := &recordingSender{}
	s := New(1, sender)

	errCh := make(chan error, 1)
	go func() {
		ctx := rpcctx.New(context.Background())
		_, err := Call(ctx, s, 1, &stringPayload{s: "x"})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cause := errors.New("connection gone")
	s.Close(cause)

	select {
	case err := <-errCh:
		if !errors.Is(err, cause) {
			t.Errorf("err = %v, want %v", err, cause)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not return after Close")
	}

	if !s.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
}

func TestCallOnClosedStreamFailsImmediately(t *testing.T) {
	sender := &recordingSender{}
	s := New(1, sender)
	s.Close(nil)

	ctx := rpcctx.New(context.Background())
	_, err := Call(ctx, s, 1, &stringPayload{s: "x"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestRegistryOpenAndCloseAll(t *testing.T) {
	reg := NewRegistry()
	sender := &recordingSender{}

	s1 := reg.Open(sender)
	s2 := reg.Open(sender)
	if s1.ID == s2.ID {
		t.Fatalf("Open assigned duplicate IDs: %d, %d", s1.ID, s2.ID)
	}

	if _, ok := reg.Get(s1.ID); !ok {
		t.Fatal("Get did not find s1")
	}

	cause := errors.New("conn failed")
	reg.CloseAll(cause)

	if !s1.IsClosed() || !s2.IsClosed() {
		t.Fatal("CloseAll did not close all streams")
	}
	if _, ok := reg.Get(s1.ID); ok {
		t.Fatal("Get found s1 after CloseAll")
	}
}
