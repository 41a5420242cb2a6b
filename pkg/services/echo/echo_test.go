package echo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tzrikka/nexrpc/pkg/rpcclient"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcserver"
	"github.com/tzrikka/nexrpc/pkg/rpcstream"
	"github.com/tzrikka/nexrpc/pkg/transport/tcp"
)

func newEchoServer(t *testing.T) (*Client, func()) {
	t.Helper()

	srvTransport := tcp.NewServerTransport("127.0.0.1:0")
	if err := srvTransport.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	srv := rpcserver.New(srvTransport)
	if err := Register(srv.Root()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	go func() { _ = srv.Run() }()

	addr := srvTransport.Listener.Addr().String()
	cli := rpcclient.New(tcp.NewClientTransport(addr), ServiceID)
	if err := cli.Connect(); err != nil {
		srv.Shutdown()
		t.Fatalf("Connect: %v", err)
	}

	return NewClient(cli), func() { srv.Shutdown() }
}

func TestStreamAssignsSequentialMessageIDs(t *testing.T) {
	client, cleanup := newEchoServer(t)
	defer cleanup()

	ctx := rpcctx.New(context.Background())
	stream, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	for i := 1; i <= 5; i++ {
		resp, err := Send(ctx, stream, fmt.Sprintf("msg-%d", i))
		if err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
		if resp.Status != "received" {
			t.Errorf("Send(%d).Status = %q, want %q", i, resp.Status, "received")
		}
		if resp.MessageID != uint64(i) {
			t.Errorf("Send(%d).MessageID = %d, want %d", i, resp.MessageID, i)
		}
	}
}

func TestTwoStreamsAreIsolated(t *testing.T) {
	client, cleanup := newEchoServer(t)
	defer cleanup()

	ctx := rpcctx.New(context.Background())
	s1, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream s1: %v", err)
	}
	s2, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream s2: %v", err)
	}
	if s1.ID == s2.ID {
		t.Fatalf("two OpenStream calls returned the same streamID: %d", s1.ID)
	}

	r1, err := Send(ctx, s1, "a")
	if err != nil {
		t.Fatalf("Send s1: %v", err)
	}
	r2, err := Send(ctx, s2, "b")
	if err != nil {
		t.Fatalf("Send s2: %v", err)
	}
	if r1.MessageID != 1 || r2.MessageID != 1 {
		t.Errorf("got messageIDs %d, %d, want 1, 1 (independent per-stream counters)", r1.MessageID, r2.MessageID)
	}
}

// TestStreamIsolationUnderInterleaving exercises the "Stream isolation"
// property (§8): two streams sending concurrently, interleaved on the wire,
// each observe only their own acknowledgements in FIFO order.
func TestStreamIsolationUnderInterleaving(t *testing.T) {
	client, cleanup := newEchoServer(t)
	defer cleanup()

	ctx := rpcctx.New(context.Background())
	s1, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream s1: %v", err)
	}
	s2, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream s2: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	wg.Add(2)

	run := func(s *rpcstream.Stream, label string) {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			resp, err := Send(ctx, s, fmt.Sprintf("%s-%d", label, i))
			if err != nil {
				t.Errorf("%s Send(%d): %v", label, i, err)
				return
			}
			if resp.MessageID != uint64(i) {
				t.Errorf("%s Send(%d).MessageID = %d, want %d (FIFO order broken)", label, i, resp.MessageID, i)
				return
			}
		}
	}

	go run(s1, "s1")
	go run(s2, "s2")
	wg.Wait()
}

func TestCloseStreamNotifiesPeerAndStopsLocalUse(t *testing.T) {
	client, cleanup := newEchoServer(t)
	defer cleanup()

	ctx := rpcctx.New(context.Background())
	stream, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	if _, err := Send(ctx, stream, "before close"); err != nil {
		t.Fatalf("Send before close: %v", err)
	}

	if err := client.CloseStream(stream); err != nil {
		t.Fatalf("CloseStream: %v", err)
	}
	if !stream.IsClosed() {
		t.Error("stream not closed after CloseStream")
	}

	if _, err := Send(ctx, stream, "after close"); !errors.Is(err, rpcstream.ErrClosed) {
		t.Errorf("Send after close err = %v, want rpcstream.ErrClosed", err)
	}

	if _, ok := client.c.Streams().Get(stream.ID); ok {
		t.Error("stream still present in client registry after CloseStream")
	}
}

func TestStreamClosesOnClientDisconnect(t *testing.T) {
	client, cleanup := newEchoServer(t)
	defer cleanup()

	ctx := rpcctx.New(context.Background())
	stream, err := client.OpenStream(ctx)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	client.c.Disconnect()
	time.Sleep(10 * time.Millisecond)

	if !stream.IsClosed() {
		t.Error("stream not closed after client disconnect")
	}
}
