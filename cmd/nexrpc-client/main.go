package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lithammer/shortuuid/v4"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/nexrpc/pkg/rpcclient"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/services/echo"
	"github.com/tzrikka/nexrpc/pkg/services/pingpong"
	"github.com/tzrikka/nexrpc/pkg/transport/tcp"
	"github.com/tzrikka/xdg"
)

const (
	ConfigDirName  = "nexrpc"
	ConfigFileName = "config.toml"
	DefaultServer  = "127.0.0.1:7475"
)

func main() {
	bi, _ := debug.ReadBuildInfo()
	path := configFile()

	addrFlag := &cli.StringFlag{
		Name:  "address",
		Usage: "server address to connect to",
		Value: DefaultServer,
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("NEXRPC_SERVER_ADDRESS"),
			toml.TOML("client.server_address", path),
		),
	}
	timeoutFlag := &cli.DurationFlag{
		Name:  "timeout",
		Usage: "per-call deadline; 0 disables it",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("NEXRPC_CALL_TIMEOUT"),
			toml.TOML("client.call_timeout", path),
		),
	}

	cmd := &cli.Command{
		Name:    "nexrpc-client",
		Usage:   "reference RPC client exercising the ping-pong and echo services",
		Version: bi.Main.Version,
		Commands: []*cli.Command{
			{
				Name:  "ping",
				Usage: "call PingPong/ping once and print the server's response",
				Flags: []cli.Flag{addrFlag, timeoutFlag, &cli.IntFlag{
					Name:  "count",
					Usage: "count value to send",
					Value: 1,
				}},
				Action: runPing,
			},
			{
				Name:  "echo",
				Usage: "open an echo stream and send a fixed sequence of messages",
				Flags: []cli.Flag{addrFlag, timeoutFlag, &cli.IntFlag{
					Name:  "messages",
					Usage: "number of messages to send over the stream",
					Value: 5,
				}},
				Action: runEcho,
			},
		},
	}

	initLog()

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func runPing(ctx context.Context, cmd *cli.Command) error {
	client := rpcclient.New(tcp.NewClientTransport(cmd.String("address")), pingpong.ServiceID)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	callID := shortuuid.New()
	slog.Info("ping call", slog.String("call_id", callID))

	rpcCtx, cancel := withDeadline(ctx, cmd.Duration("timeout"))
	defer cancel()

	got, err := pingpong.NewClient(client).Ping(rpcCtx, uint32(cmd.Int("count")))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	fmt.Printf("ping(%d) = %d\n", cmd.Int("count"), got)
	return nil
}

func runEcho(ctx context.Context, cmd *cli.Command) error {
	client := rpcclient.New(tcp.NewClientTransport(cmd.String("address")), echo.ServiceID)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	callID := shortuuid.New()
	slog.Info("echo call", slog.String("call_id", callID))

	rpcCtx, cancel := withDeadline(ctx, cmd.Duration("timeout"))
	defer cancel()

	ec := echo.NewClient(client)
	stream, err := ec.OpenStream(rpcCtx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	for i := 1; i <= cmd.Int("messages"); i++ {
		resp, err := echo.Send(rpcCtx, stream, fmt.Sprintf("message %d", i))
		if err != nil {
			return fmt.Errorf("send %d: %w", i, err)
		}
		fmt.Printf("sent %d, got status=%q messageID=%d\n", i, resp.Status, resp.MessageID)
	}
	return nil
}

// withDeadline wraps ctx in an rpcctx.Context, applying timeout if non-zero.
func withDeadline(ctx context.Context, timeout time.Duration) (*rpcctx.Context, context.CancelFunc) {
	if timeout <= 0 {
		return rpcctx.New(ctx), func() {}
	}
	stdCtx, cancel := context.WithTimeout(ctx, timeout)
	return rpcctx.New(stdCtx), cancel
}

func initLog() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))
}

// configFile returns the path to the app's configuration file, creating an
// empty one if it doesn't already exist.
func configFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, ConfigDirName, ConfigFileName)
	if err != nil {
		fmt.Printf("failed to create config file: %v\n", err)
		os.Exit(1)
	}
	return altsrc.StringSourcer(path)
}
