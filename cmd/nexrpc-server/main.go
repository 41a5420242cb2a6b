package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/nexrpc/pkg/rpcserver"
	"github.com/tzrikka/nexrpc/pkg/services/echo"
	"github.com/tzrikka/nexrpc/pkg/services/pingpong"
	"github.com/tzrikka/nexrpc/pkg/transport"
	"github.com/tzrikka/nexrpc/pkg/transport/tcp"
	"github.com/tzrikka/nexrpc/pkg/transport/unix"
	"github.com/tzrikka/xdg"
)

const (
	ConfigDirName  = "nexrpc"
	ConfigFileName = "config.toml"
	DefaultTCPAddr = "127.0.0.1:7475"
)

func main() {
	bi, _ := debug.ReadBuildInfo()

	cmd := &cli.Command{
		Name:    "nexrpc-server",
		Usage:   "reference RPC server hosting the ping-pong and echo services",
		Version: bi.Main.Version,
		Flags:   flags(),
		Action:  run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	path := configFile()
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
		&cli.StringFlag{
			Name:  "listen-address",
			Usage: "TCP address to listen on",
			Value: DefaultTCPAddr,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NEXRPC_LISTEN_ADDRESS"),
				toml.TOML("server.listen_address", path),
			),
		},
		&cli.StringFlag{
			Name:  "unix-socket",
			Usage: "Unix domain socket path to listen on, instead of TCP",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NEXRPC_UNIX_SOCKET"),
				toml.TOML("server.unix_socket", path),
			),
		},
		&cli.DurationFlag{
			Name:  "pingpong-sleep",
			Usage: "artificial delay before every PingPong response, to exercise client deadlines",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NEXRPC_PINGPONG_SLEEP"),
				toml.TOML("server.pingpong_sleep", path),
			),
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "record per-call CSV metrics under the current directory's metrics/ folder",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NEXRPC_METRICS"),
				toml.TOML("server.metrics", path),
			),
		},
		&cli.StringFlag{
			Name:  "instance-id",
			Usage: "opaque short-UUID identifying this server instance in logs; generated if unset",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("NEXRPC_INSTANCE_ID"),
				toml.TOML("server.instance_id", path),
			),
			Validator: validateInstanceID,
		},
	}
}

// validateInstanceID checks that a configured instance ID decodes as a
// well-formed short UUID; an empty value is allowed (New generates one).
func validateInstanceID(id string) error {
	if id == "" {
		return nil
	}
	_, err := shortuuid.DefaultEncoder.Decode(id)
	return err
}

func run(ctx context.Context, cmd *cli.Command) error {
	initLog(cmd.Bool("pretty-log"))

	st := serverTransport(cmd)
	if err := st.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	var opts []rpcserver.Option
	if cmd.Bool("metrics") {
		opts = append(opts, rpcserver.WithMetrics(zerolog.New(os.Stderr).With().Timestamp().Logger()))
	}

	srv := rpcserver.New(st, opts...)
	if err := pingpong.Register(srv.Root(), cmd.Duration("pingpong-sleep")); err != nil {
		return fmt.Errorf("register pingpong: %w", err)
	}
	if err := echo.Register(srv.Root()); err != nil {
		return fmt.Errorf("register echo: %w", err)
	}

	instanceID := cmd.String("instance-id")
	if instanceID == "" {
		instanceID = shortuuid.New()
	}
	slog.Info("nexrpc server starting",
		slog.String("address", cmd.String("listen-address")), slog.String("instance_id", instanceID))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	srv.Shutdown()
	return <-errCh
}

// serverTransport picks a Unix-domain-socket transport over TCP when
// unix-socket is set.
func serverTransport(cmd *cli.Command) transport.ServerTransport {
	if path := cmd.String("unix-socket"); path != "" {
		return unix.NewServerTransport(path)
	}
	return tcp.NewServerTransport(cmd.String("listen-address"))
}

func initLog(pretty bool) {
	var handler slog.Handler
	if pretty {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	}
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
