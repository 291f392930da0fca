// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command actorrpc hosts the Greeter actor and calls it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/actorrpc"
	"github.com/luxfi/actorrpc/internal/config"
	"github.com/luxfi/actorrpc/internal/diag"
	"github.com/luxfi/actorrpc/internal/greeter"
	"github.com/luxfi/actorrpc/internal/otel"
	"github.com/op/go-logging"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const serviceName = "actorrpc"

var log = logging.MustGetLogger("cmd")

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("actorrpc: %v", err)
	}
	level, _ := actorrpc.ParseLogLevel(cfg.LogLevel)
	actorrpc.SetupLogging(os.Stderr, "", level)

	app := cli.NewApp()
	app.Name = "actorrpc"
	app.Usage = "host and call actors over ZAP, gRPC or JSON-RPC"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "codec",
			Value: cfg.Codec,
			Usage: "value codec: json, gob, cbor, proto or binary",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "Host the Greeter singleton on every configured transport",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "zap", Value: cfg.ZAPAddr, Usage: "ZAP listen address, empty to disable"},
				cli.StringFlag{Name: "grpc", Value: cfg.GRPCAddr, Usage: "gRPC listen address, empty to disable"},
				cli.StringFlag{Name: "http", Value: cfg.HTTPAddr, Usage: "JSON-RPC listen address, empty to disable"},
				cli.StringFlag{Name: "diag", Value: cfg.DiagAddr, Usage: "diagnostic HTTP address, empty to disable"},
				cli.BoolFlag{Name: "strict-generics", Usage: "reject envelopes with malformed generic substitutions"},
			},
			Action: func(c *cli.Context) error {
				return serveCommand(c, cfg)
			},
		},
		{
			Name:      "greet",
			Usage:     "Call greet(name:) on a remote Greeter",
			ArgsUsage: "[name]",
			Flags:     clientFlags(cfg),
			Action:    greetCommand,
		},
		{
			Name:   "hello",
			Usage:  "Call hello() on a remote Greeter",
			Flags:  clientFlags(cfg),
			Action: helloCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		config.Exitf("actorrpc: %v", err)
	}
}

func clientFlags(cfg config.Config) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "transport, t", Value: cfg.Transport, Usage: "zap, grpc or http"},
		cli.StringFlag{Name: "peer, p", Value: cfg.Peer, Usage: "address of the host"},
		cli.DurationFlag{Name: "timeout", Value: cfg.CallTimeout, Usage: "call timeout"},
	}
}

func codecFlag(c *cli.Context) (actorrpc.Codec, error) {
	return actorrpc.CodecByName(c.GlobalString("codec"))
}

func serveCommand(c *cli.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, otel.Tracing{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warningf("tracing shutdown: %v", err)
		}
	}()

	codec, err := codecFlag(c)
	if err != nil {
		return err
	}
	sys := actorrpc.NewSystem(
		actorrpc.WithCodec(codec),
		actorrpc.WithStrictGenerics(cfg.StrictGenerics || c.Bool("strict-generics")),
	)
	g, err := greeter.Host(sys)
	if err != nil {
		return err
	}

	servers, err := listenAll(c, sys)
	if err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, server := range servers {
		log.Infof("serving %s on %s", g.ID(), server.Addr())
		eg.Go(func() error { return server.Serve(ctx) })
	}

	if addr := c.String("diag"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           diag.NewHandler(),
			ReadHeaderTimeout: actorrpc.HTTPClient,
		}
		eg.Go(func() error {
			log.Infof("diagnostics on http://%s", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	err = eg.Wait()
	log.Infof("shutting down after %d hello() calls", g.Hellos())
	return err
}

// listenAll opens a listener per configured transport. If one fails, the
// listeners already opened are closed.
func listenAll(c *cli.Context, h actorrpc.Handler) ([]actorrpc.Server, error) {
	var servers []actorrpc.Server
	for _, l := range []struct{ transport, addr string }{
		{actorrpc.TransportZAP, c.String("zap")},
		{actorrpc.TransportGRPC, c.String("grpc")},
		{actorrpc.TransportHTTP, c.String("http")},
	} {
		if l.addr == "" {
			continue
		}
		server, err := actorrpc.Listen(l.addr, h, actorrpc.WithServerTransport(l.transport))
		if err != nil {
			closeAll(servers)
			return nil, fmt.Errorf("%s listen on %s: %w", l.transport, l.addr, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func closeAll(servers []actorrpc.Server) {
	for _, s := range servers {
		if err := s.Close(); err != nil {
			log.Warningf("closing %s: %v", s.Addr(), err)
		}
	}
}

// dialGreeter connects to the configured peer and returns a Greeter client.
func dialGreeter(ctx context.Context, c *cli.Context) (*greeter.Client, func(), error) {
	transport, peer := c.String("transport"), c.String("peer")
	codec, err := codecFlag(c)
	if err != nil {
		return nil, nil, err
	}
	if transport == actorrpc.TransportGRPC {
		if err := actorrpc.WaitForHealth(ctx, peer); err != nil {
			return nil, nil, err
		}
	}
	t, err := actorrpc.Dial(ctx, peer, actorrpc.WithTransport(transport))
	if err != nil {
		return nil, nil, err
	}
	sys := actorrpc.NewSystem(actorrpc.WithCodec(codec), actorrpc.WithTransportClient(t))
	if err := greeter.RegisterTypes(sys.Types()); err != nil {
		t.Close()
		return nil, nil, err
	}
	return greeter.NewClient(sys), func() { t.Close() }, nil
}

func greetCommand(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	client, closeFn, err := dialGreeter(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()

	name := c.Args().First()
	if name == "" {
		name = "world"
	}
	greeting, err := client.Greet(ctx, name)
	if err != nil {
		var ge *greeter.GreetError
		if errors.As(err, &ge) {
			return fmt.Errorf("greeter refused: %s", ge.Reason)
		}
		return err
	}
	fmt.Println(greeting)
	return nil
}

func helloCommand(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	client, closeFn, err := dialGreeter(ctx, c)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := client.Hello(ctx); err != nil {
		return err
	}
	log.Infof("hello() delivered to %s", actorrpc.SingletonID(greeter.TypeName))
	return nil
}
