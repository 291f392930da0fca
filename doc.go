// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package actorrpc is a small actor RPC runtime. A caller records a method
// invocation on a named actor into an Envelope, a Transport carries it to the
// host of that actor, the host decodes it, executes the target and answers
// with exactly one outcome: a value, void, or an error.
//
// # Usage
//
// Host side:
//
//	sys := actorrpc.NewSystem()
//	actorrpc.MustRegister[Greeting](sys.Types(), "Greeting")
//
//	id := sys.AssignID("Greeter")
//	greeter := actorrpc.NewBaseActor(id, actorrpc.Methods{
//	    "greet(name:)": actorrpc.Unary(func(ctx context.Context, name string) (string, error) {
//	        return "Hello, " + name, nil
//	    }),
//	})
//	if err := sys.ActorReady(greeter); err != nil {
//	    log.Fatal(err)
//	}
//
//	server, err := actorrpc.Listen(":9000", sys)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go server.Serve(ctx)
//
// Caller side:
//
//	transport, err := actorrpc.Dial(ctx, "localhost:9000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer transport.Close()
//
//	sys := actorrpc.NewSystem(actorrpc.WithTransportClient(transport))
//	greeting, err := actorrpc.Call[string](ctx, sys, id, "greet(name:)", "Ada")
//
// # Transport Selection
//
// ZAP, a length-framed TCP protocol, is the default. gRPC and JSON-RPC 2.0
// over HTTP are selected with WithTransport and WithServerTransport:
//
//	actorrpc.Dial(ctx, addr, actorrpc.WithTransport(actorrpc.TransportGRPC))
//	actorrpc.Listen(addr, sys, actorrpc.WithServerTransport(actorrpc.TransportHTTP))
//
// All transports carry the same binary envelope and response frames, so the
// System does not know which one is in use.
//
// # Architecture
//
//   - registry.go: TypeRegistry mapping wire names to Go types
//   - envelope.go, wire.go: the Envelope and its binary layout
//   - encoder.go, decoder.go: InvocationEncoder and InvocationDecoder
//   - result.go: ResultHandler and the response frame
//   - directory.go: ActorDirectory, id assignment and resolution
//   - actor.go: Actor, Methods and typed method adapters
//   - system.go, call.go: the System dispatcher, RemoteCall and RemoteCallVoid
//   - codec.go: value codecs (JSON, gob, CBOR, protobuf, raw bytes)
//   - transport.go, dial.go: transport registry, Dial and Listen
//   - zap.go, dial_grpc.go, json.go: ZAP, gRPC and HTTP transports
package actorrpc
