// Package server implements the event bridge: a websocket endpoint that
// streams engine state to clients and accepts commands from them.
//
// # Protocol
//
// Every message is one binary websocket frame holding a CBOR map with
// integer keys (see Message). On connect the bridge sends a snapshot of the
// engine, then one event message per engine event. A client sends command
// messages carrying an ID of its choosing; the bridge answers each with a
// result message carrying the same ID and, on failure, an error string.
// Text frames are ignored in both directions.
//
// # Endpoints
//
//	/ws        websocket bridge
//	/snapshot  current snapshot as a single CBOR message (application/cbor)
//	/healthz   liveness probe
//
// # Discovery
//
// When Config.Advertise is set the bridge registers itself with mDNS
// (see package discovery) so that clients on the LAN can find it without
// an explicit URL.
//
// # Usage Example
//
//	bus := engine.NewBus(0)
//	eng := engine.New(engine.Options{Dialer: dialer, Sink: bus})
//
//	srv, err := server.New(&server.Config{Listen: "127.0.0.1:7450"}, eng, bus)
//	if err != nil {
//	    return err
//	}
//	return srv.Serve(ctx)
//
// Client is the matching consumer used by the CLI.
package server
