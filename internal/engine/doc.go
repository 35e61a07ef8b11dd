// Package engine drives a connection to OriG-family earbuds.
//
// An Engine owns one transport link at a time. It dials through a
// transport.Dialer (secure first, then insecure), runs a read loop that feeds
// the protocol.Decoder, applies decoded reports to a Synchronizer, and polls
// the device for status: once shortly after connecting and then periodically.
//
// # Connection Lifecycle
//
//	Disconnected -> Connecting -> Connected
//	                          \-> Error -> (Connect) -> Connecting
//
// Disconnect, end of stream, a read error or DeviceDisconnected tear the link
// down. Teardown resets the feature state to defaults; the battery cache is kept.
//
// # Events
//
// Every state change is published to the configured EventSink as an Event.
// Bus is an EventSink that fans events out to channel subscribers.
//
// # Commands
//
// Commands are available as methods (SetAncMode, SetGameMode, ...) and as
// Command values through Dispatch, which is what the event bridge uses.
// Commands fail with ErrNotConnected unless the engine is Connected. Writes
// are fire-and-forget; a failed write is logged and the frame dropped.
//
// # Usage Example
//
//	bus := engine.NewBus(0)
//	eng := engine.New(engine.Options{
//	    Dialer: transport.NewRFCOMMDialer(1),
//	    Sink:   bus,
//	    Cache:  cache,
//	})
//	if err := eng.Connect(ctx, engine.Device{Address: addr}, engine.ConnectOptions{}); err != nil {
//	    return err
//	}
//	defer eng.Disconnect()
//	_ = eng.SetAncMode(protocol.AncNormal)
package engine
