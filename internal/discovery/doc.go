// Package discovery finds and announces origctl bridges with mDNS.
//
// A daemon running the event bridge advertises itself as "_origctl._tcp" with
// TXT records describing the websocket path and the earbuds it drives. CLI
// commands browse for that service when no bridge URL is given.
//
// # TXT Records
//
//   - path: websocket endpoint (default "/ws")
//   - device: Bluetooth address of the driven earbuds
//   - version: origctl version of the daemon
//
// # Usage Example
//
//	ad, err := discovery.Advertise(discovery.Advertisement{
//	    Instance: "origctl",
//	    Port:     7311,
//	    Device:   "AA:BB:CC:DD:EE:FF",
//	})
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	bridge, err := discovery.FindBridge(ctx, "AA:BB:CC:DD:EE:FF")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(bridge.URL())
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridge and CLI must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
