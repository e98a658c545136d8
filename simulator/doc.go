// Package simulator implements a stand-in RFID reader that serves the reader wire protocol.
//
// An Endpoint listens on a TCP port, keeps every accepted client in a concurrent set and, on each
// SimulateRead, encodes one reading frame and writes the identical bytes to every connected
// client. Bytes sent by clients are read and discarded. A client is removed from the set when it
// disconnects or a write to it fails.
//
// Usage Example:
//
//	cfg, err := simulator.NewConfig(5678, simulator.WithAutoRead(time.Second, "E2000017221101441890", -52))
//	// ... handle error ...
//	ep, err := simulator.NewEndpoint(ctx, cfg)
//	// ... handle error ...
//	if err := ep.Initialize(); err != nil {
//	    // bind failure
//	}
//	defer ep.Shutdown()
//
//	_ = ep.SimulateRead("3034257BF7194E4000000001", 42)
package simulator
