// Package bridge connects one RFID reader to an automation adapter.
//
// A Bridge owns a reader link, the scan session controller and a queue of pending notifications.
// Link events (health changes and readings) and adapter commands (start/stop scan) are applied to
// the controller under one mutex, so each of them observes and leaves a consistent state. The
// notifications they produce are queued under the same mutex and delivered to the adapter in order
// after the mutex is released, which lets adapter callbacks issue commands back into the bridge.
//
// Usage Example:
//
//	linkCfg, _ := readerlink.NewConfig("127.0.0.1", 5678)
//	cfg, _ := bridge.NewConfig(linkCfg)
//	b, err := bridge.New(ctx, cfg, adapter)
//	// ... handle error ...
//	defer b.Close()
//
//	_ = b.Open()
//	code, err := b.StartScan(true)
package bridge
