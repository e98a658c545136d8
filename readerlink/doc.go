// Package readerlink maintains the outbound TCP connection from the bridge to an RFID reader.
//
// A Link dials the configured reader endpoint, feeds every received chunk through the frame
// codec, parses each complete frame as an autoid.Reading and hands it to a Handler together with
// connection health transitions. Network failures never escape the Link: every dial error,
// read error or remote close moves the link to the disconnected state and schedules a reconnect
// according to the configured RetryPolicy, until Close is called.
//
// Link states:
//
//	Disconnected --Open/retry--> Connecting --dial ok--> Connected
//	     ^                            |                      |
//	     +---------dial error---------+------read error------+
//
//	any state --Close--> Stopped (terminal)
//
// Usage Example:
//
//	cfg, err := readerlink.NewConfig("127.0.0.1", 5678,
//	    readerlink.WithReconnectDelay(100*time.Millisecond),
//	    readerlink.WithConnectTimeout(time.Second),
//	)
//	// ... handle error ...
//	link, err := readerlink.NewLink(ctx, cfg, handler)
//	// ... handle error ...
//	defer link.Close()
//
//	err = link.Open(false)
package readerlink
