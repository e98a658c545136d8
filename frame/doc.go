// Package frame implements the reader wire framing: every frame is a 2-byte unsigned big-endian
// length followed by that many payload bytes.
//
// Decoding is incremental and pure. Decode splits a byte slice into complete payloads and the
// unconsumed remainder, so a receiver can feed arbitrary TCP chunks through it. Buffer wraps the
// same logic with an owned receive buffer for a single connection:
//
//	var buf frame.Buffer
//	for {
//	    n, err := conn.Read(chunk)
//	    // ... handle err ...
//	    buf.Append(chunk[:n])
//	    for _, payload := range buf.TryDecodeFrames() {
//	        // ... parse payload ...
//	    }
//	    buf.DropConsumed()
//	}
//
// The payload contents are opaque to this package.
package frame
