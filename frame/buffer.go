package frame

// Buffer is the receive buffer of a single connection.
//
// Buffer is NOT goroutine-safe; it must be owned by the one goroutine reading the connection.
// The zero value is an empty buffer ready to use.
type Buffer struct {
	buf []byte
	off int // start of unconsumed bytes
}

// Append adds a received chunk to the end of the buffer. p is copied.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	b.buf = append(b.buf, p...)
}

// TryDecodeFrames decodes every complete frame in the unconsumed bytes and marks them consumed.
//
// The returned payloads are copies and remain valid after further calls on b.
func (b *Buffer) TryDecodeFrames() [][]byte {
	frames, remainder := Decode(b.buf[b.off:])
	if len(frames) == 0 {
		return nil
	}

	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = append([]byte(nil), f...)
	}
	b.off = len(b.buf) - len(remainder)

	return out
}

// DropConsumed discards consumed bytes and moves any partial frame to the front.
// A fully drained buffer releases its backing array.
func (b *Buffer) DropConsumed() {
	if b.off == 0 {
		return
	}

	if b.off == len(b.buf) {
		b.Reset()
		return
	}

	n := copy(b.buf, b.buf[b.off:])
	clear(b.buf[n:])
	b.buf = b.buf[:n]
	b.off = 0
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

// Bytes returns a copy of the unconsumed bytes.
func (b *Buffer) Bytes() []byte {
	if b.Len() == 0 {
		return nil
	}

	return append([]byte(nil), b.buf[b.off:]...)
}

// Reset empties the buffer and releases its storage.
func (b *Buffer) Reset() {
	b.buf = nil
	b.off = 0
}
