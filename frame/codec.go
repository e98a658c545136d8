package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the size of the length prefix in bytes.
	HeaderSize = 2
	// MaxPayloadSize is the largest payload a single frame can carry.
	MaxPayloadSize = math.MaxUint16
)

// ErrPayloadTooLarge indicates that a payload does not fit the 16-bit length prefix.
var ErrPayloadTooLarge = errors.New("frame payload exceeds 65535 bytes")

// Encode returns the wire representation of payload.
func Encode(payload []byte) ([]byte, error) {
	return AppendEncode(make([]byte, 0, HeaderSize+len(payload)), payload)
}

// AppendEncode appends the wire representation of payload to dst and returns the extended slice.
func AppendEncode(dst []byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))

	return append(dst, payload...), nil
}

// Decode splits buf into complete frame payloads and the remaining bytes.
//
// Decoding stops at the first frame whose payload is not fully available; that partial frame is
// returned untouched as part of remainder. Decoding only proceeds while more than a header is
// buffered, so a zero-length frame is decoded as an empty payload once further bytes follow it,
// and a buffer holding nothing but a length prefix is left unchanged.
// The returned payloads and remainder alias buf.
func Decode(buf []byte) (frames [][]byte, remainder []byte) {
	off := 0
	for len(buf)-off > HeaderSize {
		payloadLen := int(binary.BigEndian.Uint16(buf[off:]))
		end := off + HeaderSize + payloadLen
		if end > len(buf) {
			break
		}

		frames = append(frames, buf[off+HeaderSize:end:end])
		off = end
	}

	return frames, buf[off:]
}

// PendingLen reports how many more bytes are required to complete the frame at the start of buf.
// It returns 0 when buf starts with a complete frame.
func PendingLen(buf []byte) int {
	if len(buf) < HeaderSize {
		return HeaderSize - len(buf)
	}

	need := HeaderSize + int(binary.BigEndian.Uint16(buf)) - len(buf)
	if need < 0 {
		return 0
	}

	return need
}
