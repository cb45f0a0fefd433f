package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Maximum payload size (64 MiB). A 4K RGB frame is ~25 MiB, so this leaves
// headroom without letting a corrupt length prefix allocate absurd buffers.
const maxPayloadSize = 64 << 20

// ErrPayloadTooLarge is returned when a frame's declared length exceeds
// the maximum allowed payload size.
var ErrPayloadTooLarge = errors.New("nitrogen protocol: payload exceeds maximum size")

// WriteFrame writes a single framed envelope payload to w.
//
// Frame layout (4 bytes + payload):
//
//	[4 bytes] payload length (little-endian uint32)
//	[N bytes] msgpack-encoded envelope
//
// There is no opcode byte: the envelope itself carries the message kind in
// its type/status field.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("nitrogen protocol: write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("nitrogen protocol: write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads a single framed payload from r. Returns io.EOF when the
// reader is exhausted cleanly at a frame boundary.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(hdr[:])

	if length > maxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("nitrogen protocol: read frame payload: %w", err)
		}
	}
	return payload, nil
}
