// Package control implements the local IPC channel between the daemon and
// the sessentryctl client. Commands ride a simple binary framing over a unix
// socket (non-Windows) or a named pipe (Windows).
package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Opcode identifies the frame kind.
type Opcode uint32

const (
	// OpRequest carries a command from the client to the daemon.
	OpRequest Opcode = 0
	// OpResponse carries the daemon's reply back to the client.
	OpResponse Opcode = 1

	// frameHeaderSize is the byte length of the frame header: a 4-byte
	// little-endian opcode followed by a 4-byte little-endian payload length.
	frameHeaderSize = 8

	// MaxPayloadSize is the maximum allowed payload size (1 MB).
	MaxPayloadSize = 1 << 20
)

// ErrPayloadTooLarge is returned when a frame payload exceeds MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload too large")

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

// Request is the JSON payload of an OpRequest frame.
type Request struct {
	// ID correlates the response with the request.
	ID string `json:"id"`
	// Command is the command text, for example "$预警状态".
	Command string `json:"command"`
	// Sender identifies who issued the command. The test command sends its
	// QR code there.
	Sender string `json:"sender,omitempty"`
}

// Response is the JSON payload of an OpResponse frame.
type Response struct {
	// ID echoes the request ID.
	ID string `json:"id"`
	// Reply is the command's reply text.
	Reply string `json:"reply,omitempty"`
	// Error is set when the command could not be executed.
	Error string `json:"error,omitempty"`
}

// ///////////////////////////////////////////////
// Frame Encoding
// ///////////////////////////////////////////////

// EncodeFrame builds a frame: [4-byte LE opcode][4-byte LE length][payload].
func EncodeFrame(opcode Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[8:], payload)
	return frame, nil
}

// ///////////////////////////////////////////////
// Frame Decoding
// ///////////////////////////////////////////////

// DecodeFrame reads a single frame from reader.
// It handles partial reads via io.ReadFull.
func DecodeFrame(reader io.Reader) (opcode Opcode, payload []byte, err error) {
	header := make([]byte, frameHeaderSize)
	if _, err = io.ReadFull(reader, header); err != nil {
		return 0, nil, fmt.Errorf("reading frame header: %w", err)
	}

	opcode = Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])

	if length > MaxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, length, MaxPayloadSize)
	}

	payload = make([]byte, length)
	if _, err = io.ReadFull(reader, payload); err != nil {
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}

	return opcode, payload, nil
}
