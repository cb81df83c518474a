package canframe

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Size is the length of one raw frame as delivered by the frame source.
const Size = 16

// Layout of a raw frame, "<I8s" followed by unused trailing bytes:
//
//	0..3   identifier word, little-endian
//	4..11  payload
//	12..15 not interpreted
const (
	idOffset   = 0
	dataOffset = 4
	// DataLength is the fixed number of payload bytes carried and rendered.
	DataLength = 8
)

var (
	// ErrMalformedFrame is returned by Decode for buffers that are not exactly Size bytes.
	ErrMalformedFrame = errors.New("canframe: malformed frame")
	// ErrMalformedText is returned by Parse for lines that are not ID#PAYLOAD.
	ErrMalformedText = errors.New("canframe: malformed text frame")
)

// Frame is one decoded CAN frame.
type Frame struct {
	// Identifier word exactly as read from bytes 0..3. EFF/RTR/ERR flag
	// bits are not masked off.
	ID   uint32
	Data [DataLength]byte
}

// Decode reads the identifier and payload out of raw.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if len(raw) != Size {
		return f, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedFrame, len(raw), Size)
	}
	f.ID = binary.LittleEndian.Uint32(raw[idOffset : idOffset+4])
	copy(f.Data[:], raw[dataOffset:dataOffset+DataLength])
	return f, nil
}

// Render returns the canonical text form "<ID_HEX>#<PAYLOAD_HEX>".
// The identifier has no fixed width, the payload is always 16 hex digits.
func Render(f Frame) string {
	return fmt.Sprintf("%X#%X", f.ID, f.Data[:])
}

// String implements fmt.Stringer using Render.
func (f Frame) String() string {
	return Render(f)
}

// Format decodes raw and renders it.
func Format(raw []byte) (string, error) {
	f, err := Decode(raw)
	if err != nil {
		return "", err
	}
	return Render(f), nil
}

// Encode builds the raw frame Decode reads f back from. Bytes 12..15 are
// left zero.
func Encode(f Frame) []byte {
	raw := make([]byte, Size)
	binary.LittleEndian.PutUint32(raw[idOffset:idOffset+4], f.ID)
	copy(raw[dataOffset:dataOffset+DataLength], f.Data[:])
	return raw
}

// Parse reads a frame back from its text form. Besides the canonical
// rendering it accepts candump log lines such as
// "(1700000000.000000) can0 123#DEADBEEF". Payloads shorter than 8 bytes
// are zero padded.
func Parse(line string) (Frame, error) {
	var f Frame

	idPart, dataPart, found := strings.Cut(strings.TrimSpace(line), "#")
	if !found {
		return f, fmt.Errorf("%w: no # separator in %q", ErrMalformedText, line)
	}

	// drop "(timestamp) iface " prefix
	if idx := strings.LastIndexAny(idPart, " \t)"); idx != -1 {
		idPart = idPart[idx+1:]
	}
	if idPart == "" {
		return f, fmt.Errorf("%w: empty identifier in %q", ErrMalformedText, line)
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return f, fmt.Errorf("%w: identifier %q: %v", ErrMalformedText, idPart, err)
	}
	f.ID = uint32(id)

	dataPart = strings.ReplaceAll(strings.TrimSpace(dataPart), ".", "")
	if len(dataPart) > 2*DataLength {
		return f, fmt.Errorf("%w: payload %q longer than %d bytes", ErrMalformedText, dataPart, DataLength)
	}
	data, err := hex.DecodeString(dataPart)
	if err != nil {
		return f, fmt.Errorf("%w: payload %q: %v", ErrMalformedText, dataPart, err)
	}
	copy(f.Data[:], data)
	return f, nil
}
