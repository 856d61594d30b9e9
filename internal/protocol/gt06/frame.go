package gt06

import (
	"encoding/binary"
	"fmt"
)

// ReadFrame extracts the next frame from the front of buf.
//
// It returns the frame and the number of bytes it occupies, or one of:
//   - ErrIncompleteFrame: wait for more bytes, nothing to discard
//   - ErrFrameSync: discard the returned number of bytes and call again
//
// The returned frame aliases buf.
func ReadFrame(buf []byte) ([]byte, int, error) {
	start := findHeader(buf)
	if start < 0 {
		n := len(buf)
		// a trailing marker byte may be the first half of a header
		if n > 0 && isMarker(buf[n-1]) {
			n--
		}
		if n == 0 {
			return nil, 0, ErrIncompleteFrame
		}
		return nil, n, ErrFrameSync
	}
	if start > 0 {
		return nil, start, ErrFrameSync
	}

	var total int
	switch binary.BigEndian.Uint16(buf) {
	case HeaderBasic:
		if len(buf) < 3 {
			return nil, 0, ErrIncompleteFrame
		}
		total = int(buf[2]) + basicOverhead
	default:
		if len(buf) < 4 {
			return nil, 0, ErrIncompleteFrame
		}
		total = int(binary.BigEndian.Uint16(buf[2:])) + extendedOverhead
	}

	if len(buf) < total {
		return nil, 0, ErrIncompleteFrame
	}
	return buf[:total], total, nil
}

func findHeader(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == buf[i+1] && isMarker(buf[i]) {
			return i
		}
	}
	return -1
}

func isMarker(b byte) bool {
	return b == 0x78 || b == 0x79
}

// ParseFrame validates a complete frame and splits it into its fields
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMalformedFrame, len(raw))
	}

	header := binary.BigEndian.Uint16(raw)
	var declared, typeOffset, overhead int
	switch header {
	case HeaderBasic:
		declared, typeOffset, overhead = int(raw[2]), 3, basicOverhead
	case HeaderExtended:
		declared, typeOffset, overhead = int(binary.BigEndian.Uint16(raw[2:])), 4, extendedOverhead
	default:
		return nil, fmt.Errorf("%w: header 0x%04x", ErrMalformedFrame, header)
	}

	if len(raw) != declared+overhead {
		return nil, fmt.Errorf("%w: declared length %d, got %d bytes", ErrMalformedFrame, declared, len(raw))
	}
	// type + index + crc + footer
	if len(raw) < typeOffset+7 {
		return nil, fmt.Errorf("%w: declared length %d too small", ErrMalformedFrame, declared)
	}
	if binary.BigEndian.Uint16(raw[len(raw)-2:]) != Footer {
		return nil, fmt.Errorf("%w: bad footer", ErrMalformedFrame)
	}

	indexEnd := len(raw) - 4
	want := binary.BigEndian.Uint16(raw[indexEnd:])
	if got := Checksum(raw[2:indexEnd]); got != want {
		return nil, fmt.Errorf("%w: got 0x%04x, frame carries 0x%04x", ErrChecksumMismatch, got, want)
	}

	return &Frame{
		Header:   header,
		Length:   declared,
		Type:     raw[typeOffset],
		Payload:  raw[typeOffset+1 : len(raw)-6],
		Index:    binary.BigEndian.Uint16(raw[len(raw)-6:]),
		Checksum: want,
	}, nil
}

// BuildFrame assembles a frame around payload with the given header kind and sequence index
func BuildFrame(header uint16, msgType byte, payload []byte, index uint16) ([]byte, error) {
	declared := 1 + len(payload) + 4

	var out []byte
	switch header {
	case HeaderBasic:
		if declared > 0xFF {
			return nil, fmt.Errorf("%w: payload of %d bytes exceeds basic frame", ErrInvalidParameter, len(payload))
		}
		out = make([]byte, 0, declared+basicOverhead)
		out = binary.BigEndian.AppendUint16(out, HeaderBasic)
		out = append(out, byte(declared))
	case HeaderExtended:
		if declared > 0xFFFF {
			return nil, fmt.Errorf("%w: payload of %d bytes exceeds extended frame", ErrInvalidParameter, len(payload))
		}
		out = make([]byte, 0, declared+extendedOverhead)
		out = binary.BigEndian.AppendUint16(out, HeaderExtended)
		out = binary.BigEndian.AppendUint16(out, uint16(declared))
	default:
		return nil, fmt.Errorf("%w: header 0x%04x", ErrInvalidParameter, header)
	}

	out = append(out, msgType)
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint16(out, index)
	out = binary.BigEndian.AppendUint16(out, Checksum(out[2:]))
	out = binary.BigEndian.AppendUint16(out, Footer)
	return out, nil
}
