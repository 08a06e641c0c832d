// protocol/frame.go
package protocol

import (
	"encoding/binary"
	"fmt"
)

// CheckKind selects the trailing integrity check.
type CheckKind uint8

const (
	// CheckCRC16 is CRC-16/CCITT-FALSE over header+payload, big-endian, 2 bytes.
	CheckCRC16 CheckKind = 0
	// CheckSum8 is the mod-256 sum of header+payload, 1 byte.
	CheckSum8 CheckKind = 1
)

// Layout fixes the field widths of the wire frame:
//
//	domain(1) kind(1) length(LengthSize, big-endian) payload check
//
// The exact widths are device-specific, so they are configuration, not
// constants. The defaults match the bench device.
type Layout struct {
	LengthSize int // 1 or 2
	Check      CheckKind
}

// DefaultLayout is the layout validated against the bench device.
var DefaultLayout = Layout{LengthSize: 2, Check: CheckCRC16}

// Frame is the logical command/response unit before chunking.
type Frame struct {
	Domain  DomainKind
	Kind    MessageKind
	Payload []byte
}

func (l Layout) headerSize() int { return 2 + l.LengthSize }

func (l Layout) checkSize() int {
	if l.Check == CheckSum8 {
		return 1
	}
	return 2
}

// Overhead is the number of non-payload bytes per frame.
func (l Layout) Overhead() int { return l.headerSize() + l.checkSize() }

// MaxPayload is the largest payload the length field can declare.
func (l Layout) MaxPayload() int {
	if l.LengthSize == 1 {
		return 0xff
	}
	return 0xffff
}

// Encode serializes a frame. Pure; no IO.
func (l Layout) Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > l.MaxPayload() {
		return nil, fmt.Errorf("%w: payload %d exceeds length field", ErrFrameFormat, len(f.Payload))
	}

	buf := make([]byte, 0, l.Overhead()+len(f.Payload))
	buf = append(buf, byte(f.Domain), byte(f.Kind))
	buf = l.appendLength(buf, len(f.Payload))
	buf = append(buf, f.Payload...)

	return l.appendCheck(buf), nil
}

// Decode validates and parses a complete frame.
// Length mismatch is ErrFrameFormat; integrity failure is ErrChecksumMismatch.
func (l Layout) Decode(b []byte) (Frame, error) {
	if len(b) < l.Overhead() {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrFrameFormat, len(b), l.Overhead())
	}

	plen := l.readLength(b)
	if len(b) != l.Overhead()+plen {
		return Frame{}, fmt.Errorf("%w: declared payload %d, frame is %d bytes", ErrFrameFormat, plen, len(b))
	}

	body := b[:l.headerSize()+plen]
	if !l.verifyCheck(body, b[len(body):]) {
		return Frame{}, ErrChecksumMismatch
	}

	f := Frame{
		Domain:  DomainKind(b[0]),
		Kind:    MessageKind(b[1]),
		Payload: append([]byte(nil), b[l.headerSize():l.headerSize()+plen]...),
	}
	if !f.Domain.Valid() {
		return Frame{}, fmt.Errorf("%w: unknown domain tag %d", ErrFrameFormat, b[0])
	}
	return f, nil
}

// DeclaredTotal returns the full frame size announced by the embedded
// header, once enough bytes are buffered to read it.
func (l Layout) DeclaredTotal(b []byte) (int, bool) {
	if len(b) < l.headerSize() {
		return 0, false
	}
	return l.Overhead() + l.readLength(b), true
}

func (l Layout) appendLength(buf []byte, n int) []byte {
	if l.LengthSize == 1 {
		return append(buf, byte(n))
	}
	return binary.BigEndian.AppendUint16(buf, uint16(n))
}

func (l Layout) readLength(b []byte) int {
	if l.LengthSize == 1 {
		return int(b[2])
	}
	return int(binary.BigEndian.Uint16(b[2:4]))
}

func (l Layout) appendCheck(body []byte) []byte {
	if l.Check == CheckSum8 {
		return append(body, sum8(body))
	}
	return binary.BigEndian.AppendUint16(body, crc16(body))
}

func (l Layout) verifyCheck(body, check []byte) bool {
	if l.Check == CheckSum8 {
		return check[0] == sum8(body)
	}
	return binary.BigEndian.Uint16(check) == crc16(body)
}

func sum8(b []byte) byte {
	var s byte
	for _, v := range b {
		s += v
	}
	return s
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xffff, no reflection).
func crc16(b []byte) uint16 {
	crc := uint16(0xffff)
	for _, v := range b {
		crc ^= uint16(v) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
