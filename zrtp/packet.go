// Package zrtp holds everything the filter needs to know about ZRTP without
// implementing the key agreement itself: the packet framing shared with RTP,
// the engine and callback interfaces, negotiated SRTP secrets and the
// status codes an engine reports.
package zrtp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math/bits"
)

const (
	// MagicCookie identifies ZRTP packets ("ZRTP" in ASCII).
	MagicCookie uint32 = 0x5a525450

	// HeaderLength is the fixed ZRTP packet header: flags, sequence
	// number, magic cookie and source identifier.
	HeaderLength = 12

	// CRCSize is the length of the trailing checksum.
	CRCSize = 4

	// MinPacketSize is a header and checksum with an empty message.
	MinPacketSize = HeaderLength + CRCSize

	// MaxPacketSize is the largest ZRTP packet that may be sent.
	MaxPacketSize = 3072

	// firstByte marks ZRTP packets; it is an invalid RTP version.
	firstByte = 0x10
)

var (
	// ErrShortPacket indicates a buffer too small for header and checksum.
	ErrShortPacket = errors.New("zrtp: packet too short")

	// ErrChecksum indicates the CRC-32c check failed.
	ErrChecksum = errors.New("zrtp: checksum mismatch")

	// ErrNotZRTP indicates the magic cookie is missing.
	ErrNotZRTP = errors.New("zrtp: magic cookie missing")

	// ErrTooLarge indicates a framed packet would exceed MaxPacketSize.
	ErrTooLarge = errors.New("zrtp: packet too large")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// IsZRTP reports whether buf is classified as ZRTP. Only the high nibble
// of the first byte is inspected; RTP and RTCP always carry version 2
// there.
func IsZRTP(buf []byte) bool {
	return len(buf) > 0 && buf[0]&0xF0 == firstByte
}

// Checksum returns the ZRTP checksum of data in the form written to the
// wire: CRC-32c with the byte order of RFC 4960 appendix B.
func Checksum(data []byte) uint32 {
	return bits.ReverseBytes32(crc32.Checksum(data, castagnoli))
}

// Packet is a parsed ZRTP packet.
type Packet struct {
	Sequence uint16
	SSRC     uint32
	// Message aliases the buffer passed to Parse.
	Message []byte
}

// Frame builds a ZRTP packet around msg.
func Frame(seq uint16, ssrc uint32, msg []byte) ([]byte, error) {
	total := HeaderLength + len(msg) + CRCSize
	if total > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, total)
	}

	buf := make([]byte, total)
	buf[0] = firstByte
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], seq)
	binary.BigEndian.PutUint32(buf[4:8], MagicCookie)
	binary.BigEndian.PutUint32(buf[8:12], ssrc)
	copy(buf[HeaderLength:], msg)

	crcOff := total - CRCSize
	binary.BigEndian.PutUint32(buf[crcOff:], Checksum(buf[:crcOff]))
	return buf, nil
}

// VerifyChecksum checks the trailing checksum of buf.
func VerifyChecksum(buf []byte) error {
	if len(buf) < MinPacketSize {
		return ErrShortPacket
	}
	crcOff := len(buf) - CRCSize
	if binary.BigEndian.Uint32(buf[crcOff:]) != Checksum(buf[:crcOff]) {
		return ErrChecksum
	}
	return nil
}

// Parse validates the checksum and then the magic cookie of buf.
func Parse(buf []byte) (*Packet, error) {
	if err := VerifyChecksum(buf); err != nil {
		return nil, err
	}
	if binary.BigEndian.Uint32(buf[4:8]) != MagicCookie {
		return nil, ErrNotZRTP
	}
	return &Packet{
		Sequence: binary.BigEndian.Uint16(buf[2:4]),
		SSRC:     binary.BigEndian.Uint32(buf[8:12]),
		Message:  buf[HeaderLength : len(buf)-CRCSize],
	}, nil
}
