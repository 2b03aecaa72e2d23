// Package link implements the byte-oriented framing layer: encoding a
// payload into a checksummed frame for a single PHY write, and decoding an
// arbitrary byte stream back into payloads via a resynchronizing state
// machine.
package link

import "github.com/librescoot/linkrpc/pkg/crc8"

// Frame delimiters and checksum parameters.
const (
	SOF byte = 0xFA
	SOD byte = 0xFB
	EOF byte = 0xFE

	CRCInit byte = crc8.DefaultInit
	CRCPoly byte = crc8.DefaultPoly
)

// Payload size bounds. MinPayload/MaxPayload bound the typed message the
// transport layer hands down; MinPktLen/MaxPktLen are the corresponding
// bounds on the wire "len" field.
const (
	MinPayload = 1
	MaxPayload = 1024

	// len = [SOD] payload [pkt_crc] [EOF], i.e. 1 + len(payload) + 1 + 1.
	MinPktLen = 1 + MinPayload + 1 + 1
	MaxPktLen = 1 + MaxPayload + 1 + 1
)

// headerCRC computes hdr_crc = crc8(SOF, len_lo, len_hi).
func headerCRC(lenLo, lenHi byte) byte {
	return crc8.Compute([]byte{SOF, lenLo, lenHi}, CRCInit, CRCPoly)
}

// packetCRC computes pkt_crc = crc8(SOD, payload...).
func packetCRC(payload []byte) byte {
	buf := make([]byte, 0, 1+len(payload))
	buf = append(buf, SOD)
	buf = append(buf, payload...)
	return crc8.Compute(buf, CRCInit, CRCPoly)
}

func validPktLen(n int) bool {
	return n >= MinPktLen && n <= MaxPktLen
}
