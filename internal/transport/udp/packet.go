// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------------+
| Field              | Data Type | Size (Bytes) | Description                    |
|--------------------|-----------|--------------|--------------------------------|
| Sequence Number    | uint32    | 4            | Monotonically increasing       |
| Timestamp          | int64     | 8            | Nanoseconds since epoch        |
| Frequency Count    | uint16    | 2            | Number of frequency bytes (F)  |
| Frequency Data     | []byte    | F            | Normalized spectrum, 0..255    |
| Time Domain Count  | uint16    | 2            | Number of waveform bytes (T)   |
| Time Domain Data   | []byte    | T            | Normalized waveform, 0..255    |
+------------------------------------------------------------------------------+
*/

const headerSize = 4 + 8 + 2

// MaxChannelLength is the largest channel a packet can carry.
const MaxChannelLength = 1<<16 - 1

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Frequency  []byte
	TimeDomain []byte
}

// AppendPacket appends the encoding of p to dst.
func AppendPacket(dst []byte, p Packet) ([]byte, error) {
	if len(p.Frequency) > MaxChannelLength || len(p.TimeDomain) > MaxChannelLength {
		return dst, fmt.Errorf("udp: channel too long (%d, %d)", len(p.Frequency), len(p.TimeDomain))
	}
	dst = binary.BigEndian.AppendUint32(dst, p.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(p.Timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(p.Frequency)))
	dst = append(dst, p.Frequency...)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(p.TimeDomain)))
	dst = append(dst, p.TimeDomain...)
	return dst, nil
}

// DecodePacket parses one datagram. The returned slices alias b.
func DecodePacket(b []byte) (Packet, error) {
	var p Packet
	if len(b) < headerSize {
		return p, ErrShortPacket
	}
	p.Sequence = binary.BigEndian.Uint32(b[0:4])
	p.Timestamp = int64(binary.BigEndian.Uint64(b[4:12]))
	n := int(binary.BigEndian.Uint16(b[12:14]))
	b = b[headerSize:]
	if len(b) < n+2 {
		return p, ErrShortPacket
	}
	p.Frequency = b[:n]
	b = b[n:]
	m := int(binary.BigEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < m {
		return p, ErrShortPacket
	}
	p.TimeDomain = b[:m]
	return p, nil
}
