// Package packets decodes the fixed 16-byte LOFAR beamformed-data packet
// header used to check arrival order and compute a packet's derived
// sequence number ("packno"). It deliberately does not look past the
// header: the sample payload is opaque to this package.
package packets

import (
	"encoding/binary"
	"fmt"
)

// HeaderLength is the size in bytes of a LOFAR packet header.
const HeaderLength = 16

// BeamMode enumerates the 2-bit "bm" field of the source word.
type BeamMode uint8

// Header is the decoded form of a LOFAR packet's 16-byte header.
//
//	offset  field           type
//	0       Version         uint8
//	1-2     source word     rsp_id:5 unused1:1 error:1 is200MHz:1 bm:2 unused2:6
//	3       Config          uint8
//	4-5     Station         uint16
//	6       NumBeamlets     uint8
//	7       NumSlices       uint8
//	8-11    Timestamp       int32
//	12-15   Sequence        int32
type Header struct {
	Version     uint8
	RSPID       uint8
	Error       bool
	Is200MHz    bool
	BeamMode    BeamMode
	Config      uint8
	Station     uint16
	NumBeamlets uint8
	NumSlices   uint8
	Timestamp   int32
	Sequence    int32
}

// Decode parses a LOFAR header from the first HeaderLength bytes of buf.
// It returns an error if buf is shorter than HeaderLength.
func Decode(buf []byte) (*Header, error) {
	if len(buf) < HeaderLength {
		return nil, fmt.Errorf("packets: header needs %d bytes, got %d", HeaderLength, len(buf))
	}
	h := new(Header)
	h.Version = buf[0]

	source := binary.LittleEndian.Uint16(buf[1:3])
	h.RSPID = uint8(source & 0x1f)
	h.Error = (source>>6)&0x1 != 0
	h.Is200MHz = (source>>7)&0x1 != 0
	h.BeamMode = BeamMode((source >> 8) & 0x3)

	h.Config = buf[3]
	h.Station = binary.LittleEndian.Uint16(buf[4:6])
	h.NumBeamlets = buf[6]
	h.NumSlices = buf[7]
	h.Timestamp = int32(binary.LittleEndian.Uint32(buf[8:12]))
	h.Sequence = int32(binary.LittleEndian.Uint32(buf[12:16]))
	return h, nil
}

// Good reports whether the packet's header marks it as valid data: no
// error flag, and a timestamp that isn't the "no data" sentinel -1.
func (h *Header) Good() bool {
	return !h.Error && h.Timestamp != -1
}

// PackNo computes the packet's derived sequence number from its
// timestamp, sampling-rate flag, and intra-second sequence, using the
// same integer arithmetic as the station software this format comes
// from. It is only meaningful when Good() is true.
func (h *Header) PackNo() int64 {
	rate := int64(160)
	if h.Is200MHz {
		rate = 200
	}
	ts := int64(h.Timestamp)
	seq := int64(h.Sequence)
	return (((ts*1_000_000*rate+512)/1024)+seq)/16
}
