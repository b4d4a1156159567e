// Package protocol implements the binary server-browser discovery protocol
// spoken between game clients and Beacon. A client probes with a single
// marker byte; Beacon answers with a fixed header, one 6-byte record per
// known game server, and an all-zero terminator record.
package protocol

// RequestMarker is the first byte of a valid browser probe. Anything after
// the marker is ignored.
const RequestMarker byte = 0x31

// RecordSize is the wire size of one server record: 4 IPv4 octets followed
// by a 2-byte big-endian port.
const RecordSize = 6

// ResponseHeader prefixes every server-list response.
var ResponseHeader = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x66, 0x0A}

// responseTerminator closes every server-list response.
var responseTerminator [RecordSize]byte

// EmptyResponse is the canonical 12-byte reply for an empty server list
// (header + terminator). It is built once and shared; callers must not
// mutate it.
var EmptyResponse = buildEmptyResponse()

func buildEmptyResponse() []byte {
	buf := make([]byte, len(ResponseHeader)+RecordSize)
	copy(buf, ResponseHeader[:])
	copy(buf[len(ResponseHeader):], responseTerminator[:])
	return buf
}
