package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// ServerAddress is a parsed IPv4 game server endpoint.
type ServerAddress struct {
	IP   [4]byte
	Port uint16
}

// String returns the textual "ip:port" form of the address.
func (a ServerAddress) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// IsValidRequest reports whether data is a well-formed browser probe:
// non-empty with the request marker as its first byte.
func IsValidRequest(data []byte) bool {
	return len(data) > 0 && data[0] == RequestMarker
}

// EncodeAddress parses a textual "a.b.c.d:port" address. It returns ok=false
// on a wrong octet count, an out-of-range octet, a non-numeric port, or a
// port outside [1,65535]. Malformed input never panics past this boundary.
func EncodeAddress(addr string) (ServerAddress, bool) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return ServerAddress{}, false
	}

	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return ServerAddress{}, false
	}

	var out ServerAddress
	for i, o := range octets {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 || v > 255 {
			return ServerAddress{}, false
		}
		out.IP[i] = byte(v)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return ServerAddress{}, false
	}
	out.Port = uint16(port)

	return out, true
}

// putRecord writes the 6-byte wire record for the address into buf.
func (a ServerAddress) putRecord(buf []byte) {
	copy(buf[:4], a.IP[:])
	binary.BigEndian.PutUint16(buf[4:RecordSize], a.Port)
}

// DecodeRecord parses a 6-byte wire record back into a ServerAddress.
func DecodeRecord(rec []byte) (ServerAddress, bool) {
	if len(rec) != RecordSize {
		return ServerAddress{}, false
	}
	var out ServerAddress
	copy(out.IP[:], rec[:4])
	out.Port = binary.BigEndian.Uint16(rec[4:])
	return out, true
}

// BuildServerListResponse converts each textual address into a wire record
// and concatenates header + records + terminator. Invalid entries are
// dropped without failing the batch. The buffer is sized once and written
// in a single pass; an empty or all-invalid input yields the shared
// EmptyResponse constant.
func BuildServerListResponse(addrs []string) []byte {
	parsed := make([]ServerAddress, 0, len(addrs))
	for _, addr := range addrs {
		if sa, ok := EncodeAddress(addr); ok {
			parsed = append(parsed, sa)
		}
	}

	if len(parsed) == 0 {
		return EmptyResponse
	}

	buf := make([]byte, len(ResponseHeader)+(len(parsed)+1)*RecordSize)
	copy(buf, ResponseHeader[:])

	off := len(ResponseHeader)
	for _, sa := range parsed {
		sa.putRecord(buf[off : off+RecordSize])
		off += RecordSize
	}
	copy(buf[off:], responseTerminator[:])

	return buf
}
