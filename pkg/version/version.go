// Package version holds the device and RPC API versions and maps API major
// versions to WebSocket subprotocol names.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Current is the RPC API version, "major.minor".
	Current = "1.0"

	// Firmware is reported as sys.version and on /api/info.
	Firmware = "1.4.0"
)

const subprotocolPrefix = "smartrelay/"

// APIVersion is a parsed "major.minor" version. Minor bumps are additive, so
// two versions are compatible when their majors match.
type APIVersion struct {
	Major uint16
	Minor uint16
}

// Parse reads a "major.minor" string. Both parts must be unsigned decimals.
func Parse(s string) (APIVersion, error) {
	majorText, minorText, ok := strings.Cut(s, ".")
	if !ok {
		return APIVersion{}, fmt.Errorf("version %q: want major.minor", s)
	}
	major, err := parseComponent(majorText)
	if err != nil {
		return APIVersion{}, fmt.Errorf("version %q: major: %w", s, err)
	}
	minor, err := parseComponent(minorText)
	if err != nil {
		return APIVersion{}, fmt.Errorf("version %q: minor: %w", s, err)
	}
	return APIVersion{Major: major, Minor: minor}, nil
}

// parseComponent rejects signs, which ParseUint would otherwise accept as
// "+1".
func parseComponent(s string) (uint16, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	n, err := strconv.ParseUint(s, 10, 16)
	return uint16(n), err
}

func (v APIVersion) String() string {
	return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor))
}

// Compatible reports whether both versions share a major version.
func (v APIVersion) Compatible(other APIVersion) bool {
	return v.Major == other.Major
}

// Subprotocol names the WebSocket subprotocol for an API major version.
func Subprotocol(major uint16) string {
	return subprotocolPrefix + strconv.Itoa(int(major))
}

// MajorFromSubprotocol is the inverse of Subprotocol.
func MajorFromSubprotocol(proto string) (uint16, error) {
	suffix, ok := strings.CutPrefix(proto, subprotocolPrefix)
	if !ok {
		return 0, fmt.Errorf("subprotocol %q: not %s<major>", proto, subprotocolPrefix)
	}
	major, err := parseComponent(suffix)
	if err != nil {
		return 0, fmt.Errorf("subprotocol %q: %w", proto, err)
	}
	return major, nil
}

// SupportedSubprotocols lists the subprotocols the server accepts, one per
// supported major version.
func SupportedSubprotocols() []string {
	v, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return []string{Subprotocol(v.Major)}
}
