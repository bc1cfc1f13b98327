// Package discovery advertises and finds relays with mDNS/DNS-SD.
//
// # Service Type (_smartrelay._tcp)
//
// A running device registers one instance whose name is its sys.name,
// truncated to the 63 byte DNS label limit. The port is the HTTP port of
// the transport server.
//
// TXT records:
//   - name: device name (sys.name)
//   - ver:  firmware version
//   - api:  API version (e.g. "1.0")
//   - path: WebSocket endpoint path, normally /api/v1
//
// Renaming the device updates the TXT records of the running
// registration; the instance name stays the same until the next start.
package discovery
