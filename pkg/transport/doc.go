// Package transport serves the settings service over HTTP and WebSocket.
//
// # Endpoints
//
//	GET /api/v1        WebSocket JSON-RPC endpoint
//	GET /api/v1/state  full state as JSON (or CBOR with Accept: application/cbor)
//	GET /healthz       liveness and firmware version
//	GET /metrics       Prometheus metrics (when configured)
//	GET /              embedded web UI (when enabled)
//
// # WebSocket Protocol
//
// Each client gets a UUID connection ID and immediately receives a
// "connect" notification holding the full state. Requests may be sent in
// text frames (JSON) or binary frames (CBOR); the response uses the frame
// type of the request and later notifications follow the type of the most
// recent request. Dirty changes arrive as "update" notifications that the
// client deep-merges into its copy of the state.
//
// The server offers the "smartrelay/1" subprotocol but accepts clients that
// request none, such as browsers.
//
// # Keep-Alive
//
// Connection liveness is monitored with WebSocket ping/pong:
//   - Ping interval: 30 seconds
//   - Pong timeout: 5 seconds
//   - Max missed pongs: 3
//
// A client whose send queue is full is disconnected rather than slowing
// down the others.
package transport
