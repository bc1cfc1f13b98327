// Package mqtt bridges the settings service to an MQTT broker.
//
// The bridge attaches to the service like a WebSocket client and mirrors its
// notifications onto topics below a prefix:
//
//	<prefix>/state         full state, retained, republished after every change
//	<prefix>/update        each partial update document
//	<prefix>/rpc           incoming JSON-RPC requests
//	<prefix>/rpc/response  responses to requests that carry an id
//
// State and update payloads are plain JSON documents; rpc topics carry the
// same JSON-RPC 2.0 envelopes as the WebSocket endpoint.
package mqtt
