// Package wire defines the JSON-RPC envelope used between the device and its
// controller.
//
// Requests, responses and notifications follow JSON-RPC 2.0:
//
//	--> {"jsonrpc":"2.0","id":1,"method":"read","params":{"path":"test.int"}}
//	<-- {"jsonrpc":"2.0","id":1,"result":{"value":0}}
//	<-- {"jsonrpc":"2.0","method":"update","params":{"test":{"int":3}}}
//
// Two codecs carry the same envelope: JSONCodec for text frames and
// CBORCodec for binary frames, where the envelope is a CBOR map with the
// same text keys.
//
// # Error Codes
//
// ErrorCode holds the predefined JSON-RPC codes. ParseError and
// InvalidRequest are produced only while decoding an envelope; the
// remaining codes are reported by the command dispatcher.
package wire
