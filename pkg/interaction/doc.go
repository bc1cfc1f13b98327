// Package interaction maps named commands onto the property tree.
//
// The Dispatcher resolves a method name, checks its parameters and runs it
// against the tree, reporting the outcome as a JSON-RPC error code:
//
//	d := interaction.NewDispatcher(root)
//	res := d.Handle("write", params, document.NewBuilder(0))
//	if res.Code.IsError() {
//	    // res.Message() describes the failure
//	}
//
// Two methods are built in:
//
//   - read {path}: returns {"value": v}, where v is the leaf value or the
//     subtree object below a container
//   - write {path, value}: validates and stores value, returns
//     {"value": v} with the stored value
//
// Further device commands are added with Register.
//
// # Client Usage
//
// The Client is the controller side. It numbers requests, matches
// responses by ID and forwards notifications:
//
//	client := interaction.NewClient(conn, wire.JSONCodec{})
//	v, err := client.Read(ctx, "test.int")
//	_, err = client.Write(ctx, "test.mode", "auto")
package interaction
