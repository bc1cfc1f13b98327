// Package document implements the key/value documents exchanged with the
// settings tree.
//
// A Document is an ordered JSON-style object. Keys keep their insertion
// order so that serialized settings mirror the order in which the tree was
// built. Objects are allocated from a Builder, which may carry a capacity
// limit in slots (one slot per object and one per key). A bounded builder
// mimics the fixed memory pool of a small device: once the pool is
// exhausted every further allocation fails with ErrCapacity.
//
//	b := document.NewBuilder(64)
//	obj, _ := b.NewObject()
//	_ = obj.Set("int", int64(3))
//	sys, _ := obj.SetObject("sys")
//	_ = sys.Set("name", "relay")
//
// Objects marshal to JSON (ordered) and to CBOR (ordered definite-length
// maps) and can be parsed back from either encoding.
package document
