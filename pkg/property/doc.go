// Package property implements the settings tree of the device.
//
// # Tree Structure
//
// The tree is built from two node kinds:
//
//	root (Container)
//	├── sys (Container)
//	│   ├── name     (Leaf, string)
//	│   └── uptime   (Leaf, int, read-only)
//	└── test (Container)
//	    └── int      (Leaf, int >= 0)
//
// Containers hold an ordered list of uniquely named children. Leaves hold a
// single typed value: Int, Float, Bool or String. Nodes are addressed by
// dotted paths relative to a container ("test.int").
//
// # Dirty Tracking
//
// A leaf becomes dirty when Set or Write changes its value. Setting the same
// value again leaves the flag untouched. Containers store no flag of their
// own; a container is dirty while any leaf below it is dirty.
//
// CollectDirty writes only the dirty leaves into a document, nested under
// their container keys, so a controller receives a partial state it can
// merge into its copy of the tree. Clearing the flags is a separate step
// (ClearAllDirty) performed once the document has been delivered.
//
// # Validation
//
// Leaves may carry a Constraint (Min, Max, Between, FloatBetween, OneOf).
// A value that violates the constraint, or has the wrong kind, is rejected
// and the leaf keeps its previous value.
//
// The tree is not safe for concurrent use.
package property
