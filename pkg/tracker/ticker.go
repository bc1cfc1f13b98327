package tracker

import (
	"fmt"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/property"
)

// DefaultMinInterval is the minimum time between two reports in milliseconds.
const DefaultMinInterval uint32 = 1000

// State is the ticker state.
type State uint8

const (
	// StateIdle means no report is in progress.
	StateIdle State = iota

	// StateReporting is held while the callback runs.
	StateReporting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReporting:
		return "REPORTING"
	default:
		return "UNKNOWN"
	}
}

// Callback receives the partial document of dirty leaves and the builder it
// was allocated from. It must consume the document before returning.
type Callback func(doc *document.Object, b *document.Builder)

// Config holds ticker configuration.
type Config struct {
	// MinInterval is the minimum time between reports in milliseconds.
	MinInterval uint32

	// Capacity is the document builder capacity in slots (0 = unbounded).
	Capacity int
}

// DefaultConfig returns the default ticker configuration.
func DefaultConfig() Config {
	return Config{
		MinInterval: DefaultMinInterval,
	}
}

// Stats counts ticker activity.
type Stats struct {
	// Reports is the number of callback invocations.
	Reports uint64

	// Skipped is the number of ticks that returned before collecting.
	Skipped uint64

	// Failures is the number of collections that failed.
	Failures uint64
}

// Ticker periodically reports dirty leaves of a tree.
type Ticker struct {
	root   *property.Container
	config Config

	callback Callback
	last     uint32
	state    State
	stats    Stats
}

// New creates a ticker for the tree below root.
func New(root *property.Container, config Config) *Ticker {
	return &Ticker{
		root:   root,
		config: config,
	}
}

// OnDirty registers the callback, replacing any previous one.
// A nil callback unregisters.
func (t *Ticker) OnDirty(cb Callback) {
	t.callback = cb
}

// HasCallback reports whether a callback is registered.
func (t *Ticker) HasCallback() bool {
	return t.callback != nil
}

// State returns the current state.
func (t *Ticker) State() State {
	return t.state
}

// Stats returns a copy of the activity counters.
func (t *Ticker) Stats() Stats {
	return t.stats
}

// LastCheck returns the timestamp of the last completed check.
func (t *Ticker) LastCheck() uint32 {
	return t.last
}

// Tick runs one check at nowMillis.
//
// If the dirty document cannot be built (builder capacity exhausted) the
// flags are kept and the error is returned; the changes are retried on a
// later tick.
func (t *Ticker) Tick(nowMillis uint32) error {
	if t.callback == nil {
		t.stats.Skipped++
		return nil
	}
	if nowMillis-t.last < t.config.MinInterval {
		t.stats.Skipped++
		return nil
	}

	b := document.NewBuilder(t.config.Capacity)
	doc, err := t.root.CollectDirtyDocument(b)
	if err != nil {
		t.stats.Failures++
		return fmt.Errorf("collect dirty properties: %w", err)
	}

	if !doc.IsEmpty() {
		t.state = StateReporting
		t.callback(doc, b)
		t.state = StateIdle
		t.stats.Reports++
	}

	t.root.ClearAllDirty()
	t.last = nowMillis
	return nil
}
