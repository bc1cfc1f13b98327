package settings

import (
	"errors"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/interaction"
	"github.com/smartrelay/relay-go/pkg/property"
	"github.com/smartrelay/relay-go/pkg/tracker"
	"github.com/smartrelay/relay-go/pkg/version"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// ErrNotInitialized is returned when the tree is used before Init.
var ErrNotInitialized = errors.New("settings not initialized")

// Test modes.
const (
	ModeOff  = "off"
	ModeOn   = "on"
	ModeAuto = "auto"
)

// Config holds settings configuration.
type Config struct {
	// Name is the initial value of sys.name.
	Name string

	// Version is reported in sys.version.
	Version string

	// MinInterval is the minimum time between dirty reports in milliseconds.
	MinInterval uint32

	// Capacity bounds the dirty report document in slots (0 = unbounded).
	Capacity int
}

// DefaultConfig returns the default settings configuration.
func DefaultConfig() Config {
	return Config{
		Name:        "smartrelay",
		Version:     version.Firmware,
		MinInterval: tracker.DefaultMinInterval,
	}
}

// Settings owns the property tree, the dirty ticker and the dispatcher.
type Settings struct {
	config Config

	root *property.Container
	sys  *property.Container
	test *property.Container

	name      *property.Leaf
	version   *property.Leaf
	uptime    *property.Leaf
	testInt   *property.Leaf
	testFloat *property.Leaf
	testBool  *property.Leaf
	testMode  *property.Leaf

	ticker     *tracker.Ticker
	dispatcher *interaction.Dispatcher

	initialized bool
}

// New creates settings. Init must be called before use.
func New(config Config) *Settings {
	return &Settings{config: config}
}

// Init builds the tree. Calling it again has no effect.
func (s *Settings) Init() error {
	if s.initialized {
		return nil
	}

	s.name = property.NewString("name", s.config.Name)
	s.version = property.NewString("version", s.config.Version, property.ReadOnly())
	s.uptime = property.NewInt("uptime", 0,
		property.ReadOnly(),
		property.WithConstraint(property.Min(0)),
		property.WithUnit("s"))
	s.sys = property.NewContainer("sys")
	if err := addAll(s.sys, s.name, s.version, s.uptime); err != nil {
		return err
	}

	s.testInt = property.NewInt("int", 0, property.WithConstraint(property.Min(0)))
	s.testFloat = property.NewFloat("float", 0, property.WithConstraint(property.FloatBetween(0, 100)))
	s.testBool = property.NewBool("bool", false)
	s.testMode = property.NewString("mode", ModeOff, property.WithConstraint(property.OneOf(
		property.String(ModeOff), property.String(ModeOn), property.String(ModeAuto))))
	s.test = property.NewContainer("test")
	if err := addAll(s.test, s.testInt, s.testFloat, s.testBool, s.testMode); err != nil {
		return err
	}

	s.root = property.NewContainer("")
	if err := addAll(s.root, s.sys, s.test); err != nil {
		return err
	}

	s.ticker = tracker.New(s.root, tracker.Config{
		MinInterval: s.config.MinInterval,
		Capacity:    s.config.Capacity,
	})
	s.dispatcher = interaction.NewDispatcher(s.root)
	s.initialized = true
	return nil
}

func addAll(c *property.Container, nodes ...property.Node) error {
	for _, n := range nodes {
		if err := c.Add(n); err != nil {
			return err
		}
	}
	return nil
}

// Initialized reports whether Init has run.
func (s *Settings) Initialized() bool {
	return s.initialized
}

// Tick runs one dirty check at nowMillis.
func (s *Settings) Tick(nowMillis uint32) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return s.ticker.Tick(nowMillis)
}

// ToDocument serializes the whole tree.
func (s *Settings) ToDocument(b *document.Builder) (*document.Object, error) {
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.root.ToDocument(b)
}

// OnDirtyProperties registers the dirty report callback, replacing any
// previous one. A nil callback unregisters.
func (s *Settings) OnDirtyProperties(cb tracker.Callback) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	s.ticker.OnDirty(cb)
	return nil
}

// OnCommand runs a command against the tree.
func (s *Settings) OnCommand(method string, params *document.Object, b *document.Builder) interaction.Result {
	if !s.initialized {
		return interaction.Failure(wire.InternalError, ErrNotInitialized)
	}
	return s.dispatcher.Handle(method, params, b)
}

// RegisterCommand adds a device command to the dispatcher.
func (s *Settings) RegisterCommand(method string, h interaction.Handler) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return s.dispatcher.Register(method, h)
}

// Methods lists the command names.
func (s *Settings) Methods() []string {
	if !s.initialized {
		return nil
	}
	return s.dispatcher.Methods()
}

// TickerStats returns the dirty ticker counters.
func (s *Settings) TickerStats() tracker.Stats {
	if !s.initialized {
		return tracker.Stats{}
	}
	return s.ticker.Stats()
}

// Root returns the root container.
func (s *Settings) Root() *property.Container { return s.root }

// Sys returns the sys container.
func (s *Settings) Sys() *property.Container { return s.sys }

// Test returns the test container.
func (s *Settings) Test() *property.Container { return s.test }

// Name returns sys.name.
func (s *Settings) Name() *property.Leaf { return s.name }

// Version returns sys.version.
func (s *Settings) Version() *property.Leaf { return s.version }

// Uptime returns sys.uptime.
func (s *Settings) Uptime() *property.Leaf { return s.uptime }

// TestInt returns test.int.
func (s *Settings) TestInt() *property.Leaf { return s.testInt }

// TestFloat returns test.float.
func (s *Settings) TestFloat() *property.Leaf { return s.testFloat }

// TestBool returns test.bool.
func (s *Settings) TestBool() *property.Leaf { return s.testBool }

// TestMode returns test.mode.
func (s *Settings) TestMode() *property.Leaf { return s.testMode }
