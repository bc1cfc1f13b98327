package interaction

import (
	"errors"
	"fmt"
	"sort"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/property"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Built-in method names.
const (
	MethodRead  = "read"
	MethodWrite = "write"
)

// Parameter and result keys.
const (
	ParamPath  = "path"
	ParamValue = "value"
)

// Dispatcher errors.
var (
	ErrDuplicateMethod = errors.New("method already registered")
	ErrMissingParam    = errors.New("missing parameter")
	ErrInvalidParam    = errors.New("invalid parameter")
	ErrNotWritable     = errors.New("target is not a writable leaf")
)

// Result is the outcome of a command. Value is set only on success.
type Result struct {
	Code  wire.ErrorCode
	Value *document.Object
	Err   error
}

// Success creates a successful result.
func Success(value *document.Object) Result {
	return Result{Code: wire.NoError, Value: value}
}

// Failure creates an error result.
func Failure(code wire.ErrorCode, err error) Result {
	return Result{Code: code, Err: err}
}

// OK returns true if the command succeeded.
func (r Result) OK() bool {
	return r.Code == wire.NoError
}

// Message returns the error description, or the code's standard message.
func (r Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Code.Message()
}

// Response converts the result into a reply for id.
func (r Result) Response(id any) *wire.Response {
	if r.OK() {
		return wire.NewResult(id, r.Value)
	}
	return wire.NewErrorResponse(id, &wire.Error{Code: r.Code, Message: r.Message()})
}

// Handler runs one command. The result document must be allocated from b.
// params may be nil.
type Handler func(params *document.Object, b *document.Builder) Result

// Dispatcher routes methods to handlers.
type Dispatcher struct {
	root     *property.Container
	handlers map[string]Handler
	builtin  map[string]bool
}

// NewDispatcher creates a dispatcher for the tree below root with the
// built-in read and write methods.
func NewDispatcher(root *property.Container) *Dispatcher {
	d := &Dispatcher{
		root:     root,
		handlers: make(map[string]Handler),
		builtin:  make(map[string]bool),
	}
	d.handlers[MethodRead] = d.handleRead
	d.handlers[MethodWrite] = d.handleWrite
	d.builtin[MethodRead] = true
	d.builtin[MethodWrite] = true
	return d
}

// Register adds a device command.
func (d *Dispatcher) Register(method string, h Handler) error {
	if method == "" || h == nil {
		return fmt.Errorf("%w: empty method or nil handler", ErrInvalidParam)
	}
	if _, exists := d.handlers[method]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateMethod, method)
	}
	d.handlers[method] = h
	return nil
}

// Methods returns the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether method is one of the built-in methods.
func (d *Dispatcher) IsBuiltin(method string) bool {
	return d.builtin[method]
}

// Handle runs method with params, allocating the result from b.
// A panicking handler is reported as InternalError.
func (d *Dispatcher) Handle(method string, params *document.Object, b *document.Builder) (res Result) {
	h, ok := d.handlers[method]
	if !ok {
		return Failure(wire.MethodNotFound, fmt.Errorf("method %q not found", method))
	}

	defer func() {
		if r := recover(); r != nil {
			res = Failure(wire.InternalError, fmt.Errorf("method %q panicked: %v", method, r))
		}
	}()

	res = h(params, b)
	if res.OK() && res.Value == nil {
		obj, err := b.NewObject()
		if err != nil {
			return internalError(err)
		}
		res.Value = obj
	}
	return res
}

// handleRead serializes the node at params.path.
func (d *Dispatcher) handleRead(params *document.Object, b *document.Builder) Result {
	path, err := StringParam(params, ParamPath)
	if err != nil {
		return Failure(wire.InvalidParams, err)
	}
	node, err := d.root.Find(path)
	if err != nil {
		return Failure(wire.InvalidParams, err)
	}

	out, err := b.NewObject()
	if err != nil {
		return internalError(err)
	}
	switch n := node.(type) {
	case *property.Leaf:
		err = out.Set(ParamValue, n.Get().Any())
	case *property.Container:
		var sub *document.Object
		sub, err = n.ToDocument(b)
		if err == nil {
			err = out.Set(ParamValue, sub)
		}
	}
	if err != nil {
		return internalError(err)
	}
	return Success(out)
}

// handleWrite stores params.value in the leaf at params.path.
func (d *Dispatcher) handleWrite(params *document.Object, b *document.Builder) Result {
	path, err := StringParam(params, ParamPath)
	if err != nil {
		return Failure(wire.InvalidParams, err)
	}
	raw, err := Param(params, ParamValue)
	if err != nil {
		return Failure(wire.InvalidParams, err)
	}
	node, err := d.root.Find(path)
	if err != nil {
		return Failure(wire.InvalidParams, err)
	}
	leaf, ok := node.(*property.Leaf)
	if !ok {
		return Failure(wire.InvalidParams, fmt.Errorf("%w: %q", ErrNotWritable, path))
	}
	if err := leaf.WriteAny(raw); err != nil {
		return Failure(wire.InvalidParams, fmt.Errorf("%s: %w", path, err))
	}

	out, err := b.NewObject()
	if err != nil {
		return internalError(err)
	}
	if err := out.Set(ParamValue, leaf.Get().Any()); err != nil {
		return internalError(err)
	}
	return Success(out)
}

// internalError reports a failure that is not the caller's fault, such as an
// exhausted document builder.
func internalError(err error) Result {
	return Failure(wire.InternalError, err)
}
