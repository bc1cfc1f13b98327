package transport

import (
	"context"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Backend is the part of the service the transport needs. It is satisfied
// by *service.Service.
type Backend interface {
	Attach(peer service.Peer, sink service.Sink) (func(), error)
	Command(ctx context.Context, peer service.Peer, req *wire.Request) *wire.Response
	Snapshot() (*document.Object, error)
}

// Compile-time check: *service.Service implements Backend.
var _ Backend = (*service.Service)(nil)
