// Package service makes the settings tree safe to share between goroutines.
//
// The settings core runs to completion on the caller's goroutine and holds
// no locks. A Service wraps it with one coarse mutex and drives it:
//   - Run ticks the dirty tracker on a timer and keeps sys.uptime current
//   - Command dispatches JSON-RPC requests from any transport
//   - dirty reports fan out to every attached Sink as "update" notifications
//   - Publish adds top-level values that live outside the tree (relay output,
//     power reading) and pushes them immediately
//
// Example usage:
//
//	svc, err := service.New(service.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	go svc.Run(ctx)
//
//	detach, err := svc.Attach(peer, sink) // sink receives "connect" first
//	defer detach()
//
//	resp := svc.Command(ctx, peer, req)
//
// Sinks are invoked while the service lock is held. They must not call back
// into the service and must not block; transports enqueue encoded frames.
//
// # Observability
//
// Every request, response and notification is recorded to the optional
// protocol logger (pkg/log) and counted in the optional metrics
// (pkg/metrics). Operational messages go to the configured slog.Logger.
package service
