package log

import (
	"context"
	"log/slog"
)

// SlogAdapter prints protocol events through an slog.Logger. Error events
// go out at Warn, everything else at Debug.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes one record for the event.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	if event.Error != nil {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.LogAttrs(ctx, level, "protocol "+event.Kind(), eventAttrs(event)...)
}

func eventAttrs(e Event) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("conn_id", e.ConnectionID),
		slog.String("transport", e.Transport.String()),
		slog.String("direction", e.Direction.String()),
		slog.String("layer", e.Layer.String()),
	}
	if e.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", e.RemoteAddr))
	}

	switch {
	case e.Frame != nil:
		attrs = append(attrs, slog.Int("size", e.Frame.Size))
		if e.Frame.Truncated {
			attrs = append(attrs, slog.Bool("truncated", true))
		}
	case e.Message != nil:
		m := e.Message
		if m.ID != "" {
			attrs = append(attrs, slog.String("id", m.ID))
		}
		if m.Method != "" {
			attrs = append(attrs, slog.String("method", m.Method))
		}
		if m.Code != nil {
			attrs = append(attrs, slog.String("code", m.Code.String()))
		}
		if m.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("elapsed", *m.ProcessingTime))
		}
	case e.StateChange != nil:
		sc := e.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("from", sc.OldState),
			slog.String("to", sc.NewState))
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
	case e.ControlMsg != nil:
		if e.ControlMsg.CloseCode != nil {
			attrs = append(attrs, slog.Int("close_code", *e.ControlMsg.CloseCode))
		}
	case e.Error != nil:
		attrs = append(attrs, slog.String("error", e.Error.Message))
		if e.Error.Context != "" {
			attrs = append(attrs, slog.String("context", e.Error.Context))
		}
		if e.Error.Code != nil {
			attrs = append(attrs, slog.Int("code", *e.Error.Code))
		}
	case e.Snapshot != nil:
		attrs = append(attrs,
			slog.String("reason", e.Snapshot.Reason),
			slog.Int("keys", len(e.Snapshot.State)))
	}
	return attrs
}
