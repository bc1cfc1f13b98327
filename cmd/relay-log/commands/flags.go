// Package commands implements the relay-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/smartrelay/relay-go/pkg/log"
)

// FilterOptions holds the filter flags shared by view, export and filter.
// Empty fields match everything.
type FilterOptions struct {
	ConnID    string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Transport string
	Method    string
}

// Build converts the options into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		Method:       o.Method,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if o.Transport != "" {
		t, err := ParseTransport(o.Transport)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Transport = &t
	}
	return filter, nil
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or service)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "snapshot":
		return log.CategorySnapshot, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, error, or snapshot)", s)
	}
}

// ParseTransport parses a transport name (case-insensitive).
func ParseTransport(s string) (log.Transport, error) {
	switch strings.ToLower(s) {
	case "local":
		return log.TransportLocal, nil
	case "websocket", "ws":
		return log.TransportWebSocket, nil
	case "mqtt":
		return log.TransportMQTT, nil
	default:
		return 0, fmt.Errorf("invalid transport: %s (must be local, websocket, or mqtt)", s)
	}
}
