package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smartrelay/relay-go/pkg/discovery"
	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/inspect"
	"github.com/smartrelay/relay-go/pkg/wire"
)

var formatter = inspect.NewFormatter()

// runDiscover lists relays until ctx is done and returns how many it saw.
func runDiscover(ctx context.Context, browser discovery.Browser, w io.Writer) (int, error) {
	found, err := browser.Browse(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for svc := range found {
		if n == 0 {
			fmt.Fprintf(w, "%-24s %-8s %-5s %s\n", "NAME", "VERSION", "API", "URL")
		}
		n++
		fmt.Fprintf(w, "%-24s %-8s %-5s %s\n", svc.Info.Name, svc.Info.Version, svc.Info.APIVersion, svc.URL())
	}
	if n == 0 {
		fmt.Fprintln(w, "No relays found")
	}
	return n, nil
}

// runState prints the snapshot the relay sent on connect.
func runState(connect *wire.Notification, w io.Writer) {
	fmt.Fprint(w, formatter.FormatDocument(connect.Params))
}

func runRead(ctx context.Context, s *session, path string, w io.Writer) error {
	v, err := s.client.Read(ctx, path)
	if err != nil {
		return err
	}
	printValue(w, v)
	return nil
}

func runWrite(ctx context.Context, s *session, path, input string, w io.Writer) error {
	v, err := s.client.Write(ctx, path, inspect.ParseValue(input))
	if err != nil {
		return err
	}
	printValue(w, v)
	return nil
}

// runCall invokes method with key=value arguments as params.
func runCall(ctx context.Context, s *session, method string, args []string, w io.Writer) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	result, err := s.client.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || result.Len() == 0 {
		fmt.Fprintln(w, "OK")
		return nil
	}
	fmt.Fprint(w, formatter.FormatDocument(result))
	return nil
}

// runWatch prints notifications until ctx is done, the connection drops,
// or limit notifications were printed (limit 0 means no limit).
func runWatch(ctx context.Context, s *session, limit int, w io.Writer) error {
	for seen := 0; limit == 0 || seen < limit; seen++ {
		select {
		case n := <-s.Notifications():
			fmt.Fprintf(w, "[%s]\n", n.Method)
			if n.Params != nil {
				fmt.Fprint(w, formatter.FormatDocument(n.Params))
			}
		case <-s.Done():
			return errors.New("connection closed")
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func parseParams(args []string) (*document.Object, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := document.New()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q: want key=value", arg)
		}
		if err := params.Set(key, inspect.ParseValue(value)); err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
	}
	return params, nil
}

func printValue(w io.Writer, v any) {
	if obj, ok := v.(*document.Object); ok {
		fmt.Fprint(w, formatter.FormatDocument(obj))
		return
	}
	fmt.Fprintln(w, formatter.FormatValue(v, ""))
}
