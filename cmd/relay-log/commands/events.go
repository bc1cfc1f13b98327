package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/smartrelay/relay-go/pkg/log"
)

// timestampLayout is used by view and export. Times are printed in UTC.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// forEach feeds every event in path that matches filter to fn, in file
// order. It stops at the first error from the file or from fn.
func forEach(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read log: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// shortenConnID keeps the first eight characters of a connection ID.
func shortenConnID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
