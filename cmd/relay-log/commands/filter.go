package commands

import (
	"errors"
	"fmt"

	"github.com/smartrelay/relay-go/pkg/log"
)

// RunFilter copies the events matching filter into a new log file at output
// and returns how many it copied.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	if output == "" {
		return 0, errors.New("output file required")
	}

	dst, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", output, err)
	}
	defer dst.Close()

	copied := 0
	err = forEach(path, filter, func(event log.Event) error {
		dst.Log(event)
		copied++
		return nil
	})
	return copied, err
}
