package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/smartrelay/relay-go/pkg/log"
)

// csvHeader names the CSV export columns. Message columns stay empty for
// other event kinds.
var csvHeader = []string{
	"timestamp", "connection_id", "transport", "direction", "layer",
	"category", "type", "id", "method", "code",
}

// RunExport writes the events matching filter as JSON lines ("jsonl") or
// CSV ("csv"), to the file output or to w when output is empty.
func RunExport(path, format, output string, filter log.Filter, w io.Writer) error {
	var export func(string, log.Filter, io.Writer) error
	switch format {
	case "jsonl":
		export = exportJSONL
	case "csv":
		export = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	return export(path, filter, w)
}

func exportJSONL(path string, filter log.Filter, w io.Writer) error {
	enc := json.NewEncoder(w)
	return forEach(path, filter, func(event log.Event) error {
		return enc.Encode(event)
	})
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	err := forEach(path, filter, func(event log.Event) error {
		return cw.Write(csvRow(event))
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}

func csvRow(event log.Event) []string {
	row := []string{
		event.Timestamp.UTC().Format(timestampLayout),
		event.ConnectionID,
		event.Transport.String(),
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.Kind(),
		"", "", "",
	}
	if m := event.Message; m != nil {
		row[7], row[8] = m.ID, m.Method
		if m.Code != nil {
			row[9] = strconv.Itoa(int(*m.Code))
		}
	}
	return row
}
