package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

const (
	OutputJSON  = "json"
	OutputTable = "table"

	// valueWidthMax wraps long hex blobs (extrinsics, proofs) in table output.
	valueWidthMax = 80
)

// Render writes result to w as indented JSON or as a path/value table.
func Render(w io.Writer, format string, result json.RawMessage) error {
	switch format {
	case OutputTable:
		return renderTable(w, result)
	case OutputJSON, "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, result, "", "  "); err != nil {
			return fmt.Errorf("failed to format result: %w", err)
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, result json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(result))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	var rows []table.Row
	flatten("", value, &rows)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Path", "Value"})
	t.AppendSeparator()
	t.AppendRows(rows)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: valueWidthMax},
	})
	if isTerminal(w) {
		t.SetStyle(table.StyleColoredDark)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.Render()
	return nil
}

// flatten appends one row per leaf of value. Object keys are joined with dots
// and array elements indexed; empty containers are leaves.
func flatten(path string, value any, rows *[]table.Row) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			*rows = append(*rows, table.Row{rootPath(path), "{}"})
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			flatten(child, v[k], rows)
		}
	case []any:
		if len(v) == 0 {
			*rows = append(*rows, table.Row{rootPath(path), "[]"})
			return
		}
		for i, elem := range v {
			flatten(fmt.Sprintf("%s[%d]", path, i), elem, rows)
		}
	case nil:
		*rows = append(*rows, table.Row{rootPath(path), "null"})
	default:
		*rows = append(*rows, table.Row{rootPath(path), fmt.Sprint(v)})
	}
}

func rootPath(path string) string {
	if path == "" {
		return "."
	}
	return path
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
