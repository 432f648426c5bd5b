// Package export renders resources as terminal tables and CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/stats"
)

// Columns are id, status, then the kind's declared fields.
func Columns(schema domain.Schema) []string {
	return append([]string{"id", "status"}, schema.FieldNames()...)
}

func header(columns []string) table.Row {
	row := make(table.Row, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return row
}

func newTable(schema domain.Schema, items []domain.Resource) table.Writer {
	columns := Columns(schema)
	t := table.NewWriter()
	t.AppendHeader(header(columns))
	for _, item := range items {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			v, _ := item.Value(c)
			row[i] = Cell(v)
		}
		t.AppendRow(row)
	}
	return t
}

// Table writes items as an aligned terminal table.
func Table(w io.Writer, schema domain.Schema, items []domain.Resource) {
	t := newTable(schema, items)
	t.SetStyle(table.StyleLight)
	t.AppendFooter(table.Row{"total", len(items)})
	fmt.Fprintln(w, t.Render())
}

// CSV writes a header and one RFC 4180 row per resource.
func CSV(w io.Writer, schema domain.Schema, items []domain.Resource) error {
	columns := Columns(schema)
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, item := range items {
		for i, c := range columns {
			v, _ := item.Value(c)
			record[i] = Cell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", item.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Counts writes a two-column key/count table in key order.
func Counts(w io.Writer, title string, counts map[string]int) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"value", "count"})
	total := 0
	for _, k := range stats.SortedKeys(counts) {
		t.AppendRow(table.Row{k, counts[k]})
		total += counts[k]
	}
	t.AppendFooter(table.Row{"total", total})
	fmt.Fprintln(w, t.Render())
}

// History writes the audit trail of one resource.
func History(w io.Writer, entries []domain.HistoryEntry) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"time", "type", "description", "actor"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Timestamp.Local().Format(time.DateTime), string(e.Type), e.Description, e.Actor})
	}
	fmt.Fprintln(w, t.Render())
}

// Cell renders a field value: nil is blank and integral numbers have no decimals.
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	if n, ok := domain.AsNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Record writes one resource as a field/value table.
func Record(w io.Writer, schema domain.Schema, res domain.Resource) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s #%d", schema.Label, res.ID))
	for _, c := range Columns(schema) {
		v, _ := res.Value(c)
		t.AppendRow(table.Row{c, Cell(v)})
	}
	fmt.Fprintln(w, t.Render())
}

// Errors writes field-scoped messages in field order.
func Errors(w io.Writer, errs map[string]string) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"field", "error"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, errs[k]})
	}
	fmt.Fprintln(w, t.Render())
}
