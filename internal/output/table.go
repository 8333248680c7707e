package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a formatted table to the writer.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range data.Rows() {
		table.Append(row)
	}

	table.Render()
	return nil
}

// TableData is a simple implementation of TableRenderer for ad-hoc tables.
type TableData struct {
	headers []string
	rows    [][]string
}

func NewTableData(headers ...string) *TableData {
	return &TableData{
		headers: headers,
		rows:    make([][]string, 0),
	}
}

func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string {
	return t.headers
}

func (t *TableData) Rows() [][]string {
	return t.rows
}

// Record renders a structured tree as FIELD/VALUE rows, one per leaf, keyed
// by dotted path.
type Record struct {
	pairs []structured.Pair
}

func NewRecord(v structured.Value) *Record {
	return &Record{pairs: structured.Flatten(v)}
}

func (r *Record) Headers() []string {
	return []string{"Field", "Value"}
}

func (r *Record) Rows() [][]string {
	rows := make([][]string, 0, len(r.pairs))
	for _, p := range r.pairs {
		path := p.Path
		if path == "" {
			path = "value"
		}
		rows = append(rows, []string{path, p.Value.String()})
	}
	return rows
}
