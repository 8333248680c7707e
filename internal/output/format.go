// Package output provides output formatting utilities for CLI commands.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// Format represents the output format type.
type Format string

const (
	// FormatTable outputs data in a formatted table.
	FormatTable Format = "table"
	// FormatJSON outputs data as JSON.
	FormatJSON Format = "json"
	// FormatYAML outputs data as YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses a string into a Format, returning an error if invalid.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Printer handles formatted output to a writer.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		format: format,
		color:  color,
	}
}

func (p *Printer) Format() Format {
	return p.format
}

func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print outputs data in the configured format.
// For table format, data should implement TableRenderer or
// structured.Marshaler; anything else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		switch d := data.(type) {
		case TableRenderer:
			return PrintTable(p.out, d)
		case structured.Marshaler:
			return PrintTable(p.out, NewRecord(d.Structured()))
		case structured.Value:
			return PrintTable(p.out, NewRecord(d))
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, exportable(data))
	case FormatYAML:
		return PrintYAML(p.out, exportable(data))
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// exportable swaps a Marshaler for its tree so key order survives encoding.
func exportable(data any) any {
	if m, ok := data.(structured.Marshaler); ok {
		return m.Structured()
	}
	return data
}

// Success prints a success message.
func (p *Printer) Success(msg string) {
	p.colored("32", msg)
}

// Warning prints a warning message.
func (p *Printer) Warning(msg string) {
	p.colored("33", msg)
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	p.colored("31", msg)
}

func (p *Printer) colored(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[%sm%s\033[0m\n", code, msg)
	} else {
		_, _ = fmt.Fprintln(p.out, msg)
	}
}
