package nvme

import (
	"bytes"
	"fmt"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// Placeholder replaces bytes of a fixed-width field that are not valid UTF-8.
const Placeholder = '\uFFFD'

// DecodeFixedStr interprets b as a space-padded text field. Trailing NULs are
// stripped first, then trailing spaces. Interior padding is kept. Valid UTF-8
// passes through; each ill-formed sequence becomes Placeholder, so decoding
// never fails.
func DecodeFixedStr(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	b = bytes.TrimRight(b, " ")
	if len(b) == 0 {
		return ""
	}

	s, _, err := transform.Bytes(runes.ReplaceIllFormed(), b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// EncodeFixedStr right-pads s with spaces to exactly n bytes.
func EncodeFixedStr(s string, n int) ([]byte, error) {
	if len(s) > n {
		return nil, fmt.Errorf("%w: %d bytes into %d-byte field", ErrFieldTooLong, len(s), n)
	}
	out := bytes.Repeat([]byte{' '}, n)
	copy(out, s)
	return out, nil
}

// FixedStr8 holds an 8-byte field such as a firmware revision.
type FixedStr8 [8]byte

// FixedStr20 holds a 20-byte field such as a serial number.
type FixedStr20 [20]byte

// FixedStr40 holds a 40-byte field such as a model number.
type FixedStr40 [40]byte

// FixedStr256 holds a 256-byte field such as an NVM subsystem NQN.
type FixedStr256 [256]byte

func (s FixedStr8) String() string   { return DecodeFixedStr(s[:]) }
func (s FixedStr20) String() string  { return DecodeFixedStr(s[:]) }
func (s FixedStr40) String() string  { return DecodeFixedStr(s[:]) }
func (s FixedStr256) String() string { return DecodeFixedStr(s[:]) }

func (s FixedStr8) Structured() structured.Value   { return structured.Text(s.String()) }
func (s FixedStr20) Structured() structured.Value  { return structured.Text(s.String()) }
func (s FixedStr40) Structured() structured.Value  { return structured.Text(s.String()) }
func (s FixedStr256) Structured() structured.Value { return structured.Text(s.String()) }

// NewFixedStr8 encodes text into an 8-byte field.
func NewFixedStr8(text string) (FixedStr8, error) {
	var s FixedStr8
	b, err := EncodeFixedStr(text, len(s))
	if err != nil {
		return s, err
	}
	copy(s[:], b)
	return s, nil
}

// NewFixedStr20 encodes text into a 20-byte field.
func NewFixedStr20(text string) (FixedStr20, error) {
	var s FixedStr20
	b, err := EncodeFixedStr(text, len(s))
	if err != nil {
		return s, err
	}
	copy(s[:], b)
	return s, nil
}

// NewFixedStr40 encodes text into a 40-byte field.
func NewFixedStr40(text string) (FixedStr40, error) {
	var s FixedStr40
	b, err := EncodeFixedStr(text, len(s))
	if err != nil {
		return s, err
	}
	copy(s[:], b)
	return s, nil
}
