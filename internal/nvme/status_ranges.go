package nvme

import (
	"fmt"
	"sort"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// Revision names an NVMe base specification revision whose status code
// ranges a RangeTable describes.
type Revision string

const (
	Revision13 Revision = "1.3"
	Revision14 Revision = "1.4"
	Revision20 Revision = "2.0"

	DefaultRevision = Revision14
)

// RangeClass says which part of a status code space a code falls into.
type RangeClass uint8

const (
	RangeStandard RangeClass = iota
	RangeCommandSetSpecific
	RangeReserved
	RangeVendorSpecific
)

func (c RangeClass) String() string {
	switch c {
	case RangeStandard:
		return "standard"
	case RangeCommandSetSpecific:
		return "command_set_specific"
	case RangeVendorSpecific:
		return "vendor_specific"
	default:
		return "reserved"
	}
}

func (c RangeClass) Structured() structured.Value { return structured.Text(c.String()) }

// CodeRange is an inclusive run of status codes under one status code type.
type CodeRange struct {
	Type   StatusCodeType
	Lo, Hi uint8
	Class  RangeClass
}

// RangeTable annotates decoded statuses with the range their code falls in.
// It never changes which variant DecodeStatus picks.
type RangeTable struct {
	Revision Revision
	ranges   []CodeRange
}

// Common layout for the generic, command specific and media types.
var baseRanges = []CodeRange{
	{SCTGeneric, 0x00, 0x7f, RangeStandard},
	{SCTGeneric, 0x80, 0xbf, RangeCommandSetSpecific},
	{SCTGeneric, 0xc0, 0xff, RangeVendorSpecific},
	{SCTCommandSpecific, 0x00, 0x7f, RangeStandard},
	{SCTCommandSpecific, 0x80, 0xbf, RangeCommandSetSpecific},
	{SCTCommandSpecific, 0xc0, 0xff, RangeVendorSpecific},
	{SCTMediaAndDataIntegrity, 0x00, 0x7f, RangeReserved},
	{SCTMediaAndDataIntegrity, 0x80, 0xbf, RangeCommandSetSpecific},
	{SCTMediaAndDataIntegrity, 0xc0, 0xff, RangeVendorSpecific},
	{SCTVendorSpecific, 0x00, 0xff, RangeVendorSpecific},
}

// Path related status arrived with asymmetric namespace access in 1.4.
var pathRanges = []CodeRange{
	{SCTPathRelated, 0x00, 0x5f, RangeStandard},
	{SCTPathRelated, 0x60, 0x6f, RangeStandard},
	{SCTPathRelated, 0x70, 0x7f, RangeStandard},
	{SCTPathRelated, 0x80, 0xbf, RangeReserved},
	{SCTPathRelated, 0xc0, 0xff, RangeVendorSpecific},
}

var rangeTables = map[Revision][]CodeRange{
	Revision13: baseRanges,
	Revision14: concatRanges(baseRanges, pathRanges),
	Revision20: concatRanges(baseRanges, pathRanges),
}

func concatRanges(parts ...[]CodeRange) []CodeRange {
	var out []CodeRange
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Revisions lists the revisions with a range table, oldest first.
func Revisions() []Revision {
	out := make([]Revision, 0, len(rangeTables))
	for r := range rangeTables {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RangesFor returns the range table for rev. An empty rev selects
// DefaultRevision.
func RangesFor(rev Revision) (RangeTable, error) {
	if rev == "" {
		rev = DefaultRevision
	}
	ranges, ok := rangeTables[rev]
	if !ok {
		return RangeTable{}, fmt.Errorf("unsupported spec revision %q (known: %v)", rev, Revisions())
	}
	return RangeTable{Revision: rev, ranges: ranges}, nil
}

// Classify returns the range class of code under sct. Anything the table does
// not cover, including the reserved status code types, is RangeReserved.
func (t RangeTable) Classify(sct StatusCodeType, code uint8) RangeClass {
	for _, r := range t.ranges {
		if r.Type == sct && code >= r.Lo && code <= r.Hi {
			return r.Class
		}
	}
	return RangeReserved
}

// ClassifyStatus classifies a decoded status.
func (t RangeTable) ClassifyStatus(s StatusField) RangeClass {
	if s.Code == nil {
		return RangeReserved
	}
	return t.Classify(s.Type, s.Code.Raw())
}

// Annotate returns s's structured form with a trailing "range" key.
func (t RangeTable) Annotate(s StatusField) structured.Value {
	v := s.Structured()
	if m, ok := v.Map(); ok {
		m.Set("range", t.ClassifyStatus(s).Structured())
	}
	return v
}
