package nvme

import (
	"fmt"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// StatusCodeType is the category of a completion status (SCT).
type StatusCodeType uint8

const (
	SCTGeneric               StatusCodeType = 0
	SCTCommandSpecific       StatusCodeType = 1
	SCTMediaAndDataIntegrity StatusCodeType = 2
	SCTPathRelated           StatusCodeType = 3
	SCTReserved              StatusCodeType = 4 // raw values 4 through 6
	SCTVendorSpecific        StatusCodeType = 7
)

// StatusCodeTypeOf maps the raw 3-bit SCT field onto its category.
func StatusCodeTypeOf(bits uint8) StatusCodeType {
	switch bits &= 0x7; bits {
	case 0, 1, 2, 3, 7:
		return StatusCodeType(bits)
	default:
		return SCTReserved
	}
}

func (t StatusCodeType) String() string {
	switch t {
	case SCTGeneric:
		return "generic"
	case SCTCommandSpecific:
		return "command_specific"
	case SCTMediaAndDataIntegrity:
		return "media_and_data_integrity"
	case SCTPathRelated:
		return "path_related"
	case SCTVendorSpecific:
		return "vendor_specific"
	default:
		return "reserved"
	}
}

func (t StatusCodeType) Structured() structured.Value {
	return structured.Text(t.String())
}

// StatusCode is the category-specific meaning of the 8-bit status code. It is
// one of GenericStatus, CmdSpecificStatus, MadIntegrityStatus,
// PathRelatedStatus, VendorSpecificStatus or ReservedStatus, always chosen by
// the status code type it was decoded with.
type StatusCode interface {
	structured.Marshaler
	fmt.Stringer

	// Type is the category this code belongs to.
	Type() StatusCodeType
	// Raw is the 8-bit status code value.
	Raw() uint8

	isStatusCode()
}

// VendorSpecificStatus is any code under SCT 7. It has no table.
type VendorSpecificStatus uint8

func (VendorSpecificStatus) Type() StatusCodeType { return SCTVendorSpecific }
func (s VendorSpecificStatus) Raw() uint8         { return uint8(s) }
func (s VendorSpecificStatus) String() string     { return fmt.Sprintf("vendor_specific(0x%02x)", uint8(s)) }
func (VendorSpecificStatus) isStatusCode()        {}

func (s VendorSpecificStatus) Structured() structured.Value {
	return structured.Tagged("vendor_specific", uint64(s))
}

// ReservedStatus is any code under the reserved SCT values 4 through 6.
type ReservedStatus uint8

func (ReservedStatus) Type() StatusCodeType { return SCTReserved }
func (s ReservedStatus) Raw() uint8         { return uint8(s) }
func (s ReservedStatus) String() string     { return fmt.Sprintf("reserved(0x%02x)", uint8(s)) }
func (ReservedStatus) isStatusCode()        {}

func (s ReservedStatus) Structured() structured.Value {
	return structured.Tagged("reserved", uint64(s))
}

// Status field bit layout, phase tag excluded.
const (
	scMask     = 0x00ff
	sctShift   = 8
	sctMask    = 0x7
	crdShift   = 11
	crdMask    = 0x3
	moreBit    = 1 << 13
	dnrBit     = 1 << 14
	phaseTagOn = 0x1
)

// StatusField is a decoded completion status.
type StatusField struct {
	Type     StatusCodeType
	TypeBits uint8 // raw SCT value, distinguishes the reserved types 4-6
	Code     StatusCode

	// CommandRetryDelay selects one of the controller's CRDT values (0 = none).
	CommandRetryDelay uint8
	More              bool
	DoNotRetry        bool
}

// DecodeStatus classifies the 15-bit status field w: SC in bits 7:0, SCT in
// bits 10:8, CRD in bits 12:11, More in bit 13, DNR in bit 14. Bit 15 is
// ignored. Every input decodes.
func DecodeStatus(w uint16) StatusField {
	bits := uint8(w>>sctShift) & sctMask
	sc := uint8(w & scMask)
	sct := StatusCodeTypeOf(bits)

	return StatusField{
		Type:              sct,
		TypeBits:          bits,
		Code:              statusCodeFor(sct, sc),
		CommandRetryDelay: uint8(w>>crdShift) & crdMask,
		More:              w&moreBit != 0,
		DoNotRetry:        w&dnrBit != 0,
	}
}

// DecodeStatusWithPhase decodes the 16-bit form that carries the phase tag
// in bit 0, as stored in completion queue entries and error log entries.
func DecodeStatusWithPhase(w uint16) (StatusField, bool) {
	return DecodeStatus(w >> 1), w&phaseTagOn != 0
}

// DecodeCompletionStatus decodes dword 3 of a completion queue entry.
func DecodeCompletionStatus(dw3 uint32) (StatusField, bool) {
	return DecodeStatusWithPhase(uint16(dw3 >> 16))
}

func statusCodeFor(sct StatusCodeType, sc uint8) StatusCode {
	switch sct {
	case SCTGeneric:
		return GenericStatus(sc)
	case SCTCommandSpecific:
		return CmdSpecificStatus(sc)
	case SCTMediaAndDataIntegrity:
		return MadIntegrityStatus(sc)
	case SCTPathRelated:
		return PathRelatedStatus(sc)
	case SCTVendorSpecific:
		return VendorSpecificStatus(sc)
	default:
		return ReservedStatus(sc)
	}
}

// Word re-encodes s into the 15-bit status field layout.
func (s StatusField) Word() uint16 {
	bits := s.TypeBits
	if StatusCodeTypeOf(bits) != s.Type {
		bits = uint8(s.Type)
	}
	w := uint16(bits&sctMask) << sctShift
	if s.Code != nil {
		w |= uint16(s.Code.Raw())
	}
	w |= uint16(s.CommandRetryDelay&crdMask) << crdShift
	if s.More {
		w |= moreBit
	}
	if s.DoNotRetry {
		w |= dnrBit
	}
	return w
}

// Success reports a generic successful completion.
func (s StatusField) Success() bool {
	return s.Type == SCTGeneric && s.Code != nil && s.Code.Raw() == 0
}

// Err returns nil for a successful completion and a *StatusError otherwise.
func (s StatusField) Err() error {
	if s.Success() {
		return nil
	}
	return &StatusError{Status: s}
}

func (s StatusField) String() string {
	code := "<nil>"
	if s.Code != nil {
		code = s.Code.String()
	}
	out := s.Type.String() + "/" + code
	if s.DoNotRetry {
		out += " dnr"
	}
	if s.More {
		out += " more"
	}
	return out
}

// Structured renders the reserved status code types 4-6 as
// {kind: "reserved", code: N} so the raw type survives.
func (s StatusField) Structured() structured.Value {
	sct := s.Type.Structured()
	if s.Type == SCTReserved {
		sct = structured.Tagged("reserved", uint64(s.TypeBits))
	}
	return structured.Object(structured.NewMap().
		Set("status_code_type", sct).
		Set("status_code", structured.Of(s.Code)).
		Set("command_retry_delay", structured.Uint(uint64(s.CommandRetryDelay))).
		Set("more", structured.Bool(s.More)).
		Set("do_not_retry", structured.Bool(s.DoNotRetry)))
}

// StatusError carries a non-successful completion status as an error.
type StatusError struct {
	Status StatusField
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("nvme status %s (sct=%d sc=0x%02x)",
		describeStatus(e.Status), e.Status.TypeBits, e.Status.Word()&scMask)
	if e.Status.DoNotRetry {
		msg += ", do not retry"
	}
	return msg
}

// Retryable reports whether the controller allows the command to be retried.
func (e *StatusError) Retryable() bool { return !e.Status.DoNotRetry }

func describeStatus(s StatusField) string {
	if d, ok := s.Code.(interface{ Description() string }); ok {
		return d.Description()
	}
	if s.Code == nil {
		return s.Type.String()
	}
	return s.Code.String()
}
