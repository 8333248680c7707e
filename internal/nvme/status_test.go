package nvme

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

func TestDecodeStatus_AllWords(t *testing.T) {
	for w := 0; w <= 0xffff; w++ {
		word := uint16(w)
		s := DecodeStatus(word)

		bits := uint8(word>>8) & 0x7
		if s.TypeBits != bits {
			t.Fatalf("0x%04x: TypeBits = %d, want %d", w, s.TypeBits, bits)
		}
		if s.Type != StatusCodeTypeOf(bits) {
			t.Fatalf("0x%04x: Type = %v, want %v", w, s.Type, StatusCodeTypeOf(bits))
		}
		switch s.Type {
		case SCTGeneric, SCTCommandSpecific, SCTMediaAndDataIntegrity,
			SCTPathRelated, SCTReserved, SCTVendorSpecific:
		default:
			t.Fatalf("0x%04x: Type %d outside the six categories", w, s.Type)
		}
		if s.Code == nil {
			t.Fatalf("0x%04x: Code is nil", w)
		}
		if s.Code.Type() != s.Type {
			t.Fatalf("0x%04x: Code.Type() = %v, want %v", w, s.Code.Type(), s.Type)
		}
		if s.Code.Raw() != uint8(word) {
			t.Fatalf("0x%04x: Code.Raw() = 0x%02x, want 0x%02x", w, s.Code.Raw(), uint8(word))
		}
		if s.CommandRetryDelay != uint8(word>>11)&0x3 {
			t.Fatalf("0x%04x: CommandRetryDelay = %d", w, s.CommandRetryDelay)
		}
		if s.More != (word&0x2000 != 0) {
			t.Fatalf("0x%04x: More = %v", w, s.More)
		}
		if s.DoNotRetry != (word&0x4000 != 0) {
			t.Fatalf("0x%04x: DoNotRetry = %v", w, s.DoNotRetry)
		}
		if got := s.Word(); got != word&0x7fff {
			t.Fatalf("0x%04x: Word() = 0x%04x, want 0x%04x", w, got, word&0x7fff)
		}
	}
}

func TestDecodeStatus_GenericTable(t *testing.T) {
	for code := 0; code <= 0xff; code++ {
		s := DecodeStatus(uint16(code))

		g, ok := s.Code.(GenericStatus)
		if !ok {
			t.Fatalf("code 0x%02x: Code is %T, want GenericStatus", code, s.Code)
		}
		info, known := genericCodes[uint8(code)]
		if g.IsOther() == known {
			t.Errorf("code 0x%02x: IsOther() = %v, want %v", code, g.IsOther(), !known)
		}

		got := g.Structured()
		want := structured.Tagged("other", uint64(code))
		if known {
			want = structured.Text(info.name)
		}
		if !got.Equal(want) {
			t.Errorf("code 0x%02x: Structured() = %s, want %s", code, got, want)
		}
	}
}

func TestDecodeStatus_Tables(t *testing.T) {
	tests := []struct {
		word uint16
		want StatusCode
		name string
	}{
		{0x0001, GenericInvalidCommandOpcode, "invalid_command_opcode"},
		{0x0080, GenericLBAOutOfRange, "lba_out_of_range"},
		{0x0084, GenericFormatInProgress, "format_in_progress"},
		{0x0106, CmdInvalidFirmwareSlot, "invalid_firmware_slot"},
		{0x0125, CmdANAAttachFailed, "ana_attach_failed"},
		{0x0182, CmdAttemptedWriteToReadOnlyRange, "attempted_write_to_read_only_range"},
		{0x0281, MediaUnrecoveredReadError, "unrecovered_read_error"},
		{0x0287, MediaDeallocatedOrUnwrittenLBA, "deallocated_or_unwritten_lba"},
		{0x0302, PathANAInaccessible, "ana_inaccessible"},
		{0x0371, PathAbortedByHost, "aborted_by_host"},
	}

	for _, tt := range tests {
		s := DecodeStatus(tt.word)
		if s.Code != tt.want {
			t.Errorf("DecodeStatus(0x%04x).Code = %v, want %v", tt.word, s.Code, tt.want)
		}
		if s.Code.String() != tt.name {
			t.Errorf("DecodeStatus(0x%04x).Code.String() = %q, want %q", tt.word, s.Code.String(), tt.name)
		}
	}
}

func TestDecodeStatus_Success(t *testing.T) {
	s := DecodeStatus(0x0000)

	if s.Type != SCTGeneric {
		t.Errorf("Type = %v, want generic", s.Type)
	}
	if s.Code != GenericSuccess {
		t.Errorf("Code = %v, want success", s.Code)
	}
	if s.DoNotRetry || s.More {
		t.Errorf("DoNotRetry = %v, More = %v, want false, false", s.DoNotRetry, s.More)
	}
	if !s.Success() {
		t.Error("Success() = false, want true")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	want := structured.Object(structured.NewMap().
		Set("status_code_type", structured.Text("generic")).
		Set("status_code", structured.Text("success")).
		Set("command_retry_delay", structured.Uint(0)).
		Set("more", structured.Bool(false)).
		Set("do_not_retry", structured.Bool(false)))
	assert.True(t, want.Equal(s.Structured()), "got %s", s.Structured())
}

func TestDecodeStatus_CommandSpecificOther(t *testing.T) {
	s := DecodeStatus(0x01ff)

	require.Equal(t, SCTCommandSpecific, s.Type)
	code, ok := s.Code.(CmdSpecificStatus)
	require.True(t, ok, "Code is %T", s.Code)
	assert.True(t, code.IsOther())
	assert.Equal(t, uint8(0xff), code.Raw())

	v := s.Code.Structured()
	assert.Equal(t, structured.KindMap, v.Kind())
	assert.True(t, v.Equal(structured.Tagged("other", 255)), "got %s", v)

	kind, _ := v.Field("kind").Text()
	n, _ := v.Field("code").Uint64()
	assert.Equal(t, "other", kind)
	assert.Equal(t, uint64(255), n)

	assert.False(t, s.Success())
}

func TestDecodeStatus_VendorAndReserved(t *testing.T) {
	v := DecodeStatus(0x07ab)
	if v.Type != SCTVendorSpecific {
		t.Fatalf("Type = %v, want vendor_specific", v.Type)
	}
	if v.Code != VendorSpecificStatus(0xab) {
		t.Errorf("Code = %v, want vendor_specific(0xab)", v.Code)
	}
	if !v.Code.Structured().Equal(structured.Tagged("vendor_specific", 0xab)) {
		t.Errorf("Structured() = %s", v.Code.Structured())
	}

	for _, sct := range []uint16{4, 5, 6} {
		r := DecodeStatus(sct<<8 | 0x12)
		if r.Type != SCTReserved {
			t.Errorf("SCT %d: Type = %v, want reserved", sct, r.Type)
		}
		if r.TypeBits != uint8(sct) {
			t.Errorf("SCT %d: TypeBits = %d", sct, r.TypeBits)
		}
		if r.Code != ReservedStatus(0x12) {
			t.Errorf("SCT %d: Code = %v, want reserved(0x12)", sct, r.Code)
		}
		if !r.Code.Structured().Equal(structured.Tagged("reserved", 0x12)) {
			t.Errorf("SCT %d: Structured() = %s", sct, r.Code.Structured())
		}
		typ := r.Structured().Field("status_code_type")
		if !typ.Equal(structured.Tagged("reserved", uint64(sct))) {
			t.Errorf("SCT %d: status_code_type = %s", sct, typ)
		}
	}
}

func TestStatusField_ReservedTypesStayDistinct(t *testing.T) {
	four := DecodeStatus(0x0412).Structured()
	six := DecodeStatus(0x0612).Structured()
	if four.Equal(six) {
		t.Errorf("SCT 4 and SCT 6 render the same: %s", four)
	}
}

func TestDecodeStatus_Flags(t *testing.T) {
	s := DecodeStatus(0x4000 | 0x2000 | 0x1000 | 0x0002)

	if !s.DoNotRetry || !s.More {
		t.Errorf("DoNotRetry = %v, More = %v, want true, true", s.DoNotRetry, s.More)
	}
	if s.CommandRetryDelay != 2 {
		t.Errorf("CommandRetryDelay = %d, want 2", s.CommandRetryDelay)
	}
	if s.Code != GenericInvalidFieldInCommand {
		t.Errorf("Code = %v, want invalid_field_in_command", s.Code)
	}
	if got := s.String(); got != "generic/invalid_field_in_command dnr more" {
		t.Errorf("String() = %q", got)
	}

	// Bit 15 carries nothing.
	if DecodeStatus(0x8000).Code != GenericSuccess {
		t.Error("bit 15 changed the decoded code")
	}
}

func TestDecodeStatusWithPhase(t *testing.T) {
	tests := []struct {
		raw   uint16
		code  StatusCode
		phase bool
	}{
		{0x0002, GenericInvalidCommandOpcode, false},
		{0x0000, GenericSuccess, false},
		{0x0001, GenericSuccess, true},
		{0x002e, GenericStatus(0x17), false},
	}

	for _, tt := range tests {
		s, phase := DecodeStatusWithPhase(tt.raw)
		if s.Code != tt.code {
			t.Errorf("DecodeStatusWithPhase(0x%04x) code = %v, want %v", tt.raw, s.Code, tt.code)
		}
		if phase != tt.phase {
			t.Errorf("DecodeStatusWithPhase(0x%04x) phase = %v, want %v", tt.raw, phase, tt.phase)
		}
	}

	if s, _ := DecodeStatusWithPhase(0x002e); !s.Code.(GenericStatus).IsOther() {
		t.Error("code 0x17 should be other")
	}
}

func TestDecodeCompletionStatus(t *testing.T) {
	dw3 := uint32(0x4002)<<17 | 1<<16 | 0x1234
	s, phase := DecodeCompletionStatus(dw3)

	if !phase {
		t.Error("phase = false, want true")
	}
	if s.Code != GenericInvalidFieldInCommand || !s.DoNotRetry {
		t.Errorf("status = %v, want generic/invalid_field_in_command dnr", s)
	}
}

func TestStatusError(t *testing.T) {
	err := DecodeStatus(0x4002).Err()
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Retryable())
	assert.Contains(t, err.Error(), "Invalid Field in Command")
	assert.Contains(t, err.Error(), "do not retry")

	err = DecodeStatus(0x07c1).Err()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "vendor_specific(0xc1)"), err.Error())
	assert.True(t, err.(*StatusError).Retryable())
}

func TestStatusCodeType_String(t *testing.T) {
	want := map[uint8]string{
		0: "generic",
		1: "command_specific",
		2: "media_and_data_integrity",
		3: "path_related",
		4: "reserved",
		5: "reserved",
		6: "reserved",
		7: "vendor_specific",
	}
	for bits, name := range want {
		if got := StatusCodeTypeOf(bits).String(); got != name {
			t.Errorf("StatusCodeTypeOf(%d) = %q, want %q", bits, got, name)
		}
	}
}
