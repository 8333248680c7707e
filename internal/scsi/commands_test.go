package scsi

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

func TestBuildTestUnitReady(t *testing.T) {
	cdb := BuildTestUnitReady()

	if len(cdb) != 6 {
		t.Errorf("CDB length = %d, want 6", len(cdb))
	}
	if cdb[0] != OpTestUnitReady {
		t.Errorf("Opcode = 0x%02x, want 0x%02x", cdb[0], OpTestUnitReady)
	}
}

func TestBuildInquiry(t *testing.T) {
	cdb := BuildInquiry()

	if len(cdb) != 6 {
		t.Errorf("CDB length = %d, want 6", len(cdb))
	}
	if cdb[0] != OpInquiry {
		t.Errorf("Opcode = 0x%02x, want 0x%02x", cdb[0], OpInquiry)
	}
	if cdb[4] != 36 {
		t.Errorf("Allocation length = %d, want 36", cdb[4])
	}
}

func TestBuildNVMePassThrough(t *testing.T) {
	tests := []struct {
		proto  byte
		length int
	}{
		{ProtoNVMCommand, NVMeCommandBlockSize},
		{ProtoDMAIn, 4096},
		{ProtoNonData, 0},
		{ProtoResponse, NVMeReplySize},
	}

	for _, tt := range tests {
		cdb := BuildNVMePassThrough(tt.proto, tt.length)

		if len(cdb) != 12 {
			t.Errorf("proto %d: CDB length = %d, want 12", tt.proto, len(cdb))
		}
		if cdb[0] != OpATAPassThrough12 {
			t.Errorf("proto %d: Opcode = 0x%02x, want 0x%02x", tt.proto, cdb[0], OpATAPassThrough12)
		}
		if cdb[1] != 0x80|tt.proto {
			t.Errorf("proto %d: byte 1 = 0x%02x, want 0x%02x", tt.proto, cdb[1], 0x80|tt.proto)
		}
		// Length is big-endian in bytes 3-4
		if got := int(cdb[3])<<8 | int(cdb[4]); got != tt.length {
			t.Errorf("proto %d: length = %d, want %d", tt.proto, got, tt.length)
		}
	}
}

func TestBuildNVMeCommandBlock(t *testing.T) {
	// Get Log Page, SMART, 512 bytes: NUMDL = 127 in CDW10 bits 27:16
	cmd := AdminCommand{
		Opcode:  0x02,
		NSID:    0xFFFFFFFF,
		CDW10:   127<<16 | 0x02,
		CDW15:   0xCAFE,
		DataLen: 512,
	}
	b := BuildNVMeCommandBlock(cmd)
	le := binary.LittleEndian

	if len(b) != NVMeCommandBlockSize {
		t.Fatalf("block length = %d, want %d", len(b), NVMeCommandBlockSize)
	}
	if got := le.Uint32(b[0:4]); got != NVMeSignature {
		t.Errorf("signature = 0x%08x, want 0x%08x", got, NVMeSignature)
	}
	if string(b[0:4]) != "NVME" {
		t.Errorf("signature bytes = %q, want NVME", b[0:4])
	}
	if got := le.Uint32(b[8:12]); got != 0x02 {
		t.Errorf("opcode = 0x%x, want 0x02", got)
	}
	if got := le.Uint32(b[12:16]); got != 0xFFFFFFFF {
		t.Errorf("nsid = 0x%x, want 0xffffffff", got)
	}
	if got := le.Uint32(b[48:52]); got != 127<<16|0x02 {
		t.Errorf("cdw10 = 0x%08x", got)
	}
	if got := le.Uint32(b[68:72]); got != 0xCAFE {
		t.Errorf("cdw15 = 0x%08x, want 0xcafe", got)
	}
	for i := 72; i < len(b); i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d = 0x%02x, want 0", i, b[i])
		}
	}
}

func nvmeReply(status uint16, result uint32) []byte {
	data := make([]byte, NVMeReplySize)
	binary.LittleEndian.PutUint32(data[0:4], NVMeSignature)
	binary.LittleEndian.PutUint32(data[8:12], result)
	binary.LittleEndian.PutUint16(data[22:24], status)
	return data
}

func TestParseNVMeReply_Success(t *testing.T) {
	comp, err := ParseNVMeReply(nvmeReply(0x0001, 0x1234))
	if err != nil {
		t.Fatalf("ParseNVMeReply error: %v", err)
	}

	if !comp.Status.Success() {
		t.Errorf("status = %v, want success", comp.Status)
	}
	if !comp.PhaseTag {
		t.Error("phase tag = false, want true")
	}
	if comp.Result != 0x1234 {
		t.Errorf("result = 0x%x, want 0x1234", comp.Result)
	}
}

func TestParseNVMeReply_Error(t *testing.T) {
	// Invalid log page (command specific 0x09) with DNR, shifted past the phase tag
	comp, err := ParseNVMeReply(nvmeReply((0x4000|0x0109)<<1, 0))
	if err != nil {
		t.Fatalf("ParseNVMeReply error: %v", err)
	}

	if comp.Status.Code != nvme.CmdInvalidLogPage {
		t.Errorf("code = %v, want invalid_log_page", comp.Status.Code)
	}
	if !comp.Status.DoNotRetry {
		t.Error("DoNotRetry = false, want true")
	}

	var se *nvme.StatusError
	if err := comp.Status.Err(); !errors.As(err, &se) {
		t.Errorf("Err() = %v, want *nvme.StatusError", err)
	}
}

func TestParseNVMeReply_Invalid(t *testing.T) {
	if _, err := ParseNVMeReply(make([]byte, 8)); !errors.Is(err, ErrReplyTooShort) {
		t.Errorf("short reply error = %v, want ErrReplyTooShort", err)
	}

	data := nvmeReply(0, 0)
	binary.LittleEndian.PutUint32(data[0:4], 0xDEADBEEF)
	if _, err := ParseNVMeReply(data); !errors.Is(err, ErrReplySignature) {
		t.Errorf("bad signature error = %v, want ErrReplySignature", err)
	}
}

func TestParseInquiry(t *testing.T) {
	// Build mock INQUIRY response
	data := make([]byte, 36)
	data[0] = 0x00 // direct access block device

	// Vendor at offset 8-15 (8 bytes)
	copy(data[8:16], "JMicron ")

	// Product at offset 16-31 (16 bytes)
	copy(data[16:32], "Generic         ")

	// Revision at offset 32-35 (4 bytes)
	copy(data[32:36], "0205")

	info := ParseInquiry(data)

	if info.DeviceType != 0 {
		t.Errorf("DeviceType = %d, want 0 (direct access)", info.DeviceType)
	}
	if info.Vendor != "JMicron" {
		t.Errorf("Vendor = %q, want %q", info.Vendor, "JMicron")
	}
	if info.Product != "Generic" {
		t.Errorf("Product = %q, want %q", info.Product, "Generic")
	}
	if info.Revision != "0205" {
		t.Errorf("Revision = %q, want %q", info.Revision, "0205")
	}
}

func TestParseInquiry_TooShort(t *testing.T) {
	data := make([]byte, 10) // too short

	info := ParseInquiry(data)

	// Should return empty struct, not panic
	if info.DeviceType != 0 {
		t.Errorf("DeviceType = %d, want 0", info.DeviceType)
	}
	if info.Vendor != "" {
		t.Errorf("Vendor = %q, want empty", info.Vendor)
	}
}
