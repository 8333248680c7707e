package scsi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

// SCSI command opcodes
const (
	OpTestUnitReady    = 0x00
	OpInquiry          = 0x12
	OpATAPassThrough12 = 0xA1 // reused by JMicron bridges for NVMe pass-through
)

// JMicron NVMe pass-through protocol selectors (CDB byte 1, low nibble).
const (
	ProtoNVMCommand = 0x0 // 512-byte command block, host to device
	ProtoNonData    = 0x1
	ProtoDMAIn      = 0x2
	ProtoDMAOut     = 0x3
	ProtoResponse   = 0xF // 32-byte reply carrying the completion entry
)

const (
	// NVMeSignature marks JMicron command blocks and replies ("NVME" little-endian).
	NVMeSignature = 0x454D564E

	// NVMeCommandBlockSize is the length of the block sent with ProtoNVMCommand.
	NVMeCommandBlockSize = 512

	// NVMeReplySize is the length of the reply read with ProtoResponse.
	NVMeReplySize = 32
)

var (
	ErrReplyTooShort  = errors.New("nvme reply too short")
	ErrReplySignature = errors.New("invalid nvme reply signature")
)

// BuildTestUnitReady creates the CDB for TEST UNIT READY command.
// Returns 6-byte CDB.
func BuildTestUnitReady() []byte {
	return []byte{OpTestUnitReady, 0, 0, 0, 0, 0}
}

// BuildInquiry creates the CDB for INQUIRY command.
// Returns 6-byte CDB requesting 36 bytes of response.
func BuildInquiry() []byte {
	return []byte{OpInquiry, 0, 0, 0, 36, 0}
}

// BuildNVMePassThrough creates the 12-byte CDB that opens one phase of a
// JMicron NVMe pass-through exchange.
// This is a pure function: (proto, length) → 12 bytes
func BuildNVMePassThrough(proto byte, length int) []byte {
	cdb := make([]byte, 12)
	cdb[0] = OpATAPassThrough12
	cdb[1] = 0x80 | proto&0x0F
	binary.BigEndian.PutUint16(cdb[3:5], uint16(length))
	return cdb
}

// AdminCommand is an NVMe admin submission queue entry reduced to the fields
// a pass-through bridge forwards.
type AdminCommand struct {
	Opcode  uint8
	NSID    uint32
	CDW10   uint32
	CDW11   uint32
	CDW12   uint32
	CDW13   uint32
	CDW14   uint32
	CDW15   uint32
	DataLen int // bytes read from the device, 0 for non-data commands
}

// BuildNVMeCommandBlock lays out cmd in the 512-byte block JMicron bridges
// expect: signature, then the submission entry shifted by 8 bytes.
// This is a pure function: AdminCommand → 512 bytes
func BuildNVMeCommandBlock(cmd AdminCommand) []byte {
	b := make([]byte, NVMeCommandBlockSize)
	le := binary.LittleEndian

	le.PutUint32(b[0:4], NVMeSignature)
	le.PutUint32(b[8:12], uint32(cmd.Opcode))
	le.PutUint32(b[12:16], cmd.NSID)
	for i, dw := range []uint32{cmd.CDW10, cmd.CDW11, cmd.CDW12, cmd.CDW13, cmd.CDW14, cmd.CDW15} {
		off := 48 + 4*i
		le.PutUint32(b[off:off+4], dw)
	}
	return b
}

// Completion is the part of an NVMe completion entry a bridge reports back.
type Completion struct {
	Result   uint32 // DW0
	Status   nvme.StatusField
	PhaseTag bool
}

// ParseNVMeReply parses the 32-byte reply of a ProtoResponse phase. The
// completion entry starts at byte 8.
// This is a pure function: bytes → (Completion, error)
func ParseNVMeReply(data []byte) (Completion, error) {
	if len(data) < NVMeReplySize {
		return Completion{}, fmt.Errorf("%w: %d bytes", ErrReplyTooShort, len(data))
	}
	le := binary.LittleEndian
	if le.Uint32(data[0:4]) != NVMeSignature {
		return Completion{}, ErrReplySignature
	}

	status, phase := nvme.DecodeStatusWithPhase(le.Uint16(data[22:24]))
	return Completion{
		Result:   le.Uint32(data[8:12]),
		Status:   status,
		PhaseTag: phase,
	}, nil
}

// InquiryData represents parsed INQUIRY response
type InquiryData struct {
	DeviceType byte   // Peripheral device type (0 = direct access)
	Vendor     string // 8 chars
	Product    string // 16 chars
	Revision   string // 4 chars
}

// ParseInquiry parses a 36-byte INQUIRY response.
// This is a pure function.
func ParseInquiry(data []byte) InquiryData {
	if len(data) < 36 {
		return InquiryData{}
	}

	return InquiryData{
		DeviceType: data[0] & 0x1F,
		Vendor:     nvme.DecodeFixedStr(data[8:16]),
		Product:    nvme.DecodeFixedStr(data[16:32]),
		Revision:   nvme.DecodeFixedStr(data[32:36]),
	}
}
