package scsi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// USB Mass Storage Bulk-Only protocol constants
const (
	CBWSignature = 0x43425355 // "USBC" little-endian
	CSWSignature = 0x53425355 // "USBS" little-endian
	CBWSize      = 31
	CSWSize      = 13
)

// Direction constants for CBW
const (
	DirectionOut = 0x00 // Host to device
	DirectionIn  = 0x80 // Device to host
)

// CSW status values
const (
	StatusPassed     = 0x00
	StatusFailed     = 0x01
	StatusPhaseError = 0x02
)

var (
	ErrCSWTooShort    = errors.New("CSW too short")
	ErrCSWSignature   = errors.New("invalid CSW signature")
	ErrCSWTagMismatch = errors.New("CSW tag does not match CBW")
)

// CSW is the status wrapper that closes every bulk-only command.
type CSW struct {
	Tag     uint32
	Residue uint32 // bytes of the data stage not transferred
	Status  byte
}

// StageError reports a bulk-only command whose CSW status was not
// StatusPassed.
type StageError struct {
	Stage  string
	Status byte
}

func (e *StageError) Error() string {
	var what string
	switch e.Status {
	case StatusFailed:
		what = "command failed"
	case StatusPhaseError:
		what = "phase error"
	default:
		what = fmt.Sprintf("status 0x%02x", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Stage, what)
}

// BuildCBW wraps a CDB of at most 16 bytes for LUN 0.
// This is a pure function: (tag, dataLen, direction, cdb) → 31 bytes
func BuildCBW(tag uint32, dataLen uint32, direction byte, cdb []byte) []byte {
	cbw := make([]byte, CBWSize)

	binary.LittleEndian.PutUint32(cbw[0:4], CBWSignature)
	binary.LittleEndian.PutUint32(cbw[4:8], tag)
	binary.LittleEndian.PutUint32(cbw[8:12], dataLen)
	cbw[12] = direction
	n := copy(cbw[15:], cdb)
	cbw[14] = byte(n)
	return cbw
}

// ParseCSW parses a 13-byte CSW response.
// This is a pure function: bytes → (CSW, error)
func ParseCSW(data []byte) (CSW, error) {
	if len(data) < CSWSize {
		return CSW{}, fmt.Errorf("%w: %d bytes", ErrCSWTooShort, len(data))
	}

	sig := binary.LittleEndian.Uint32(data[0:4])
	if sig != CSWSignature {
		return CSW{}, fmt.Errorf("%w: 0x%08x", ErrCSWSignature, sig)
	}

	return CSW{
		Tag:     binary.LittleEndian.Uint32(data[4:8]),
		Residue: binary.LittleEndian.Uint32(data[8:12]),
		Status:  data[12],
	}, nil
}

// ParseCSWFor parses a CSW and checks it answers the CBW sent with tag.
// This is a pure function: (bytes, tag) → (CSW, error)
func ParseCSWFor(data []byte, tag uint32) (CSW, error) {
	csw, err := ParseCSW(data)
	if err != nil {
		return CSW{}, err
	}
	if csw.Tag != tag {
		return CSW{}, fmt.Errorf("%w: got %d, want %d", ErrCSWTagMismatch, csw.Tag, tag)
	}
	return csw, nil
}
