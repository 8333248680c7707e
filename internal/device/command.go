package device

import (
	"fmt"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

// Admin command opcodes
const (
	OpGetLogPage = 0x02
	OpIdentify   = 0x06
)

// Identify CNS values
const (
	CNSNamespace  = 0x00
	CNSController = 0x01
)

// IdentifySize is the transfer length of every Identify data structure.
const IdentifySize = 4096

// NSIDAll addresses the controller or all namespaces.
const NSIDAll = 0xFFFFFFFF

// Command is an admin submission queue entry reduced to what both transports
// can forward: opcode, namespace, command dwords 10 through 15 and the length
// of the data read back.
type Command struct {
	Opcode  uint8
	NSID    uint32
	CDW10   uint32
	CDW11   uint32
	CDW12   uint32
	CDW13   uint32
	CDW14   uint32
	CDW15   uint32
	DataLen int
}

func (c Command) String() string {
	switch c.Opcode {
	case OpIdentify:
		return fmt.Sprintf("identify(cns=%d nsid=%d)", c.CDW10&0xff, c.NSID)
	case OpGetLogPage:
		return fmt.Sprintf("get_log_page(%s)", nvme.LogPageID(c.CDW10&0xff))
	default:
		return fmt.Sprintf("admin(0x%02x)", c.Opcode)
	}
}

// IdentifyController builds Identify with CNS 01h.
// This is a pure function: () → Command
func IdentifyController() Command {
	return Command{
		Opcode:  OpIdentify,
		CDW10:   CNSController,
		DataLen: IdentifySize,
	}
}

// IdentifyNamespace builds Identify with CNS 00h for nsid.
// This is a pure function: nsid → Command
func IdentifyNamespace(nsid uint32) Command {
	return Command{
		Opcode:  OpIdentify,
		NSID:    nsid,
		CDW10:   CNSNamespace,
		DataLen: IdentifySize,
	}
}

// GetLogPage builds Get Log Page for length bytes of page id. length is
// rounded up to whole dwords; NUMD is 0's based and split across CDW10 bits
// 31:16 (lower) and CDW11 bits 15:0 (upper).
// This is a pure function: (id, nsid, length) → Command
func GetLogPage(id nvme.LogPageID, nsid uint32, length int) (Command, error) {
	if length <= 0 {
		return Command{}, fmt.Errorf("log page %s: length %d must be positive", id, length)
	}
	dwords := (length + 3) / 4
	if int64(dwords) > 1<<32 {
		return Command{}, fmt.Errorf("log page %s: length %d too large", id, length)
	}
	numd := uint32(dwords - 1)
	return Command{
		Opcode:  OpGetLogPage,
		NSID:    nsid,
		CDW10:   (numd&0xffff)<<16 | uint32(id),
		CDW11:   numd >> 16,
		DataLen: dwords * 4,
	}, nil
}

// LogPageSize is the transfer length used for id. The error log spans
// entries×64 bytes; everything else is its fixed page size.
func LogPageSize(id nvme.LogPageID, errorLogEntries int) int {
	if id == nvme.LogPageError {
		if errorLogEntries < 1 {
			errorLogEntries = 1
		}
		return errorLogEntries * nvme.ErrLogEntrySize
	}
	return id.MinSize()
}
