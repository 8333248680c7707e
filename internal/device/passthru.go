package device

import "time"

// nvmeIoctlAdminCmd is _IOWR('N', 0x41, struct nvme_passthru_cmd).
const nvmeIoctlAdminCmd = 0xC0484E41

// passthruCmd mirrors the kernel's struct nvme_passthru_cmd (72 bytes).
type passthruCmd struct {
	Opcode      uint8
	Flags       uint8
	Rsvd1       uint16
	NSID        uint32
	CDW2        uint32
	CDW3        uint32
	Metadata    uint64
	Addr        uint64
	MetadataLen uint32
	DataLen     uint32
	CDW10       uint32
	CDW11       uint32
	CDW12       uint32
	CDW13       uint32
	CDW14       uint32
	CDW15       uint32
	TimeoutMS   uint32
	Result      uint32
}

// newPassthru fills everything but Addr, which the caller points at its
// buffer right before the ioctl.
func newPassthru(cmd Command, timeout time.Duration) passthruCmd {
	return passthruCmd{
		Opcode:    cmd.Opcode,
		NSID:      cmd.NSID,
		DataLen:   uint32(cmd.DataLen),
		CDW10:     cmd.CDW10,
		CDW11:     cmd.CDW11,
		CDW12:     cmd.CDW12,
		CDW13:     cmd.CDW13,
		CDW14:     cmd.CDW14,
		CDW15:     cmd.CDW15,
		TimeoutMS: uint32(timeout / time.Millisecond),
	}
}
