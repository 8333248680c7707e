package nvme

import (
	"encoding/hex"
	"fmt"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// IdCtrlSize is the length of the Identify Controller data structure (CNS 01h).
const IdCtrlSize = 4096

// Version is the VER field: major in bits 31:16, minor in 15:8, tertiary in 7:0.
// Controllers older than 1.2 report zero.
type Version uint32

func (v Version) Major() uint16   { return uint16(v >> 16) }
func (v Version) Minor() uint8    { return uint8(v >> 8) }
func (v Version) Tertiary() uint8 { return uint8(v) }

func (v Version) String() string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Tertiary())
}

func (v Version) Structured() structured.Value {
	if v == 0 {
		return structured.Null()
	}
	return structured.Text(v.String())
}

// CMIC is the controller multi-path I/O and namespace sharing capabilities.
type CMIC uint8

func (c CMIC) MultiPort() bool       { return c&(1<<0) != 0 }
func (c CMIC) MultiController() bool { return c&(1<<1) != 0 }
func (c CMIC) SRIOV() bool           { return c&(1<<2) != 0 }
func (c CMIC) ANAReporting() bool    { return c&(1<<3) != 0 }

func (c CMIC) Structured() structured.Value {
	return structured.BitSet(uint64(c), []structured.Bit{
		{Pos: 0, Name: "multi_port"},
		{Pos: 1, Name: "multi_controller"},
		{Pos: 2, Name: "sr_iov"},
		{Pos: 3, Name: "ana_reporting"},
	})
}

// OACS is the optional admin command support bitmask.
type OACS uint16

func (o OACS) SecuritySendReceive() bool  { return o&(1<<0) != 0 }
func (o OACS) FormatNVM() bool            { return o&(1<<1) != 0 }
func (o OACS) FirmwareDownload() bool     { return o&(1<<2) != 0 }
func (o OACS) NamespaceManagement() bool  { return o&(1<<3) != 0 }
func (o OACS) DeviceSelfTest() bool       { return o&(1<<4) != 0 }
func (o OACS) Directives() bool           { return o&(1<<5) != 0 }
func (o OACS) NVMeMI() bool               { return o&(1<<6) != 0 }
func (o OACS) VirtualizationMgmt() bool   { return o&(1<<7) != 0 }
func (o OACS) DoorbellBufferConfig() bool { return o&(1<<8) != 0 }
func (o OACS) GetLBAStatus() bool         { return o&(1<<9) != 0 }

func (o OACS) Structured() structured.Value {
	return structured.BitSet(uint64(o), []structured.Bit{
		{Pos: 0, Name: "security_send_receive"},
		{Pos: 1, Name: "format_nvm"},
		{Pos: 2, Name: "firmware_download"},
		{Pos: 3, Name: "namespace_management"},
		{Pos: 4, Name: "device_self_test"},
		{Pos: 5, Name: "directives"},
		{Pos: 6, Name: "nvme_mi"},
		{Pos: 7, Name: "virtualization_management"},
		{Pos: 8, Name: "doorbell_buffer_config"},
		{Pos: 9, Name: "get_lba_status"},
	})
}

// FRMW is the firmware updates field.
type FRMW uint8

// Slot1ReadOnly reports that firmware slot 1 cannot be written.
func (f FRMW) Slot1ReadOnly() bool { return f&0x1 != 0 }

// SlotCount is the number of firmware slots the controller supports.
func (f FRMW) SlotCount() uint8 { return uint8(f>>1) & 0x7 }

// ActivateWithoutReset reports support for activation without a reset.
func (f FRMW) ActivateWithoutReset() bool { return f&(1<<4) != 0 }

func (f FRMW) Structured() structured.Value {
	return structured.Object(structured.NewMap().
		Set("raw", structured.Uint(uint64(f))).
		Set("slot1_read_only", structured.Bool(f.Slot1ReadOnly())).
		Set("slot_count", structured.Uint(uint64(f.SlotCount()))).
		Set("activate_without_reset", structured.Bool(f.ActivateWithoutReset())))
}

// LPA is the log page attributes bitmask.
type LPA uint8

func (l LPA) SmartPerNamespace() bool  { return l&(1<<0) != 0 }
func (l LPA) CommandEffects() bool     { return l&(1<<1) != 0 }
func (l LPA) ExtendedData() bool       { return l&(1<<2) != 0 }
func (l LPA) Telemetry() bool          { return l&(1<<3) != 0 }
func (l LPA) PersistentEventLog() bool { return l&(1<<4) != 0 }

func (l LPA) Structured() structured.Value {
	return structured.BitSet(uint64(l), []structured.Bit{
		{Pos: 0, Name: "smart_per_namespace"},
		{Pos: 1, Name: "command_effects"},
		{Pos: 2, Name: "extended_data"},
		{Pos: 3, Name: "telemetry"},
		{Pos: 4, Name: "persistent_event_log"},
	})
}

// ONCS is the optional NVM command support bitmask.
type ONCS uint16

func (o ONCS) Compare() bool            { return o&(1<<0) != 0 }
func (o ONCS) WriteUncorrectable() bool { return o&(1<<1) != 0 }
func (o ONCS) DatasetManagement() bool  { return o&(1<<2) != 0 }
func (o ONCS) WriteZeroes() bool        { return o&(1<<3) != 0 }
func (o ONCS) SaveSelectFeatures() bool { return o&(1<<4) != 0 }
func (o ONCS) Reservations() bool       { return o&(1<<5) != 0 }
func (o ONCS) Timestamp() bool          { return o&(1<<6) != 0 }
func (o ONCS) Verify() bool             { return o&(1<<7) != 0 }

func (o ONCS) Structured() structured.Value {
	return structured.BitSet(uint64(o), []structured.Bit{
		{Pos: 0, Name: "compare"},
		{Pos: 1, Name: "write_uncorrectable"},
		{Pos: 2, Name: "dataset_management"},
		{Pos: 3, Name: "write_zeroes"},
		{Pos: 4, Name: "save_select_features"},
		{Pos: 5, Name: "reservations"},
		{Pos: 6, Name: "timestamp"},
		{Pos: 7, Name: "verify"},
	})
}

// ControllerType is the CNTRLTYPE field.
type ControllerType uint8

const (
	ControllerTypeNotReported ControllerType = 0
	ControllerTypeIO          ControllerType = 1
	ControllerTypeDiscovery   ControllerType = 2
	ControllerTypeAdmin       ControllerType = 3
)

func (c ControllerType) String() string {
	switch c {
	case ControllerTypeNotReported:
		return "not_reported"
	case ControllerTypeIO:
		return "io"
	case ControllerTypeDiscovery:
		return "discovery"
	case ControllerTypeAdmin:
		return "admin"
	default:
		return fmt.Sprintf("other(%d)", uint8(c))
	}
}

func (c ControllerType) Structured() structured.Value {
	if c > ControllerTypeAdmin {
		return structured.Tagged("other", uint64(c))
	}
	return structured.Text(c.String())
}

// IdCtrl is the Identify Controller data structure. Field comments carry the
// protocol's mnemonic.
type IdCtrl struct {
	VendorID          uint16     // VID
	SubsystemVendorID uint16     // SSVID
	SerialNumber      FixedStr20 // SN
	ModelNumber       FixedStr40 // MN
	FirmwareRevision  FixedStr8  // FR
	ArbitrationBurst  uint8      // RAB
	IEEE              [3]byte    // IEEE OUI, least significant byte first
	CMIC              CMIC
	MDTS              uint8  // max data transfer size, power of two of the minimum page size; 0 = no limit
	ControllerID      uint16 // CNTLID
	Version           Version
	RTD3ResumeLatency uint32 // RTD3R, microseconds
	RTD3EntryLatency  uint32 // RTD3E, microseconds
	OAES              uint32 // optional asynchronous events supported
	CTRATT            uint32 // controller attributes
	RRLS              uint16 // read recovery levels supported
	ControllerType    ControllerType
	FGUID             [16]byte
	CRDT              [3]uint16 // command retry delay times, 100 ms units

	OACS                   OACS
	AbortCommandLimit      uint8 // ACL, 0's based
	AsyncEventRequestLimit uint8 // AERL, 0's based
	FRMW                   FRMW
	LPA                    LPA
	ErrorLogPageEntries    uint8 // ELPE, 0's based
	NumPowerStates         uint8 // NPSS, 0's based
	AVSCC                  uint8
	APSTA                  uint8
	WarningTempThreshold   Kelvin // WCTEMP
	CriticalTempThreshold  Kelvin // CCTEMP
	MTFA                   uint16
	HMPRE                  uint32
	HMMIN                  uint32
	TotalNVMCapacity       Uint128 // TNVMCAP, bytes
	UnallocatedNVMCapacity Uint128 // UNVMCAP, bytes
	RPMBS                  uint32
	EDSTT                  uint16 // extended device self-test time, minutes
	DSTO                   uint8
	FWUG                   uint8 // firmware update granularity, 4 KiB units
	KAS                    uint16
	HCTMA                  uint16
	MinThermalMgmtTemp     Kelvin // MNTMT
	MaxThermalMgmtTemp     Kelvin // MXTMT
	SANICAP                uint32
	HMMINDS                uint32
	HMMAXD                 uint16
	NSETIDMAX              uint16
	ENDGIDMAX              uint16
	ANATT                  uint8
	ANACAP                 uint8
	ANAGRPMAX              uint32
	NANAGRPID              uint32
	PELS                   uint32

	SQES                 uint8
	CQES                 uint8
	MaxCommands          uint16 // MAXCMD
	NumNamespaces        uint32 // NN
	ONCS                 ONCS
	FUSES                uint16
	FNA                  uint8
	VolatileWriteCache   uint8 // VWC
	AWUN                 uint16
	AWUPF                uint16
	NVSCC                uint8
	NWPC                 uint8
	ACWU                 uint16
	SGLS                 uint32
	MaxAllowedNamespaces uint32 // MNAN
	SubsystemNQN         FixedStr256

	Fabrics        [256]byte // NVMe over Fabrics region, kept as is
	PowerStates    [PowerStateCount]PowerState
	VendorSpecific [1024]byte
}

// DecodeIdCtrl decodes Identify Controller data. buf must be exactly
// IdCtrlSize bytes.
func DecodeIdCtrl(buf []byte) (IdCtrl, error) {
	if err := checkExact("identify controller", buf, IdCtrlSize); err != nil {
		return IdCtrl{}, err
	}

	c := IdCtrl{
		VendorID:          u16(buf, 0),
		SubsystemVendorID: u16(buf, 2),
		ArbitrationBurst:  buf[72],
		CMIC:              CMIC(buf[76]),
		MDTS:              buf[77],
		ControllerID:      u16(buf, 78),
		Version:           Version(u32(buf, 80)),
		RTD3ResumeLatency: u32(buf, 84),
		RTD3EntryLatency:  u32(buf, 88),
		OAES:              u32(buf, 92),
		CTRATT:            u32(buf, 96),
		RRLS:              u16(buf, 100),
		ControllerType:    ControllerType(buf[111]),
		CRDT:              [3]uint16{u16(buf, 128), u16(buf, 130), u16(buf, 132)},

		OACS:                   OACS(u16(buf, 256)),
		AbortCommandLimit:      buf[258],
		AsyncEventRequestLimit: buf[259],
		FRMW:                   FRMW(buf[260]),
		LPA:                    LPA(buf[261]),
		ErrorLogPageEntries:    buf[262],
		NumPowerStates:         buf[263],
		AVSCC:                  buf[264],
		APSTA:                  buf[265],
		WarningTempThreshold:   Kelvin(u16(buf, 266)),
		CriticalTempThreshold:  Kelvin(u16(buf, 268)),
		MTFA:                   u16(buf, 270),
		HMPRE:                  u32(buf, 272),
		HMMIN:                  u32(buf, 276),
		TotalNVMCapacity:       getUint128(buf[280:]),
		UnallocatedNVMCapacity: getUint128(buf[296:]),
		RPMBS:                  u32(buf, 312),
		EDSTT:                  u16(buf, 316),
		DSTO:                   buf[318],
		FWUG:                   buf[319],
		KAS:                    u16(buf, 320),
		HCTMA:                  u16(buf, 322),
		MinThermalMgmtTemp:     Kelvin(u16(buf, 324)),
		MaxThermalMgmtTemp:     Kelvin(u16(buf, 326)),
		SANICAP:                u32(buf, 328),
		HMMINDS:                u32(buf, 332),
		HMMAXD:                 u16(buf, 336),
		NSETIDMAX:              u16(buf, 338),
		ENDGIDMAX:              u16(buf, 340),
		ANATT:                  buf[342],
		ANACAP:                 buf[343],
		ANAGRPMAX:              u32(buf, 344),
		NANAGRPID:              u32(buf, 348),
		PELS:                   u32(buf, 352),

		SQES:                 buf[512],
		CQES:                 buf[513],
		MaxCommands:          u16(buf, 514),
		NumNamespaces:        u32(buf, 516),
		ONCS:                 ONCS(u16(buf, 520)),
		FUSES:                u16(buf, 522),
		FNA:                  buf[524],
		VolatileWriteCache:   buf[525],
		AWUN:                 u16(buf, 526),
		AWUPF:                u16(buf, 528),
		NVSCC:                buf[530],
		NWPC:                 buf[531],
		ACWU:                 u16(buf, 532),
		SGLS:                 u32(buf, 536),
		MaxAllowedNamespaces: u32(buf, 540),
	}
	copy(c.SerialNumber[:], buf[4:24])
	copy(c.ModelNumber[:], buf[24:64])
	copy(c.FirmwareRevision[:], buf[64:72])
	copy(c.IEEE[:], buf[73:76])
	copy(c.FGUID[:], buf[112:128])
	copy(c.SubsystemNQN[:], buf[768:1024])
	copy(c.Fabrics[:], buf[1792:2048])
	for i := range c.PowerStates {
		off := 2048 + PowerStateSize*i
		c.PowerStates[i] = decodePowerState(buf[off : off+PowerStateSize])
	}
	copy(c.VendorSpecific[:], buf[3072:4096])

	return c, nil
}

// IEEEOUI returns the organizationally unique identifier as a number.
func (c IdCtrl) IEEEOUI() uint32 {
	return uint32(c.IEEE[0]) | uint32(c.IEEE[1])<<8 | uint32(c.IEEE[2])<<16
}

// SupportedPowerStates returns the descriptors the controller implements.
func (c IdCtrl) SupportedPowerStates() []PowerState {
	n := int(c.NumPowerStates) + 1
	if n > PowerStateCount {
		n = PowerStateCount
	}
	return c.PowerStates[:n]
}

// MaxErrorLogEntries is the number of error log entries the controller keeps.
func (c IdCtrl) MaxErrorLogEntries() int { return int(c.ErrorLogPageEntries) + 1 }

func (c IdCtrl) Structured() structured.Value {
	psds := c.SupportedPowerStates()
	ps := make([]structured.Value, len(psds))
	for i, p := range psds {
		ps[i] = p.Structured()
	}

	return structured.Object(structured.NewMap().
		Set("vid", structured.Uint(uint64(c.VendorID))).
		Set("ssvid", structured.Uint(uint64(c.SubsystemVendorID))).
		Set("sn", c.SerialNumber.Structured()).
		Set("mn", c.ModelNumber.Structured()).
		Set("fr", c.FirmwareRevision.Structured()).
		Set("rab", structured.Uint(uint64(c.ArbitrationBurst))).
		Set("ieee", structured.Uint(uint64(c.IEEEOUI()))).
		Set("cmic", c.CMIC.Structured()).
		Set("mdts", structured.Uint(uint64(c.MDTS))).
		Set("cntlid", structured.Uint(uint64(c.ControllerID))).
		Set("ver", c.Version.Structured()).
		Set("rtd3r", structured.Uint(uint64(c.RTD3ResumeLatency))).
		Set("rtd3e", structured.Uint(uint64(c.RTD3EntryLatency))).
		Set("oaes", structured.Uint(uint64(c.OAES))).
		Set("ctratt", structured.Uint(uint64(c.CTRATT))).
		Set("rrls", structured.Uint(uint64(c.RRLS))).
		Set("cntrltype", c.ControllerType.Structured()).
		Set("fguid", structured.Text(hex.EncodeToString(c.FGUID[:]))).
		Set("crdt1", structured.Uint(uint64(c.CRDT[0]))).
		Set("crdt2", structured.Uint(uint64(c.CRDT[1]))).
		Set("crdt3", structured.Uint(uint64(c.CRDT[2]))).
		Set("oacs", c.OACS.Structured()).
		Set("acl", structured.Uint(uint64(c.AbortCommandLimit))).
		Set("aerl", structured.Uint(uint64(c.AsyncEventRequestLimit))).
		Set("frmw", c.FRMW.Structured()).
		Set("lpa", c.LPA.Structured()).
		Set("elpe", structured.Uint(uint64(c.ErrorLogPageEntries))).
		Set("npss", structured.Uint(uint64(c.NumPowerStates))).
		Set("avscc", structured.Uint(uint64(c.AVSCC))).
		Set("apsta", structured.Uint(uint64(c.APSTA))).
		Set("wctemp", c.WarningTempThreshold.Structured()).
		Set("cctemp", c.CriticalTempThreshold.Structured()).
		Set("mtfa", structured.Uint(uint64(c.MTFA))).
		Set("hmpre", structured.Uint(uint64(c.HMPRE))).
		Set("hmmin", structured.Uint(uint64(c.HMMIN))).
		Set("tnvmcap", c.TotalNVMCapacity.Structured()).
		Set("unvmcap", c.UnallocatedNVMCapacity.Structured()).
		Set("rpmbs", structured.Uint(uint64(c.RPMBS))).
		Set("edstt", structured.Uint(uint64(c.EDSTT))).
		Set("dsto", structured.Uint(uint64(c.DSTO))).
		Set("fwug", structured.Uint(uint64(c.FWUG))).
		Set("kas", structured.Uint(uint64(c.KAS))).
		Set("hctma", structured.Uint(uint64(c.HCTMA))).
		Set("mntmt", c.MinThermalMgmtTemp.Structured()).
		Set("mxtmt", c.MaxThermalMgmtTemp.Structured()).
		Set("sanicap", structured.Uint(uint64(c.SANICAP))).
		Set("hmminds", structured.Uint(uint64(c.HMMINDS))).
		Set("hmmaxd", structured.Uint(uint64(c.HMMAXD))).
		Set("nsetidmax", structured.Uint(uint64(c.NSETIDMAX))).
		Set("endgidmax", structured.Uint(uint64(c.ENDGIDMAX))).
		Set("anatt", structured.Uint(uint64(c.ANATT))).
		Set("anacap", structured.Uint(uint64(c.ANACAP))).
		Set("anagrpmax", structured.Uint(uint64(c.ANAGRPMAX))).
		Set("nanagrpid", structured.Uint(uint64(c.NANAGRPID))).
		Set("pels", structured.Uint(uint64(c.PELS))).
		Set("sqes", structured.Uint(uint64(c.SQES))).
		Set("cqes", structured.Uint(uint64(c.CQES))).
		Set("maxcmd", structured.Uint(uint64(c.MaxCommands))).
		Set("nn", structured.Uint(uint64(c.NumNamespaces))).
		Set("oncs", c.ONCS.Structured()).
		Set("fuses", structured.Uint(uint64(c.FUSES))).
		Set("fna", structured.Uint(uint64(c.FNA))).
		Set("vwc", structured.Uint(uint64(c.VolatileWriteCache))).
		Set("awun", structured.Uint(uint64(c.AWUN))).
		Set("awupf", structured.Uint(uint64(c.AWUPF))).
		Set("nvscc", structured.Uint(uint64(c.NVSCC))).
		Set("nwpc", structured.Uint(uint64(c.NWPC))).
		Set("acwu", structured.Uint(uint64(c.ACWU))).
		Set("sgls", structured.Uint(uint64(c.SGLS))).
		Set("mnan", structured.Uint(uint64(c.MaxAllowedNamespaces))).
		Set("subnqn", c.SubsystemNQN.Structured()).
		Set("psds", structured.List(ps...)))
}
