package nvme

import (
	"encoding/hex"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

const (
	// IdNsSize is the length of the Identify Namespace data structure (CNS 00h).
	IdNsSize = 4096

	// LBAFormatCount is the number of LBA format descriptors in IdNs.
	LBAFormatCount = 16
)

// LBAFormat is one LBA format descriptor.
type LBAFormat struct {
	MetadataSize        uint16 // MS, bytes
	DataSizeShift       uint8  // LBADS, log2 of the data size; 0 = format unsupported
	RelativePerformance uint8  // RP: 0 best, 3 degraded
}

// DataSize is the logical block size in bytes, or 0 for an unsupported format.
func (f LBAFormat) DataSize() uint64 {
	if f.DataSizeShift < 9 || f.DataSizeShift > 63 {
		return 0
	}
	return 1 << f.DataSizeShift
}

func (f LBAFormat) Structured() structured.Value {
	return structured.Object(structured.NewMap().
		Set("ms", structured.Uint(uint64(f.MetadataSize))).
		Set("lbads", structured.Uint(uint64(f.DataSizeShift))).
		Set("data_size", structured.Uint(f.DataSize())).
		Set("rp", structured.Uint(uint64(f.RelativePerformance))))
}

// IdNs is the Identify Namespace data structure for the NVM command set.
type IdNs struct {
	Size          uint64 // NSZE, logical blocks
	Capacity      uint64 // NCAP, logical blocks
	Utilization   uint64 // NUSE, logical blocks
	Features      uint8  // NSFEAT
	NumLBAFormats uint8  // NLBAF, 0's based
	FormattedLBA  uint8  // FLBAS
	MetadataCaps  uint8  // MC
	DPC           uint8
	DPS           uint8
	NMIC          uint8
	RESCAP        uint8
	FPI           uint8
	DLFEAT        uint8
	NAWUN         uint16
	NAWUPF        uint16
	NACWU         uint16
	NABSN         uint16
	NABO          uint16
	NABSPF        uint16
	NOIOB         uint16
	NVMCapacity   Uint128 // NVMCAP, bytes
	NGUID         [16]byte
	EUI64         [8]byte
	LBAFormats    [LBAFormatCount]LBAFormat

	VendorSpecific [3712]byte
}

// DecodeIdNs decodes Identify Namespace data. buf must be exactly IdNsSize
// bytes.
func DecodeIdNs(buf []byte) (IdNs, error) {
	if err := checkExact("identify namespace", buf, IdNsSize); err != nil {
		return IdNs{}, err
	}

	n := IdNs{
		Size:          u64(buf, 0),
		Capacity:      u64(buf, 8),
		Utilization:   u64(buf, 16),
		Features:      buf[24],
		NumLBAFormats: buf[25],
		FormattedLBA:  buf[26],
		MetadataCaps:  buf[27],
		DPC:           buf[28],
		DPS:           buf[29],
		NMIC:          buf[30],
		RESCAP:        buf[31],
		FPI:           buf[32],
		DLFEAT:        buf[33],
		NAWUN:         u16(buf, 34),
		NAWUPF:        u16(buf, 36),
		NACWU:         u16(buf, 38),
		NABSN:         u16(buf, 40),
		NABO:          u16(buf, 42),
		NABSPF:        u16(buf, 44),
		NOIOB:         u16(buf, 46),
		NVMCapacity:   getUint128(buf[48:]),
	}
	copy(n.NGUID[:], buf[104:120])
	copy(n.EUI64[:], buf[120:128])
	for i := range n.LBAFormats {
		off := 128 + 4*i
		n.LBAFormats[i] = LBAFormat{
			MetadataSize:        u16(buf, off),
			DataSizeShift:       buf[off+2],
			RelativePerformance: buf[off+3] & 0x3,
		}
	}
	copy(n.VendorSpecific[:], buf[384:4096])

	return n, nil
}

// FormatIndex is the LBA format the namespace is formatted with (FLBAS bits 3:0).
func (n IdNs) FormatIndex() int { return int(n.FormattedLBA & 0xf) }

// CurrentFormat returns the LBA format in use.
func (n IdNs) CurrentFormat() LBAFormat { return n.LBAFormats[n.FormatIndex()] }

// SizeBytes is the namespace size in bytes under the current format.
func (n IdNs) SizeBytes() Uint128 {
	return mulUint64(n.Size, n.CurrentFormat().DataSize())
}

// Formats returns the LBA formats the namespace supports.
func (n IdNs) Formats() []LBAFormat {
	c := int(n.NumLBAFormats) + 1
	if c > LBAFormatCount {
		c = LBAFormatCount
	}
	return n.LBAFormats[:c]
}

func (n IdNs) Structured() structured.Value {
	formats := n.Formats()
	lbafs := make([]structured.Value, len(formats))
	for i, f := range formats {
		lbafs[i] = f.Structured()
	}

	return structured.Object(structured.NewMap().
		Set("nsze", structured.Uint(n.Size)).
		Set("ncap", structured.Uint(n.Capacity)).
		Set("nuse", structured.Uint(n.Utilization)).
		Set("nsfeat", structured.Uint(uint64(n.Features))).
		Set("nlbaf", structured.Uint(uint64(n.NumLBAFormats))).
		Set("flbas", structured.Uint(uint64(n.FormattedLBA))).
		Set("mc", structured.Uint(uint64(n.MetadataCaps))).
		Set("dpc", structured.Uint(uint64(n.DPC))).
		Set("dps", structured.Uint(uint64(n.DPS))).
		Set("nmic", structured.Uint(uint64(n.NMIC))).
		Set("rescap", structured.Uint(uint64(n.RESCAP))).
		Set("fpi", structured.Uint(uint64(n.FPI))).
		Set("dlfeat", structured.Uint(uint64(n.DLFEAT))).
		Set("nawun", structured.Uint(uint64(n.NAWUN))).
		Set("nawupf", structured.Uint(uint64(n.NAWUPF))).
		Set("nacwu", structured.Uint(uint64(n.NACWU))).
		Set("nabsn", structured.Uint(uint64(n.NABSN))).
		Set("nabo", structured.Uint(uint64(n.NABO))).
		Set("nabspf", structured.Uint(uint64(n.NABSPF))).
		Set("noiob", structured.Uint(uint64(n.NOIOB))).
		Set("nvmcap", n.NVMCapacity.Structured()).
		Set("nguid", structured.Text(hex.EncodeToString(n.NGUID[:]))).
		Set("eui64", structured.Text(hex.EncodeToString(n.EUI64[:]))).
		Set("size_bytes", n.SizeBytes().Structured()).
		Set("lbafs", structured.List(lbafs...)))
}
