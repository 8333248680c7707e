package nvme

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleIdCtrl builds identify controller data resembling a consumer drive.
func sampleIdCtrl() []byte {
	b := make([]byte, IdCtrlSize)
	le := binary.LittleEndian

	le.PutUint16(b[0:], 0x144d)
	le.PutUint16(b[2:], 0x144d)
	copy(b[4:24], "S4EWNX0R123456      ")
	copy(b[24:64], "Samsung SSD 970 EVO Plus 1TB            ")
	copy(b[64:72], "2B2QEXM7")
	b[72] = 2
	copy(b[73:76], []byte{0x38, 0x25, 0x00})
	b[76] = 0x00
	b[77] = 9
	le.PutUint16(b[78:], 4)
	le.PutUint32(b[80:], 0x00010300)
	le.PutUint32(b[84:], 200000)
	le.PutUint32(b[88:], 2000000)
	b[111] = 1
	le.PutUint16(b[128:], 10)

	le.PutUint16(b[256:], 0x0017)
	b[258] = 7
	b[259] = 3
	b[260] = 0x16
	b[261] = 0x0f
	b[262] = 63
	b[263] = 4
	b[264] = 1
	b[265] = 1
	le.PutUint16(b[266:], 358)
	le.PutUint16(b[268:], 358)
	putUint128(b[280:], Uint128{Lo: 1000204886016})
	le.PutUint16(b[316:], 10)
	b[319] = 0xff

	b[512] = 0x66
	b[513] = 0x44
	le.PutUint32(b[516:], 1)
	le.PutUint16(b[520:], 0x005f)
	b[525] = 1
	le.PutUint16(b[528:], 0xff)
	copy(b[768:], "nqn.2014.08.org.nvmexpress:144d144dS4EWNX0R123456")

	b[1792] = 0x55

	le.PutUint16(b[2048:], 0x09c4)  // 25.00 W
	b[2048+32*4+3] = 0x03           // ps4: non-operational, 0.0001 W units
	le.PutUint16(b[2048+32*4:], 50) // 0.005 W
	le.PutUint32(b[2048+32*4+4:], 5000)
	le.PutUint32(b[2048+32*4+8:], 44000)
	le.PutUint16(b[2048+32*4+16:], 35)
	b[2048+32*4+18] = 0x40 // idle power scale 0.0001 W

	b[3072] = 0xaa
	b[4095] = 0xbb
	return b
}

func TestDecodeIdCtrl(t *testing.T) {
	c, err := DecodeIdCtrl(sampleIdCtrl())
	if err != nil {
		t.Fatalf("DecodeIdCtrl: %v", err)
	}

	if c.VendorID != 0x144d {
		t.Errorf("VendorID = 0x%04x, want 0x144d", c.VendorID)
	}
	if got := c.SerialNumber.String(); got != "S4EWNX0R123456" {
		t.Errorf("SerialNumber = %q", got)
	}
	if got := c.ModelNumber.String(); got != "Samsung SSD 970 EVO Plus 1TB" {
		t.Errorf("ModelNumber = %q", got)
	}
	if got := c.FirmwareRevision.String(); got != "2B2QEXM7" {
		t.Errorf("FirmwareRevision = %q", got)
	}
	if got := c.IEEEOUI(); got != 0x002538 {
		t.Errorf("IEEEOUI() = 0x%06x, want 0x002538", got)
	}
	if c.MDTS != 9 || c.ControllerID != 4 {
		t.Errorf("MDTS = %d, ControllerID = %d", c.MDTS, c.ControllerID)
	}
	if got := c.Version.String(); got != "1.3.0" {
		t.Errorf("Version = %q, want 1.3.0", got)
	}
	if c.ControllerType != ControllerTypeIO {
		t.Errorf("ControllerType = %v, want io", c.ControllerType)
	}
	if c.CRDT[0] != 10 {
		t.Errorf("CRDT[0] = %d, want 10", c.CRDT[0])
	}
	if c.MaxErrorLogEntries() != 64 {
		t.Errorf("MaxErrorLogEntries() = %d, want 64", c.MaxErrorLogEntries())
	}
	if c.WarningTempThreshold != 358 || c.CriticalTempThreshold != 358 {
		t.Errorf("temperature thresholds = %d, %d", c.WarningTempThreshold, c.CriticalTempThreshold)
	}
	if c.TotalNVMCapacity.Lo != 1000204886016 {
		t.Errorf("TotalNVMCapacity = %s", c.TotalNVMCapacity)
	}
	if c.SQES != 0x66 || c.CQES != 0x44 || c.NumNamespaces != 1 {
		t.Errorf("SQES = 0x%02x, CQES = 0x%02x, NN = %d", c.SQES, c.CQES, c.NumNamespaces)
	}
	if got := c.SubsystemNQN.String(); got != "nqn.2014.08.org.nvmexpress:144d144dS4EWNX0R123456" {
		t.Errorf("SubsystemNQN = %q", got)
	}
	if c.Fabrics[0] != 0x55 || c.VendorSpecific[0] != 0xaa || c.VendorSpecific[1023] != 0xbb {
		t.Error("opaque regions not preserved")
	}
}

func TestDecodeIdCtrl_Bitmasks(t *testing.T) {
	c, err := DecodeIdCtrl(sampleIdCtrl())
	require.NoError(t, err)

	// OACS 0x17: security, format, firmware, self-test.
	assert.True(t, c.OACS.SecuritySendReceive())
	assert.True(t, c.OACS.FormatNVM())
	assert.True(t, c.OACS.FirmwareDownload())
	assert.False(t, c.OACS.NamespaceManagement())
	assert.True(t, c.OACS.DeviceSelfTest())
	assert.False(t, c.OACS.Directives())

	// FRMW 0x16: three slots, activation without reset.
	assert.False(t, c.FRMW.Slot1ReadOnly())
	assert.Equal(t, uint8(3), c.FRMW.SlotCount())
	assert.True(t, c.FRMW.ActivateWithoutReset())

	// ONCS 0x5f.
	assert.True(t, c.ONCS.Compare())
	assert.True(t, c.ONCS.WriteZeroes())
	assert.True(t, c.ONCS.SaveSelectFeatures())
	assert.False(t, c.ONCS.Reservations())
	assert.True(t, c.ONCS.Timestamp())
	assert.False(t, c.ONCS.Verify())

	assert.True(t, c.LPA.SmartPerNamespace())
	assert.True(t, c.LPA.Telemetry())
	assert.False(t, c.LPA.PersistentEventLog())

	assert.False(t, c.CMIC.MultiPort())

	raw, _ := c.OACS.Structured().Field("raw").Uint64()
	assert.Equal(t, uint64(0x17), raw)
	ns, _ := c.OACS.Structured().Field("namespace_management").Bool()
	assert.False(t, ns)
}

func TestDecodeIdCtrl_PowerStates(t *testing.T) {
	c, err := DecodeIdCtrl(sampleIdCtrl())
	require.NoError(t, err)

	ps := c.SupportedPowerStates()
	require.Len(t, ps, 5)

	assert.InDelta(t, 25.0, ps[0].MaxPowerWatts(), 1e-9)
	assert.False(t, ps[0].NonOperational)

	p4 := ps[4]
	assert.True(t, p4.NonOperational)
	assert.True(t, p4.MaxPowerScale)
	assert.InDelta(t, 0.005, p4.MaxPowerWatts(), 1e-9)
	assert.Equal(t, uint32(5000), p4.EntryLatency)
	assert.Equal(t, uint32(44000), p4.ExitLatency)
	assert.Equal(t, PowerScale00001W, p4.IdlePowerScale)

	idle, ok := p4.Structured().Field("idle_power_watts").Float64()
	assert.True(t, ok)
	assert.InDelta(t, 0.0035, idle, 1e-9)
	assert.True(t, ps[0].Structured().Field("idle_power_watts").IsNull())
}

func TestDecodeIdCtrl_Size(t *testing.T) {
	_, err := DecodeIdCtrl(make([]byte, IdCtrlSize-1))
	if !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("short buffer: err = %v, want ErrBufferTooShort", err)
	}

	_, err = DecodeIdCtrl(make([]byte, IdCtrlSize+1))
	if !errors.Is(err, ErrBufferWrongSize) {
		t.Errorf("long buffer: err = %v, want ErrBufferWrongSize", err)
	}

	_, err = DecodeIdCtrl(nil)
	if !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("nil buffer: err = %v, want ErrBufferTooShort", err)
	}

	if _, err := DecodeIdCtrl(make([]byte, IdCtrlSize)); err != nil {
		t.Errorf("exact buffer: err = %v", err)
	}
}

func TestIdCtrl_Structured(t *testing.T) {
	c, err := DecodeIdCtrl(sampleIdCtrl())
	require.NoError(t, err)

	v := c.Structured()
	m, ok := v.Map()
	require.True(t, ok)
	assert.Equal(t, []string{"vid", "ssvid", "sn", "mn", "fr"}, m.Keys()[:5])

	ver, _ := v.Field("ver").Text()
	assert.Equal(t, "1.3.0", ver)
	ct, _ := v.Field("cntrltype").Text()
	assert.Equal(t, "io", ct)
	psds, _ := v.Field("psds").List()
	assert.Len(t, psds, 5)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sn":"S4EWNX0R123456"`)
	assert.Contains(t, string(data), `"tnvmcap":1000204886016`)
}

func TestVersion(t *testing.T) {
	v := Version(0x00020001)
	assert.Equal(t, uint16(2), v.Major())
	assert.Equal(t, uint8(0), v.Minor())
	assert.Equal(t, uint8(1), v.Tertiary())
	assert.Equal(t, "2.0.1", v.String())
	assert.True(t, Version(0).Structured().IsNull())
}

func TestControllerType_Other(t *testing.T) {
	v := ControllerType(9).Structured()
	kind, _ := v.Field("kind").Text()
	code, _ := v.Field("code").Uint64()
	assert.Equal(t, "other", kind)
	assert.Equal(t, uint64(9), code)
}

func sampleIdNs() []byte {
	b := make([]byte, IdNsSize)
	le := binary.LittleEndian
	le.PutUint64(b[0:], 1953525168)
	le.PutUint64(b[8:], 1953525168)
	le.PutUint64(b[16:], 190000000)
	b[25] = 1 // two formats
	b[26] = 0
	putUint128(b[48:], Uint128{Lo: 1000204886016})
	copy(b[104:120], []byte{0x00, 0x25, 0x38, 0x5a, 0x91, 0xb0, 0x25, 0x3c, 0, 0, 0, 0, 0, 0, 0, 1})
	copy(b[120:128], []byte{0x00, 0x25, 0x38, 0x5a, 0x91, 0xb0, 0x25, 0x3c})
	b[128+2] = 9
	b[128+3] = 0x02
	b[132+2] = 12
	b[3000] = 0x7e
	return b
}

func TestDecodeIdNs(t *testing.T) {
	n, err := DecodeIdNs(sampleIdNs())
	require.NoError(t, err)

	assert.Equal(t, uint64(1953525168), n.Size)
	assert.Equal(t, uint64(190000000), n.Utilization)
	assert.Equal(t, 0, n.FormatIndex())
	assert.Equal(t, uint64(512), n.CurrentFormat().DataSize())
	assert.Equal(t, uint8(2), n.CurrentFormat().RelativePerformance)
	assert.Equal(t, Uint128{Lo: 1000204886016}, n.SizeBytes())
	require.Len(t, n.Formats(), 2)
	assert.Equal(t, uint64(4096), n.Formats()[1].DataSize())
	assert.Equal(t, uint64(0), n.LBAFormats[2].DataSize())
	assert.Equal(t, byte(0x7e), n.VendorSpecific[3000-384])

	v := n.Structured()
	eui, _ := v.Field("eui64").Text()
	assert.Equal(t, "0025385a91b0253c", eui)
	lbafs, _ := v.Field("lbafs").List()
	assert.Len(t, lbafs, 2)
}

func TestDecodeIdNs_Size(t *testing.T) {
	_, err := DecodeIdNs(make([]byte, 512))
	assert.ErrorIs(t, err, ErrBufferTooShort)
	_, err = DecodeIdNs(make([]byte, 8192))
	assert.ErrorIs(t, err, ErrBufferWrongSize)
}
