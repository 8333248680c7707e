package metrics

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

func sampleSmart(t *testing.T) nvme.SmartLog {
	t.Helper()
	buf := make([]byte, nvme.SmartLogSize)
	buf[0] = byte(nvme.WarnTemperature | nvme.WarnReadOnly)
	binary.LittleEndian.PutUint16(buf[1:3], 310) // 36.85 C
	buf[3] = 90
	buf[4] = 10
	buf[5] = 3
	binary.LittleEndian.PutUint64(buf[32:], 2)   // data units read
	binary.LittleEndian.PutUint64(buf[96:], 5)   // busy minutes
	binary.LittleEndian.PutUint64(buf[112:], 42) // power cycles
	binary.LittleEndian.PutUint64(buf[160:], 1)  // media errors
	binary.LittleEndian.PutUint32(buf[192:], 2)  // warning temp minutes
	binary.LittleEndian.PutUint16(buf[200:], 300)

	l, err := nvme.DecodeSmartLog(buf)
	require.NoError(t, err)
	return l
}

func TestObserveSmart(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveSmart("nvme0", sampleSmart(t))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CriticalWarning.WithLabelValues("nvme0", "temperature")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CriticalWarning.WithLabelValues("nvme0", "read_only")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CriticalWarning.WithLabelValues("nvme0", "available_spare_low")))

	assert.InDelta(t, 36.85, testutil.ToFloat64(m.Temperature.WithLabelValues("nvme0", "composite")), 1e-9)
	assert.InDelta(t, 26.85, testutil.ToFloat64(m.Temperature.WithLabelValues("nvme0", "1")), 1e-9)
	// Sensors 2-8 report 0 and are not exported
	assert.Equal(t, 2, testutil.CollectAndCount(m.Temperature))

	assert.InDelta(t, 0.9, testutil.ToFloat64(m.AvailableSpare.WithLabelValues("nvme0")), 1e-9)
	assert.InDelta(t, 0.03, testutil.ToFloat64(m.PercentageUsed.WithLabelValues("nvme0")), 1e-9)
	assert.Equal(t, 1024000.0, testutil.ToFloat64(m.DataReadBytes.WithLabelValues("nvme0")))
	assert.Equal(t, 300.0, testutil.ToFloat64(m.BusyTimeSeconds.WithLabelValues("nvme0")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.PowerCycles.WithLabelValues("nvme0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaErrors.WithLabelValues("nvme0")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.WarningTempSeconds.WithLabelValues("nvme0")))
}

func TestObserveController(t *testing.T) {
	m := NewMetrics(nil)

	var id nvme.IdCtrl
	copy(id.ModelNumber[:], "Test NVMe                               ")
	copy(id.SerialNumber[:], "S123                ")
	copy(id.FirmwareRevision[:], "1.0     ")
	m.ObserveController("nvme0", id)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Info.WithLabelValues("nvme0", "Test NVMe", "S123", "1.0")))
}

func TestObserveFwSlotAndErrLog(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveFwSlot("nvme0", nvme.FwSlotLog{ActiveFwInfo: 0x12})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FirmwareActiveSlot.WithLabelValues("nvme0")))

	buf := make([]byte, 3*nvme.ErrLogEntrySize)
	binary.LittleEndian.PutUint64(buf[0:], 7)
	l, err := nvme.DecodeErrLog(buf)
	require.NoError(t, err)
	m.ObserveErrLog("nvme0", l)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorLogUsed.WithLabelValues("nvme0")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveSmart("nvme0", nvme.SmartLog{})
	m.ObserveController("nvme0", nvme.IdCtrl{})
	m.ObserveFwSlot("nvme0", nvme.FwSlotLog{})
	m.ObserveErrLog("nvme0", nil)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveSmart("nvme0", sampleSmart(t))

	path := filepath.Join(t.TempDir(), "nvme.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE nvme_power_cycles gauge")
	assert.Contains(t, text, `nvme_power_cycles{device="nvme0"} 42`)
	assert.True(t, strings.Contains(text, `nvme_critical_warning{device="nvme0",warning="read_only"} 1`))
}
