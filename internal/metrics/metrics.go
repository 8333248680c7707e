// Package metrics exports controller health as Prometheus gauges, for a
// node_exporter textfile collector or any other registry.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

const namespace = "nvme"

// Label constants for metrics.
const (
	LabelDevice   = "device"
	LabelSerial   = "serial"
	LabelModel    = "model"
	LabelFirmware = "firmware"
	LabelSensor   = "sensor"
	LabelWarning  = "warning"
)

// Metrics holds one gauge family per exported health field. Every series
// carries the device label so several controllers can share a registry.
type Metrics struct {
	Info *prometheus.GaugeVec

	CriticalWarning *prometheus.GaugeVec
	Temperature     *prometheus.GaugeVec

	AvailableSpare          *prometheus.GaugeVec
	AvailableSpareThreshold *prometheus.GaugeVec
	PercentageUsed          *prometheus.GaugeVec

	DataReadBytes     *prometheus.GaugeVec
	DataWrittenBytes  *prometheus.GaugeVec
	HostReadCommands  *prometheus.GaugeVec
	HostWriteCommands *prometheus.GaugeVec
	BusyTimeSeconds   *prometheus.GaugeVec
	PowerCycles       *prometheus.GaugeVec
	PowerOnHours      *prometheus.GaugeVec
	UnsafeShutdowns   *prometheus.GaugeVec
	MediaErrors       *prometheus.GaugeVec
	ErrorLogEntries   *prometheus.GaugeVec

	WarningTempSeconds  *prometheus.GaugeVec
	CriticalTempSeconds *prometheus.GaugeVec

	FirmwareActiveSlot *prometheus.GaugeVec
	ErrorLogUsed       *prometheus.GaugeVec
}

// NewMetrics creates and registers the gauges.
// If registry is nil, metrics will be created but not registered.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	device := []string{LabelDevice}

	m := &Metrics{
		Info: gauge("info", "Controller identity, always 1",
			LabelDevice, LabelModel, LabelSerial, LabelFirmware),

		CriticalWarning: gauge("critical_warning", "SMART critical warning bits, 1 when set",
			LabelDevice, LabelWarning),
		Temperature: gauge("temperature_celsius", "Composite and per-sensor temperature",
			LabelDevice, LabelSensor),

		AvailableSpare:          gauge("available_spare_ratio", "Remaining spare capacity", device...),
		AvailableSpareThreshold: gauge("available_spare_threshold_ratio", "Spare capacity threshold", device...),
		PercentageUsed:          gauge("percentage_used_ratio", "Vendor estimate of life used, may exceed 1", device...),

		DataReadBytes:     gauge("data_read_bytes", "Bytes read by the host, in data units of 512000 bytes", device...),
		DataWrittenBytes:  gauge("data_written_bytes", "Bytes written by the host, in data units of 512000 bytes", device...),
		HostReadCommands:  gauge("host_read_commands", "Read commands completed", device...),
		HostWriteCommands: gauge("host_write_commands", "Write commands completed", device...),
		BusyTimeSeconds:   gauge("controller_busy_time_seconds", "Time busy with I/O commands", device...),
		PowerCycles:       gauge("power_cycles", "Power cycles", device...),
		PowerOnHours:      gauge("power_on_hours", "Power-on hours", device...),
		UnsafeShutdowns:   gauge("unsafe_shutdowns", "Unsafe shutdowns", device...),
		MediaErrors:       gauge("media_errors", "Unrecovered data integrity errors", device...),
		ErrorLogEntries:   gauge("error_log_entries", "Error information log entries over the controller's life", device...),

		WarningTempSeconds:  gauge("warning_temperature_time_seconds", "Time above the warning threshold", device...),
		CriticalTempSeconds: gauge("critical_temperature_time_seconds", "Time above the critical threshold", device...),

		FirmwareActiveSlot: gauge("firmware_active_slot", "Firmware slot the controller runs from", device...),
		ErrorLogUsed:       gauge("error_log_used_entries", "Non-empty entries in the error information log", device...),
	}

	if registry != nil {
		for _, c := range m.collectors() {
			registry.MustRegister(c)
		}
	}
	return m
}

func gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Info,
		m.CriticalWarning, m.Temperature,
		m.AvailableSpare, m.AvailableSpareThreshold, m.PercentageUsed,
		m.DataReadBytes, m.DataWrittenBytes, m.HostReadCommands, m.HostWriteCommands,
		m.BusyTimeSeconds, m.PowerCycles, m.PowerOnHours, m.UnsafeShutdowns,
		m.MediaErrors, m.ErrorLogEntries,
		m.WarningTempSeconds, m.CriticalTempSeconds,
		m.FirmwareActiveSlot, m.ErrorLogUsed,
	}
}

var warningNames = []struct {
	name string
	bit  nvme.CriticalWarning
}{
	{"available_spare_low", nvme.WarnAvailableSpareLow},
	{"temperature", nvme.WarnTemperature},
	{"reliability_degraded", nvme.WarnReliabilityDegraded},
	{"read_only", nvme.WarnReadOnly},
	{"volatile_backup_failed", nvme.WarnVolatileBackupFailed},
	{"persistent_memory_read_only", nvme.WarnPersistentMemoryRO},
}

// ObserveController records the identity series.
func (m *Metrics) ObserveController(device string, id nvme.IdCtrl) {
	if m == nil {
		return
	}
	m.Info.WithLabelValues(device,
		id.ModelNumber.String(),
		id.SerialNumber.String(),
		id.FirmwareRevision.String(),
	).Set(1)
}

// ObserveSmart records a SMART / health log. Unreported temperature sensors
// are skipped.
func (m *Metrics) ObserveSmart(device string, l nvme.SmartLog) {
	if m == nil {
		return
	}

	for _, w := range warningNames {
		m.CriticalWarning.WithLabelValues(device, w.name).Set(boolFloat(l.CriticalWarning&w.bit != 0))
	}

	if l.CompositeTemperature.Reported() {
		m.Temperature.WithLabelValues(device, "composite").Set(l.CompositeTemperature.Celsius())
	}
	for i, k := range l.TemperatureSensors {
		if k.Reported() {
			m.Temperature.WithLabelValues(device, strconv.Itoa(i+1)).Set(k.Celsius())
		}
	}

	m.AvailableSpare.WithLabelValues(device).Set(percent(l.AvailableSpare))
	m.AvailableSpareThreshold.WithLabelValues(device).Set(percent(l.AvailableSpareThreshold))
	m.PercentageUsed.WithLabelValues(device).Set(percent(l.PercentageUsed))

	m.DataReadBytes.WithLabelValues(device).Set(l.DataUnitsRead.Float64() * nvme.DataUnitBytes)
	m.DataWrittenBytes.WithLabelValues(device).Set(l.DataUnitsWritten.Float64() * nvme.DataUnitBytes)
	m.HostReadCommands.WithLabelValues(device).Set(l.HostReadCommands.Float64())
	m.HostWriteCommands.WithLabelValues(device).Set(l.HostWriteCommands.Float64())
	m.BusyTimeSeconds.WithLabelValues(device).Set(l.ControllerBusyTime.Float64() * 60)
	m.PowerCycles.WithLabelValues(device).Set(l.PowerCycles.Float64())
	m.PowerOnHours.WithLabelValues(device).Set(l.PowerOnHours.Float64())
	m.UnsafeShutdowns.WithLabelValues(device).Set(l.UnsafeShutdowns.Float64())
	m.MediaErrors.WithLabelValues(device).Set(l.MediaErrors.Float64())
	m.ErrorLogEntries.WithLabelValues(device).Set(l.ErrorLogEntries.Float64())

	m.WarningTempSeconds.WithLabelValues(device).Set(float64(l.WarningTempTime) * 60)
	m.CriticalTempSeconds.WithLabelValues(device).Set(float64(l.CriticalTempTime) * 60)
}

// ObserveFwSlot records the active firmware slot.
func (m *Metrics) ObserveFwSlot(device string, l nvme.FwSlotLog) {
	if m == nil {
		return
	}
	m.FirmwareActiveSlot.WithLabelValues(device).Set(float64(l.ActiveFwInfo.ActiveSlot()))
}

// ObserveErrLog records how many error log entries are in use.
func (m *Metrics) ObserveErrLog(device string, l nvme.ErrLog) {
	if m == nil {
		return
	}
	m.ErrorLogUsed.WithLabelValues(device).Set(float64(len(l.Used())))
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, replacing the file atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

func percent(v uint8) float64 { return float64(v) / 100 }

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
