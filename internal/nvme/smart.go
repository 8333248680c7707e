package nvme

import (
	"encoding/binary"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// SmartLogSize is the length of the SMART / Health Information log page.
const SmartLogSize = 512

// DataUnitBytes is the size of one "data unit" in the SMART read/write
// counters: one thousand 512-byte blocks.
const DataUnitBytes = 512 * 1000

// CriticalWarning is byte 0 of the SMART log. Bits are independent.
type CriticalWarning uint8

const (
	WarnAvailableSpareLow    CriticalWarning = 1 << 0
	WarnTemperature          CriticalWarning = 1 << 1
	WarnReliabilityDegraded  CriticalWarning = 1 << 2
	WarnReadOnly             CriticalWarning = 1 << 3
	WarnVolatileBackupFailed CriticalWarning = 1 << 4
	WarnPersistentMemoryRO   CriticalWarning = 1 << 5
	warnReserved6            CriticalWarning = 1 << 6
	warnReserved7            CriticalWarning = 1 << 7
)

func (w CriticalWarning) AvailableSpareLow() bool    { return w&WarnAvailableSpareLow != 0 }
func (w CriticalWarning) Temperature() bool          { return w&WarnTemperature != 0 }
func (w CriticalWarning) ReliabilityDegraded() bool  { return w&WarnReliabilityDegraded != 0 }
func (w CriticalWarning) ReadOnly() bool             { return w&WarnReadOnly != 0 }
func (w CriticalWarning) VolatileBackupFailed() bool { return w&WarnVolatileBackupFailed != 0 }
func (w CriticalWarning) PersistentMemoryRO() bool   { return w&WarnPersistentMemoryRO != 0 }

// Reserved6 and Reserved7 expose the two bits the protocol leaves undefined.
func (w CriticalWarning) Reserved6() bool { return w&warnReserved6 != 0 }
func (w CriticalWarning) Reserved7() bool { return w&warnReserved7 != 0 }

// Any reports whether any bit is set.
func (w CriticalWarning) Any() bool { return w != 0 }

var criticalWarningBits = []structured.Bit{
	{Pos: 0, Name: "available_spare_low"},
	{Pos: 1, Name: "temperature"},
	{Pos: 2, Name: "reliability_degraded"},
	{Pos: 3, Name: "read_only"},
	{Pos: 4, Name: "volatile_backup_failed"},
	{Pos: 5, Name: "persistent_memory_read_only"},
	{Pos: 6, Name: "reserved_6"},
	{Pos: 7, Name: "reserved_7"},
}

func (w CriticalWarning) Structured() structured.Value {
	return structured.BitSet(uint64(w), criticalWarningBits)
}

// EnduranceGroupCriticalWarning is byte 6 of the SMART log.
type EnduranceGroupCriticalWarning uint8

const (
	EGWarnSpareLow            EnduranceGroupCriticalWarning = 1 << 0
	EGWarnReliabilityDegraded EnduranceGroupCriticalWarning = 1 << 2
	EGWarnReadOnly            EnduranceGroupCriticalWarning = 1 << 3
)

func (w EnduranceGroupCriticalWarning) SpareLow() bool            { return w&EGWarnSpareLow != 0 }
func (w EnduranceGroupCriticalWarning) ReliabilityDegraded() bool { return w&EGWarnReliabilityDegraded != 0 }
func (w EnduranceGroupCriticalWarning) ReadOnly() bool            { return w&EGWarnReadOnly != 0 }
func (w EnduranceGroupCriticalWarning) Any() bool                 { return w != 0 }

var enduranceWarningBits = []structured.Bit{
	{Pos: 0, Name: "spare_low"},
	{Pos: 2, Name: "reliability_degraded"},
	{Pos: 3, Name: "read_only"},
}

func (w EnduranceGroupCriticalWarning) Structured() structured.Value {
	return structured.BitSet(uint64(w), enduranceWarningBits)
}

// Kelvin is a temperature as reported by the controller. Zero means the
// sensor is not implemented.
type Kelvin uint16

// Celsius converts to degrees Celsius.
func (k Kelvin) Celsius() float64 { return float64(k) - 273.15 }

// Reported is false for an unimplemented sensor.
func (k Kelvin) Reported() bool { return k != 0 }

func (k Kelvin) Structured() structured.Value {
	if !k.Reported() {
		return structured.Null()
	}
	return structured.Object(structured.NewMap().
		Set("kelvin", structured.Uint(uint64(k))).
		Set("celsius", structured.Float(k.Celsius())))
}

// SmartLog is the SMART / Health Information log page (log identifier 02h).
type SmartLog struct {
	CriticalWarning               CriticalWarning
	CompositeTemperature          Kelvin
	AvailableSpare                uint8 // percent
	AvailableSpareThreshold       uint8 // percent
	PercentageUsed                uint8 // may exceed 100
	EnduranceGroupCriticalWarning EnduranceGroupCriticalWarning

	DataUnitsRead      Uint128
	DataUnitsWritten   Uint128
	HostReadCommands   Uint128
	HostWriteCommands  Uint128
	ControllerBusyTime Uint128 // minutes
	PowerCycles        Uint128
	PowerOnHours       Uint128
	UnsafeShutdowns    Uint128
	MediaErrors        Uint128
	ErrorLogEntries    Uint128

	WarningTempTime  uint32 // minutes
	CriticalTempTime uint32 // minutes

	TemperatureSensors [8]Kelvin

	ThermalMgmtTemp1Transitions uint32
	ThermalMgmtTemp2Transitions uint32
	ThermalMgmtTemp1Time        uint32 // seconds
	ThermalMgmtTemp2Time        uint32 // seconds
}

// DecodeSmartLog decodes a SMART log page. Bytes past SmartLogSize are ignored.
func DecodeSmartLog(buf []byte) (SmartLog, error) {
	if err := checkMin("smart log", buf, SmartLogSize); err != nil {
		return SmartLog{}, err
	}
	le := binary.LittleEndian

	l := SmartLog{
		CriticalWarning:               CriticalWarning(buf[0]),
		CompositeTemperature:          Kelvin(le.Uint16(buf[1:3])),
		AvailableSpare:                buf[3],
		AvailableSpareThreshold:       buf[4],
		PercentageUsed:                buf[5],
		EnduranceGroupCriticalWarning: EnduranceGroupCriticalWarning(buf[6]),

		DataUnitsRead:      getUint128(buf[32:]),
		DataUnitsWritten:   getUint128(buf[48:]),
		HostReadCommands:   getUint128(buf[64:]),
		HostWriteCommands:  getUint128(buf[80:]),
		ControllerBusyTime: getUint128(buf[96:]),
		PowerCycles:        getUint128(buf[112:]),
		PowerOnHours:       getUint128(buf[128:]),
		UnsafeShutdowns:    getUint128(buf[144:]),
		MediaErrors:        getUint128(buf[160:]),
		ErrorLogEntries:    getUint128(buf[176:]),

		WarningTempTime:  le.Uint32(buf[192:196]),
		CriticalTempTime: le.Uint32(buf[196:200]),

		ThermalMgmtTemp1Transitions: le.Uint32(buf[216:220]),
		ThermalMgmtTemp2Transitions: le.Uint32(buf[220:224]),
		ThermalMgmtTemp1Time:        le.Uint32(buf[224:228]),
		ThermalMgmtTemp2Time:        le.Uint32(buf[228:232]),
	}
	for i := range l.TemperatureSensors {
		off := 200 + 2*i
		l.TemperatureSensors[i] = Kelvin(le.Uint16(buf[off : off+2]))
	}
	return l, nil
}

// SpareBelowThreshold reports whether available spare has dropped under the
// controller's threshold.
func (l SmartLog) SpareBelowThreshold() bool {
	return l.AvailableSpare < l.AvailableSpareThreshold
}

func (l SmartLog) Structured() structured.Value {
	sensors := make([]structured.Value, len(l.TemperatureSensors))
	for i, k := range l.TemperatureSensors {
		sensors[i] = k.Structured()
	}

	return structured.Object(structured.NewMap().
		Set("critical_warning", l.CriticalWarning.Structured()).
		Set("composite_temperature", l.CompositeTemperature.Structured()).
		Set("available_spare", structured.Uint(uint64(l.AvailableSpare))).
		Set("available_spare_threshold", structured.Uint(uint64(l.AvailableSpareThreshold))).
		Set("percentage_used", structured.Uint(uint64(l.PercentageUsed))).
		Set("endurance_group_critical_warning", l.EnduranceGroupCriticalWarning.Structured()).
		Set("data_units_read", l.DataUnitsRead.Structured()).
		Set("data_units_written", l.DataUnitsWritten.Structured()).
		Set("host_read_commands", l.HostReadCommands.Structured()).
		Set("host_write_commands", l.HostWriteCommands.Structured()).
		Set("controller_busy_time", l.ControllerBusyTime.Structured()).
		Set("power_cycles", l.PowerCycles.Structured()).
		Set("power_on_hours", l.PowerOnHours.Structured()).
		Set("unsafe_shutdowns", l.UnsafeShutdowns.Structured()).
		Set("media_errors", l.MediaErrors.Structured()).
		Set("error_log_entries", l.ErrorLogEntries.Structured()).
		Set("warning_temp_time", structured.Uint(uint64(l.WarningTempTime))).
		Set("critical_temp_time", structured.Uint(uint64(l.CriticalTempTime))).
		Set("temperature_sensors", structured.List(sensors...)).
		Set("thermal_mgmt_temp1_transitions", structured.Uint(uint64(l.ThermalMgmtTemp1Transitions))).
		Set("thermal_mgmt_temp2_transitions", structured.Uint(uint64(l.ThermalMgmtTemp2Transitions))).
		Set("thermal_mgmt_temp1_time", structured.Uint(uint64(l.ThermalMgmtTemp1Time))).
		Set("thermal_mgmt_temp2_time", structured.Uint(uint64(l.ThermalMgmtTemp2Time))))
}
