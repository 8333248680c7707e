package nvme

import "github.com/binaryphile/nvme-logs/internal/structured"

const (
	// PowerStateSize is the length of one power state descriptor.
	PowerStateSize = 32

	// PowerStateCount is the number of descriptors in identify controller data.
	PowerStateCount = 32
)

// PowerScale qualifies the idle and active power fields of a descriptor.
type PowerScale uint8

const (
	PowerScaleNotReported PowerScale = 0
	PowerScale00001W      PowerScale = 1 // 0.0001 W
	PowerScale001W        PowerScale = 2 // 0.01 W
)

// watts converts v in scale s. ok is false when the scale is not reported or reserved.
func (s PowerScale) watts(v uint16) (w float64, ok bool) {
	switch s {
	case PowerScale00001W:
		return float64(v) * 0.0001, true
	case PowerScale001W:
		return float64(v) * 0.01, true
	default:
		return 0, false
	}
}

// PowerState is a power state descriptor.
type PowerState struct {
	MaxPower       uint16 // MP
	MaxPowerScale  bool   // MXPS: MP is in 0.0001 W units instead of 0.01 W
	NonOperational bool   // NOPS

	EntryLatency uint32 // ENLAT, microseconds
	ExitLatency  uint32 // EXLAT, microseconds

	RelativeReadThroughput  uint8 // RRT
	RelativeReadLatency     uint8 // RRL
	RelativeWriteThroughput uint8 // RWT
	RelativeWriteLatency    uint8 // RWL

	IdlePower      uint16 // IDLP
	IdlePowerScale PowerScale

	ActivePower         uint16 // ACTP
	ActivePowerWorkload uint8  // APW
	ActivePowerScale    PowerScale
}

func decodePowerState(b []byte) PowerState {
	return PowerState{
		MaxPower:       u16(b, 0),
		MaxPowerScale:  b[3]&0x1 != 0,
		NonOperational: b[3]&0x2 != 0,

		EntryLatency: u32(b, 4),
		ExitLatency:  u32(b, 8),

		RelativeReadThroughput:  b[12] & 0x1f,
		RelativeReadLatency:     b[13] & 0x1f,
		RelativeWriteThroughput: b[14] & 0x1f,
		RelativeWriteLatency:    b[15] & 0x1f,

		IdlePower:      u16(b, 16),
		IdlePowerScale: PowerScale(b[18] >> 6),

		ActivePower:         u16(b, 20),
		ActivePowerWorkload: b[22] & 0x7,
		ActivePowerScale:    PowerScale(b[22] >> 6),
	}
}

// MaxPowerWatts is the maximum power drawn in this state.
func (p PowerState) MaxPowerWatts() float64 {
	if p.MaxPowerScale {
		return float64(p.MaxPower) * 0.0001
	}
	return float64(p.MaxPower) * 0.01
}

func (p PowerState) Structured() structured.Value {
	return structured.Object(structured.NewMap().
		Set("max_power_watts", structured.Float(p.MaxPowerWatts())).
		Set("non_operational", structured.Bool(p.NonOperational)).
		Set("entry_latency_us", structured.Uint(uint64(p.EntryLatency))).
		Set("exit_latency_us", structured.Uint(uint64(p.ExitLatency))).
		Set("relative_read_throughput", structured.Uint(uint64(p.RelativeReadThroughput))).
		Set("relative_read_latency", structured.Uint(uint64(p.RelativeReadLatency))).
		Set("relative_write_throughput", structured.Uint(uint64(p.RelativeWriteThroughput))).
		Set("relative_write_latency", structured.Uint(uint64(p.RelativeWriteLatency))).
		Set("idle_power_watts", optionalWatts(p.IdlePowerScale, p.IdlePower)).
		Set("active_power_watts", optionalWatts(p.ActivePowerScale, p.ActivePower)).
		Set("active_power_workload", structured.Uint(uint64(p.ActivePowerWorkload))))
}

func optionalWatts(s PowerScale, v uint16) structured.Value {
	w, ok := s.watts(v)
	if !ok {
		return structured.Null()
	}
	return structured.Float(w)
}
