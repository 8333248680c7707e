package nvme

import (
	"encoding/binary"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// ErrLogEntrySize is the length of one Error Information log entry.
const ErrLogEntrySize = 64

// ParamErrLoc locates the command parameter that caused an error: byte
// offset in bits 7:0, bit within that byte in bits 10:8. All ones means the
// error is not specific to a parameter.
type ParamErrLoc uint16

const paramErrLocNone ParamErrLoc = 0xffff

func (p ParamErrLoc) Byte() uint8 { return uint8(p) }
func (p ParamErrLoc) Bit() uint8  { return uint8(p>>8) & 0x7 }

// Applicable is false when the controller did not point at a parameter.
func (p ParamErrLoc) Applicable() bool { return p != paramErrLocNone }

func (p ParamErrLoc) Structured() structured.Value {
	if !p.Applicable() {
		return structured.Null()
	}
	return structured.Object(structured.NewMap().
		Set("byte", structured.Uint(uint64(p.Byte()))).
		Set("bit", structured.Uint(uint64(p.Bit()))))
}

// ErrLogEntry is one entry of the Error Information log page (log identifier 01h).
type ErrLogEntry struct {
	ErrorCount        uint64
	SubmissionQueueID uint16
	CommandID         uint16
	Status            StatusField
	PhaseTag          bool
	ParamErrLoc       ParamErrLoc
	LBA               uint64
	NamespaceID       uint32
	VendorLogPage     uint8 // 0 when no vendor specific information is available
	TransportType     uint8
	CommandSpecific   uint64
	TransportSpecific uint16
}

// DecodeErrLogEntry decodes a single error log entry. Bytes past
// ErrLogEntrySize are ignored.
func DecodeErrLogEntry(buf []byte) (ErrLogEntry, error) {
	if err := checkMin("error log entry", buf, ErrLogEntrySize); err != nil {
		return ErrLogEntry{}, err
	}
	le := binary.LittleEndian

	status, phase := DecodeStatusWithPhase(le.Uint16(buf[12:14]))
	return ErrLogEntry{
		ErrorCount:        le.Uint64(buf[0:8]),
		SubmissionQueueID: le.Uint16(buf[8:10]),
		CommandID:         le.Uint16(buf[10:12]),
		Status:            status,
		PhaseTag:          phase,
		ParamErrLoc:       ParamErrLoc(le.Uint16(buf[14:16])),
		LBA:               le.Uint64(buf[16:24]),
		NamespaceID:       le.Uint32(buf[24:28]),
		VendorLogPage:     buf[28],
		TransportType:     buf[29],
		CommandSpecific:   le.Uint64(buf[32:40]),
		TransportSpecific: le.Uint16(buf[40:42]),
	}, nil
}

// IsEmpty reports an unused entry. Error counts start at 1.
func (e ErrLogEntry) IsEmpty() bool { return e.ErrorCount == 0 }

func (e ErrLogEntry) Structured() structured.Value {
	return structured.Object(structured.NewMap().
		Set("error_count", structured.Uint(e.ErrorCount)).
		Set("submission_queue_id", structured.Uint(uint64(e.SubmissionQueueID))).
		Set("command_id", structured.Uint(uint64(e.CommandID))).
		Set("status", e.Status.Structured()).
		Set("phase_tag", structured.Bool(e.PhaseTag)).
		Set("param_error_location", e.ParamErrLoc.Structured()).
		Set("lba", structured.Uint(e.LBA)).
		Set("namespace_id", structured.Uint(uint64(e.NamespaceID))).
		Set("vendor_log_page", structured.Uint(uint64(e.VendorLogPage))).
		Set("transport_type", structured.Uint(uint64(e.TransportType))).
		Set("command_specific", structured.Uint(e.CommandSpecific)).
		Set("transport_specific", structured.Uint(uint64(e.TransportSpecific))))
}

// ErrLog is a sequence of error log entries, newest first as the controller
// returns them.
type ErrLog []ErrLogEntry

// DecodeErrLog decodes as many whole entries as buf holds. A trailing partial
// entry is ignored; a buffer without a single whole entry is too short.
func DecodeErrLog(buf []byte) (ErrLog, error) {
	if err := checkMin("error log", buf, ErrLogEntrySize); err != nil {
		return nil, err
	}

	n := len(buf) / ErrLogEntrySize
	log := make(ErrLog, 0, n)
	for i := 0; i < n; i++ {
		e, err := DecodeErrLogEntry(buf[i*ErrLogEntrySize : (i+1)*ErrLogEntrySize])
		if err != nil {
			return nil, err
		}
		log = append(log, e)
	}
	return log, nil
}

// Used returns the entries that record an error.
func (l ErrLog) Used() ErrLog {
	var out ErrLog
	for _, e := range l {
		if !e.IsEmpty() {
			out = append(out, e)
		}
	}
	return out
}

func (l ErrLog) Structured() structured.Value {
	items := make([]structured.Value, len(l))
	for i, e := range l {
		items[i] = e.Structured()
	}
	return structured.List(items...)
}
