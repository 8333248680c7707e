package nvme

import "github.com/binaryphile/nvme-logs/internal/structured"

const (
	// FwSlotLogSize is the length of the Firmware Slot Information log page.
	FwSlotLogSize = 512

	// FwSlotCount is the number of firmware revision slots a controller can have.
	FwSlotCount = 7
)

// ActiveFwInfo is the packed Active Firmware Info byte of the firmware slot log.
type ActiveFwInfo uint8

// ActiveSlot is the slot the running firmware was loaded from (bits 2:0).
func (a ActiveFwInfo) ActiveSlot() uint8 { return uint8(a) & 0x7 }

// NextResetSlot is the slot that will be activated at the next controller
// reset (bits 6:4). Zero means none was set.
func (a ActiveFwInfo) NextResetSlot() uint8 { return uint8(a>>4) & 0x7 }

func (a ActiveFwInfo) Structured() structured.Value {
	next := structured.Null()
	if n := a.NextResetSlot(); n != 0 {
		next = structured.Uint(uint64(n))
	}
	return structured.Object(structured.NewMap().
		Set("raw", structured.Uint(uint64(a))).
		Set("active_slot", structured.Uint(uint64(a.ActiveSlot()))).
		Set("next_reset_slot", next))
}

// FwSlotLog is the Firmware Slot Information log page (log identifier 03h).
type FwSlotLog struct {
	ActiveFwInfo ActiveFwInfo
	Slots        [FwSlotCount]FixedStr8 // Slots[0] is slot 1
}

// DecodeFwSlotLog decodes a firmware slot log page. Bytes past FwSlotLogSize
// are ignored.
func DecodeFwSlotLog(buf []byte) (FwSlotLog, error) {
	if err := checkMin("firmware slot log", buf, FwSlotLogSize); err != nil {
		return FwSlotLog{}, err
	}

	l := FwSlotLog{ActiveFwInfo: ActiveFwInfo(buf[0])}
	for i := range l.Slots {
		off := 8 + 8*i
		copy(l.Slots[i][:], buf[off:off+8])
	}
	return l, nil
}

// Slot returns the firmware revision in 1-based slot n. It reports false for
// slots out of range and empty slots.
func (l FwSlotLog) Slot(n int) (string, bool) {
	if n < 1 || n > FwSlotCount {
		return "", false
	}
	rev := l.Slots[n-1].String()
	return rev, rev != ""
}

// ActiveRevision returns the revision in the active slot, or "" if the active
// slot is empty or invalid.
func (l FwSlotLog) ActiveRevision() string {
	rev, _ := l.Slot(int(l.ActiveFwInfo.ActiveSlot()))
	return rev
}

func (l FwSlotLog) Structured() structured.Value {
	slots := make([]structured.Value, 0, FwSlotCount)
	for i := range l.Slots {
		rev := structured.Null()
		if s, ok := l.Slot(i + 1); ok {
			rev = structured.Text(s)
		}
		slots = append(slots, structured.Object(structured.NewMap().
			Set("slot", structured.Uint(uint64(i+1))).
			Set("revision", rev)))
	}

	active := structured.Null()
	if rev := l.ActiveRevision(); rev != "" {
		active = structured.Text(rev)
	}

	return structured.Object(structured.NewMap().
		Set("active_fw_info", l.ActiveFwInfo.Structured()).
		Set("active_revision", active).
		Set("slots", structured.List(slots...)))
}
