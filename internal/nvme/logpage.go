package nvme

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/binaryphile/nvme-logs/internal/structured"
)

// ErrUnknownLogPage is returned for log page identifiers without a decoder.
var ErrUnknownLogPage = errors.New("unknown log page")

// LogPageID is the Get Log Page log identifier (LID).
type LogPageID uint8

const (
	LogPageError  LogPageID = 0x01
	LogPageSmart  LogPageID = 0x02
	LogPageFwSlot LogPageID = 0x03
)

// LogPages lists the log pages this package decodes.
var LogPages = []LogPageID{LogPageError, LogPageSmart, LogPageFwSlot}

func (id LogPageID) String() string {
	switch id {
	case LogPageError:
		return "error"
	case LogPageSmart:
		return "smart"
	case LogPageFwSlot:
		return "fw_slot"
	default:
		return fmt.Sprintf("log_page(0x%02x)", uint8(id))
	}
}

func (id LogPageID) Structured() structured.Value {
	switch id {
	case LogPageError, LogPageSmart, LogPageFwSlot:
		return structured.Text(id.String())
	default:
		return structured.Tagged("other", uint64(id))
	}
}

// MinSize is the smallest buffer the page's decoder accepts.
func (id LogPageID) MinSize() int {
	switch id {
	case LogPageError:
		return ErrLogEntrySize
	case LogPageSmart:
		return SmartLogSize
	case LogPageFwSlot:
		return FwSlotLogSize
	default:
		return 0
	}
}

// ParseLogPageID accepts a page name ("smart", "error", "fw_slot") or a
// numeric identifier such as "0x02".
func ParseLogPageID(s string) (LogPageID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, id := range LogPages {
		if s == id.String() {
			return id, nil
		}
	}
	switch s {
	case "fw", "firmware", "fw-slot":
		return LogPageFwSlot, nil
	case "health", "smart-log":
		return LogPageSmart, nil
	case "error-log", "errors":
		return LogPageError, nil
	}

	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLogPage, s)
	}
	return LogPageID(n), nil
}

// DecodeLogPage decodes buf as the log page id. The result is a SmartLog,
// FwSlotLog or ErrLog.
func DecodeLogPage(id LogPageID, buf []byte) (structured.Marshaler, error) {
	var (
		page structured.Marshaler
		err  error
	)
	switch id {
	case LogPageError:
		page, err = DecodeErrLog(buf)
	case LogPageSmart:
		page, err = DecodeSmartLog(buf)
	case LogPageFwSlot:
		page, err = DecodeFwSlotLog(buf)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLogPage, id)
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}
