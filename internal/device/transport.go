package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// ErrUnsupported is returned by transports that do not exist on this platform.
var ErrUnsupported = errors.New("transport not supported on this platform")

// Transport runs admin commands against one controller. A completion with a
// non-success status comes back as a *nvme.StatusError; the data read so far
// is still returned alongside it.
type Transport interface {
	Admin(ctx context.Context, cmd Command) ([]byte, error)
	Name() string
	Close() error
}

// Options configures Open.
type Options struct {
	Timeout   time.Duration
	VendorID  gousb.ID // USB bridge, 0 to auto-detect
	ProductID gousb.ID
}

// Open selects a transport from target: "usb" opens a USB bridge, anything
// else is taken as a character device path such as /dev/nvme0.
func Open(target string, opts Options, log logrus.FieldLogger) (Transport, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch {
	case target == "":
		return nil, errors.New("no device given")
	case strings.EqualFold(target, "usb"):
		t, err := OpenUSB(opts.VendorID, opts.ProductID, log)
		if err != nil {
			return nil, err
		}
		t.SetTimeout(opts.Timeout)
		return t, nil
	default:
		t, err := OpenIoctl(target, log)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", target, err)
		}
		t.Timeout = opts.Timeout
		return t, nil
	}
}
