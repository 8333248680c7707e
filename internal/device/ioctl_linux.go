//go:build linux

package device

import (
	"context"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

// Ioctl talks to a controller through the kernel's admin passthrough ioctl on
// its character device (/dev/nvmeN) or one of its namespaces.
type Ioctl struct {
	fd   int
	path string
	log  logrus.FieldLogger

	Timeout time.Duration // 0 leaves the kernel default
}

// OpenIoctl opens path read-only.
func OpenIoctl(path string, log logrus.FieldLogger) (*Ioctl, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	log.WithField("device", path).Info("opened nvme device")
	return &Ioctl{fd: fd, path: path, log: log}, nil
}

func (d *Ioctl) Name() string { return d.path }

func (d *Ioctl) Close() error { return unix.Close(d.fd) }

// Admin issues cmd. The ioctl blocks, so ctx is only checked before it starts.
func (d *Ioctl) Admin(ctx context.Context, cmd Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pt := newPassthru(cmd, d.Timeout)
	var data []byte
	if cmd.DataLen > 0 {
		data = make([]byte, cmd.DataLen)
		pt.Addr = uint64(uintptr(unsafe.Pointer(&data[0])))
	}

	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(&pt)))
	runtime.KeepAlive(data)
	if errno != 0 {
		return nil, fmt.Errorf("%s: %w", cmd, errno)
	}

	// A positive return is the completion status with the phase tag already
	// stripped by the kernel.
	status := nvme.DecodeStatus(uint16(r))
	d.log.WithFields(logrus.Fields{
		"device":  d.path,
		"command": cmd.String(),
		"bytes":   cmd.DataLen,
		"status":  status.String(),
	}).Debug("admin command completed")
	if err := status.Err(); err != nil {
		return data, err
	}
	return data, nil
}
