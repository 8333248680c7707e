//go:build !linux

package device

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Ioctl struct {
	Timeout time.Duration
}

func OpenIoctl(path string, log logrus.FieldLogger) (*Ioctl, error) {
	return nil, ErrUnsupported
}

func (d *Ioctl) Name() string { return "" }

func (d *Ioctl) Close() error { return ErrUnsupported }

func (d *Ioctl) Admin(ctx context.Context, cmd Command) ([]byte, error) {
	return nil, ErrUnsupported
}
