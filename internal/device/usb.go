package device

import (
	"context"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/binaryphile/nvme-logs/internal/scsi"
)

// bridge is the part of *scsi.Device the USB transport needs.
type bridge interface {
	NVMeAdmin(ctx context.Context, cmd scsi.AdminCommand) ([]byte, scsi.Completion, error)
	Name() string
	Close() error
}

// prober is the readiness half of *scsi.Device.
type prober interface {
	Inquiry(ctx context.Context) (*scsi.InquiryData, error)
	TestUnitReady(ctx context.Context) bool
}

// USB runs admin commands through a USB-to-NVMe bridge.
type USB struct {
	dev bridge
	log logrus.FieldLogger
}

// OpenUSB opens a bridge. If vendorID and productID are 0, it will auto-detect.
func OpenUSB(vendorID, productID gousb.ID, log logrus.FieldLogger) (*USB, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	dev, err := scsi.OpenDevice(vendorID, productID, log)
	if err != nil {
		return nil, err
	}
	probe(context.Background(), dev, log)
	return &USB{dev: dev, log: log}, nil
}

// probe logs what the bridge reports about the drive behind it. Bridges that
// reject INQUIRY still pass NVMe commands through, so failures only warn.
func probe(ctx context.Context, p prober, log logrus.FieldLogger) {
	if !p.TestUnitReady(ctx) {
		log.Warn("bridge reports drive not ready")
	}
	info, err := p.Inquiry(ctx)
	if err != nil {
		log.WithError(err).Warn("INQUIRY failed")
		return
	}
	log.WithFields(logrus.Fields{
		"vendor":   info.Vendor,
		"product":  info.Product,
		"revision": info.Revision,
	}).Debug("bridge inquiry")
}

// SetTimeout bounds each bulk transfer. Zero keeps scsi.DefaultTimeout.
func (u *USB) SetTimeout(d time.Duration) {
	if dev, ok := u.dev.(*scsi.Device); ok && d > 0 {
		dev.Timeout = d
	}
}

func (u *USB) Name() string { return u.dev.Name() }

func (u *USB) Close() error { return u.dev.Close() }

func (u *USB) Admin(ctx context.Context, cmd Command) ([]byte, error) {
	data, comp, err := u.dev.NVMeAdmin(ctx, scsi.AdminCommand{
		Opcode:  cmd.Opcode,
		NSID:    cmd.NSID,
		CDW10:   cmd.CDW10,
		CDW11:   cmd.CDW11,
		CDW12:   cmd.CDW12,
		CDW13:   cmd.CDW13,
		CDW14:   cmd.CDW14,
		CDW15:   cmd.CDW15,
		DataLen: cmd.DataLen,
	})
	if err != nil {
		return nil, err
	}
	if err := comp.Status.Err(); err != nil {
		return data, err
	}
	return data, nil
}
