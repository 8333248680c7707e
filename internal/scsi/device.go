package scsi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each bulk transfer when the caller's context has no
// earlier deadline.
const DefaultTimeout = 10 * time.Second

// Known USB-to-NVMe bridges that speak the JMicron pass-through protocol
var KnownDevices = []struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Name      string
}{
	{0x152d, 0x0583, "JMicron JMS583 USB 3.1 Gen 2 to PCIe NVMe"},
	{0x152d, 0x0586, "JMicron JMS586 USB to PCIe NVMe"},
	{0x152d, 0x0581, "JMicron JMS581 USB to PCIe NVMe"},
}

// ErrNoDevice is returned when no bridge could be opened.
var ErrNoDevice = errors.New("no USB NVMe bridge found")

// Device represents a USB mass storage bridge with an NVMe drive behind it
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epIn   *gousb.InEndpoint
	epOut  *gousb.OutEndpoint
	tag    uint32
	name   string
	log    logrus.FieldLogger

	Timeout time.Duration
}

// OpenDevice opens a USB bridge.
// If vendorID and productID are 0, it will auto-detect.
func OpenDevice(vendorID, productID gousb.ID, log logrus.FieldLogger) (*Device, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx := gousb.NewContext()

	var dev *gousb.Device
	var err error
	var deviceName string

	if vendorID != 0 && productID != 0 {
		// Open specific device
		dev, err = ctx.OpenDeviceWithVIDPID(vendorID, productID)
		if err != nil {
			ctx.Close()
			return nil, fmt.Errorf("open device: %w", err)
		}
		if dev == nil {
			ctx.Close()
			return nil, fmt.Errorf("%w: %s:%s", ErrNoDevice, vendorID, productID)
		}
		deviceName = fmt.Sprintf("%s:%s", vendorID, productID)
	} else {
		// Try known devices
		for _, known := range KnownDevices {
			dev, err = ctx.OpenDeviceWithVIDPID(known.VendorID, known.ProductID)
			if err == nil && dev != nil {
				deviceName = known.Name
				break
			}
		}
		if dev == nil {
			ctx.Close()
			return nil, ErrNoDevice
		}
	}

	// Not fatal, auto-detach is unsupported on some platforms
	if err := dev.SetAutoDetach(true); err != nil {
		log.WithError(err).Debug("kernel driver auto-detach unavailable")
	}

	config, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("get config: %w", err)
	}

	// Find Mass Storage interface (class 8) or fallback to first interface with bulk endpoints
	var intf *gousb.Interface
	for _, iface := range config.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == gousb.ClassMassStorage {
				intf, err = config.Interface(iface.Number, alt.Alternate)
				if err != nil {
					continue
				}
				break
			}
		}
		if intf != nil {
			break
		}
	}

	if intf == nil {
		for _, iface := range config.Desc.Interfaces {
			intf, err = config.Interface(iface.Number, 0)
			if err == nil {
				break
			}
		}
	}

	if intf == nil {
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, errors.New("no suitable interface found")
	}

	var epIn *gousb.InEndpoint
	var epOut *gousb.OutEndpoint

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			epIn, err = intf.InEndpoint(ep.Number)
			if err != nil {
				continue
			}
		} else {
			epOut, err = intf.OutEndpoint(ep.Number)
			if err != nil {
				continue
			}
		}
	}

	if epIn == nil || epOut == nil {
		intf.Close()
		config.Close()
		dev.Close()
		ctx.Close()
		return nil, errors.New("could not find USB bulk endpoints")
	}

	log.WithFields(logrus.Fields{
		"device":   deviceName,
		"ep_out":   fmt.Sprintf("0x%02x", uint8(epOut.Desc.Address)),
		"ep_in":    fmt.Sprintf("0x%02x", uint8(epIn.Desc.Address)),
		"protocol": "bulk-only",
	}).Info("opened USB bridge")

	return &Device{
		ctx:     ctx,
		dev:     dev,
		config:  config,
		intf:    intf,
		epIn:    epIn,
		epOut:   epOut,
		tag:     1,
		name:    deviceName,
		log:     log,
		Timeout: DefaultTimeout,
	}, nil
}

// Name describes the bridge that was opened.
func (d *Device) Name() string { return d.name }

// Close releases all USB resources
func (d *Device) Close() error {
	if d.intf != nil {
		d.intf.Close()
	}
	if d.config != nil {
		d.config.Close()
	}
	var err error
	if d.dev != nil {
		err = d.dev.Close()
	}
	if d.ctx != nil {
		if cerr := d.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (d *Device) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Transfer runs one bulk-only command: CBW, an optional data stage, CSW.
// For DirectionIn, dataLen bytes are read and returned. For DirectionOut, out
// is written. Returns (data, status, error)
func (d *Device) Transfer(ctx context.Context, cdb []byte, direction byte, out []byte, dataLen int) ([]byte, byte, error) {
	length := dataLen
	if direction == DirectionOut {
		length = len(out)
	}
	tag := d.tag
	cbw := BuildCBW(tag, uint32(length), direction, cdb)
	d.tag++

	writeCtx, writeCancel := d.withTimeout(ctx)
	defer writeCancel()

	n, err := d.epOut.WriteContext(writeCtx, cbw)
	if err != nil {
		return nil, 0xFF, fmt.Errorf("CBW write: %w", err)
	}
	if n != len(cbw) {
		return nil, 0xFF, fmt.Errorf("CBW short write: %d/%d bytes", n, len(cbw))
	}

	var data []byte
	switch {
	case direction == DirectionOut && len(out) > 0:
		dataCtx, dataCancel := d.withTimeout(ctx)
		defer dataCancel()

		n, err := d.epOut.WriteContext(dataCtx, out)
		if err != nil {
			return nil, 0xFF, fmt.Errorf("data write: %w", err)
		}
		if n != len(out) {
			return nil, 0xFF, fmt.Errorf("data short write: %d/%d bytes", n, len(out))
		}
	case direction == DirectionIn && dataLen > 0:
		dataCtx, dataCancel := d.withTimeout(ctx)
		defer dataCancel()

		data = make([]byte, dataLen)
		n, err := d.epIn.ReadContext(dataCtx, data)
		if err != nil {
			// Try to recover by reading CSW anyway
			d.log.WithError(err).Debug("data stage failed, reading CSW")
			data = nil
		} else {
			data = data[:n]
		}
	}

	cswCtx, cswCancel := d.withTimeout(ctx)
	defer cswCancel()

	cswBuf := make([]byte, CSWSize)
	_, err = d.epIn.ReadContext(cswCtx, cswBuf)
	if err != nil {
		return data, 0xFF, fmt.Errorf("CSW read: %w", err)
	}

	csw, err := ParseCSWFor(cswBuf, tag)
	if err != nil {
		return data, 0xFF, err
	}

	return data, csw.Status, nil
}

// Inquiry sends INQUIRY command and returns device info
func (d *Device) Inquiry(ctx context.Context) (*InquiryData, error) {
	data, err := d.stage(ctx, "INQUIRY", BuildInquiry(), DirectionIn, nil, 36)
	if err != nil {
		return nil, err
	}

	info := ParseInquiry(data)
	return &info, nil
}

// TestUnitReady checks if the drive behind the bridge is ready
func (d *Device) TestUnitReady(ctx context.Context) bool {
	_, err := d.stage(ctx, "TEST UNIT READY", BuildTestUnitReady(), DirectionOut, nil, 0)
	return err == nil
}

// stage runs one Transfer and turns a CSW failure into a *StageError.
func (d *Device) stage(ctx context.Context, name string, cdb []byte, direction byte, out []byte, dataLen int) ([]byte, error) {
	data, status, err := d.Transfer(ctx, cdb, direction, out, dataLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if status != StatusPassed {
		return nil, &StageError{Stage: name, Status: status}
	}
	return data, nil
}

// NVMeAdmin runs an admin command through the bridge in three phases:
// command block out, data in (or non-data), reply in. The returned
// completion carries the NVMe status; a non-success status is not an error
// here.
func (d *Device) NVMeAdmin(ctx context.Context, cmd AdminCommand) ([]byte, Completion, error) {
	log := d.log.WithFields(logrus.Fields{
		"opcode": fmt.Sprintf("0x%02x", cmd.Opcode),
		"nsid":   cmd.NSID,
		"bytes":  cmd.DataLen,
	})

	block := BuildNVMeCommandBlock(cmd)
	if _, err := d.stage(ctx, "nvme command phase", BuildNVMePassThrough(ProtoNVMCommand, len(block)), DirectionOut, block, 0); err != nil {
		return nil, Completion{}, err
	}

	var data []byte
	if cmd.DataLen > 0 {
		var err error
		data, err = d.stage(ctx, "nvme data phase", BuildNVMePassThrough(ProtoDMAIn, cmd.DataLen), DirectionIn, nil, cmd.DataLen)
		if err != nil {
			return nil, Completion{}, err
		}
	} else if _, err := d.stage(ctx, "nvme non-data phase", BuildNVMePassThrough(ProtoNonData, 0), DirectionOut, nil, 0); err != nil {
		return nil, Completion{}, err
	}

	reply, err := d.stage(ctx, "nvme response phase", BuildNVMePassThrough(ProtoResponse, NVMeReplySize), DirectionIn, nil, NVMeReplySize)
	if err != nil {
		return nil, Completion{}, err
	}

	comp, err := ParseNVMeReply(reply)
	if err != nil {
		return nil, Completion{}, err
	}
	log.WithField("status", comp.Status.String()).Debug("nvme admin command completed")
	return data, comp, nil
}
