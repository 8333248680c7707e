package device

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/binaryphile/nvme-logs/internal/nvme"
)

// Client issues the identify and log page reads a health pull needs and
// hands the raw buffers to the decoders.
type Client struct {
	t   Transport
	log logrus.FieldLogger
}

func NewClient(t Transport, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{t: t, log: log.WithField("device", t.Name())}
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport { return c.t }

// Raw runs cmd and checks that the transport returned DataLen bytes.
func (c *Client) Raw(ctx context.Context, cmd Command) ([]byte, error) {
	data, err := c.t.Admin(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	if len(data) < cmd.DataLen {
		return nil, fmt.Errorf("%s: short transfer: %d/%d bytes", cmd, len(data), cmd.DataLen)
	}
	return data[:cmd.DataLen], nil
}

// IdentifyController reads and decodes the Identify Controller data. The raw
// buffer is returned for dumping.
func (c *Client) IdentifyController(ctx context.Context) (nvme.IdCtrl, []byte, error) {
	raw, err := c.Raw(ctx, IdentifyController())
	if err != nil {
		return nvme.IdCtrl{}, nil, err
	}
	id, err := nvme.DecodeIdCtrl(raw)
	if err != nil {
		return nvme.IdCtrl{}, raw, err
	}
	c.log.WithFields(logrus.Fields{
		"model":    id.ModelNumber.String(),
		"serial":   id.SerialNumber.String(),
		"firmware": id.FirmwareRevision.String(),
	}).Info("identified controller")
	return id, raw, nil
}

// IdentifyNamespace reads and decodes Identify Namespace for nsid.
func (c *Client) IdentifyNamespace(ctx context.Context, nsid uint32) (nvme.IdNs, []byte, error) {
	raw, err := c.Raw(ctx, IdentifyNamespace(nsid))
	if err != nil {
		return nvme.IdNs{}, nil, err
	}
	ns, err := nvme.DecodeIdNs(raw)
	if err != nil {
		return nvme.IdNs{}, raw, err
	}
	return ns, raw, nil
}

// LogPage reads length bytes of log page id for the whole controller.
func (c *Client) LogPage(ctx context.Context, id nvme.LogPageID, length int) ([]byte, error) {
	cmd, err := GetLogPage(id, NSIDAll, length)
	if err != nil {
		return nil, err
	}
	raw, err := c.Raw(ctx, cmd)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"log_page": id.String(),
		"bytes":    len(raw),
	}).Debug("read log page")
	return raw, nil
}

// SmartLog reads and decodes the SMART / Health Information log.
func (c *Client) SmartLog(ctx context.Context) (nvme.SmartLog, []byte, error) {
	raw, err := c.LogPage(ctx, nvme.LogPageSmart, nvme.SmartLogSize)
	if err != nil {
		return nvme.SmartLog{}, nil, err
	}
	l, err := nvme.DecodeSmartLog(raw)
	return l, raw, err
}
