// Package dump persists raw identify and log page buffers and decodes them
// back by page name.
package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/binaryphile/nvme-logs/internal/nvme"
	"github.com/binaryphile/nvme-logs/internal/structured"
)

// Page names for the identify structures. Log pages use nvme.LogPageID's
// String form.
const (
	PageIdCtrl = "id_ctrl"
	PageIdNs   = "id_ns"
)

// Writer saves buffers under Dir.
type Writer struct {
	Dir string
	log logrus.FieldLogger
}

func NewWriter(dir string, log logrus.FieldLogger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{Dir: dir, log: log}
}

// Save writes data as Filename(model, serial, page) and returns the path.
// The file is written to a temporary name first and renamed into place.
func (w *Writer) Save(model, serial, page string, data []byte) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}

	path := filepath.Join(w.Dir, Filename(model, serial, page))
	tmp, err := os.CreateTemp(w.Dir, ".dump-*")
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write dump file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write dump file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename dump file: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"path":  path,
		"page":  page,
		"bytes": len(data),
	}).Debug("saved raw buffer")
	return path, nil
}

// SaveController writes an identify or log page buffer named after the
// controller's model and serial number.
func (w *Writer) SaveController(id nvme.IdCtrl, page string, data []byte) (string, error) {
	return w.Save(id.ModelNumber.String(), id.SerialNumber.String(), page, data)
}

// Decode decodes data as the named page. page is one of PageIdCtrl,
// PageIdNs or anything nvme.ParseLogPageID accepts.
func Decode(page string, data []byte) (structured.Marshaler, error) {
	switch strings.ToLower(page) {
	case PageIdCtrl, "id-ctrl":
		id, err := nvme.DecodeIdCtrl(data)
		if err != nil {
			return nil, err
		}
		return id, nil
	case PageIdNs, "id-ns":
		ns, err := nvme.DecodeIdNs(data)
		if err != nil {
			return nil, err
		}
		return ns, nil
	}

	lid, err := nvme.ParseLogPageID(page)
	if err != nil {
		return nil, err
	}
	return nvme.DecodeLogPage(lid, data)
}

// DecodeFile reads path and decodes it by the page in its name.
func DecodeFile(path string) (structured.Marshaler, error) {
	page, ok := PageOf(filepath.Base(path))
	if !ok {
		return nil, fmt.Errorf("%s: cannot tell the page from the file name", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(page, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
