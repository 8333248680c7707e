package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryphile/nvme-logs/internal/dump"
	"github.com/binaryphile/nvme-logs/internal/nvme"
)

// run executes nvme-decode in process with no config file.
func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestStatus_JSON(t *testing.T) {
	out, err := run(t, nil, "status", "0x4002", "-o", "json")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "0x4002", got["word"])
	assert.Equal(t, "generic", got["status_code_type"])
	assert.Equal(t, "invalid_field_in_command", got["status_code"])
	assert.Equal(t, true, got["do_not_retry"])
	assert.Equal(t, "standard", got["range"])
	assert.Equal(t, false, got["success"])
	assert.Contains(t, got["message"], "do not retry")
}

func TestStatus_Phase(t *testing.T) {
	// 0x002e carries phase 0 and SC 0x17, which the generic table lacks
	out, err := run(t, nil, "status", "--phase", "0x002e", "-o", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "kind: other")
	assert.Contains(t, out, "code: 23")
	assert.Contains(t, out, "phase_tag: false")
}

func TestStatus_DW3(t *testing.T) {
	out, err := run(t, nil, "status", "--dw3", "0x00010000", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"phase_tag": true`)
	assert.Contains(t, out, `"success": true`)
	assert.NotContains(t, out, "message")
}

func TestStatus_Revision(t *testing.T) {
	out, err := run(t, nil, "status", "0x0300", "-o", "json", "--spec-revision", "1.3")
	require.NoError(t, err)
	assert.Contains(t, out, `"range": "reserved"`)

	out, err = run(t, nil, "status", "0x0300", "-o", "json", "--spec-revision", "1.4")
	require.NoError(t, err)
	assert.Contains(t, out, `"range": "standard"`)
}

func TestStatus_Many(t *testing.T) {
	out, err := run(t, nil, "status", "0", "0x0109", "0x0742", "-o", "json")
	require.NoError(t, err)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "success", got[0]["status_code"])
	assert.Equal(t, "invalid_log_page", got[1]["status_code"])
	assert.Equal(t, "vendor_specific", got[2]["range"])
}

func TestStatus_Invalid(t *testing.T) {
	_, err := run(t, nil, "status", "0x10000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status word")

	_, err = run(t, nil, "status", "--phase", "--dw3", "1")
	assert.Error(t, err)
}

func TestSmartLog(t *testing.T) {
	buf := make([]byte, nvme.SmartLogSize)
	buf[0] = 0x01
	path := writeFile(t, "smart.bin", buf)

	out, err := run(t, nil, "smart-log", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"available_spare_low": true`)
	assert.Contains(t, out, `"composite_temperature": null`)
}

func TestSmartLog_Table(t *testing.T) {
	path := writeFile(t, "smart.bin", make([]byte, nvme.SmartLogSize))

	out, err := run(t, nil, "smart-log", path)
	require.NoError(t, err)
	assert.Contains(t, out, "critical_warning.raw")
	assert.Contains(t, out, "temperature_sensors[7]")
}

func TestIdCtrl_Stdin(t *testing.T) {
	buf := make([]byte, nvme.IdCtrlSize)
	mn, err := nvme.EncodeFixedStr("Test NVMe", 40)
	require.NoError(t, err)
	copy(buf[24:64], mn)

	out, err := run(t, buf, "id-ctrl", "-", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"mn": "Test NVMe"`)
}

func TestIdCtrl_TooShort(t *testing.T) {
	path := writeFile(t, "short.bin", make([]byte, 100))

	_, err := run(t, nil, "id-ctrl", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer too short")
}

func TestErrorLog(t *testing.T) {
	buf := make([]byte, 4*nvme.ErrLogEntrySize)
	buf[0] = 1
	buf[nvme.ErrLogEntrySize] = 2
	path := writeFile(t, "error.bin", buf)

	out, err := run(t, nil, "error-log", path, "-o", "json")
	require.NoError(t, err)
	var used []interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &used))
	assert.Len(t, used, 2)

	out, err = run(t, nil, "error-log", "--all", path, "-o", "json")
	require.NoError(t, err)
	var all []interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 4)
}

func TestLogPage(t *testing.T) {
	path := writeFile(t, "fw.bin", make([]byte, nvme.FwSlotLogSize))

	out, err := run(t, nil, "log-page", "--id", "0x03", path, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "active_slot")

	_, err = run(t, nil, "log-page", "--id", "0x80", path)
	assert.Error(t, err)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	name := dump.Filename("Test NVMe", "S123", "fw_slot")
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, nvme.FwSlotLogSize), 0644))

	out, err := run(t, nil, "file", path, "-o", "json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), `{`))
	assert.Contains(t, out, `"Test_NVMe-S123-fw_slot.bin"`)
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}
