package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NVMELOGS_LOGGING_LEVEL.
const EnvPrefix = "NVMELOGS"

// Config holds the settings shared by the nvme-pull and nvme-decode commands.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NVMELOGS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`

	// SpecRevision selects the status code range table used to annotate
	// decoded statuses.
	SpecRevision string `mapstructure:"spec_revision" validate:"required,revision" yaml:"spec_revision"`

	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	USB     USBConfig     `mapstructure:"usb" yaml:"usb"`
	Dump    DumpConfig    `mapstructure:"dump" yaml:"dump"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Valid values: debug, info, warn, error, none (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR NONE debug info warn error none" yaml:"level"`

	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// OutputConfig controls how decoded records are printed.
type OutputConfig struct {
	// Valid values: table, json, yaml
	Format string `mapstructure:"format" validate:"required,oneof=table json yaml" yaml:"format"`
}

// DeviceConfig selects the controller nvme-pull talks to.
type DeviceConfig struct {
	// Path is a character device such as /dev/nvme0, or "usb" for a bridge
	Path string `mapstructure:"path" yaml:"path"`

	// Timeout bounds each admin command
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	// Namespace is read with Identify Namespace when non-zero
	Namespace uint32 `mapstructure:"namespace" yaml:"namespace"`
}

// USBConfig pins a specific bridge. Both IDs zero means auto-detect.
type USBConfig struct {
	VendorID  USBID `mapstructure:"vendor_id" validate:"required_with=ProductID" yaml:"vendor_id"`
	ProductID USBID `mapstructure:"product_id" validate:"required_with=VendorID" yaml:"product_id"`
}

// DumpConfig controls raw buffer persistence.
type DumpConfig struct {
	// Dir receives <model>-<serial>-<page>.bin files; empty disables dumps
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after a pull; empty disables the export
	Textfile string `mapstructure:"textfile" validate:"omitempty,endswith=.prom" yaml:"textfile"`
}

// USBID is a USB vendor or product identifier. Config files and the
// environment give it in hex, with or without a 0x prefix.
type USBID uint16

func (id USBID) String() string { return fmt.Sprintf("%04x", uint16(id)) }

// ParseUSBID parses "152d" or "0x152d".
func ParseUSBID(s string) (USBID, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: %w", s, err)
	}
	return USBID(n), nil
}

// Load loads configuration from file, environment and defaults. An empty
// configPath searches the default location; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal even without a file so environment overrides apply
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the NVMELOGS_ prefix and underscores
	// Example: NVMELOGS_OUTPUT_FORMAT=json
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only consults the environment for keys viper knows about
	registerDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func registerDefaults(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("spec_revision", d.SpecRevision)
	v.SetDefault("device.path", d.Device.Path)
	v.SetDefault("device.timeout", d.Device.Timeout)
	v.SetDefault("device.namespace", d.Device.Namespace)
	v.SetDefault("usb.vendor_id", "")
	v.SetDefault("usb.product_id", "")
	v.SetDefault("dump.dir", d.Dump.Dir)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Explicit config file that doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		usbIDDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// usbIDDecodeHook reads USB ids as hex. YAML turns an unquoted 0x152d into
// an integer, which is taken as is.
func usbIDDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(USBID(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseUSBID(v)
		case int:
			if v < 0 || v > 0xffff {
				return nil, fmt.Errorf("USB id %d out of range", v)
			}
			return USBID(v), nil
		case uint64:
			if v > 0xffff {
				return nil, fmt.Errorf("USB id %d out of range", v)
			}
			return USBID(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir uses XDG_CONFIG_HOME if set, otherwise ~/.config, or the
// current directory when the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nvme-logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nvme-logs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
