// Package cmdutil provides shared utilities for the nvme-pull and
// nvme-decode commands.
package cmdutil

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/binaryphile/nvme-logs/internal/config"
	"github.com/binaryphile/nvme-logs/internal/logging"
	"github.com/binaryphile/nvme-logs/internal/nvme"
	"github.com/binaryphile/nvme-logs/internal/output"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// GlobalFlags holds the flags every command accepts.
type GlobalFlags struct {
	ConfigPath   string
	Output       string
	LogLevel     string
	SpecRevision string
	NoColor      bool
	Verbose      bool
}

// AddGlobalFlags registers f on cmd's persistent flag set.
func AddGlobalFlags(cmd *cobra.Command, f *GlobalFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ConfigPath, "config", "", "Config file (default: "+config.GetDefaultConfigPath()+")")
	pf.StringVarP(&f.Output, "output", "o", "", "Output format (table|json|yaml)")
	pf.StringVar(&f.LogLevel, "log-level", "", "Log level (debug|info|warn|error|none)")
	pf.StringVar(&f.SpecRevision, "spec-revision", "", "Status code range table revision (1.3|1.4|2.0)")
	pf.BoolVar(&f.NoColor, "no-color", false, "Disable colored output")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "Enable debug logging")
}

// Env is everything a command needs after flags and config are merged.
type Env struct {
	Config  *config.Config
	Log     *logrus.Logger
	Printer *output.Printer
	Ranges  nvme.RangeTable
}

// Setup loads the config, applies flag overrides and builds the logger,
// printer and status range table. Logs go to the command's error stream.
func Setup(cmd *cobra.Command, f *GlobalFlags) (*Env, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Flags override config
	if f.Output != "" {
		cfg.Output.Format = f.Output
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.Verbose {
		cfg.Logging.Level = "debug"
	}
	if f.SpecRevision != "" {
		cfg.SpecRevision = f.SpecRevision
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	log, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	ranges, err := nvme.RangesFor(nvme.Revision(cfg.SpecRevision))
	if err != nil {
		return nil, err
	}

	return &Env{
		Config:  cfg,
		Log:     log,
		Printer: output.NewPrinter(cmd.OutOrStdout(), format, !f.NoColor && isTerminal(cmd)),
		Ranges:  ranges,
	}, nil
}

// isTerminal reports whether cmd writes to a character device.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// NewVersionCmd builds the version subcommand for the named program.
func NewVersionCmd(name string) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, Version)
				return
			}
			fmt.Fprintf(out, "%s %s\n", name, Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", Date)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Show only version number")
	return cmd
}
