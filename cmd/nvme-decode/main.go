package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binaryphile/nvme-logs/internal/cmdutil"
	"github.com/binaryphile/nvme-logs/internal/dump"
	"github.com/binaryphile/nvme-logs/internal/nvme"
	"github.com/binaryphile/nvme-logs/internal/structured"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cmdutil.GlobalFlags{}

	root := &cobra.Command{
		Use:   "nvme-decode",
		Short: "Decode raw NVMe identify data, log pages and status words",
		Long: `nvme-decode decodes buffers captured from an NVMe controller, either by
nvme-pull or by any tool that saves raw identify and log page data.

Input files may be "-" for stdin.

Examples:
  # Decode a SMART / health log page
  nvme-decode smart-log Samsung_SSD-S4EW-smart.bin

  # Decode a dump by its file name
  nvme-decode file dumps/*.bin -o json

  # Classify completion status words
  nvme-decode status 0x4002 0x0109`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmdutil.AddGlobalFlags(root, flags)

	var allEntries bool
	errorLog := newPageCmd(flags, "error-log <file>", "Decode the Error Information log (64 bytes per entry)",
		func(data []byte) (structured.Marshaler, error) {
			l, err := nvme.DecodeErrLog(data)
			if err != nil {
				return nil, err
			}
			if !allEntries {
				l = l.Used()
			}
			return l, nil
		})
	errorLog.Flags().BoolVar(&allEntries, "all", false, "Include empty entries")

	root.AddCommand(
		newPageCmd(flags, "id-ctrl <file>", "Decode Identify Controller data (4096 bytes)", decodeAs(dump.PageIdCtrl)),
		newPageCmd(flags, "id-ns <file>", "Decode Identify Namespace data (4096 bytes)", decodeAs(dump.PageIdNs)),
		newPageCmd(flags, "smart-log <file>", "Decode the SMART / Health Information log (512 bytes)", decodeAs("smart")),
		newPageCmd(flags, "fw-log <file>", "Decode the Firmware Slot Information log (512 bytes)", decodeAs("fw_slot")),
		errorLog,
		newLogPageCmd(flags),
		newFileCmd(flags),
		newStatusCmd(flags),
		cmdutil.NewVersionCmd("nvme-decode"),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

type decodeFunc func([]byte) (structured.Marshaler, error)

func decodeAs(page string) decodeFunc {
	return func(data []byte) (structured.Marshaler, error) {
		return dump.Decode(page, data)
	}
}

// newPageCmd builds a subcommand that decodes one file with decode.
func newPageCmd(flags *cmdutil.GlobalFlags, use, short string, decode decodeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, flags, args[0], decode)
		},
	}
}

func runPage(cmd *cobra.Command, flags *cmdutil.GlobalFlags, path string, decode decodeFunc) error {
	env, err := cmdutil.Setup(cmd, flags)
	if err != nil {
		return err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	env.Log.WithField("bytes", len(data)).Debugf("decoding %s", path)

	page, err := decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return env.Printer.Print(page)
}

func newLogPageCmd(flags *cmdutil.GlobalFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "log-page --id <lid> <file>",
		Short: "Decode a log page by identifier (error, smart, fw_slot or a number)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lid, err := nvme.ParseLogPageID(id)
			if err != nil {
				return err
			}
			return runPage(cmd, flags, args[0], func(data []byte) (structured.Marshaler, error) {
				return nvme.DecodeLogPage(lid, data)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Log page identifier")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newFileCmd(flags *cmdutil.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "file <dump>...",
		Short: "Decode nvme-pull dumps, choosing the decoder from each file name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Setup(cmd, flags)
			if err != nil {
				return err
			}

			out := structured.NewMap()
			for _, path := range args {
				page, err := dump.DecodeFile(path)
				if err != nil {
					return err
				}
				out.Set(filepath.Base(path), page.Structured())
			}
			return env.Printer.Print(structured.Object(out))
		},
	}
}

func newStatusCmd(flags *cmdutil.GlobalFlags) *cobra.Command {
	var phase, dw3 bool
	cmd := &cobra.Command{
		Use:   "status <word>...",
		Short: "Classify completion status words",
		Long: `Classify 15-bit completion status fields (SC bits 7:0, SCT 10:8, CRD 12:11,
More 13, DNR 14). Words are decimal or 0x-prefixed hex.

With --phase, each word is the 16-bit form carrying the phase tag in bit 0,
as stored in error log entries. With --dw3, each word is dword 3 of a
completion queue entry.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if phase && dw3 {
				return fmt.Errorf("--phase and --dw3 are mutually exclusive")
			}
			env, err := cmdutil.Setup(cmd, flags)
			if err != nil {
				return err
			}

			items := make([]structured.Value, 0, len(args))
			for _, arg := range args {
				v, err := classify(env.Ranges, arg, phase, dw3)
				if err != nil {
					return err
				}
				items = append(items, v)
			}
			if len(items) == 1 {
				return env.Printer.Print(items[0])
			}
			return env.Printer.Print(structured.List(items...))
		},
	}
	cmd.Flags().BoolVar(&phase, "phase", false, "Words include the phase tag in bit 0")
	cmd.Flags().BoolVar(&dw3, "dw3", false, "Words are completion queue entry dword 3")
	return cmd
}

// classify decodes one status word argument into an annotated record.
func classify(ranges nvme.RangeTable, arg string, phase, dw3 bool) (structured.Value, error) {
	bits := 16
	if dw3 {
		bits = 32
	}
	n, err := strconv.ParseUint(strings.TrimSpace(arg), 0, bits)
	if err != nil {
		return structured.Value{}, fmt.Errorf("invalid status word %q: %w", arg, err)
	}

	var (
		s      nvme.StatusField
		tag    bool
		hasTag = phase || dw3
	)
	switch {
	case dw3:
		s, tag = nvme.DecodeCompletionStatus(uint32(n))
	case phase:
		s, tag = nvme.DecodeStatusWithPhase(uint16(n))
	default:
		s = nvme.DecodeStatus(uint16(n))
	}

	out := structured.NewMap().Set("word", structured.Text(arg))
	if m, ok := ranges.Annotate(s).Map(); ok {
		m.Each(func(k string, v structured.Value) { out.Set(k, v) })
	}
	out.SetIf(hasTag, "phase_tag", structured.Bool(tag))
	out.Set("success", structured.Bool(s.Success()))
	if err := s.Err(); err != nil {
		out.Set("message", structured.Text(err.Error()))
	}
	return structured.Object(out), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
