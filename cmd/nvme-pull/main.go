package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/binaryphile/nvme-logs/internal/cmdutil"
	"github.com/binaryphile/nvme-logs/internal/config"
	"github.com/binaryphile/nvme-logs/internal/device"
	"github.com/binaryphile/nvme-logs/internal/dump"
	"github.com/binaryphile/nvme-logs/internal/metrics"
	"github.com/binaryphile/nvme-logs/internal/nvme"
	"github.com/binaryphile/nvme-logs/internal/output"
	"github.com/binaryphile/nvme-logs/internal/structured"
)

// openTransport is replaced in tests.
var openTransport = device.Open

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type pullFlags struct {
	dumpDir   string
	textfile  string
	namespace uint32
	pages     []string
	vendorID  string
	productID string
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	global := &cmdutil.GlobalFlags{}
	flags := &pullFlags{}

	root := &cobra.Command{
		Use:   "nvme-pull [device]",
		Short: "Read identify data and health log pages from an NVMe controller",
		Long: `nvme-pull reads Identify Controller and the error, SMART / health and
firmware slot log pages from one controller, prints the decoded result and
optionally saves the raw buffers and a Prometheus textfile.

The device is a character device such as /dev/nvme0, or "usb" for a
JMicron USB-to-NVMe bridge. Without an argument device.path from the
config file is used.

Examples:
  # Pull from the first controller
  sudo nvme-pull /dev/nvme0

  # Pull through a USB enclosure, keep the raw pages
  nvme-pull usb --dump-dir ./dumps

  # Feed node_exporter's textfile collector
  nvme-pull /dev/nvme0 --textfile /var/lib/node_exporter/nvme.prom -o json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdutil.Setup(cmd, global)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, env.Config, flags, args); err != nil {
				return err
			}
			opts, err := newPullOptions(env.Config, flags.pages)
			if err != nil {
				return err
			}

			cfg := env.Config
			t, err := openTransport(cfg.Device.Path, device.Options{
				Timeout:   cfg.Device.Timeout,
				VendorID:  gousb.ID(cfg.USB.VendorID),
				ProductID: gousb.ID(cfg.USB.ProductID),
			}, env.Log)
			if err != nil {
				return err
			}
			defer t.Close()

			res, err := pull(cmd.Context(), t, env, opts)
			if err != nil {
				return err
			}
			if err := env.Printer.Print(res.Report); err != nil {
				return err
			}
			res.summarize(env.Printer, opts)
			return nil
		},
	}
	cmdutil.AddGlobalFlags(root, global)

	f := root.Flags()
	f.StringVar(&flags.dumpDir, "dump-dir", "", "Save raw buffers to this directory")
	f.StringVar(&flags.textfile, "textfile", "", "Write Prometheus metrics to this .prom file")
	f.Uint32Var(&flags.namespace, "namespace", 0, "Also read Identify Namespace for this NSID")
	f.StringSliceVar(&flags.pages, "pages", defaultPages(), "Log pages to read")
	f.StringVar(&flags.vendorID, "vendor-id", "", "USB bridge vendor ID (hex, e.g., 0x152d)")
	f.StringVar(&flags.productID, "product-id", "", "USB bridge product ID (hex, e.g., 0x0583)")
	f.DurationVar(&flags.timeout, "timeout", 0, "Per-command timeout (default from config)")

	root.AddCommand(cmdutil.NewVersionCmd("nvme-pull"))
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

func defaultPages() []string {
	out := make([]string, len(nvme.LogPages))
	for i, id := range nvme.LogPages {
		out[i] = id.String()
	}
	return out
}

// applyFlags folds the pull flags that were given into cfg and validates the
// result.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *pullFlags, args []string) error {
	if len(args) == 1 {
		cfg.Device.Path = args[0]
	}
	if cfg.Device.Path == "" {
		return errors.New("no device given (argument or device.path)")
	}

	changed := cmd.Flags().Changed
	if changed("dump-dir") {
		cfg.Dump.Dir = f.dumpDir
	}
	if changed("textfile") {
		cfg.Metrics.Textfile = f.textfile
	}
	if changed("namespace") {
		cfg.Device.Namespace = f.namespace
	}
	if changed("timeout") {
		cfg.Device.Timeout = f.timeout
	}
	if changed("vendor-id") {
		id, err := config.ParseUSBID(f.vendorID)
		if err != nil {
			return err
		}
		cfg.USB.VendorID = id
	}
	if changed("product-id") {
		id, err := config.ParseUSBID(f.productID)
		if err != nil {
			return err
		}
		cfg.USB.ProductID = id
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

type pullOptions struct {
	Pages     []nvme.LogPageID
	Namespace uint32
	DumpDir   string
	Textfile  string
}

func newPullOptions(cfg *config.Config, pages []string) (pullOptions, error) {
	opts := pullOptions{
		Namespace: cfg.Device.Namespace,
		DumpDir:   cfg.Dump.Dir,
		Textfile:  cfg.Metrics.Textfile,
	}
	seen := make(map[nvme.LogPageID]bool)
	for _, p := range pages {
		id, err := nvme.ParseLogPageID(p)
		if err != nil {
			return pullOptions{}, err
		}
		if id.MinSize() == 0 {
			return pullOptions{}, fmt.Errorf("%w: %s cannot be decoded", nvme.ErrUnknownLogPage, id)
		}
		if !seen[id] {
			seen[id] = true
			opts.Pages = append(opts.Pages, id)
		}
	}
	return opts, nil
}

// pullResult is the report plus what the pull left on disk.
type pullResult struct {
	Report structured.Value
	Dumps  int
}

// summarize tells a human reader where the files went. Machine formats get
// the report alone.
func (r pullResult) summarize(p *output.Printer, opts pullOptions) {
	if p.Format() != output.FormatTable {
		return
	}
	if r.Dumps > 0 {
		p.Success(fmt.Sprintf("saved %d raw buffers to %s", r.Dumps, opts.DumpDir))
	}
	if opts.Textfile != "" {
		p.Success("wrote metrics to " + opts.Textfile)
	}
}

// pull reads everything opts asks for from t and returns the report. A log
// page the controller rejects is recorded under "failed" and the pull goes on;
// transport errors and a failed Identify Controller end it.
func pull(ctx context.Context, t device.Transport, env *cmdutil.Env, opts pullOptions) (pullResult, error) {
	log := env.Log.WithField("device", t.Name())
	client := device.NewClient(t, env.Log)

	var (
		reg *prometheus.Registry
		m   *metrics.Metrics
		w   *dump.Writer
	)
	if opts.Textfile != "" {
		reg = prometheus.NewRegistry()
		m = metrics.NewMetrics(reg)
	}
	if opts.DumpDir != "" {
		w = dump.NewWriter(opts.DumpDir, log)
	}

	id, raw, err := client.IdentifyController(ctx)
	if err != nil {
		return pullResult{}, fmt.Errorf("identify controller: %w", err)
	}
	m.ObserveController(t.Name(), id)

	var dumps []structured.Value
	save := func(page string, data []byte) error {
		if w == nil {
			return nil
		}
		path, err := w.SaveController(id, page, data)
		if err != nil {
			return err
		}
		dumps = append(dumps, structured.Text(path))
		return nil
	}
	if err := save(dump.PageIdCtrl, raw); err != nil {
		return pullResult{}, err
	}

	report := structured.NewMap().
		Set("device", structured.Text(t.Name())).
		Set("controller", structured.Object(structured.NewMap().
			Set("model", id.ModelNumber.Structured()).
			Set("serial", id.SerialNumber.Structured()).
			Set("firmware", id.FirmwareRevision.Structured()).
			Set("version", id.Version.Structured()).
			Set("error_log_entries", structured.Uint(uint64(id.MaxErrorLogEntries())))))

	if opts.Namespace != 0 {
		ns, raw, err := client.IdentifyNamespace(ctx, opts.Namespace)
		if err != nil {
			return pullResult{}, fmt.Errorf("identify namespace %d: %w", opts.Namespace, err)
		}
		if err := save(dump.PageIdNs, raw); err != nil {
			return pullResult{}, err
		}
		report.Set("namespace", ns.Structured())
	}

	failed := structured.NewMap()
	for _, pid := range opts.Pages {
		data, err := client.LogPage(ctx, pid, device.LogPageSize(pid, id.MaxErrorLogEntries()))
		var se *nvme.StatusError
		if errors.As(err, &se) {
			annotated := env.Ranges.Annotate(se.Status)
			log.WithFields(logrus.Fields{
				"log_page": pid.String(),
				"status":   se.Status.String(),
				"range":    env.Ranges.ClassifyStatus(se.Status).String(),
				"retry":    se.Retryable(),
			}).Warn("log page rejected")
			failed.Set(pid.String(), annotated)
			if env.Printer.Format() == output.FormatTable {
				env.Printer.Error(fmt.Sprintf("%s: %v", pid, se))
			}
			continue
		}
		if err != nil {
			return pullResult{}, err
		}
		if err := save(pid.String(), data); err != nil {
			return pullResult{}, err
		}

		page, err := nvme.DecodeLogPage(pid, data)
		if err != nil {
			return pullResult{}, fmt.Errorf("decode %s: %w", pid, err)
		}
		switch p := page.(type) {
		case nvme.SmartLog:
			m.ObserveSmart(t.Name(), p)
			warnHealth(env.Printer, log, p)
		case nvme.FwSlotLog:
			m.ObserveFwSlot(t.Name(), p)
		case nvme.ErrLog:
			m.ObserveErrLog(t.Name(), p)
			page = p.Used()
		}
		report.Set(pid.String(), page.Structured())
	}
	report.SetIf(failed.Len() > 0, "failed", structured.Object(failed))
	report.SetIf(len(dumps) > 0, "dumps", structured.List(dumps...))

	if opts.Textfile != "" {
		if err := metrics.WriteTextfile(opts.Textfile, reg); err != nil {
			return pullResult{}, fmt.Errorf("write textfile: %w", err)
		}
		log.WithField("path", opts.Textfile).Info("wrote metrics textfile")
	}
	return pullResult{Report: structured.Object(report), Dumps: len(dumps)}, nil
}

// warnHealth logs critical warning bits and, for human readers, repeats them
// above the table.
func warnHealth(p *output.Printer, log logrus.FieldLogger, l nvme.SmartLog) {
	if !l.CriticalWarning.Any() {
		return
	}
	log.WithFields(logrus.Fields{
		"critical_warning": fmt.Sprintf("0x%02x", uint8(l.CriticalWarning)),
		"available_spare":  l.AvailableSpare,
		"percentage_used":  l.PercentageUsed,
	}).Warn("controller reports a critical warning")

	if p.Format() == output.FormatTable {
		p.Warning(fmt.Sprintf("critical warning 0x%02x set", uint8(l.CriticalWarning)))
	}
}
