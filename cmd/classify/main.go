// Command classify processes pressure CSV or xlsx files offline and writes
// the merged results the same way the web page exports them.
//
//	classify -threshold 90 -policy strict-pass-fail -out Processed_Results.csv a.csv b.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
	"github.com/HOUCINE710/csv-fille-Processed/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("classify failed", "error", err)
		fmt.Fprintln(os.Stderr, core.DisplayError(err))
		os.Exit(1)
	}
}

type options struct {
	threshold string
	policy    string
	reportID  string
	out       string
	workers   int
	timeout   time.Duration
	logLevel  string
	files     []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.threshold, "threshold", "", "minimum pressure (required)")
	fs.StringVar(&o.policy, "policy", string(core.PolicyStrictPassFail), "strict-pass-fail | active-inactive")
	fs.StringVar(&o.reportID, "report-id", "", "report ID logged with the run")
	fs.StringVar(&o.out, "out", core.ExportFileName, "output file; a .xlsx extension writes a workbook, - writes CSV to stdout")
	fs.IntVar(&o.workers, "workers", 4, "files parsed in parallel")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "maximum run duration")
	fs.StringVar(&o.logLevel, "log-level", "warn", "debug | info | warn | error")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: classify -threshold N [flags] file...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.files = fs.Args()
	return o, nil
}

// run drives one session through the same transitions as the web form:
// report ID, threshold and files, then process and export.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger := logging.New(stderr, o.logLevel, "text")
	slog.SetDefault(logger)

	policy, err := core.ParsePolicy(o.policy)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidRequest, err)
	}

	files := make([]core.SourceFile, 0, len(o.files))
	for _, path := range o.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, core.SourceFile{Name: filepath.Base(path), Data: data})
	}

	svc := core.NewService(core.ServiceConfig{
		Policy:        policy,
		Mode:          core.RerunReset,
		Batch:         core.BatchOptions{Workers: o.workers, Timeout: o.timeout},
		MaxConcurrent: 1,
	}, core.WithLogger(logger))

	id, _ := svc.Session("")
	svc.SetReportID(id, o.reportID)
	svc.SetThreshold(id, o.threshold)
	svc.SelectFiles(id, files)

	st, err := svc.Process(ctx, id)
	if err != nil {
		return err
	}

	export := svc.Export
	if strings.EqualFold(filepath.Ext(o.out), ".xlsx") {
		export = svc.ExportXLSX
	}
	_, data, err := export(id)
	if err != nil {
		return err
	}

	if o.out == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(o.out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.out, err)
	}
	logger.Info("results written", "path", o.out, "rows", len(st.Rows), "run_id", st.LastRun.RunID)
	return nil
}
