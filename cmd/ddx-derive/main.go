// Command ddx-derive normalizes and derives a model evaluation export in
// batch and writes the processed table as UTF-8 CSV with a BOM.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/er-ddx-review-server/internal/cache"
	"github.com/er-ddx-review-server/internal/config"
	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/internal/service"
)

type options struct {
	in       string
	out      string
	prefer   string
	logLevel string
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("ddx-derive", pflag.ExitOnError)
	flags.StringVarP(&opts.in, "in", "i", "", "input CSV or TSV export (required)")
	flags.StringVarP(&opts.out, "out", "o", "-", "output CSV, - for stdout")
	flags.StringVarP(&opts.prefer, "prefer", "p", string(domain.VariantApplied), "model variant of the preferred view: applied or base")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "ddx-derive: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.in == "" {
		return fmt.Errorf("--in is required")
	}
	prefer, err := domain.ParseModelVariant(opts.prefer)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(domain.LoggingConfig{Level: opts.logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}

	datasetCache, err := cache.NewDatasetCache(1)
	if err != nil {
		return err
	}
	datasets, err := service.NewDatasetService(logger, datasetCache)
	if err != nil {
		return err
	}

	in, err := os.Open(opts.in)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	ds, err := datasets.Load(ctx, filepath.Base(opts.in), in, prefer)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := datasets.ExportCSV(out, nil); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.WithField("rows", ds.Rows).WithField("out", opts.out).Info("Derived table written")
	return nil
}
