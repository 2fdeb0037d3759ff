package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"checkin-platform/internal/bootstrap"
	"checkin-platform/internal/config"
	"checkin-platform/internal/measures"
	"checkin-platform/internal/models"
	"checkin-platform/internal/reports"
	"checkin-platform/internal/services"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so that deferred cleanup always runs
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("summarise", flag.ContinueOnError)
	flags.SetOutput(stderr)
	weekly := flags.Bool("weekly", false, "Write weekly rows instead of daily")
	styles := flags.Bool("styles", false, "Write the style breakdown")
	producers := flags.Bool("producers", false, "Write the brewery breakdown")
	xlsx := flags.Bool("xlsx", false, "Write an XLSX workbook with every summary")
	output := flags.String("output", "", "Output file (default: stdout)")
	region := flags.String("region", "", "Region assumed when no checkin names a country: eur or usa")
	persist := flags.Bool("persist", false, "Store the report in PostgreSQL")
	owner := flags.String("owner", "", "Owner recorded on persisted reports")
	configPath := flags.String("config", "", "Path to a YAML config file (default: $CHECKIN_CONFIG)")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: summarise [flags] SOURCE [SOURCE...]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "SOURCE is a checkin export JSON file or an http(s) URL.")
		fmt.Fprintln(stderr)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	sources := flags.Args()
	if len(sources) == 0 {
		flags.Usage()
		return 2
	}

	kind, err := selectKind(*weekly, *styles, *producers)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var override *measures.Region
	if *region != "" {
		r, err := measures.ParseRegion(*region)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid region: %v\n", err)
			return 2
		}
		override = &r
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Output needs the full aggregation result, which cached summaries omit
	cfg.Database.Enabled = *persist
	cfg.Cache.Enabled = false

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger := logging.NewStructuredLogger("checkin-summarise", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(stderr)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCollector := metrics.NewCollector("checkin_summarise", prometheus.NewRegistry())

	components, err := bootstrap.Build(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Error(ctx, "[STARTUP_ERROR] Failed to initialize services", logging.Fields{}, err)
		return 1
	}
	defer components.Close()

	summaries, err := components.Service.SummariseAll(ctx, sources, *owner, override)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to summarise: %v\n", err)
		return 1
	}

	for i, summary := range summaries {
		path := outputPath(*output, sources[i], len(sources) > 1)
		if err := writeSummary(stdout, path, summary, kind, *xlsx); err != nil {
			fmt.Fprintf(stderr, "Failed to write %s: %v\n", sources[i], err)
			return 1
		}
		if summary.Estimated != models.EstimateCertain {
			for _, line := range summary.Legend {
				fmt.Fprintln(stderr, line)
			}
		}
	}
	return 0
}

func selectKind(weekly, styles, producers bool) (reports.Kind, error) {
	kind := reports.KindDaily
	chosen := 0
	if weekly {
		kind = reports.KindWeekly
		chosen++
	}
	if styles {
		kind = reports.KindStyles
		chosen++
	}
	if producers {
		kind = reports.KindProducers
		chosen++
	}
	if chosen > 1 {
		return "", fmt.Errorf("choose at most one of -weekly, -styles and -producers")
	}
	return kind, nil
}

// outputPath returns "" for stdout. With several sources each one gets its
// own file named after the source, e.g. out.csv -> out-export.csv.
func outputPath(output, source string, multiple bool) string {
	if output == "" || !multiple {
		return output
	}
	ext := filepath.Ext(output)
	stem := filepath.Base(source)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	return strings.TrimSuffix(output, ext) + "-" + stem + ext
}

func writeSummary(stdout io.Writer, path string, summary *services.SummaryReport, kind reports.Kind, xlsx bool) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if xlsx {
		data, err := reports.BuildWorkbook(summary.Result)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return reports.WriteCSV(w, kind, summary.Result)
}
