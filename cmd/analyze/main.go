package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"EduPulse/internal/di"
	"EduPulse/internal/domain/models"
	"EduPulse/internal/services/analytics"
	"EduPulse/internal/services/visualization"
	"EduPulse/pkg/config"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	forecast   bool
	visualize  bool
	quick      bool
	category   string
	export     string
	format     string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a CSV or JSON time series file",
		Long: `analyze runs the EduPulse analytics pipeline on a local file: ingestion, cleaning,
trend and growth analysis and forecasting. The report is printed as JSON, or the
cleaned data is exported with --export.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), stdout, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (defaults apply when empty)")
	f.BoolVar(&opts.forecast, "forecast", true, "include forecasts")
	f.BoolVar(&opts.visualize, "visualize", false, "include chart configurations")
	f.BoolVar(&opts.quick, "quick", false, "print trend, growth and current value only")
	f.StringVar(&opts.category, "category", "", "analyze one category only")
	f.StringVar(&opts.export, "export", "", "export cleaned data instead of the report: csv or json")
	f.StringVar(&opts.format, "format", "", "input format when the extension does not tell: csv or json")
	return cmd
}

func run(ctx context.Context, stdout io.Writer, path string, opts *options) error {
	if opts.export != "" && models.ParseFormat(opts.export) == models.FormatUnknown {
		return fmt.Errorf("--export must be csv or json, got %q", opts.export)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	pipeline := analytics.NewPipeline(di.AnalyticsConfig(cfg),
		analytics.WithChartBuilder(visualization.NewBuilder(cfg.Analytics.ChartMaxPoints)))
	if err := pipeline.CheckSize(int64(len(raw))); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Analytics.ProcessingTimeout)
	defer cancel()
	report, err := pipeline.Run(ctx, raw, models.FormatHint{
		Declared: models.ParseFormat(opts.format),
		Filename: filepath.Base(path),
	}, analytics.RunOptions{
		IncludeForecast:       opts.forecast && !opts.quick,
		IncludeVisualizations: opts.visualize && !opts.quick,
		Category:              opts.category,
	})
	if err != nil {
		return err
	}

	if opts.export != "" {
		payload, err := pipeline.Export(report, models.ParseFormat(opts.export))
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		_, err = stdout.Write(payload.Body)
		return err
	}

	var out any = report
	if opts.quick {
		out = analytics.Quick(report)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
