// analyzer runs the batch pipeline: ingest the survey, recode, build
// composites, fit the path model, and export result tables.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"surveykit/internal/config"
	"surveykit/internal/exporter"
	"surveykit/internal/infrastructure"
	"surveykit/internal/pipeline"
)

func main() {
	responses := flag.String("responses", "", "responses file (overrides config)")
	dictionary := flag.String("dictionary", "", "data dictionary file (overrides config)")
	plan := flag.String("plan", "", "analysis plan file (overrides config)")
	outDir := flag.String("out", "", "output directory (overrides config)")
	workbook := flag.String("workbook", "results.xlsx", "combined workbook file name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *responses != "" {
		cfg.Paths.ResponsesFile = *responses
	}
	if *dictionary != "" {
		cfg.Paths.DictionaryFile = *dictionary
	}
	if *plan != "" {
		cfg.Paths.PlanFile = *plan
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}

	logger, closer, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx := context.Background()
	providers, err := infrastructure.InitializeOTel(ctx, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer providers.Shutdown(ctx)

	results, err := pipeline.NewRunner(cfg, logger).Run(ctx)
	if err != nil {
		logger.Error("analysis run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tables := exporter.ResultTables(results)
	csvWriter := exporter.NewCSVWriter(cfg.Paths, logger)
	for _, table := range tables {
		if err := csvWriter.WriteTable(table.Name+".csv", table); err != nil {
			logger.Error("csv export failed",
				slog.String("table", table.Name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if err := exporter.NewWorkbookWriter(cfg.Paths, logger).Write(*workbook, tables); err != nil {
		logger.Error("workbook export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("analysis complete",
		slog.String("run_id", results.RunID),
		slog.Int("respondents", results.Respondents),
		slog.Int("tables", len(tables)),
		slog.String("output_dir", cfg.Paths.OutputDir))
}
