package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// runnerMetrics holds the pipeline's OpenTelemetry instruments. A nil
// instrument (creation failed) simply records nothing.
type runnerMetrics struct {
	rowsRecoded  metric.Int64Counter
	recodeIssues metric.Int64Counter
	edgesFitted  metric.Int64Counter
	segmentsFit  metric.Int64Counter
	runDuration  metric.Float64Histogram
}

func newRunnerMetrics(logger *slog.Logger) runnerMetrics {
	meter := otel.Meter("surveykit/pipeline")
	var m runnerMetrics
	var err error

	if m.rowsRecoded, err = meter.Int64Counter("surveykit.pipeline.recoded_rows",
		metric.WithDescription("Survey rows recoded"),
		metric.WithUnit("{row}")); err != nil {
		logger.Warn("metric instrument unavailable", slog.String("error", err.Error()))
	}
	if m.recodeIssues, err = meter.Int64Counter("surveykit.pipeline.recode_issues",
		metric.WithDescription("Data-quality issues raised during recoding"),
		metric.WithUnit("{issue}")); err != nil {
		logger.Warn("metric instrument unavailable", slog.String("error", err.Error()))
	}
	if m.edgesFitted, err = meter.Int64Counter("surveykit.pipeline.edges_fitted",
		metric.WithDescription("Path model edges fitted, including variants"),
		metric.WithUnit("{edge}")); err != nil {
		logger.Warn("metric instrument unavailable", slog.String("error", err.Error()))
	}
	if m.segmentsFit, err = meter.Int64Counter("surveykit.pipeline.segments_refit",
		metric.WithDescription("Segments refit during stratification"),
		metric.WithUnit("{segment}")); err != nil {
		logger.Warn("metric instrument unavailable", slog.String("error", err.Error()))
	}
	if m.runDuration, err = meter.Float64Histogram("surveykit.pipeline.run_duration",
		metric.WithDescription("Wall-clock duration of a full analysis run"),
		metric.WithUnit("s")); err != nil {
		logger.Warn("metric instrument unavailable", slog.String("error", err.Error()))
	}
	return m
}

func (m runnerMetrics) observeRecode(ctx context.Context, rows, issues int) {
	if m.rowsRecoded != nil {
		m.rowsRecoded.Add(ctx, int64(rows))
	}
	if m.recodeIssues != nil {
		m.recodeIssues.Add(ctx, int64(issues))
	}
}

func (m runnerMetrics) observeFit(ctx context.Context, model string, edges int) {
	if m.edgesFitted != nil {
		m.edgesFitted.Add(ctx, int64(edges),
			metric.WithAttributes(attribute.String("model", model)))
	}
}

func (m runnerMetrics) observeSegments(ctx context.Context, field string, count int) {
	if m.segmentsFit != nil {
		m.segmentsFit.Add(ctx, int64(count),
			metric.WithAttributes(attribute.String("field", field)))
	}
}

func (m runnerMetrics) observeRun(ctx context.Context, study string, elapsed time.Duration) {
	if m.runDuration != nil {
		m.runDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("study", study)))
	}
}
