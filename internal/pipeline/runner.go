package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"surveykit/internal/clusters"
	"surveykit/internal/config"
	"surveykit/internal/dataset"
	"surveykit/internal/errors"
	"surveykit/internal/factors"
	"surveykit/internal/ingest"
	"surveykit/internal/mediation"
	"surveykit/internal/pathmodel"
	"surveykit/internal/segments"
	"surveykit/internal/survey"
)

// FitIndex is one row of the fit-indices table: the explained variance
// of one outcome under one named model variant.
type FitIndex struct {
	Model       string              `json:"model"`
	Outcome     string              `json:"outcome"`
	N           int                 `json:"n"`
	RSquared    float64             `json:"r_squared"`
	AdjRSquared float64             `json:"adj_r_squared"`
	Status      pathmodel.FitStatus `json:"status"`
}

// Results aggregates everything one analysis run produces.
type Results struct {
	RunID       string                     `json:"run_id"`
	Study       string                     `json:"study"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Respondents int                        `json:"respondents"`
	Issues      []survey.Issue             `json:"issues,omitempty"`
	Reliability []survey.ReliabilityResult `json:"reliability"`
	Model       *pathmodel.FitResult       `json:"model"`
	FitIndices  []FitIndex                 `json:"fit_indices"`
	Mediation   []mediation.Result         `json:"mediation"`
	Segments    []segments.SegmentResult   `json:"segments,omitempty"`
	Factors     *factors.Solution          `json:"factors,omitempty"`
	Clusters    *clusters.Grouping         `json:"clusters,omitempty"`
}

// Runner wires the stages together. All collaborators are built from
// configuration at construction time.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics runnerMetrics
	reader  *ingest.Reader
	fitter  *pathmodel.Fitter
}

// NewRunner builds a runner from configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("surveykit/pipeline"),
		metrics: newRunnerMetrics(logger),
		reader:  ingest.NewReader(logger),
		fitter:  pathmodel.NewFitter(cfg.Analysis.MinSampleSize, logger),
	}
}

// Run loads the plan, dictionary, and responses from the configured
// paths and executes the full pipeline.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	plan, err := LoadPlan(r.cfg.Paths.PlanFile)
	if err != nil {
		return nil, err
	}
	defs, err := r.reader.ReadDictionaryFile(r.cfg.Paths.DictionaryFile)
	if err != nil {
		return nil, err
	}
	raw, err := r.readResponses(r.cfg.Paths.ResponsesFile)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan, defs, raw)
}

func (r *Runner) readResponses(path string) ([]survey.RawResponse, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return r.reader.ReadXLSXFile(path)
	}
	return r.reader.ReadCSVFile(path)
}

// Execute runs every analysis stage over already-loaded inputs.
func (r *Runner) Execute(ctx context.Context, plan *Plan, defs []survey.ScaleDefinition, raw []survey.RawResponse) (*Results, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.Execute",
		trace.WithAttributes(
			attribute.String("study", plan.Study),
			attribute.Int("respondents", len(raw))))
	defer span.End()

	start := time.Now()
	defer func() { r.metrics.observeRun(ctx, plan.Study, time.Since(start)) }()

	results := &Results{
		RunID:       uuid.NewString(),
		Study:       plan.Study,
		GeneratedAt: time.Now().UTC(),
		Respondents: len(raw),
	}
	logger := r.logger.With(slog.String("run_id", results.RunID))
	logger.InfoContext(ctx, "starting analysis run",
		slog.String("study", plan.Study),
		slog.Int("respondents", len(raw)),
		slog.Int("fields", len(defs)))

	registry, err := survey.NewRegistry(defs)
	if err != nil {
		return nil, err
	}

	recoded, issues := r.recode(ctx, registry, plan, raw, logger)
	results.Issues = issues

	ds, err := r.prepare(ctx, registry, plan, recoded, results, logger)
	if err != nil {
		return nil, err
	}

	if err := r.fit(ctx, ds, plan, results, logger); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "analysis run complete",
		slog.Int("recode_issues", len(issues)),
		slog.Int("fit_indices", len(results.FitIndices)),
		slog.Int("mediation_chains", len(results.Mediation)),
		slog.Int("segments", len(results.Segments)))
	return results, nil
}

func (r *Runner) recode(ctx context.Context, registry *survey.Registry, plan *Plan, raw []survey.RawResponse, logger *slog.Logger) ([]survey.RecodedResponse, []survey.Issue) {
	ctx, span := r.tracer.Start(ctx, "pipeline.recode")
	defer span.End()

	recoder := survey.NewRecoder(registry, plan.Derivations, logger)
	recoded, issues := recoder.RecodeAll(raw)
	span.SetAttributes(attribute.Int("issues", len(issues)))
	r.metrics.observeRecode(ctx, len(recoded), len(issues))
	logger.InfoContext(ctx, "recoded responses",
		slog.Int("rows", len(recoded)),
		slog.Int("issues", len(issues)))
	return recoded, issues
}

// prepare builds the analysis dataset: recoded columns, composites,
// reliability, top-box transforms, and factor scores.
func (r *Runner) prepare(ctx context.Context, registry *survey.Registry, plan *Plan, recoded []survey.RecodedResponse, results *Results, logger *slog.Logger) (*dataset.Dataset, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.prepare")
	defer span.End()

	labelFields := registry.LabelFields()
	for _, d := range plan.Derivations {
		labelFields = append(labelFields, d.Target)
	}
	ds := dataset.FromRecoded(recoded, registry.NumericFields(), labelFields)

	if len(plan.Composites) > 0 {
		composites := make([]survey.CompositeIndex, len(plan.Composites))
		copy(composites, plan.Composites)
		for i := range composites {
			if composites[i].MinPresent == 0 {
				composites[i].MinPresent = r.cfg.Analysis.CompositeMinPresent
			}
		}
		builder, err := survey.NewCompositeBuilder(registry, composites, logger)
		if err != nil {
			return nil, err
		}
		scores := builder.ScoreAll(recoded)
		for _, idx := range composites {
			if err := ds.AddComposite(idx.Name, scores[idx.Name]); err != nil {
				return nil, err
			}
			if len(idx.Items) < 2 {
				continue
			}
			rel, err := survey.CronbachAlpha(recoded, idx, r.cfg.Analysis.MinAlpha)
			if err != nil {
				logger.WarnContext(ctx, "reliability check skipped",
					slog.String("index", idx.Name),
					slog.String("error", err.Error()))
				continue
			}
			results.Reliability = append(results.Reliability, rel)
		}
	}

	for _, tb := range plan.TopBox {
		top := tb.Top
		if top == 0 {
			def, ok := registry.Lookup(tb.Source)
			if !ok {
				return nil, errors.Newf(errors.CodeConfiguration,
					"top-box source %q is not a defined field", tb.Source)
			}
			_, top = def.Range()
		}
		if err := ds.TopBox(tb.Source, tb.Target, top); err != nil {
			return nil, err
		}
	}

	if len(plan.Factors.Items) > 0 {
		count := plan.Factors.Count
		if count == 0 {
			count = r.cfg.Analysis.FactorCount
		}
		extractor, err := factors.NewExtractor(count, logger)
		if err != nil {
			return nil, err
		}
		sol, err := extractor.Extract(ctx, ds, plan.Factors.Items)
		if err != nil {
			return nil, fmt.Errorf("factor extraction: %w", err)
		}
		if err := sol.AttachScores(ds, plan.Factors.Prefix); err != nil {
			return nil, err
		}
		results.Factors = sol
	}

	if len(plan.Clusters.Items) > 0 {
		minK, maxK := plan.Clusters.MinK, plan.Clusters.MaxK
		if minK == 0 {
			minK = 3
		}
		if maxK == 0 {
			maxK = 7
		}
		grouper, err := clusters.NewGrouper(minK, maxK, logger)
		if err != nil {
			return nil, err
		}
		grouping, err := grouper.Group(ctx, ds, plan.Clusters.Items)
		if err != nil {
			return nil, fmt.Errorf("cluster analysis: %w", err)
		}
		prefix := plan.Clusters.Prefix
		if prefix == "" {
			prefix = "benefit_cluster"
		}
		if err := grouping.AttachScores(ds, prefix); err != nil {
			return nil, err
		}
		results.Clusters = grouping
	}
	return ds, nil
}

// fit runs the main model, the named variants, mediation chains, and
// segment refits.
func (r *Runner) fit(ctx context.Context, ds *dataset.Dataset, plan *Plan, results *Results, logger *slog.Logger) error {
	fit, err := r.fitter.Fit(ctx, ds, plan.Model)
	if err != nil {
		return err
	}
	results.Model = fit
	results.FitIndices = appendFitIndices(results.FitIndices, fit)
	r.metrics.observeFit(ctx, fit.ModelName, len(fit.Edges))

	for _, variant := range plan.Variants {
		vfit, err := r.fitter.Fit(ctx, ds, variant)
		if err != nil {
			return fmt.Errorf("variant %q: %w", variant.Name, err)
		}
		results.FitIndices = appendFitIndices(results.FitIndices, vfit)
		r.metrics.observeFit(ctx, vfit.ModelName, len(vfit.Edges))
	}

	if len(plan.Mediations) > 0 {
		analyzer := mediation.NewAnalyzer(r.fitter, logger)
		results.Mediation, err = analyzer.AnalyzeAll(ctx, ds, plan.Mediations)
		if err != nil {
			return err
		}
	}

	field := plan.SegmentField
	if field == "" {
		field = r.cfg.Analysis.SegmentField
	}
	if _, ok := ds.Labels(field); ok {
		strat := segments.NewStratifier(r.fitter, r.cfg.Analysis.MaxConcurrentRefits, logger)
		results.Segments, err = strat.Stratify(ctx, ds, field, plan.Model)
		if err != nil {
			return err
		}
		r.metrics.observeSegments(ctx, field, len(results.Segments))
	} else {
		logger.InfoContext(ctx, "segment field absent, skipping stratification",
			slog.String("field", field))
	}
	return nil
}

func appendFitIndices(indices []FitIndex, fit *pathmodel.FitResult) []FitIndex {
	for _, edge := range fit.Edges {
		indices = append(indices, FitIndex{
			Model:       fit.ModelName,
			Outcome:     edge.Outcome,
			N:           edge.N,
			RSquared:    edge.RSquared,
			AdjRSquared: edge.AdjRSquared,
			Status:      edge.Status,
		})
	}
	return indices
}
