package pathmodel

import (
	"surveykit/internal/dataset"
	"surveykit/internal/errors"
)

// Validate checks a model spec against the dataset before any fitting
// starts. Violations are configuration errors, fatal by design: they
// indicate a programming mistake rather than a data-quality issue.
func Validate(ds *dataset.Dataset, spec ModelSpec) error {
	if len(spec.Edges) == 0 {
		return errors.Newf(errors.CodeConfiguration, "model %q has no edges", spec.Name)
	}

	outcomes := make(map[string]bool, len(spec.Edges))
	graph := make(map[string][]string)

	for _, edge := range spec.Edges {
		if !ds.HasNumeric(edge.Outcome) {
			return errors.Newf(errors.CodeConfiguration,
				"model %q: outcome %q not in dataset", spec.Name, edge.Outcome)
		}
		if outcomes[edge.Outcome] {
			return errors.Newf(errors.CodeConfiguration,
				"model %q: duplicate outcome %q", spec.Name, edge.Outcome)
		}
		outcomes[edge.Outcome] = true

		if len(edge.Predictors) == 0 {
			return errors.Newf(errors.CodeConfiguration,
				"model %q: edge for %q has no predictors", spec.Name, edge.Outcome)
		}
		seen := make(map[string]bool, len(edge.Predictors))
		for _, p := range edge.Predictors {
			if !ds.HasNumeric(p) {
				return errors.Newf(errors.CodeConfiguration,
					"model %q: predictor %q not in dataset", spec.Name, p)
			}
			if p == edge.Outcome {
				return errors.Newf(errors.CodeConfiguration,
					"model %q: %q predicts itself", spec.Name, p)
			}
			if seen[p] {
				return errors.Newf(errors.CodeConfiguration,
					"model %q: duplicate predictor %q for outcome %q", spec.Name, p, edge.Outcome)
			}
			seen[p] = true
			graph[p] = append(graph[p], edge.Outcome)
		}

		switch edge.Link {
		case "", LinkIdentity, LinkLogit:
		default:
			return errors.Newf(errors.CodeConfiguration,
				"model %q: unknown link %q", spec.Name, edge.Link)
		}
		switch edge.Penalty.Kind {
		case "", PenaltyNone:
		case PenaltyL1, PenaltyL2, PenaltyElasticNet:
			if edge.Penalty.Lambda <= 0 {
				return errors.Newf(errors.CodeConfiguration,
					"model %q: penalty %q needs lambda > 0", spec.Name, edge.Penalty.Kind)
			}
			if edge.Penalty.Kind == PenaltyElasticNet && (edge.Penalty.L1Ratio < 0 || edge.Penalty.L1Ratio > 1) {
				return errors.Newf(errors.CodeConfiguration,
					"model %q: elastic-net l1_ratio %v outside [0,1]", spec.Name, edge.Penalty.L1Ratio)
			}
		default:
			return errors.Newf(errors.CodeConfiguration,
				"model %q: unknown penalty %q", spec.Name, edge.Penalty.Kind)
		}
	}

	if cyclic(graph) {
		return errors.Newf(errors.CodeConfiguration, "model %q: edge set contains a cycle", spec.Name)
	}
	return nil
}

// cyclic detects a cycle in the predictor→outcome graph via recursive
// depth-first search with three-color marking.
func cyclic(graph map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray
		for _, next := range graph[node] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for node := range graph {
		if color[node] == white {
			if visit(node) {
				return true
			}
		}
	}
	return false
}
