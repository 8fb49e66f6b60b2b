package survey

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// RawResponse is one respondent's raw survey answers, keyed by field
// name. Values are the raw cell strings, possibly sentinel-coded.
type RawResponse struct {
	ID     string
	Fields map[string]string
}

// FieldValue is one recoded field: a validated numeric value, a
// validated categorical label, or explicitly missing (Present=false).
type FieldValue struct {
	Num     float64 `json:"num,omitempty"`
	Label   string  `json:"label,omitempty"`
	Present bool    `json:"present"`
	Clamped bool    `json:"clamped,omitempty"`
}

// RecodedResponse is the validated form of one RawResponse. Created
// once per raw row and read-only thereafter.
type RecodedResponse struct {
	ID     string
	Fields map[string]FieldValue
}

// Numeric returns the recoded numeric value of a field, if present.
func (r RecodedResponse) Numeric(field string) (float64, bool) {
	v, ok := r.Fields[field]
	if !ok || !v.Present || v.Label != "" {
		return 0, false
	}
	return v.Num, true
}

// Label returns the recoded categorical label of a field, if present.
func (r RecodedResponse) Label(field string) (string, bool) {
	v, ok := r.Fields[field]
	if !ok || !v.Present {
		return "", false
	}
	return v.Label, true
}

// Issue records a non-fatal recoding event on a single field. Issues
// never abort the rest of the row.
type Issue struct {
	RespondentID string `json:"respondent_id"`
	Field        string `json:"field"`
	Raw          string `json:"raw"`
	Reason       string `json:"reason"`
}

// Issue reasons.
const (
	ReasonOutOfRangeClamped = "out-of-range-clamped"
	ReasonUnmappedCategory  = "unmapped-category"
	ReasonUnparseable       = "unparseable"
)

// DerivationKind selects how a derived bucket field is computed.
type DerivationKind string

const (
	// DeriveAgeGroup buckets a numeric age into age-group labels.
	DeriveAgeGroup DerivationKind = "age_group"
	// DeriveRecencyLabel maps a recoded visit-recency code to its label.
	DeriveRecencyLabel DerivationKind = "recency_label"
	// DeriveRegion maps a prefecture code to Local/Domestic.
	DeriveRegion DerivationKind = "region"
)

// Derivation declares a derived bucket field computed from an
// already-recoded source field, so missing and clamping handling
// happens exactly once, on the source.
type Derivation struct {
	Target string         `yaml:"target" json:"target"`
	Source string         `yaml:"source" json:"source"`
	Kind   DerivationKind `yaml:"kind" json:"kind"`
}

// localPrefectureCodes are the greater-Tokyo and major prefectures
// treated as the Local region.
var localPrefectureCodes = map[int]bool{
	1: true, 11: true, 12: true, 13: true, 14: true,
	23: true, 27: true, 40: true,
}

// recencyLabels maps visit-recency codes to their documented labels.
var recencyLabels = map[int]string{
	1: "within last month",
	2: "2-3 months ago",
	3: "4-6 months ago",
	4: "7-12 months ago",
	5: "2 years ago",
	6: "3 years ago",
	7: "4-5 years ago",
	8: "6+ years ago",
	9: "never",
}

// Recoder maps raw survey codes to validated values per the scale
// definitions it was constructed with.
type Recoder struct {
	registry    *Registry
	derivations []Derivation
	logger      *slog.Logger
}

// NewRecoder creates a recoder over an immutable registry. Derivations
// run after all declared fields are recoded.
func NewRecoder(registry *Registry, derivations []Derivation, logger *slog.Logger) *Recoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recoder{registry: registry, derivations: derivations, logger: logger}
}

// Recode transforms one raw response. Fields without a scale definition
// are skipped. Recoding errors are recovered per field and reported as
// issues; missing data is a valid steady state, not a failure.
func (rc *Recoder) Recode(raw RawResponse) (RecodedResponse, []Issue) {
	out := RecodedResponse{
		ID:     raw.ID,
		Fields: make(map[string]FieldValue, len(raw.Fields)),
	}
	var issues []Issue

	for field, rawVal := range raw.Fields {
		def, ok := rc.registry.Lookup(field)
		if !ok {
			continue
		}
		val, issue := recodeField(def, rawVal)
		if issue != nil {
			issue.RespondentID = raw.ID
			issue.Field = field
			issues = append(issues, *issue)
		}
		out.Fields[field] = val
	}

	for _, d := range rc.derivations {
		out.Fields[d.Target] = derive(d, out)
	}

	if len(issues) > 0 {
		rc.logger.Debug("recoded row with issues",
			slog.String("respondent_id", raw.ID),
			slog.Int("issues", len(issues)))
	}
	return out, issues
}

// RecodeAll recodes a batch of raw rows, collecting all issues.
func (rc *Recoder) RecodeAll(rows []RawResponse) ([]RecodedResponse, []Issue) {
	out := make([]RecodedResponse, 0, len(rows))
	var issues []Issue
	for _, raw := range rows {
		rec, rowIssues := rc.Recode(raw)
		out = append(out, rec)
		issues = append(issues, rowIssues...)
	}
	rc.logger.Info("recoded survey batch",
		slog.Int("rows", len(rows)),
		slog.Int("issues", len(issues)))
	return out, issues
}

func recodeField(def ScaleDefinition, raw string) (FieldValue, *Issue) {
	trimmed := strings.TrimSpace(raw)
	if def.isSentinel(trimmed) {
		return FieldValue{}, nil
	}

	switch def.Kind {
	case ScaleCategorical:
		label, ok := def.Categories[trimmed]
		if !ok {
			return FieldValue{}, &Issue{Raw: raw, Reason: ReasonUnmappedCategory}
		}
		return FieldValue{Label: label, Present: true}, nil

	case ScaleBinary:
		switch strings.ToLower(trimmed) {
		case "yes", "1", "true":
			return FieldValue{Num: 1, Present: true}, nil
		case "no", "0", "false":
			return FieldValue{Num: 0, Present: true}, nil
		default:
			return FieldValue{}, &Issue{Raw: raw, Reason: ReasonUnparseable}
		}

	default:
		num, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return FieldValue{}, &Issue{Raw: raw, Reason: ReasonUnparseable}
		}
		min, max := def.rawRange()
		clamped := false
		if num < min {
			num, clamped = min, true
		} else if num > max {
			num, clamped = max, true
		}
		if def.Kind == ScaleLikert5 && def.RescaleTo7 {
			num = (num-1)*1.5 + 1
		}
		val := FieldValue{Num: num, Present: true, Clamped: clamped}
		if clamped {
			return val, &Issue{Raw: raw, Reason: ReasonOutOfRangeClamped}
		}
		return val, nil
	}
}

func derive(d Derivation, resp RecodedResponse) FieldValue {
	src, ok := resp.Numeric(d.Source)
	if !ok {
		return FieldValue{}
	}
	switch d.Kind {
	case DeriveAgeGroup:
		return FieldValue{Label: ageGroup(src), Present: true}
	case DeriveRecencyLabel:
		if label, ok := recencyLabels[int(src)]; ok {
			return FieldValue{Label: label, Present: true}
		}
		return FieldValue{}
	case DeriveRegion:
		if localPrefectureCodes[int(src)] {
			return FieldValue{Label: "Local", Present: true}
		}
		return FieldValue{Label: "Domestic", Present: true}
	default:
		return FieldValue{}
	}
}

func ageGroup(age float64) string {
	switch {
	case age < 18:
		return "under 18"
	case age < 25:
		return "18-24"
	case age < 35:
		return "25-34"
	case age < 45:
		return "35-44"
	case age < 55:
		return "45-54"
	default:
		return "55+"
	}
}

// FormatNumeric renders a recoded numeric value back to its canonical
// raw string form, used by the idempotence property tests.
func FormatNumeric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String implements fmt.Stringer for log output.
func (r RecodedResponse) String() string {
	return fmt.Sprintf("recoded(%s, %d fields)", r.ID, len(r.Fields))
}
