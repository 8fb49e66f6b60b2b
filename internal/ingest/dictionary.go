package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"surveykit/internal/errors"
	"surveykit/internal/survey"
)

// ReadDictionaryFile opens path and delegates to ReadDictionary.
func (r *Reader) ReadDictionaryFile(path string) ([]survey.ScaleDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary file: %w", err)
	}
	defer f.Close()
	defs, err := r.ReadDictionary(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return defs, nil
}

// ReadDictionary parses a data-dictionary CSV into scale definitions.
// Expected columns: field, kind, then optional sentinels
// (semicolon-separated), categories (code=label pairs separated by
// semicolons), rescale_to_7, min, max. Column order is taken from the
// header; unknown columns are ignored.
func (r *Reader) ReadDictionary(src io.Reader) ([]survey.ScaleDefinition, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.CodeIngest, "dictionary file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIngest, "read dictionary header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["field"]; !ok {
		return nil, errors.New(errors.CodeIngest, "dictionary is missing a field column")
	}
	if _, ok := cols["kind"]; !ok {
		return nil, errors.New(errors.CodeIngest, "dictionary is missing a kind column")
	}

	var defs []survey.ScaleDefinition
	rowNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeIngest, "read dictionary row %d", rowNum)
		}
		def, err := parseDefinition(cols, record)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeIngest, "dictionary row %d", rowNum)
		}
		defs = append(defs, def)
		rowNum++
	}
	if len(defs) == 0 {
		return nil, errors.New(errors.CodeIngest, "dictionary has a header but no rows")
	}
	return defs, nil
}

func parseDefinition(cols map[string]int, record []string) (survey.ScaleDefinition, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	def := survey.ScaleDefinition{
		Field: cell("field"),
		Kind:  survey.ScaleKind(strings.ToLower(cell("kind"))),
	}
	if s := cell("sentinels"); s != "" {
		def.Sentinels = splitList(s)
	}
	if c := cell("categories"); c != "" {
		def.Categories = make(map[string]string)
		for _, pair := range splitList(c) {
			code, label, ok := strings.Cut(pair, "=")
			if !ok {
				return def, fmt.Errorf("category %q is not code=label", pair)
			}
			def.Categories[strings.TrimSpace(code)] = strings.TrimSpace(label)
		}
	}
	if v := cell("rescale_to_7"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def, fmt.Errorf("rescale_to_7 %q is not a boolean", v)
		}
		def.RescaleTo7 = b
	}
	for _, bound := range []struct {
		name string
		dst  *float64
	}{{"min", &def.Min}, {"max", &def.Max}} {
		if v := cell(bound.name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return def, fmt.Errorf("%s %q is not numeric", bound.name, v)
			}
			*bound.dst = f
		}
	}
	return def, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
