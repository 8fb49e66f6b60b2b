// Package ingest loads raw survey responses and scale dictionaries
// from CSV and Excel workbooks.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"surveykit/internal/errors"
	"surveykit/internal/survey"
)

// respondentIDColumns are the header names accepted for the respondent
// identifier, checked case-insensitively.
var respondentIDColumns = []string{"respondent_id", "respondentid", "id", "caseid"}

// Reader loads raw responses from delimited files and workbooks.
type Reader struct {
	logger *slog.Logger
}

// NewReader constructs a reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// ReadCSVFile opens path and delegates to ReadCSV.
func (r *Reader) ReadCSVFile(path string) ([]survey.RawResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open responses file: %w", err)
	}
	defer f.Close()
	resps, err := r.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return resps, nil
}

// ReadCSV parses a header-first CSV of survey responses. Every column
// becomes a raw field; values stay strings so the recoder owns all
// interpretation. Rows without a respondent ID get a synthetic
// row-number ID.
func (r *Reader) ReadCSV(src io.Reader) ([]survey.RawResponse, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.CodeIngest, "responses file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIngest, "read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	idCol := findIDColumn(header)

	var resps []survey.RawResponse
	rowNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeIngest, "read row %d", rowNum)
		}
		resp := survey.RawResponse{Fields: make(map[string]string, len(header))}
		for i, cell := range record {
			if i >= len(header) || header[i] == "" {
				continue
			}
			resp.Fields[header[i]] = strings.TrimSpace(cell)
		}
		if idCol >= 0 && idCol < len(record) {
			resp.ID = strings.TrimSpace(record[idCol])
		}
		if resp.ID == "" {
			resp.ID = "row-" + strconv.Itoa(rowNum)
		}
		resps = append(resps, resp)
		rowNum++
	}

	if len(resps) == 0 {
		return nil, errors.New(errors.CodeIngest, "responses file has a header but no rows")
	}
	r.logger.Info("loaded responses",
		slog.Int("rows", len(resps)),
		slog.Int("columns", len(header)))
	return resps, nil
}

func findIDColumn(header []string) int {
	for i, name := range header {
		lower := strings.ToLower(name)
		for _, candidate := range respondentIDColumns {
			if lower == candidate {
				return i
			}
		}
	}
	return -1
}
