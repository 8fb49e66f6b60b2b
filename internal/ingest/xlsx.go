package ingest

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"surveykit/internal/errors"
	"surveykit/internal/survey"
)

// responseSheetNames are tried first when locating the data sheet in a
// fielding-house workbook; export tools disagree on the name.
var responseSheetNames = []string{"Responses", "responses", "Data", "data", "Sheet1"}

// ReadXLSXFile loads raw responses from an Excel workbook. The data
// sheet is found by name, falling back to the first sheet whose header
// row carries a respondent ID column.
func (r *Reader) ReadXLSXFile(path string) ([]survey.RawResponse, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, sheet, err := findResponseSheet(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r.logger.Info("found response sheet",
		slog.String("file", path),
		slog.String("sheet", sheet),
		slog.Int("rows", len(rows)))

	return rowsToResponses(rows)
}

func findResponseSheet(f *excelize.File) ([][]string, string, error) {
	for _, name := range responseSheetNames {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		return rows, name, nil
	}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		if findIDColumn(rows[0]) >= 0 {
			return rows, name, nil
		}
	}
	return nil, "", errors.New(errors.CodeIngest, "no response sheet found in workbook")
}

func rowsToResponses(rows [][]string) ([]survey.RawResponse, error) {
	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	idCol := findIDColumn(header)

	resps := make([]survey.RawResponse, 0, len(rows)-1)
	for rowNum, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		resp := survey.RawResponse{Fields: make(map[string]string, len(header))}
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			resp.Fields[header[i]] = strings.TrimSpace(cell)
		}
		if idCol >= 0 && idCol < len(row) {
			resp.ID = strings.TrimSpace(row[idCol])
		}
		if resp.ID == "" {
			resp.ID = "row-" + strconv.Itoa(rowNum+1)
		}
		resps = append(resps, resp)
	}
	if len(resps) == 0 {
		return nil, errors.New(errors.CodeIngest, "response sheet has a header but no rows")
	}
	return resps, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
