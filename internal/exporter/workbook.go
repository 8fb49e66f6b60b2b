package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"surveykit/internal/config"
	"surveykit/internal/errors"
)

// WorkbookWriter bundles result tables into one Excel workbook, one
// sheet per table, for analysts who live in Excel.
type WorkbookWriter struct {
	paths  config.PathsConfig
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer rooted at the output
// directory.
func NewWorkbookWriter(paths config.PathsConfig, logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{paths: paths, logger: logger}
}

// Write saves the tables to fileName. Each table becomes a sheet named
// after the table, header row bolded, and the default Sheet1 is
// replaced by the first table's sheet.
func (w *WorkbookWriter) Write(fileName string, tables []Table) error {
	if len(tables) == 0 {
		return errors.New(errors.CodeConfiguration, "no tables to write")
	}

	fullPath := fileName
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(w.paths.OutputDir, fileName)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, table := range tables {
		sheet := table.Name
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename first sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}

		if err := writeSheetRow(f, sheet, 1, table.Headers); err != nil {
			return err
		}
		lastCol, err := excelize.CoordinatesToCellName(len(table.Headers), 1)
		if err != nil {
			return fmt.Errorf("sheet %q header range: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, "A1", lastCol, headerStyle); err != nil {
			return fmt.Errorf("style sheet %q header: %w", sheet, err)
		}
		for r, record := range table.Records {
			if err := writeSheetRow(f, sheet, r+2, record); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	w.logger.Info("wrote workbook",
		slog.String("path", fullPath),
		slog.Int("sheets", len(tables)))
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("sheet %q row %d: %w", sheet, row, err)
	}
	vals := make([]any, len(cells))
	for i, c := range cells {
		vals[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("sheet %q row %d: %w", sheet, row, err)
	}
	return nil
}
