// Package exporter writes execution listings as CSV or XLSX downloads.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// Column extracts a single cell value from an execution
type Column func(e *domain.Execution) string

// AvailableColumns returns the map of available export columns
func AvailableColumns() map[string]Column {
	return map[string]Column{
		"ID":       func(e *domain.Execution) string { return e.ID.String() },
		"Name":     func(e *domain.Execution) string { return e.Name },
		"Status":   func(e *domain.Execution) string { return string(e.Status) },
		"Bucket":   func(e *domain.Execution) string { return e.Config.S3Bucket },
		"Key":      func(e *domain.Execution) string { return e.Config.S3Key },
		"Endpoint": func(e *domain.Execution) string { return e.Config.EndpointName },
		"Threshold": func(e *domain.Execution) string {
			return fmt.Sprintf("%.2f", e.Config.Threshold)
		},
		"Inferences": func(e *domain.Execution) string {
			return strings.Join(e.Result.Inferences, ", ")
		},
		"Top Score": func(e *domain.Execution) string {
			return fmt.Sprintf("%.4f", e.Result.TopScore)
		},
		"Passed": func(e *domain.Execution) string {
			if e.Result.Passed {
				return "yes"
			}
			return "no"
		},
		"Worker": func(e *domain.Execution) string {
			if e.WorkerID != nil {
				return *e.WorkerID
			}
			return ""
		},
		"Created At": func(e *domain.Execution) string {
			return e.CreatedAt.Format(time.RFC3339)
		},
		"Completed At": func(e *domain.Execution) string {
			if e.CompletedAt != nil {
				return e.CompletedAt.Format(time.RFC3339)
			}
			return ""
		},
		"Error": func(e *domain.Execution) string {
			if e.ErrorMessage != nil {
				return *e.ErrorMessage
			}
			return ""
		},
	}
}

// DefaultColumns is the export column order when none is requested
var DefaultColumns = []string{
	"ID", "Name", "Status", "Bucket", "Key",
	"Threshold", "Inferences", "Top Score", "Passed",
	"Created At", "Completed At", "Error",
}

// SelectColumns filters a comma-separated column request against the
// available columns, falling back to DefaultColumns.
func SelectColumns(requested string) []string {
	available := AvailableColumns()

	if requested == "" {
		return DefaultColumns
	}

	var selected []string
	for _, col := range strings.Split(requested, ",") {
		col = strings.TrimSpace(col)
		if _, ok := available[col]; ok {
			selected = append(selected, col)
		}
	}

	if len(selected) == 0 {
		return DefaultColumns
	}

	return selected
}

// WriteCSV writes executions as CSV
func WriteCSV(w io.Writer, execs []*domain.Execution, columns []string) error {
	available := AvailableColumns()

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(columns); err != nil {
		return err
	}

	for _, exec := range execs {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = available[col](exec)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes executions as an Excel workbook
func WriteXLSX(w io.Writer, execs []*domain.Execution, columns []string) error {
	available := AvailableColumns()

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Executions"
	f.SetSheetName("Sheet1", sheetName)

	// Write header row
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
	}

	// Style the header
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
	f.SetCellStyle(sheetName, "A1", lastCol, headerStyle)

	for rowIdx, exec := range execs {
		for i, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, available[col](exec))
		}
	}

	// Approximate column widths
	for i := range columns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 15)
	}

	return f.Write(w)
}
