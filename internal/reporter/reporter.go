// Package reporter renders detection and transformation results for
// operators. It supports human-readable console output for interactive
// use and JSON for programmatic consumption by upload workflows.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"report-normalization-service/internal/detector"
	"report-normalization-service/internal/models"
	"report-normalization-service/internal/transform"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Reporter writes detection and transformation reports.
type Reporter struct {
	Format OutputFormat
}

// New creates a reporter for the given output format, defaulting to
// console when the format is unknown.
func New(format OutputFormat) *Reporter {
	if !format.IsValid() {
		format = FormatConsole
	}
	return &Reporter{Format: format}
}

// WriteDetectionReport renders a detection result.
func (r *Reporter) WriteDetectionReport(w io.Writer, file string, result *detector.DetectionResult) error {
	if r.Format == FormatJSON {
		return writeJSON(w, map[string]interface{}{
			"file":   file,
			"result": result,
		})
	}

	fmt.Fprintf(w, "Detection report for %s\n", file)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	if result.Recognized() {
		fmt.Fprintf(w, "Format:     %s\n", result.FormatName)
		fmt.Fprintf(w, "Confidence: %.2f\n", result.Confidence)
		fmt.Fprintln(w, "\nColumn mapping:")
		for _, header := range sortedKeys(result.ColumnMap) {
			fmt.Fprintf(w, "  %-30s -> %-20s (%.2f)\n",
				header, result.ColumnMap[header], result.ConfidenceScores[header])
		}
	} else {
		fmt.Fprintln(w, "Format:     not recognized")
		if result.Metadata != nil {
			if reason, ok := result.Metadata["reason"]; ok {
				fmt.Fprintf(w, "Reason:     %v\n", reason)
			}
			if err, ok := result.Metadata["error"]; ok {
				fmt.Fprintf(w, "Error:      %v\n", err)
			}
			if candidates, ok := result.Metadata["top_candidates"].([]detector.CandidateScore); ok {
				fmt.Fprintln(w, "\nTop candidates:")
				for _, c := range candidates {
					fmt.Fprintf(w, "  %-30s %.2f\n", c.Format, c.Confidence)
				}
			}
		}
	}
	return nil
}

// WriteTransformReport renders a transformation result: the metadata
// summary plus, for CSV output, the canonical table itself.
func (r *Reporter) WriteTransformReport(w io.Writer, file string, table *models.Table, meta *transform.Metadata) error {
	switch r.Format {
	case FormatJSON:
		return writeJSON(w, map[string]interface{}{
			"file":     file,
			"metadata": meta,
			"rows":     table.RowCount(),
		})
	case FormatCSV:
		return writeTableCSV(w, table)
	}

	fmt.Fprintf(w, "Transformation report for %s\n", file)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Format:  %s\n", orDash(meta.Format))
	fmt.Fprintf(w, "Success: %t\n", meta.Success)
	fmt.Fprintf(w, "Rows:    %d\n", table.RowCount())
	if meta.Error != "" {
		fmt.Fprintf(w, "Error:   [%s] %s\n", meta.ErrorCode, meta.Error)
	}

	if len(meta.TransformationLog) > 0 {
		fmt.Fprintln(w, "\nPipeline audit:")
		for _, audit := range meta.TransformationLog {
			fmt.Fprintf(w, "  %-16s rows %d -> %d, columns %d -> %d\n",
				audit.Rule, audit.RowsBefore, audit.RowsAfter,
				audit.ColumnsBefore, audit.ColumnsAfter)
		}
	}

	if len(meta.ValidationErrors) > 0 {
		fmt.Fprintln(w, "\nValidation findings:")
		for _, finding := range meta.ValidationErrors {
			fmt.Fprintf(w, "  [%s] %s: %s\n", finding.Type, finding.Column, finding.Message)
		}
	}
	return nil
}

// writeTableCSV writes the canonical table as CSV with a header row.
func writeTableCSV(w io.Writer, table *models.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return err
	}
	for i := range table.Rows {
		record := make([]string, len(table.Columns))
		for j, column := range table.Columns {
			if cell := table.Get(i, column); cell != nil {
				record[j] = *cell
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(w io.Writer, payload interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
