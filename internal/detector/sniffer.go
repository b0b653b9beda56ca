// Package detector identifies which registered report format a delimited
// file uses. It sniffs the CSV dialect and header presence from a leading
// byte sample, scores the sampled headers against every profile in the
// format registry, and reports the best match with a confidence score and
// per-column mapping diagnostics.
package detector

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"report-normalization-service/internal/models"
)

// sniffSampleSize is how many leading bytes are examined for dialect and
// header detection.
const sniffSampleSize = 4096

// Dialect describes the sniffed shape of a delimited file.
type Dialect struct {
	Delimiter rune
	HasHeader bool
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// SniffDialect detects the field delimiter and header presence from a
// leading sample of the file.
func SniffDialect(sample []byte) *Dialect {
	lines := strings.Split(string(sample), "\n")
	firstLine := ""
	for _, line := range lines {
		line = cleanLine(line)
		if line != "" {
			firstLine = line
			break
		}
	}

	delimiter := detectDelimiter(firstLine)
	dialect := &Dialect{Delimiter: delimiter}

	rows := readSampleRows(sample, delimiter, 3)
	dialect.HasHeader = looksLikeHeader(rows)
	return dialect
}

// detectDelimiter picks the candidate delimiter occurring most often in
// the first line, defaulting to comma.
func detectDelimiter(line string) rune {
	best := ','
	bestCount := 0
	for _, d := range delimiterCandidates {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

// looksLikeHeader reports whether the first sampled row reads as a header:
// none of its cells parse as a number or date, while at least one cell in
// the following data rows does. A file that opens with numeric or date
// cells is treated as headerless.
func looksLikeHeader(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}

	for _, cell := range rows[0] {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		if models.LooksNumeric(trimmed) || models.LooksDate(trimmed) {
			return false
		}
	}

	if len(rows) == 1 {
		// A single all-text row with multiple columns is taken as a header.
		return len(rows[0]) > 1
	}

	for _, row := range rows[1:] {
		for _, cell := range row {
			trimmed := strings.TrimSpace(cell)
			if trimmed == "" {
				continue
			}
			if models.LooksNumeric(trimmed) || models.LooksDate(trimmed) {
				return true
			}
		}
	}

	// Data rows are all text too; fall back to treating the first row as a
	// header, which lets profile scoring decide.
	return true
}

// readSampleRows parses up to maxRows records from the sample with the
// given delimiter, tolerating ragged and partially truncated rows.
func readSampleRows(sample []byte, delimiter rune, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(sample))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The sample may cut a quoted field short; skip the bad record.
			continue
		}
		rows = append(rows, record)
	}
	return rows
}

func cleanLine(line string) string {
	line = strings.TrimRight(line, "\r")
	line = strings.TrimPrefix(line, "\uFEFF")
	return strings.TrimSpace(line)
}
