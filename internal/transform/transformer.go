package transform

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"report-normalization-service/internal/detector"
	"report-normalization-service/internal/formats"
	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/errors"
	"report-normalization-service/pkg/logger"
)

// RuleAudit records one pipeline step's before/after shape for the
// transformation log.
type RuleAudit struct {
	Rule          string `json:"rule"`
	RowsBefore    int    `json:"rows_before"`
	RowsAfter     int    `json:"rows_after"`
	ColumnsBefore int    `json:"columns_before"`
	ColumnsAfter  int    `json:"columns_after"`
}

// Metadata is the diagnostics object returned alongside every transformed
// table. Success means the pipeline ran and validation found no issues;
// validation findings annotate the output, they do not suppress it.
type Metadata struct {
	Success             bool                `json:"success"`
	Format              string              `json:"format,omitempty"`
	DetectionConfidence float64             `json:"detection_confidence,omitempty"`
	Error               string              `json:"error,omitempty"`
	ErrorCode           errors.ErrorCode    `json:"error_code,omitempty"`
	TransformationLog   []RuleAudit         `json:"transformation_log,omitempty"`
	ValidationErrors    []ValidationFinding `json:"validation_errors,omitempty"`
}

// ReportTransformer owns the per-format rule pipelines and produces
// canonical-schema tables from source report files. The registry and
// detector are injected so callers control scope and persistence; a
// transformer holds no other state.
type ReportTransformer struct {
	registry  *formats.FormatRegistry
	detector  *detector.Detector
	pipelines map[string][]Rule
	logger    logger.Logger
}

// NewReportTransformer creates a transformer over the given registry with
// the default pipelines for the built-in formats registered.
func NewReportTransformer(registry *formats.FormatRegistry) *ReportTransformer {
	t := &ReportTransformer{
		registry:  registry,
		detector:  detector.New(registry),
		pipelines: make(map[string][]Rule),
		logger:    logger.GetGlobalLogger().WithComponent("report_transformer"),
	}
	for format, rules := range DefaultPipelines() {
		t.pipelines[format] = rules
	}
	return t
}

// RegisterPipeline binds an ordered rule list to a format name, replacing
// any existing pipeline.
func (t *ReportTransformer) RegisterPipeline(format string, rules []Rule) {
	t.pipelines[format] = rules
}

// HasPipeline reports whether a pipeline is registered for the format.
// Detection success does not guarantee one exists: pipelines are curated,
// profiles can be ad hoc.
func (t *ReportTransformer) HasPipeline(format string) bool {
	_, ok := t.pipelines[format]
	return ok
}

// Transform produces a canonical-schema table from the source file. When
// formatName is empty the detector resolves it; an unrecognized file (or a
// recognized format without a pipeline) yields an empty table with a
// structured error in the metadata. Transform never returns a raw error:
// all failures are encoded in the metadata so batch callers can continue.
func (t *ReportTransformer) Transform(path, formatName string) (*models.Table, *Metadata) {
	log := t.logger.WithField("file", path)
	meta := &Metadata{}

	if formatName == "" {
		detection := t.detector.DetectFormat(path)
		if !detection.Recognized() {
			log.WithField("metadata", detection.Metadata).Info("Format not recognized")
			meta.Error = errors.DetectionError(errors.CodeFormatNotRecognized, path, nil).Error()
			meta.ErrorCode = errors.CodeFormatNotRecognized
			return models.NewCanonicalTable(), meta
		}
		formatName = detection.FormatName
		meta.DetectionConfidence = detection.Confidence
	}
	meta.Format = formatName

	pipeline, ok := t.pipelines[formatName]
	if !ok {
		log.WithField("format", formatName).Warn("No transformation pipeline registered")
		meta.Error = errors.TransformError(errors.CodePipelineMissing, formatName, nil).Error()
		meta.ErrorCode = errors.CodePipelineMissing
		return models.NewCanonicalTable(), meta
	}

	table, err := loadTable(path)
	if err != nil {
		log.WithError(err).Error("Failed to load report file")
		meta.Error = err.Error()
		meta.ErrorCode = errors.CodeInvalidFormat
		if nerr, ok := errors.AsNormalizerError(err); ok {
			meta.ErrorCode = nerr.Code
		}
		return models.NewCanonicalTable(), meta
	}

	for _, rule := range pipeline {
		audit := RuleAudit{
			Rule:          rule.Name(),
			RowsBefore:    table.RowCount(),
			ColumnsBefore: table.ColumnCount(),
		}
		table, err = rule.Apply(table)
		if err != nil {
			log.WithError(err).WithField("rule", rule.Name()).Error("Pipeline rule failed")
			meta.Error = errors.TransformError(errors.CodeRuleFailed, formatName, err).Error()
			meta.ErrorCode = errors.CodeRuleFailed
			return models.NewCanonicalTable(), meta
		}
		audit.RowsAfter = table.RowCount()
		audit.ColumnsAfter = table.ColumnCount()
		meta.TransformationLog = append(meta.TransformationLog, audit)
	}

	table.ReorderColumns(models.CanonicalColumns)

	meta.ValidationErrors = validateTransformation(table, formatName)
	meta.Success = len(meta.ValidationErrors) == 0

	log.WithFields(logger.Fields{
		"format":            formatName,
		"rows":              table.RowCount(),
		"validation_errors": len(meta.ValidationErrors),
	}).Info("Report transformed")
	return table, meta
}

// Detector exposes the transformer's detector for callers that only need
// format identification.
func (t *ReportTransformer) Detector() *detector.Detector {
	return t.detector
}

// loadTable reads the whole file into a table using the sniffed dialect.
// Blank cells load as nulls; ragged rows are padded with nulls.
func loadTable(path string) (*models.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileEmpty, path, err)
	}
	defer file.Close()

	sample := make([]byte, 4096)
	n, err := file.Read(sample)
	if err != nil && err != io.EOF {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, err)
	}
	if n == 0 {
		return nil, errors.FileError(errors.CodeFileEmpty, path, nil)
	}
	dialect := detector.SniffDialect(sample[:n])
	if !dialect.HasHeader {
		return nil, errors.ParseError(errors.CodeNoHeaderRow, path, 1, nil)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, err)
	}

	reader := csv.NewReader(file)
	reader.Comma = dialect.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 1, err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	table := models.NewTable(headers)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidFormat, path, line, err)
		}

		row := make(models.Row, len(headers))
		for i, header := range headers {
			if i < len(record) && strings.TrimSpace(record[i]) != "" {
				row[header] = models.Cell(strings.TrimSpace(record[i]))
			}
		}
		table.AppendRow(row)
	}

	return table, nil
}
