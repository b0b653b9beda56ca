package detector

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"

	"report-normalization-service/internal/formats"
	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/logger"
)

// MinDetectionConfidence is the acceptance threshold for the winning
// profile; below it the file is reported as unrecognized.
const MinDetectionConfidence = 0.5

// minColumnScore is the per-header cutoff: weaker column matches are not
// included in the column map.
const minColumnScore = 0.5

// requiredPenaltyConfidence is the clamped confidence for profiles whose
// column map misses any required canonical column, however many incidental
// columns matched.
const requiredPenaltyConfidence = 0.2

// DefaultSampleRows is how many data rows are inspected per detection.
const DefaultSampleRows = 10

// DetectionResult reports the outcome of scoring a file against the
// registry. An empty FormatName means the file was not recognized;
// Metadata carries diagnostics (top candidates, failure reasons).
type DetectionResult struct {
	FormatName       string                 `json:"format_name,omitempty"`
	Confidence       float64                `json:"confidence"`
	ColumnMap        map[string]string      `json:"column_map,omitempty"`
	ConfidenceScores map[string]float64     `json:"confidence_scores,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Recognized reports whether detection identified a format.
func (r *DetectionResult) Recognized() bool {
	return r.FormatName != ""
}

// CandidateScore is one profile's score, surfaced in diagnostics.
type CandidateScore struct {
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
}

// Detector scores report files against the profiles in a format registry.
// Detectors are cheap and stateless aside from registry reads.
type Detector struct {
	registry *formats.FormatRegistry
	logger   logger.Logger
}

// New creates a detector backed by the given registry.
func New(registry *formats.FormatRegistry) *Detector {
	return &Detector{
		registry: registry,
		logger:   logger.GetGlobalLogger().WithComponent("format_detector"),
	}
}

// DetectFormat inspects the leading rows of the file and scores it against
// every registered profile. Failures never propagate as errors: read and
// parse problems come back as a zero-confidence result with the error text
// in metadata, so batch callers can continue with their remaining files.
func (d *Detector) DetectFormat(path string) *DetectionResult {
	return d.DetectFormatSample(path, DefaultSampleRows)
}

// DetectFormatSample is DetectFormat with a caller-chosen sample size.
func (d *Detector) DetectFormatSample(path string, sampleRows int) *DetectionResult {
	log := d.logger.WithField("file", path)

	file, err := os.Open(path)
	if err != nil {
		log.WithError(err).Error("Failed to open report file")
		return errorResult(err)
	}
	defer file.Close()

	sample := make([]byte, sniffSampleSize)
	n, err := file.Read(sample)
	if err != nil && err != io.EOF {
		log.WithError(err).Error("Failed to sample report file")
		return errorResult(err)
	}
	sample = sample[:n]
	if n == 0 {
		return &DetectionResult{
			Confidence: 0.0,
			Metadata:   map[string]interface{}{"error": "file is empty"},
		}
	}

	dialect := SniffDialect(sample)
	if !dialect.HasHeader {
		log.Debug("No header row detected, skipping profile scoring")
		return &DetectionResult{
			Confidence: 0.0,
			Metadata: map[string]interface{}{
				"no_header": true,
				"reason":    "no header row detected in file sample",
			},
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errorResult(err)
	}

	headers, err := readHeaders(file, dialect, sampleRows)
	if err != nil {
		log.WithError(err).Error("Failed to parse sampled rows")
		return errorResult(err)
	}

	result := d.scoreProfiles(headers)
	log.WithFields(logger.Fields{
		"format":     result.FormatName,
		"confidence": result.Confidence,
	}).Debug("Format detection complete")
	return result
}

// scoreProfiles runs per-profile matching over the headers and selects the
// highest-confidence profile, or reports the file unrecognized with the
// top candidates when the winner falls below the acceptance threshold.
func (d *Detector) scoreProfiles(headers []string) *DetectionResult {
	var (
		candidates []CandidateScore
		bestResult *DetectionResult
	)

	for _, profile := range d.registry.Profiles() {
		confidence, columnMap, scores := matchProfile(profile, headers)
		candidates = append(candidates, CandidateScore{
			Format:     profile.Name,
			Confidence: confidence,
		})

		if bestResult == nil || confidence > bestResult.Confidence {
			bestResult = &DetectionResult{
				FormatName:       profile.Name,
				Confidence:       confidence,
				ColumnMap:        columnMap,
				ConfidenceScores: scores,
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	if bestResult == nil {
		return &DetectionResult{
			Confidence: 0.0,
			Metadata:   map[string]interface{}{"reason": "no profiles registered"},
		}
	}

	bestResult.Metadata = map[string]interface{}{
		"top_candidates": candidates,
		"headers":        headers,
	}

	if bestResult.Confidence < MinDetectionConfidence {
		// Keep the diagnostics but report the file unrecognized.
		bestResult.FormatName = ""
		bestResult.ColumnMap = nil
		bestResult.ConfidenceScores = nil
		bestResult.Metadata["reason"] = "best match below confidence threshold"
	}

	return bestResult
}

// matchProfile scores one profile against the source headers. Matches below
// minColumnScore are discarded. When the resulting column map misses any
// required canonical column the confidence is clamped low, penalizing
// profiles that match many incidental columns but none of the semantically
// required ones. Otherwise confidence blends header coverage and the mean
// per-column confidence 50/50.
func matchProfile(profile *formats.FormatProfile, headers []string) (float64, map[string]string, map[string]float64) {
	columnMap := make(map[string]string)
	scores := make(map[string]float64)

	total := 0.0
	for _, header := range headers {
		canonical, score := profile.MatchColumn(header)
		if canonical == "" || score <= minColumnScore {
			continue
		}
		columnMap[header] = canonical
		scores[header] = score
		total += score
	}

	if len(headers) == 0 || len(columnMap) == 0 {
		return 0.0, columnMap, scores
	}

	if !hasRequiredColumns(columnMap) {
		return requiredPenaltyConfidence, columnMap, scores
	}

	coverage := float64(len(columnMap)) / float64(len(headers))
	meanScore := total / float64(len(columnMap))
	return 0.5*coverage + 0.5*meanScore, columnMap, scores
}

// hasRequiredColumns checks that the column map covers the transaction
// date, the provider name, and at least one amount column. The amount slot
// is an alias class: any of the canonical money columns satisfies it.
func hasRequiredColumns(columnMap map[string]string) bool {
	mapped := make(map[string]bool, len(columnMap))
	for _, canonical := range columnMap {
		mapped[canonical] = true
	}

	if !mapped[models.ColTransactionDate] || !mapped[models.ColProviderName] {
		return false
	}
	for _, amountCol := range models.AmountAliasColumns {
		if mapped[amountCol] {
			return true
		}
	}
	return mapped["amount"]
}

// readHeaders parses the header row (and primes the sample) with the
// sniffed dialect.
func readHeaders(file *os.File, dialect *Dialect, sampleRows int) ([]string, error) {
	reader := csv.NewReader(file)
	reader.Comma = dialect.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	// Drain up to sampleRows data records so malformed rows near the top
	// of the file surface here rather than mid-transform.
	for i := 0; i < sampleRows; i++ {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}

	return headers, nil
}

func errorResult(err error) *DetectionResult {
	return &DetectionResult{
		Confidence: 0.0,
		Metadata:   map[string]interface{}{"error": err.Error()},
	}
}
