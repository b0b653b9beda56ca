// Package formats defines report format profiles and their file-backed
// registry. A profile describes one recognizable CSV layout: exact
// source-header mappings, per-column header regex patterns, and optional
// sample values and data types. The detector scores incoming files against
// every registered profile.
package formats

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"report-normalization-service/pkg/logger"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Match score constants. Exact mappings always win; regex pattern hits rank
// below them; similarity fallback must clear SimilarityThreshold.
const (
	ExactMatchScore     = 1.0
	PatternMatchScore   = 0.9
	SimilarityThreshold = 0.7
)

// FormatProfile describes one known report layout.
type FormatProfile struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// HeaderPatterns maps canonical columns to ordered lists of
	// case-insensitive regex patterns matched anywhere in a source header.
	HeaderPatterns map[string][]string `json:"header_patterns"`

	// ColumnMappings maps exact source headers to canonical columns.
	// These always win over pattern and similarity matching.
	ColumnMappings map[string]string `json:"column_mappings"`

	SampleValues map[string][]string    `json:"sample_values,omitempty"`
	DataTypes    map[string]string      `json:"data_types,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewFormatProfile creates an empty profile with the given identity.
func NewFormatProfile(name, description string) *FormatProfile {
	return &FormatProfile{
		Name:           name,
		Description:    description,
		HeaderPatterns: make(map[string][]string),
		ColumnMappings: make(map[string]string),
	}
}

// MatchColumn maps one source header to its best canonical column with a
// confidence score. Matching is a strict priority chain, first hit wins:
//
//  1. exact ColumnMappings entry (score 1.0)
//  2. any HeaderPatterns regex matching anywhere in the header (score 0.9)
//  3. string similarity between the lowercased header and the
//     HeaderPatterns keys, accepted above SimilarityThreshold
//
// Returns ("", 0.0) when nothing clears the thresholds. A profile with no
// HeaderPatterns entries can never match via similarity.
func (p *FormatProfile) MatchColumn(header string) (string, float64) {
	if canonical, ok := p.ColumnMappings[header]; ok {
		return canonical, ExactMatchScore
	}

	for _, canonical := range p.patternColumns() {
		for _, pattern := range p.HeaderPatterns[canonical] {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				logger.GetGlobalLogger().WithComponent("format_profile").WithFields(logger.Fields{
					"profile": p.Name,
					"pattern": pattern,
				}).Warn("Skipping invalid header pattern")
				continue
			}
			if re.MatchString(header) {
				return canonical, PatternMatchScore
			}
		}
	}

	lowered := strings.ToLower(strings.TrimSpace(header))
	bestColumn := ""
	bestScore := 0.0
	for _, canonical := range p.patternColumns() {
		score := similarityRatio(lowered, canonical)
		if score > bestScore {
			bestScore = score
			bestColumn = canonical
		}
	}
	if bestScore > SimilarityThreshold {
		return bestColumn, bestScore
	}

	return "", 0.0
}

// patternColumns returns the pattern dictionary keys in stable order so
// first-hit semantics are deterministic across runs.
func (p *FormatProfile) patternColumns() []string {
	columns := make([]string, 0, len(p.HeaderPatterns))
	for canonical := range p.HeaderPatterns {
		columns = append(columns, canonical)
	}
	sort.Strings(columns)
	return columns
}

// similarityOptions uses unit costs throughout. The library default charges
// 2 per substitution, which lets the distance exceed the longer string's
// length and drags near-identical headers under the acceptance threshold.
var similarityOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// similarityRatio computes a normalized edit-distance ratio in [0, 1]:
// 1.0 for identical strings, decreasing with divergence. Two empty strings
// have no signal and score 0.0.
func similarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	distance := levenshtein.DistanceForStrings(ra, rb, similarityOptions)
	return 1.0 - float64(distance)/float64(maxLen)
}

// AddMapping registers an exact source-header mapping. Mappings are the
// only mutation path for a profile after creation.
func (p *FormatProfile) AddMapping(sourceHeader, canonical string) {
	if p.ColumnMappings == nil {
		p.ColumnMappings = make(map[string]string)
	}
	p.ColumnMappings[sourceHeader] = canonical
}

// Clone returns a deep copy of the profile.
func (p *FormatProfile) Clone() *FormatProfile {
	clone := NewFormatProfile(p.Name, p.Description)
	for canonical, patterns := range p.HeaderPatterns {
		clone.HeaderPatterns[canonical] = append([]string(nil), patterns...)
	}
	for source, canonical := range p.ColumnMappings {
		clone.ColumnMappings[source] = canonical
	}
	if p.SampleValues != nil {
		clone.SampleValues = make(map[string][]string, len(p.SampleValues))
		for col, values := range p.SampleValues {
			clone.SampleValues[col] = append([]string(nil), values...)
		}
	}
	if p.DataTypes != nil {
		clone.DataTypes = make(map[string]string, len(p.DataTypes))
		for col, typ := range p.DataTypes {
			clone.DataTypes[col] = typ
		}
	}
	if p.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Equal reports whether two profiles carry the same identity, patterns,
// and mappings. Used to verify lossless registry round-trips.
func (p *FormatProfile) Equal(other *FormatProfile) bool {
	if other == nil {
		return false
	}
	if p.Name != other.Name || p.Description != other.Description {
		return false
	}
	if len(p.HeaderPatterns) != len(other.HeaderPatterns) {
		return false
	}
	for canonical, patterns := range p.HeaderPatterns {
		otherPatterns, ok := other.HeaderPatterns[canonical]
		if !ok || len(patterns) != len(otherPatterns) {
			return false
		}
		for i, pattern := range patterns {
			if pattern != otherPatterns[i] {
				return false
			}
		}
	}
	if len(p.ColumnMappings) != len(other.ColumnMappings) {
		return false
	}
	for source, canonical := range p.ColumnMappings {
		if other.ColumnMappings[source] != canonical {
			return false
		}
	}
	return true
}

// MarshalJSON ensures empty pattern and mapping maps serialize as objects
// rather than null, keeping the registry file round-trippable.
func (p *FormatProfile) MarshalJSON() ([]byte, error) {
	type alias FormatProfile
	clone := *p
	if clone.HeaderPatterns == nil {
		clone.HeaderPatterns = map[string][]string{}
	}
	if clone.ColumnMappings == nil {
		clone.ColumnMappings = map[string]string{}
	}
	return json.Marshal((*alias)(&clone))
}
