// Package errors defines the structured error taxonomy for the report
// normalization service. Errors carry a category, a specific code, optional
// context values, and a suggestion for the operator, so the CLI and batch
// import callers can report actionable messages and map failures to exit
// codes without string matching.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryFile       ErrorCategory = "file"
	CategoryParse      ErrorCategory = "parse"
	CategoryDetection  ErrorCategory = "detection"
	CategoryTransform  ErrorCategory = "transform"
	CategoryValidation ErrorCategory = "validation"
	CategoryRegistry   ErrorCategory = "registry"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileEmpty      ErrorCode = "file_empty"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeNoHeaderRow   ErrorCode = "no_header_row"
	CodeEncodingError ErrorCode = "encoding_error"

	// Detection errors
	CodeFormatNotRecognized ErrorCode = "format_not_recognized"
	CodeLowConfidence       ErrorCode = "low_confidence"

	// Transform errors
	CodePipelineMissing ErrorCode = "pipeline_missing"
	CodeRuleFailed      ErrorCode = "rule_failed"

	// Validation errors
	CodeMissingRequired ErrorCode = "missing_required"
	CodeNegativeValues  ErrorCode = "negative_values"
	CodeInvalidDates    ErrorCode = "invalid_dates"

	// Registry errors
	CodeRegistryIO      ErrorCode = "registry_io"
	CodeProfileNotFound ErrorCode = "profile_not_found"
	CodeProfileInvalid  ErrorCode = "profile_invalid"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// NormalizerError is the base error type for all service errors.
type NormalizerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries additional key-value details about the error.
type Context map[string]interface{}

func (e *NormalizerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

func (e *NormalizerError) Unwrap() error {
	return e.Cause
}

// GetExitCode maps the error category to a CLI exit code.
func (e *NormalizerError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryDetection:
		return 3
	case CategoryTransform, CategoryValidation:
		return 4
	case CategoryRegistry:
		return 5
	case CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext attaches a key-value detail to the error.
func (e *NormalizerError) WithContext(key string, value interface{}) *NormalizerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches an operator-facing remediation hint.
func (e *NormalizerError) WithSuggestion(suggestion string) *NormalizerError {
	e.Suggestion = suggestion
	return e
}

// New creates a NormalizerError with a captured stack trace.
func New(category ErrorCategory, code ErrorCode, message string) *NormalizerError {
	return &NormalizerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *NormalizerError {
	if err == nil {
		return nil
	}
	return &NormalizerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FileError creates a file access error for the given path.
func FileError(code ErrorCode, path string, err error) *NormalizerError {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("report file not found: %s", path)
		suggestion = "check the file path and ensure the report exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied reading report: %s", path)
		suggestion = "check file permissions and ensure read access"
	case CodeFileEmpty:
		message = fmt.Sprintf("report file is empty: %s", path)
		suggestion = "ensure the export completed and contains data rows"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := newOrWrap(err, CategoryFile, code, message)
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}

// ParseError creates a CSV parsing error for the given file location.
func ParseError(code ErrorCode, file string, line int, err error) *NormalizerError {
	var message, suggestion string
	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid CSV structure in %s at line %d", file, line)
		suggestion = "check the delimiter and quoting of the export"
	case CodeNoHeaderRow:
		message = fmt.Sprintf("no header row detected in %s", file)
		suggestion = "exports must start with a column header row"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in %s at line %d", file, line)
		suggestion = "save the export as UTF-8 and retry"
	default:
		message = fmt.Sprintf("parse error in %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	result := newOrWrap(err, CategoryParse, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line)
}

// DetectionError creates a format detection error.
func DetectionError(code ErrorCode, file string, err error) *NormalizerError {
	var message, suggestion string
	switch code {
	case CodeFormatNotRecognized:
		message = fmt.Sprintf("no registered format matches %s", file)
		suggestion = "supply an explicit format name or learn a profile from this file"
	case CodeLowConfidence:
		message = fmt.Sprintf("format match confidence too low for %s", file)
		suggestion = "review the top candidates and confirm the format manually"
	default:
		message = fmt.Sprintf("detection error for %s", file)
		suggestion = "check the file headers against the registered profiles"
	}

	result := newOrWrap(err, CategoryDetection, code, message)
	return result.WithSuggestion(suggestion).WithContext("file", file)
}

// TransformError creates a transformation error.
func TransformError(code ErrorCode, formatName string, err error) *NormalizerError {
	var message, suggestion string
	switch code {
	case CodePipelineMissing:
		message = fmt.Sprintf("no transformation pipeline registered for format '%s'", formatName)
		suggestion = "register a pipeline for this format before transforming"
	case CodeRuleFailed:
		message = fmt.Sprintf("transformation rule failed for format '%s'", formatName)
		suggestion = "check the rule configuration against the source columns"
	default:
		message = fmt.Sprintf("transformation error for format '%s'", formatName)
		suggestion = "review the pipeline configuration"
	}

	result := newOrWrap(err, CategoryTransform, code, message)
	return result.WithSuggestion(suggestion).WithContext("format", formatName)
}

// ValidationError creates a data-quality validation error for a column.
func ValidationError(code ErrorCode, column string, count int, err error) *NormalizerError {
	var message, suggestion string
	switch code {
	case CodeMissingRequired:
		message = fmt.Sprintf("required column '%s' has %d missing values", column, count)
		suggestion = "check the source export and the format's column mappings"
	case CodeNegativeValues:
		message = fmt.Sprintf("column '%s' has %d negative values", column, count)
		suggestion = "negative payments usually indicate refunds exported into the wrong column"
	case CodeInvalidDates:
		message = fmt.Sprintf("column '%s' contains unparseable dates", column)
		suggestion = "add the source date format to the pipeline's date rule"
	default:
		message = fmt.Sprintf("validation error in column '%s'", column)
		suggestion = "check the column values and format"
	}

	result := newOrWrap(err, CategoryValidation, code, message)
	return result.WithSuggestion(suggestion).
		WithContext("column", column).
		WithContext("count", count)
}

// RegistryError creates a format registry error.
func RegistryError(code ErrorCode, detail string, err error) *NormalizerError {
	var message, suggestion string
	switch code {
	case CodeRegistryIO:
		message = fmt.Sprintf("failed to read or write format registry: %s", detail)
		suggestion = "check the registry path and directory permissions"
	case CodeProfileNotFound:
		message = fmt.Sprintf("format profile not found: %s", detail)
		suggestion = "list registered formats to see available profile names"
	case CodeProfileInvalid:
		message = fmt.Sprintf("invalid format profile: %s", detail)
		suggestion = "profiles require a unique non-empty name"
	default:
		message = fmt.Sprintf("registry error: %s", detail)
		suggestion = "check the registry file"
	}

	result := newOrWrap(err, CategoryRegistry, code, message)
	return result.WithSuggestion(suggestion).WithContext("detail", detail)
}

// InternalError creates an unexpected internal error.
func InternalError(operation string, err error) *NormalizerError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	result := newOrWrap(err, CategoryInternal, CodeUnexpectedError, message)
	return result.WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *NormalizerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// ErrorSummary aggregates multiple errors for batch reporting.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*NormalizerError    `json:"errors"`
}

// NewErrorSummary builds a summary from a slice of errors.
func NewErrorSummary(errs []*NormalizerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}
	return summary
}

func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}
	if es.Total == 1 {
		return es.Errors[0].Error()
	}
	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// GetExitCode returns the highest-priority exit code across all errors.
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}
	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// AsNormalizerError extracts a NormalizerError from an error chain.
func AsNormalizerError(err error) (*NormalizerError, bool) {
	var nerr *NormalizerError
	if errors.As(err, &nerr) {
		return nerr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error unless it already is a NormalizerError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *NormalizerError {
	if err == nil {
		return nil
	}
	if nerr, ok := AsNormalizerError(err); ok {
		return nerr
	}
	return Wrap(err, category, code, message)
}
