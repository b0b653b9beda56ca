// Package config bridges CLI flags to component construction. It keeps the
// commands free of wiring details: a command hands over flag values and
// receives ready-to-use registry, transformer, and reporter instances.
package config

import (
	"report-normalization-service/internal/formats"
	"report-normalization-service/internal/reporter"
	"report-normalization-service/internal/transform"

	"github.com/spf13/viper"
)

// RegistryPath resolves the format registry location from flags, config
// file, or environment, in viper's precedence order.
func RegistryPath() string {
	path := viper.GetString("registry")
	if path == "" {
		path = "report_formats.json"
	}
	return path
}

// CreateRegistry opens the format registry, seeding defaults when the
// backing file is missing or unusable.
func CreateRegistry() (*formats.FormatRegistry, error) {
	return formats.NewFormatRegistry(RegistryPath())
}

// CreateTransformer builds a transformer (with default pipelines) over a
// freshly opened registry.
func CreateTransformer() (*transform.ReportTransformer, error) {
	registry, err := CreateRegistry()
	if err != nil {
		return nil, err
	}
	return transform.NewReportTransformer(registry), nil
}

// CreateReporter builds a reporter for the requested output format.
func CreateReporter(format string) *reporter.Reporter {
	return reporter.New(reporter.OutputFormat(format))
}
