package transform

import (
	"fmt"

	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/errors"
	"report-normalization-service/pkg/logger"
)

// Validation finding types.
const (
	FindingMissingRequired = "missing_required"
	FindingNegativeValues  = "negative_values"
	FindingInvalidDates    = "invalid_dates"
)

// requiredValueColumns must be non-null in every canonical row.
var requiredValueColumns = []string{
	models.ColTransactionDate,
	models.ColCashApplied,
	models.ColProviderName,
}

// ValidationFinding is one data-quality issue discovered in a transformed
// table. Findings annotate the result; they never abort transformation.
type ValidationFinding struct {
	Type    string `json:"type"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// validateTransformation runs the data-quality checks over a canonical
// table: required values present, cash applied non-negative, date columns
// well formed. Each finding is returned and separately logged tagged with
// the table (format) name.
func validateTransformation(table *models.Table, tableName string) []ValidationFinding {
	var findings []ValidationFinding
	log := logger.GetGlobalLogger().WithComponent("validation").WithField("table", tableName)

	for _, column := range requiredValueColumns {
		missing := 0
		for i := range table.Rows {
			if models.IsNull(table.Get(i, column)) {
				missing++
			}
		}
		if missing > 0 {
			finding := ValidationFinding{
				Type:    FindingMissingRequired,
				Column:  column,
				Message: fmt.Sprintf("%d rows missing required value", missing),
				Count:   missing,
			}
			findings = append(findings, finding)
			logFinding(log, finding)
		}
	}

	negative := 0
	for i := range table.Rows {
		cell := table.Get(i, models.ColCashApplied)
		if models.IsNull(cell) {
			continue
		}
		amount, err := models.ParseAmount(*cell)
		if err == nil && amount.IsNegative() {
			negative++
		}
	}
	if negative > 0 {
		finding := ValidationFinding{
			Type:    FindingNegativeValues,
			Column:  models.ColCashApplied,
			Message: fmt.Sprintf("%d rows with negative cash applied", negative),
			Count:   negative,
		}
		findings = append(findings, finding)
		logFinding(log, finding)
	}

	for _, column := range models.DateColumns {
		invalid := 0
		var firstErr error
		for i := range table.Rows {
			cell := table.Get(i, column)
			if models.IsNull(cell) {
				continue
			}
			if _, err := models.ParseDateAny(*cell); err != nil {
				invalid++
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if invalid > 0 {
			finding := ValidationFinding{
				Type:    FindingInvalidDates,
				Column:  column,
				Message: errors.ValidationError(errors.CodeInvalidDates, column, invalid, firstErr).Error(),
				Count:   invalid,
			}
			findings = append(findings, finding)
			logFinding(log, finding)
		}
	}

	return findings
}

func logFinding(log logger.Logger, finding ValidationFinding) {
	log.WithFields(logger.Fields{
		"type":   finding.Type,
		"column": finding.Column,
		"count":  finding.Count,
	}).Warn(finding.Message)
}
