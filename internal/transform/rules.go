// Package transform implements the declarative cleaning pipeline that turns
// raw payer report tables into the canonical transaction schema. A pipeline
// is an ordered list of rules bound to one format name; each rule is a
// pure, independently testable transform over a table.
package transform

import (
	"fmt"
	"regexp"

	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/logger"
)

// Rule is one composable table transform. Apply must not mutate its input;
// the pipeline threads each rule's output into the next.
type Rule interface {
	Name() string
	Apply(table *models.Table) (*models.Table, error)
}

// RenameColumnsRule renames source columns to canonical names. Mappings
// whose source column is absent are silently ignored, so one rename rule
// can cover minor layout variants of the same export.
type RenameColumnsRule struct {
	Mappings map[string]string
}

func (r *RenameColumnsRule) Name() string { return "rename_columns" }

func (r *RenameColumnsRule) Apply(table *models.Table) (*models.Table, error) {
	out := table.Clone()
	for from, to := range r.Mappings {
		if !out.HasColumn(from) {
			continue
		}
		if err := out.RenameColumn(from, to); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DateFormatRule normalizes date columns to a fixed output representation.
// Each value is first parsed against the common format list; values that
// fail are retried against the rule's explicit formats in order, stopping
// at the first success. Unparseable values become null and are logged, not
// raised. Already-normalized values round-trip unchanged, making the rule
// idempotent.
type DateFormatRule struct {
	Columns []string
	// Formats are explicit source layouts tried after automatic parsing
	// fails, e.g. "01-02-2006" for US month-first exports.
	Formats []string
	// OutputFormat defaults to models.DefaultDateOutputFormat.
	OutputFormat string
}

func (r *DateFormatRule) Name() string { return "date_format" }

func (r *DateFormatRule) Apply(table *models.Table) (*models.Table, error) {
	out := table.Clone()
	outputFormat := r.OutputFormat
	if outputFormat == "" {
		outputFormat = models.DefaultDateOutputFormat
	}
	log := logger.GetGlobalLogger().WithComponent("date_format_rule")

	for _, column := range r.Columns {
		if !out.HasColumn(column) {
			continue
		}
		for i := range out.Rows {
			cell := out.Get(i, column)
			if models.IsNull(cell) {
				continue
			}
			parsed, err := models.ParseDateAny(*cell, r.Formats...)
			if err != nil {
				log.WithFields(logger.Fields{
					"column": column,
					"row":    i,
					"value":  *cell,
				}).Warn("Unparseable date set to null")
				out.Set(i, column, nil)
				continue
			}
			out.Set(i, column, models.Cell(parsed.Format(outputFormat)))
		}
	}
	return out, nil
}

// NumberFormatRule coerces money columns to plain decimal strings,
// stripping currency symbols, thousands separators, percent signs, and
// treating parenthesized values as negative. Non-numeric leftovers become
// null with a logged warning.
type NumberFormatRule struct {
	Columns []string
}

func (r *NumberFormatRule) Name() string { return "number_format" }

func (r *NumberFormatRule) Apply(table *models.Table) (*models.Table, error) {
	out := table.Clone()
	log := logger.GetGlobalLogger().WithComponent("number_format_rule")

	for _, column := range r.Columns {
		if !out.HasColumn(column) {
			continue
		}
		for i := range out.Rows {
			cell := out.Get(i, column)
			if models.IsNull(cell) {
				continue
			}
			amount, err := models.ParseAmount(*cell)
			if err != nil {
				log.WithFields(logger.Fields{
					"column": column,
					"row":    i,
					"value":  *cell,
				}).Warn("Non-numeric value set to null")
				out.Set(i, column, nil)
				continue
			}
			out.Set(i, column, models.Cell(amount.String()))
		}
	}
	return out, nil
}

// MergeFunc combines source cell values, in source-column order, into one
// target value.
type MergeFunc func(values []*string) *string

// FirstNonNull is the default merge: a priority fallback returning the
// first non-blank value in source-column order.
func FirstNonNull(values []*string) *string {
	for _, v := range values {
		if !models.IsNull(v) {
			return v
		}
	}
	return nil
}

// MergeColumnsRule produces one target column by applying a merge function
// row-wise over the named source columns.
type MergeColumnsRule struct {
	Sources []string
	Target  string
	// Merge defaults to FirstNonNull.
	Merge MergeFunc
}

func (r *MergeColumnsRule) Name() string { return "merge_columns" }

func (r *MergeColumnsRule) Apply(table *models.Table) (*models.Table, error) {
	out := table.Clone()
	merge := r.Merge
	if merge == nil {
		merge = FirstNonNull
	}

	out.AddColumn(r.Target)
	for i := range out.Rows {
		values := make([]*string, len(r.Sources))
		for j, source := range r.Sources {
			values[j] = out.Get(i, source)
		}
		out.Set(i, r.Target, merge(values))
	}
	return out, nil
}

// SplitColumnRule applies a regex with capture groups to one source column
// and assigns each capture group to a target column positionally. Rows
// whose value does not match leave the targets null.
type SplitColumnRule struct {
	Source  string
	Pattern string
	Targets []string
}

func (r *SplitColumnRule) Name() string { return "split_column" }

func (r *SplitColumnRule) Apply(table *models.Table) (*models.Table, error) {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid split pattern %q: %w", r.Pattern, err)
	}
	if re.NumSubexp() < len(r.Targets) {
		return nil, fmt.Errorf("split pattern %q has %d capture groups, %d targets given",
			r.Pattern, re.NumSubexp(), len(r.Targets))
	}

	out := table.Clone()
	for _, target := range r.Targets {
		out.AddColumn(target)
	}

	for i := range out.Rows {
		cell := out.Get(i, r.Source)
		if models.IsNull(cell) {
			continue
		}
		groups := re.FindStringSubmatch(*cell)
		if groups == nil {
			continue
		}
		for j, target := range r.Targets {
			if j+1 < len(groups) {
				out.Set(i, target, models.Cell(groups[j+1]))
			}
		}
	}
	return out, nil
}

// ForwardFillRule propagates the last non-null value downward per column.
// This models multi-row report exports where one logical record spans
// several physical rows with blank continuation fields.
type ForwardFillRule struct {
	Columns []string
}

func (r *ForwardFillRule) Name() string { return "forward_fill" }

func (r *ForwardFillRule) Apply(table *models.Table) (*models.Table, error) {
	out := table.Clone()
	for _, column := range r.Columns {
		if !out.HasColumn(column) {
			continue
		}
		var last *string
		for i := range out.Rows {
			cell := out.Get(i, column)
			if models.IsNull(cell) {
				if last != nil {
					v := *last
					out.Set(i, column, &v)
				}
				continue
			}
			last = cell
		}
	}
	return out, nil
}

// AddConstantRule stamps every row of a column with one fixed value,
// typically recording payment-type provenance such as "credit_card".
type AddConstantRule struct {
	Column string
	Value  string
}

func (r *AddConstantRule) Name() string { return "add_constant" }

func (r *AddConstantRule) Apply(table *models.Table) (*models.Table, error) {
	out := table.Clone()
	out.AddColumn(r.Column)
	for i := range out.Rows {
		out.Set(i, r.Column, models.Cell(r.Value))
	}
	return out, nil
}
