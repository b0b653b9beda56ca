package transform

import (
	"os"
	"path/filepath"
	"testing"

	"report-normalization-service/internal/formats"
	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/errors"
)

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write report file: %v", err)
	}
	return path
}

func newTestTransformer(t *testing.T) (*ReportTransformer, *formats.FormatRegistry) {
	t.Helper()
	registry, err := formats.NewFormatRegistry(filepath.Join(t.TempDir(), "report_formats.json"))
	if err != nil {
		t.Fatalf("NewFormatRegistry failed: %v", err)
	}
	return NewReportTransformer(registry), registry
}

func TestTransform_CreditCard(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	path := writeReport(t, `Trans. #,Trans. Date,Card Type,Gross Amt,Fee,Client Name,Provider
9690,01-04-2025,Visa,55,1.75,Kate Martin,Tammy Maxey
9691,01-04-2025,MC,"$1,234.50",2.10,Ann Mosley,Tammy Maxey
`)

	table, meta := transformer.Transform(path, "")

	if meta.Error != "" {
		t.Fatalf("Unexpected error: %s", meta.Error)
	}
	if !meta.Success {
		t.Fatalf("Expected success, validation errors: %v", meta.ValidationErrors)
	}
	if meta.Format != "credit_card_payment" {
		t.Errorf("Expected format credit_card_payment, got %s", meta.Format)
	}
	if meta.DetectionConfidence <= 0.7 {
		t.Errorf("Expected detection confidence above 0.7, got %v", meta.DetectionConfidence)
	}

	if got := len(table.Columns); got != len(models.CanonicalColumns) {
		t.Fatalf("Expected canonical schema, got %d columns", got)
	}
	for i, col := range models.CanonicalColumns {
		if table.Columns[i] != col {
			t.Fatalf("Column %d: expected %s, got %s", i, col, table.Columns[i])
		}
	}

	checks := map[string]string{
		models.ColTransactionID:   "9690",
		models.ColTransactionDate: "2025-01-04",
		models.ColCashApplied:     "55",
		models.ColProviderName:    "Tammy Maxey",
		models.ColPayerName:       "Kate Martin",
		models.ColPaymentType:     PaymentTypeCreditCard,
	}
	for col, want := range checks {
		if got, _ := table.GetString(0, col); got != want {
			t.Errorf("Row 0 %s: expected %q, got %q", col, want, got)
		}
	}
	if got, _ := table.GetString(1, models.ColCashApplied); got != "1234.5" {
		t.Errorf("Expected currency formatting stripped, got %q", got)
	}

	if len(meta.TransformationLog) != 4 {
		t.Errorf("Expected 4 audited rule steps, got %d", len(meta.TransformationLog))
	}
}

func TestTransform_InsuranceForwardFillAndMerge(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	path := writeReport(t, `RowId,Check Date,Patient ID,Claim Number,CPT Code,Check Amount,Cash Applied,Provider,Service Date,Payer
1,2025-01-10,P100,C-500,99213,125.00,125.00,Davis,2025-01-02,Aetna
,,P101,C-501,99214,80.00,,,2025-01-03,
`)

	table, meta := transformer.Transform(path, "")

	if meta.Error != "" {
		t.Fatalf("Unexpected error: %s", meta.Error)
	}
	if meta.Format != "insurance_claims" {
		t.Fatalf("Expected insurance_claims, got %s", meta.Format)
	}

	// Continuation row inherits the check-level fields.
	fills := map[string]string{
		models.ColTransactionID:   "1",
		models.ColTransactionDate: "2025-01-10",
		models.ColProviderName:    "Davis",
		models.ColPayerName:       "Aetna",
	}
	for col, want := range fills {
		if got, _ := table.GetString(1, col); got != want {
			t.Errorf("Row 1 %s: expected forward-filled %q, got %q", col, want, got)
		}
	}

	// Blank Cash Applied falls back to the check amount.
	if got, _ := table.GetString(1, models.ColCashApplied); got != "80" {
		t.Errorf("Expected cash applied merged from check amount, got %q", got)
	}
	if got, _ := table.GetString(0, models.ColCashApplied); got != "125" {
		t.Errorf("Expected populated cash applied kept, got %q", got)
	}
	if got, _ := table.GetString(1, models.ColPaymentType); got != PaymentTypeInsurance {
		t.Errorf("Expected payment type %q, got %q", PaymentTypeInsurance, got)
	}
}

func TestTransform_ByteOrderMark(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	path := writeReport(t, "\ufeffTrans. #,Trans. Date,Gross Amt,Provider\n9690,01-04-2025,55,Maxey\n")

	table, meta := transformer.Transform(path, "credit_card_payment")

	if meta.Error != "" {
		t.Fatalf("Unexpected error: %s", meta.Error)
	}
	if got, _ := table.GetString(0, models.ColTransactionID); got != "9690" {
		t.Errorf("Expected BOM-stripped header renamed, got transaction_id %q", got)
	}
}

func TestTransform_UnrecognizedFormat(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	path := writeReport(t, "Column1,Column2,Column3,Column4\nfoo,bar,baz,qux\n")

	table, meta := transformer.Transform(path, "")

	if meta.Error == "" {
		t.Fatal("Expected error for unrecognized format")
	}
	if meta.ErrorCode != errors.CodeFormatNotRecognized {
		t.Errorf("Expected code %s, got %s", errors.CodeFormatNotRecognized, meta.ErrorCode)
	}
	if table.RowCount() != 0 {
		t.Errorf("Expected empty canonical table, got %d rows", table.RowCount())
	}
	if len(table.Columns) != len(models.CanonicalColumns) {
		t.Errorf("Expected canonical columns on the empty table, got %v", table.Columns)
	}
}

func TestTransform_PipelineMissing(t *testing.T) {
	transformer, registry := newTestTransformer(t)

	// A recognizable profile with no curated pipeline behind it.
	profile := formats.NewFormatProfile("patient_statements", "Patient statement export")
	profile.AddMapping("Statement Date", models.ColTransactionDate)
	profile.AddMapping("Provider", models.ColProviderName)
	profile.AddMapping("Amount Due", models.ColCashApplied)
	if err := registry.AddProfile(profile); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}

	path := writeReport(t, "Statement Date,Provider,Amount Due\n2025-01-04,Davis,50\n")
	_, meta := transformer.Transform(path, "")

	if meta.ErrorCode != errors.CodePipelineMissing {
		t.Fatalf("Expected code %s, got %s (error %q)", errors.CodePipelineMissing, meta.ErrorCode, meta.Error)
	}
	if meta.Format != "patient_statements" {
		t.Errorf("Expected detected format preserved in metadata, got %s", meta.Format)
	}
}

func TestTransform_ExplicitFormatOverridesDetection(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	path := writeReport(t, "Trans. #,Trans. Date,Gross Amt,Provider\n9690,01-04-2025,55,Maxey\n")

	_, meta := transformer.Transform(path, "credit_card_payment")

	if meta.Format != "credit_card_payment" {
		t.Errorf("Expected explicit format used, got %s", meta.Format)
	}
	if meta.DetectionConfidence != 0 {
		t.Errorf("Expected detection skipped, got confidence %v", meta.DetectionConfidence)
	}
}

func TestTransform_RegisterPipeline(t *testing.T) {
	transformer, registry := newTestTransformer(t)

	profile := formats.NewFormatProfile("patient_statements", "")
	profile.AddMapping("Statement Date", models.ColTransactionDate)
	profile.AddMapping("Provider", models.ColProviderName)
	profile.AddMapping("Amount Due", models.ColCashApplied)
	if err := registry.AddProfile(profile); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}

	transformer.RegisterPipeline("patient_statements", []Rule{
		&RenameColumnsRule{Mappings: profile.ColumnMappings},
		&NumberFormatRule{Columns: []string{models.ColCashApplied}},
	})
	if !transformer.HasPipeline("patient_statements") {
		t.Fatal("Expected pipeline registered")
	}

	path := writeReport(t, "Statement Date,Provider,Amount Due\n2025-01-04,Davis,$50.00\n")
	table, meta := transformer.Transform(path, "")

	if meta.Error != "" {
		t.Fatalf("Unexpected error: %s", meta.Error)
	}
	if got, _ := table.GetString(0, models.ColCashApplied); got != "50" {
		t.Errorf("Expected custom pipeline applied, got %q", got)
	}
}

func TestTransform_RuleFailure(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	transformer.RegisterPipeline("credit_card_payment", []Rule{
		&SplitColumnRule{Source: "Memo", Pattern: `[`, Targets: []string{"a"}},
	})

	path := writeReport(t, "Trans. #,Trans. Date,Gross Amt,Provider\n9690,01-04-2025,55,Maxey\n")
	_, meta := transformer.Transform(path, "credit_card_payment")

	if meta.ErrorCode != errors.CodeRuleFailed {
		t.Errorf("Expected code %s, got %s", errors.CodeRuleFailed, meta.ErrorCode)
	}
}

func TestTransform_HeaderlessFile(t *testing.T) {
	transformer, _ := newTestTransformer(t)
	path := writeReport(t, "9690,01-04-2025,55\n9691,01-05-2025,60\n")

	_, meta := transformer.Transform(path, "credit_card_payment")

	if meta.ErrorCode != errors.CodeNoHeaderRow {
		t.Errorf("Expected code %s, got %s", errors.CodeNoHeaderRow, meta.ErrorCode)
	}
}

func TestValidateTransformation(t *testing.T) {
	table := models.NewCanonicalTable()
	table.AppendRow(models.Row{
		models.ColTransactionDate: models.Cell("2025-01-04"),
		models.ColCashApplied:     models.Cell("50"),
		models.ColProviderName:    nil,
	})
	table.AppendRow(models.Row{
		models.ColTransactionDate: models.Cell("2025-01-05"),
		models.ColCashApplied:     models.Cell("-10"),
		models.ColProviderName:    models.Cell("Davis"),
	})

	findings := validateTransformation(table, "test_table")

	if len(findings) != 2 {
		t.Fatalf("Expected 2 findings, got %d: %v", len(findings), findings)
	}

	byType := make(map[string]ValidationFinding)
	for _, f := range findings {
		byType[f.Type] = f
	}

	missing, ok := byType[FindingMissingRequired]
	if !ok {
		t.Fatal("Expected a missing_required finding")
	}
	if missing.Column != models.ColProviderName || missing.Count != 1 {
		t.Errorf("Unexpected missing_required finding: %+v", missing)
	}

	negative, ok := byType[FindingNegativeValues]
	if !ok {
		t.Fatal("Expected a negative_values finding")
	}
	if negative.Count != 1 {
		t.Errorf("Expected 1 negative row, got %d", negative.Count)
	}
}

func TestValidateTransformation_InvalidDates(t *testing.T) {
	table := models.NewCanonicalTable()
	table.AppendRow(models.Row{
		models.ColTransactionDate: models.Cell("2025-01-04"),
		models.ColCashApplied:     models.Cell("50"),
		models.ColProviderName:    models.Cell("Davis"),
		models.ColServiceDate:     models.Cell("not-a-date"),
	})

	findings := validateTransformation(table, "test_table")

	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d: %v", len(findings), findings)
	}
	if findings[0].Type != FindingInvalidDates || findings[0].Column != models.ColServiceDate {
		t.Errorf("Unexpected finding: %+v", findings[0])
	}
}

func TestValidateTransformation_Clean(t *testing.T) {
	table := models.NewCanonicalTable()
	table.AppendRow(models.Row{
		models.ColTransactionDate: models.Cell("2025-01-04"),
		models.ColCashApplied:     models.Cell("50"),
		models.ColProviderName:    models.Cell("Davis"),
	})

	if findings := validateTransformation(table, "test_table"); len(findings) != 0 {
		t.Errorf("Expected no findings, got %v", findings)
	}
}
