package detector

import (
	"os"
	"path/filepath"
	"testing"

	"report-normalization-service/internal/formats"
	"report-normalization-service/internal/models"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	registry, err := formats.NewFormatRegistry(filepath.Join(t.TempDir(), "report_formats.json"))
	if err != nil {
		t.Fatalf("NewFormatRegistry failed: %v", err)
	}
	return New(registry)
}

const creditCardSample = `Trans. #,Trans. Date,Card Type,Gross Amt,Fee,Client Name,Provider
9690,01-04-2025,Visa,55,1.75,Kate Martin,Tammy Maxey
9691,01-04-2025,MC,"$1,234.50",2.10,Ann Mosley,Tammy Maxey
`

const insuranceSample = `RowId,Check Date,Patient ID,Claim Number,CPT Code,Check Amount,Cash Applied,Provider,Service Date,Payer
1,2025-01-10,P100,C-500,99213,125.00,125.00,Davis,2025-01-02,Aetna
2,2025-01-10,P101,C-501,99214,80.00,,Davis,2025-01-03,Aetna
`

func TestDetectFormat_CreditCard(t *testing.T) {
	d := newTestDetector(t)
	path := writeTestFile(t, creditCardSample)

	result := d.DetectFormat(path)

	if !result.Recognized() {
		t.Fatalf("Expected recognition, got metadata %v", result.Metadata)
	}
	if result.FormatName != "credit_card_payment" {
		t.Errorf("Expected credit_card_payment, got %s", result.FormatName)
	}
	if result.Confidence <= 0.7 {
		t.Errorf("Expected confidence above 0.7, got %v", result.Confidence)
	}

	expectedMap := map[string]string{
		"Trans. #":    models.ColTransactionID,
		"Trans. Date": models.ColTransactionDate,
		"Gross Amt":   models.ColCashApplied,
		"Client Name": models.ColPayerName,
		"Provider":    models.ColProviderName,
		"Card Type":   models.ColPaymentType,
	}
	for header, canonical := range expectedMap {
		if got := result.ColumnMap[header]; got != canonical {
			t.Errorf("Expected %q mapped to %s, got %q", header, canonical, got)
		}
	}
}

func TestDetectFormat_Insurance(t *testing.T) {
	d := newTestDetector(t)
	path := writeTestFile(t, insuranceSample)

	result := d.DetectFormat(path)

	if result.FormatName != "insurance_claims" {
		t.Fatalf("Expected insurance_claims, got %q (confidence %v)", result.FormatName, result.Confidence)
	}
	if result.ColumnMap["Check Amount"] != models.ColInsurancePayment {
		t.Errorf("Expected Check Amount mapped to %s, got %s",
			models.ColInsurancePayment, result.ColumnMap["Check Amount"])
	}
}

func TestDetectFormat_Unrecognized(t *testing.T) {
	d := newTestDetector(t)
	path := writeTestFile(t, "Column1,Column2,Column3,Column4\nfoo,bar,baz,qux\n")

	result := d.DetectFormat(path)

	if result.Recognized() {
		t.Fatalf("Expected unrecognized, got %s", result.FormatName)
	}
	candidates, ok := result.Metadata["top_candidates"].([]CandidateScore)
	if !ok {
		t.Fatal("Expected top_candidates in metadata")
	}
	if len(candidates) == 0 || len(candidates) > 3 {
		t.Errorf("Expected 1..3 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.Confidence >= MinDetectionConfidence {
			t.Errorf("Candidate %s at %v should be below threshold", c.Format, c.Confidence)
		}
	}
}

func TestDetectFormat_RequiredColumnPenalty(t *testing.T) {
	d := newTestDetector(t)
	// Enough credit card headers to match incidentally, but no date column.
	path := writeTestFile(t, "Trans. #,Card Type,Memo\n9690,Visa,note\n")

	result := d.DetectFormat(path)

	if result.Recognized() {
		t.Fatalf("Expected penalty to keep file unrecognized, got %s at %v",
			result.FormatName, result.Confidence)
	}
	if result.Confidence != requiredPenaltyConfidence {
		t.Errorf("Expected clamped confidence %v, got %v", requiredPenaltyConfidence, result.Confidence)
	}
}

func TestDetectFormat_NoHeader(t *testing.T) {
	d := newTestDetector(t)
	path := writeTestFile(t, "9690,01-04-2025,55\n9691,01-05-2025,60\n")

	result := d.DetectFormat(path)

	if result.Recognized() {
		t.Fatalf("Expected headerless file to fail fast, got %s", result.FormatName)
	}
	if noHeader, _ := result.Metadata["no_header"].(bool); !noHeader {
		t.Errorf("Expected no_header metadata, got %v", result.Metadata)
	}
}

func TestDetectFormat_ByteOrderMark(t *testing.T) {
	d := newTestDetector(t)
	// Excel saves CSV exports with a UTF-8 byte order mark; it must not
	// pollute the first header.
	path := writeTestFile(t, "\ufeff"+creditCardSample)

	result := d.DetectFormat(path)

	if result.FormatName != "credit_card_payment" {
		t.Fatalf("Expected credit_card_payment, got %q (metadata %v)", result.FormatName, result.Metadata)
	}
	if result.ColumnMap["Trans. #"] != models.ColTransactionID {
		t.Errorf("Expected BOM-stripped header mapped exactly, got map %v", result.ColumnMap)
	}
}

func TestDetectFormat_MissingFile(t *testing.T) {
	d := newTestDetector(t)

	result := d.DetectFormat(filepath.Join(t.TempDir(), "absent.csv"))

	if result.Recognized() || result.Confidence != 0.0 {
		t.Fatalf("Expected zero-confidence result, got %+v", result)
	}
	if result.Metadata["error"] == nil {
		t.Error("Expected error text in metadata")
	}
}

func TestDetectFormat_EmptyFile(t *testing.T) {
	d := newTestDetector(t)
	path := writeTestFile(t, "")

	result := d.DetectFormat(path)

	if result.Recognized() || result.Metadata["error"] == nil {
		t.Errorf("Expected empty file error in metadata, got %+v", result)
	}
}

func TestSniffDialect_Delimiters(t *testing.T) {
	tests := []struct {
		name      string
		sample    string
		delimiter rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"semicolon", "a;b;c\n1;2;3\n", ';'},
		{"tab", "a\tb\tc\n1\t2\t3\n", '\t'},
		{"pipe", "a|b|c\n1|2|3\n", '|'},
		{"default", "single\nrow\n", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialect := SniffDialect([]byte(tt.sample))
			if dialect.Delimiter != tt.delimiter {
				t.Errorf("Expected delimiter %q, got %q", tt.delimiter, dialect.Delimiter)
			}
		})
	}
}

func TestSniffDialect_HeaderDetection(t *testing.T) {
	tests := []struct {
		name      string
		sample    string
		hasHeader bool
	}{
		{"text header numeric data", "Name,Amount\nAlice,50\n", true},
		{"numeric first row", "9690,55\n9691,60\n", false},
		{"date first row", "2025-01-04,Visa\n2025-01-05,MC\n", false},
		{"all text rows", "Name,Provider\nAlice,Davis\n", true},
		{"single text row", "Name,Amount\n", true},
		{"empty sample", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialect := SniffDialect([]byte(tt.sample))
			if dialect.HasHeader != tt.hasHeader {
				t.Errorf("Expected HasHeader=%t for %q", tt.hasHeader, tt.sample)
			}
		})
	}
}
