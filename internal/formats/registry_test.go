package formats

import (
	"os"
	"path/filepath"
	"testing"

	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/errors"
)

func newTestRegistry(t *testing.T) *FormatRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report_formats.json")
	registry, err := NewFormatRegistry(path)
	if err != nil {
		t.Fatalf("NewFormatRegistry failed: %v", err)
	}
	return registry
}

func TestNewFormatRegistry_SeedsDefaults(t *testing.T) {
	registry := newTestRegistry(t)

	for _, name := range []string{"credit_card_payment", "insurance_claims"} {
		if !registry.HasProfile(name) {
			t.Errorf("Expected built-in profile %s to be seeded", name)
		}
	}

	// The catalog file must exist after seeding.
	if _, err := os.Stat(registry.path); err != nil {
		t.Errorf("Expected catalog file to be written: %v", err)
	}
}

func TestNewFormatRegistry_LoadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report_formats.json")

	first, err := NewFormatRegistry(path)
	if err != nil {
		t.Fatalf("NewFormatRegistry failed: %v", err)
	}

	custom := NewFormatProfile("patient_statements", "Patient statement export")
	custom.AddMapping("Statement Date", models.ColTransactionDate)
	custom.AddMapping("Provider", models.ColProviderName)
	if err := first.AddProfile(custom); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}

	second, err := NewFormatRegistry(path)
	if err != nil {
		t.Fatalf("Reopening registry failed: %v", err)
	}

	restored, err := second.GetProfile("patient_statements")
	if err != nil {
		t.Fatalf("GetProfile failed after reload: %v", err)
	}
	if !custom.Equal(restored) {
		t.Error("Profile did not survive a registry reload")
	}
}

func TestNewFormatRegistry_ReseedsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report_formats.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	registry, err := NewFormatRegistry(path)
	if err != nil {
		t.Fatalf("NewFormatRegistry failed on corrupt file: %v", err)
	}
	if len(registry.Profiles()) != len(DefaultProfiles()) {
		t.Errorf("Expected defaults reseeded, got %d profiles", len(registry.Profiles()))
	}
}

func TestRegistry_GetProfile_NotFound(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.GetProfile("no_such_format")
	if err == nil {
		t.Fatal("Expected error for unknown profile")
	}
	normErr, ok := errors.AsNormalizerError(err)
	if !ok {
		t.Fatalf("Expected a normalizer error, got %T", err)
	}
	if normErr.Code != errors.CodeProfileNotFound {
		t.Errorf("Expected code %s, got %s", errors.CodeProfileNotFound, normErr.Code)
	}
}

func TestRegistry_AddProfile_Validation(t *testing.T) {
	registry := newTestRegistry(t)

	if err := registry.AddProfile(nil); err == nil {
		t.Error("Expected error adding nil profile")
	}
	if err := registry.AddProfile(&FormatProfile{}); err == nil {
		t.Error("Expected error adding unnamed profile")
	}
}

func TestRegistry_Profiles_Sorted(t *testing.T) {
	registry := newTestRegistry(t)
	if err := registry.AddProfile(NewFormatProfile("aaa_first", "")); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}

	profiles := registry.Profiles()
	for i := 1; i < len(profiles); i++ {
		if profiles[i-1].Name > profiles[i].Name {
			t.Fatalf("Profiles not sorted: %s before %s", profiles[i-1].Name, profiles[i].Name)
		}
	}
}

func TestRegistry_LearnProfile(t *testing.T) {
	registry := newTestRegistry(t)

	headers := []string{"Transaction ID", "Payment Date", "Paid Amount", "Provider", "Unmappable Mystery"}
	profile, err := registry.LearnProfile("remittance", "Learned from sample", headers)
	if err != nil {
		t.Fatalf("LearnProfile failed: %v", err)
	}

	expected := map[string]string{
		"Transaction ID": models.ColTransactionID,
		"Payment Date":   models.ColTransactionDate,
		"Paid Amount":    models.ColInsurancePayment,
		"Provider":       models.ColProviderName,
	}
	for header, canonical := range expected {
		if got := profile.ColumnMappings[header]; got != canonical {
			t.Errorf("Expected %q learned as %s, got %q", header, canonical, got)
		}
	}
	if _, ok := profile.ColumnMappings["Unmappable Mystery"]; ok {
		t.Error("Expected unmatched header to stay unmapped")
	}

	if !registry.HasProfile("remittance") {
		t.Error("Expected learned profile to be registered")
	}
}

func TestRegistry_LearnProfile_RequiresName(t *testing.T) {
	registry := newTestRegistry(t)
	if _, err := registry.LearnProfile("", "", []string{"A"}); err == nil {
		t.Error("Expected error learning a profile without a name")
	}
}
