package formats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/errors"
	"report-normalization-service/pkg/logger"
)

// FormatRegistry is the persisted collection of format profiles, mirrored
// to a JSON catalog on disk. The registry is never empty after
// initialization: when the backing file is absent or corrupt the built-in
// profiles are reseeded. Every mutation rewrites the whole file; callers
// must serialize concurrent writers externally.
type FormatRegistry struct {
	path     string
	profiles map[string]*FormatProfile
	logger   logger.Logger
}

// registryDocument is the on-disk catalog shape.
type registryDocument struct {
	Profiles []*FormatProfile `json:"profiles"`
}

// NewFormatRegistry creates a registry backed by the given JSON file,
// loading existing profiles or seeding the built-in defaults.
func NewFormatRegistry(path string) (*FormatRegistry, error) {
	r := &FormatRegistry{
		path:     path,
		profiles: make(map[string]*FormatProfile),
		logger:   logger.GetGlobalLogger().WithComponent("format_registry"),
	}

	if err := r.load(); err != nil {
		r.logger.WithError(err).WithField("path", path).
			Warn("Registry file unusable, seeding default profiles")
		r.seedDefaults()
		if err := r.save(); err != nil {
			return nil, err
		}
	}

	// A readable but empty catalog still gets the defaults.
	if len(r.profiles) == 0 {
		r.seedDefaults()
		if err := r.save(); err != nil {
			return nil, err
		}
	}

	r.logger.WithFields(logger.Fields{
		"path":     path,
		"profiles": len(r.profiles),
	}).Debug("Format registry initialized")
	return r, nil
}

func (r *FormatRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return errors.RegistryError(errors.CodeRegistryIO, r.path, err)
	}

	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.RegistryError(errors.CodeRegistryIO, r.path, err)
	}

	r.profiles = make(map[string]*FormatProfile, len(doc.Profiles))
	for _, profile := range doc.Profiles {
		if profile.Name == "" {
			continue
		}
		r.profiles[profile.Name] = profile
	}
	return nil
}

func (r *FormatRegistry) save() error {
	doc := registryDocument{Profiles: r.Profiles()}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return errors.RegistryError(errors.CodeRegistryIO, r.path, err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.RegistryError(errors.CodeRegistryIO, r.path, err)
		}
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return errors.RegistryError(errors.CodeRegistryIO, r.path, err)
	}
	return nil
}

// AddProfile registers or replaces a profile and rewrites the catalog.
func (r *FormatRegistry) AddProfile(profile *FormatProfile) error {
	if profile == nil || profile.Name == "" {
		return errors.RegistryError(errors.CodeProfileInvalid, "profile name is required", nil)
	}
	r.profiles[profile.Name] = profile
	if err := r.save(); err != nil {
		return err
	}
	r.logger.WithField("profile", profile.Name).Info("Registered format profile")
	return nil
}

// GetProfile returns the named profile.
func (r *FormatRegistry) GetProfile(name string) (*FormatProfile, error) {
	profile, ok := r.profiles[name]
	if !ok {
		return nil, errors.RegistryError(errors.CodeProfileNotFound, name, nil)
	}
	return profile, nil
}

// HasProfile reports whether the named profile is registered.
func (r *FormatRegistry) HasProfile(name string) bool {
	_, ok := r.profiles[name]
	return ok
}

// Profiles returns all registered profiles sorted by name.
func (r *FormatRegistry) Profiles() []*FormatProfile {
	profiles := make([]*FormatProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

// LearnProfile builds a profile from a sample file's headers by matching
// each header against the shared canonical pattern dictionary, then
// registers it. Headers with no suggestion are left unmapped.
func (r *FormatRegistry) LearnProfile(name, description string, headers []string) (*FormatProfile, error) {
	if name == "" {
		return nil, errors.RegistryError(errors.CodeProfileInvalid, "profile name is required", nil)
	}

	dictionary := &FormatProfile{HeaderPatterns: canonicalHeaderPatterns}
	profile := NewFormatProfile(name, description)

	for _, header := range headers {
		canonical, score := dictionary.MatchColumn(header)
		if canonical == "" {
			continue
		}
		profile.ColumnMappings[header] = canonical
		if _, ok := profile.HeaderPatterns[canonical]; !ok {
			profile.HeaderPatterns[canonical] = append([]string(nil), canonicalHeaderPatterns[canonical]...)
		}
		r.logger.WithFields(logger.Fields{
			"header":    header,
			"canonical": canonical,
			"score":     score,
		}).Debug("Learned column mapping")
	}

	if err := r.AddProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *FormatRegistry) seedDefaults() {
	r.profiles = make(map[string]*FormatProfile)
	for _, profile := range DefaultProfiles() {
		r.profiles[profile.Name] = profile
	}
}

// canonicalHeaderPatterns is the shared dictionary of header regex patterns
// per canonical column, used when learning a profile from a sample file.
var canonicalHeaderPatterns = map[string][]string{
	models.ColTransactionID:    {`trans\.?\s*#`, `transaction\s*(id|number|#)`, `\btrans\s*id\b`, `row\s*id`, `reference`},
	models.ColTransactionDate:  {`trans\.?\s*date`, `transaction\s*date`, `check\s*date`, `payment\s*date`, `post(ed|ing)?\s*date`},
	models.ColPatientID:        {`patient\s*(id|#|number)`, `client\s*id`, `account\s*(id|number)`, `\bmrn\b`},
	models.ColProviderID:       {`provider\s*(id|#|number)`, `\bnpi\b`},
	models.ColProviderName:     {`provider`, `rendering`, `physician`, `clinician`},
	models.ColCashApplied:      {`cash\s*applied`, `gross\s*am(oun)?t`, `applied\s*amount`, `^amount$`, `\bamt\b`},
	models.ColInsurancePayment: {`check\s*amount`, `insurance\s*(payment|paid|amount)`, `paid\s*amount`, `ins\s*paid`},
	models.ColPatientPayment:   {`patient\s*(payment|paid)`, `copay`, `co-pay`},
	models.ColAdjustmentAmount: {`adjustment`, `write\s*-?\s*off`, `contractual`},
	models.ColPayerName:        {`payer`, `client\s*name`, `insurance\s*(company|name)`, `carrier`, `cardholder`},
	models.ColPaymentType:      {`payment\s*(type|method)`, `card\s*type`, `tender`},
	models.ColClaimNumber:      {`claim\s*(number|#|no|id)`},
	models.ColCPTCode:          {`\bcpt\b`, `procedure\s*code`},
	models.ColDiagnosisCode:    {`diag(nosis)?\s*code`, `\bicd\b`, `\bdx\b`},
	models.ColServiceDate:      {`service\s*date`, `date\s*of\s*service`, `\bdos\b`},
	models.ColNotes:            {`\bmemo\b`, `\bnotes?\b`, `comment`, `description`},
}

// DefaultProfiles returns the built-in profiles seeded into fresh or
// corrupt registries: the merchant-services settlement export and the
// clearinghouse insurance claims export.
func DefaultProfiles() []*FormatProfile {
	creditCard := NewFormatProfile("credit_card_payment",
		"Merchant services credit card settlement export")
	creditCard.ColumnMappings = map[string]string{
		"Trans. #":    models.ColTransactionID,
		"Trans. Date": models.ColTransactionDate,
		"Gross Amt":   models.ColCashApplied,
		"Client Name": models.ColPayerName,
		"Provider":    models.ColProviderName,
		"Card Type":   models.ColPaymentType,
		"Memo":        models.ColNotes,
	}
	creditCard.HeaderPatterns = map[string][]string{
		models.ColTransactionID:   {`trans\.?\s*#`, `transaction\s*(id|number|#)`, `\btrans\s*id\b`},
		models.ColTransactionDate: {`trans\.?\s*date`, `payment\s*date`, `settle(ment)?\s*date`},
		models.ColCashApplied:     {`gross\s*am(oun)?t`, `^amount$`, `\bamt\b`},
		models.ColPatientID:       {`client\s*id`, `patient\s*id`},
		models.ColProviderName:    {`provider`, `rendering`},
		models.ColPayerName:       {`client\s*name`, `cardholder`},
		models.ColPaymentType:     {`card\s*type`, `payment\s*(type|method)`},
		models.ColNotes:           {`\bmemo\b`, `\bnotes?\b`},
	}
	creditCard.DataTypes = map[string]string{
		models.ColTransactionDate: "date",
		models.ColCashApplied:     "number",
	}
	creditCard.Metadata = map[string]interface{}{
		"source": "merchant_services",
	}

	insurance := NewFormatProfile("insurance_claims",
		"Clearinghouse insurance claims payment export")
	insurance.ColumnMappings = map[string]string{
		"RowId":        models.ColTransactionID,
		"Check Date":   models.ColTransactionDate,
		"Check Amount": models.ColInsurancePayment,
		"Cash Applied": models.ColCashApplied,
		"Provider":     models.ColProviderName,
		"Claim Number": models.ColClaimNumber,
		"Patient ID":   models.ColPatientID,
		"CPT Code":     models.ColCPTCode,
		"Service Date": models.ColServiceDate,
		"Payer":        models.ColPayerName,
	}
	insurance.HeaderPatterns = map[string][]string{
		models.ColTransactionID:    {`row\s*id`, `^rowid$`},
		models.ColTransactionDate:  {`check\s*date`, `post(ed|ing)?\s*date`},
		models.ColInsurancePayment: {`check\s*amount`, `insurance\s*(payment|paid)`, `paid\s*amount`},
		models.ColCashApplied:      {`cash\s*applied`, `applied\s*amount`},
		models.ColProviderName:     {`provider`, `rendering`},
		models.ColClaimNumber:      {`claim\s*(number|#|no|id)`},
		models.ColPatientID:        {`patient\s*(id|#|number)`, `\bmrn\b`},
		models.ColCPTCode:          {`\bcpt\b`, `procedure\s*code`},
		models.ColDiagnosisCode:    {`diag(nosis)?\s*code`, `\bicd\b`},
		models.ColServiceDate:      {`service\s*date`, `date\s*of\s*service`, `\bdos\b`},
		models.ColPayerName:        {`payer`, `insurance\s*(company|name)`, `carrier`},
	}
	insurance.DataTypes = map[string]string{
		models.ColTransactionDate:  "date",
		models.ColServiceDate:      "date",
		models.ColInsurancePayment: "number",
		models.ColCashApplied:      "number",
	}
	insurance.Metadata = map[string]interface{}{
		"source": "clearinghouse",
		"notes":  "single logical record can span multiple physical rows",
	}

	return []*FormatProfile{creditCard, insurance}
}
