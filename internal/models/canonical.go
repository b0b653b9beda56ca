package models

// Canonical column names for normalized transactions. Every transformed
// table ends with exactly these columns, in this order.
const (
	ColTransactionID    = "transaction_id"
	ColTransactionDate  = "transaction_date"
	ColPatientID        = "patient_id"
	ColProviderID       = "provider_id"
	ColProviderName     = "provider_name"
	ColCashApplied      = "cash_applied"
	ColInsurancePayment = "insurance_payment"
	ColPatientPayment   = "patient_payment"
	ColAdjustmentAmount = "adjustment_amount"
	ColPayerName        = "payer_name"
	ColPaymentType      = "payment_type"
	ColClaimNumber      = "claim_number"
	ColCPTCode          = "cpt_code"
	ColDiagnosisCode    = "diagnosis_code"
	ColServiceDate      = "service_date"
	ColNotes            = "notes"
)

// CanonicalColumns is the fixed output schema, in order.
var CanonicalColumns = []string{
	ColTransactionID,
	ColTransactionDate,
	ColPatientID,
	ColProviderID,
	ColProviderName,
	ColCashApplied,
	ColInsurancePayment,
	ColPatientPayment,
	ColAdjustmentAmount,
	ColPayerName,
	ColPaymentType,
	ColClaimNumber,
	ColCPTCode,
	ColDiagnosisCode,
	ColServiceDate,
	ColNotes,
}

// DateColumns lists the canonical columns that must hold well-formed dates.
var DateColumns = []string{ColTransactionDate, ColServiceDate}

// AmountAliasColumns are the canonical columns that satisfy the generic
// "amount" requirement during format scoring. Profiles map their money
// column to one of these rather than to a literal "amount" column.
var AmountAliasColumns = []string{
	ColCashApplied,
	ColInsurancePayment,
	ColPatientPayment,
	ColAdjustmentAmount,
}

// NewCanonicalTable creates an empty table with the canonical schema.
func NewCanonicalTable() *Table {
	return NewTable(CanonicalColumns)
}

// IsCanonicalColumn reports whether the name is part of the output schema.
func IsCanonicalColumn(name string) bool {
	for _, col := range CanonicalColumns {
		if col == name {
			return true
		}
	}
	return false
}
