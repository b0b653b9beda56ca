package transform

import (
	"report-normalization-service/internal/models"
)

// PaymentType constants stamped into the canonical payment_type column.
const (
	PaymentTypeCreditCard = "credit_card"
	PaymentTypeInsurance  = "insurance"
)

// DefaultPipelines returns the curated rule pipelines for the built-in
// report formats. Pipelines run strictly in the order listed here.
func DefaultPipelines() map[string][]Rule {
	return map[string][]Rule{
		"credit_card_payment": {
			&RenameColumnsRule{Mappings: map[string]string{
				"Trans. #":    models.ColTransactionID,
				"Trans. Date": models.ColTransactionDate,
				"Gross Amt":   models.ColCashApplied,
				"Client Name": models.ColPayerName,
				"Provider":    models.ColProviderName,
				"Card Type":   models.ColPaymentType,
				"Memo":        models.ColNotes,
			}},
			// Settlement exports use US month-first dates.
			&DateFormatRule{
				Columns: []string{models.ColTransactionDate},
				Formats: []string{"01-02-2006", "01/02/2006"},
			},
			&NumberFormatRule{Columns: []string{models.ColCashApplied}},
			&AddConstantRule{Column: models.ColPaymentType, Value: PaymentTypeCreditCard},
		},
		"insurance_claims": {
			&RenameColumnsRule{Mappings: map[string]string{
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
			}},
			// One check can span several physical rows; the check-level
			// fields appear only on the first row of each logical record.
			&ForwardFillRule{Columns: []string{
				models.ColTransactionID,
				models.ColTransactionDate,
				models.ColProviderName,
				models.ColPayerName,
			}},
			&DateFormatRule{Columns: []string{
				models.ColTransactionDate,
				models.ColServiceDate,
			}},
			&NumberFormatRule{Columns: []string{
				models.ColInsurancePayment,
				models.ColCashApplied,
			}},
			// Older clearinghouse exports leave Cash Applied blank and only
			// populate the check amount.
			&MergeColumnsRule{
				Sources: []string{models.ColCashApplied, models.ColInsurancePayment},
				Target:  models.ColCashApplied,
			},
			&AddConstantRule{Column: models.ColPaymentType, Value: PaymentTypeInsurance},
		},
	}
}
