// Package importer loads normalized transaction tables into permanent
// storage. It is the downstream collaborator of the transformation
// pipeline: it consumes the fixed canonical column set, inserts rows one
// by one, and records per-row success/failure counts so one bad row never
// aborts a batch.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"report-normalization-service/internal/models"
	"report-normalization-service/pkg/errors"
	"report-normalization-service/pkg/logger"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS transactions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id    TEXT,
	transaction_date  TEXT,
	patient_id        TEXT,
	provider_id       TEXT,
	provider_name     TEXT,
	cash_applied      TEXT,
	insurance_payment TEXT,
	patient_payment   TEXT,
	adjustment_amount TEXT,
	payer_name        TEXT,
	payment_type      TEXT,
	claim_number      TEXT,
	cpt_code          TEXT,
	diagnosis_code    TEXT,
	service_date      TEXT,
	notes             TEXT,
	source_file       TEXT
)`

// ImportResult summarizes one table load.
type ImportResult struct {
	SourceFile       string          `json:"source_file"`
	RowsInserted     int             `json:"rows_inserted"`
	RowsFailed       int             `json:"rows_failed"`
	TotalCashApplied decimal.Decimal `json:"total_cash_applied"`
	Failures         []string        `json:"failures,omitempty"`
}

// Importer writes canonical transaction tables to a SQLite database.
type Importer struct {
	db     *sql.DB
	logger logger.Logger
}

// New opens (or creates) the database at the given path and ensures the
// transactions schema exists.
func New(path string) (*Importer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError,
			fmt.Sprintf("failed to open database at %s", path))
	}

	imp := &Importer{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("importer"),
	}
	if err := imp.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return imp, nil
}

// Close releases the underlying database handle.
func (imp *Importer) Close() error {
	return imp.db.Close()
}

func (imp *Importer) ensureSchema(ctx context.Context) error {
	if _, err := imp.db.ExecContext(ctx, createTableStatement); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError,
			"failed to create transactions table")
	}
	return nil
}

// Import inserts every row of a canonical table, continuing past row-level
// failures and counting them in the result. The table must already be in
// canonical column order; the transformer guarantees this.
func (imp *Importer) Import(ctx context.Context, table *models.Table, sourceFile string) (*ImportResult, error) {
	result := &ImportResult{
		SourceFile:       sourceFile,
		TotalCashApplied: decimal.Zero,
	}

	placeholders := make([]string, 0, len(models.CanonicalColumns)+1)
	for range models.CanonicalColumns {
		placeholders = append(placeholders, "?")
	}
	placeholders = append(placeholders, "?") // source_file
	insert := fmt.Sprintf("INSERT INTO transactions (%s, source_file) VALUES (%s)",
		strings.Join(models.CanonicalColumns, ", "), strings.Join(placeholders, ", "))

	stmt, err := imp.db.PrepareContext(ctx, insert)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError,
			"failed to prepare insert statement")
	}
	defer stmt.Close()

	for i := range table.Rows {
		args := make([]interface{}, 0, len(models.CanonicalColumns)+1)
		for _, column := range models.CanonicalColumns {
			cell := table.Get(i, column)
			if cell == nil {
				args = append(args, nil)
			} else {
				args = append(args, *cell)
			}
		}
		args = append(args, sourceFile)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			result.RowsFailed++
			result.Failures = append(result.Failures, fmt.Sprintf("row %d: %v", i+1, err))
			imp.logger.WithError(err).WithFields(logger.Fields{
				"row":  i + 1,
				"file": sourceFile,
			}).Warn("Failed to insert transaction row")
			continue
		}
		result.RowsInserted++

		if cash := table.Get(i, models.ColCashApplied); !models.IsNull(cash) {
			if amount, err := models.ParseAmount(*cash); err == nil {
				result.TotalCashApplied = result.TotalCashApplied.Add(amount)
			}
		}
	}

	imp.logger.WithFields(logger.Fields{
		"file":     sourceFile,
		"inserted": result.RowsInserted,
		"failed":   result.RowsFailed,
	}).Info("Import complete")
	return result, nil
}

// CountTransactions returns the number of stored transactions, optionally
// filtered by source file.
func (imp *Importer) CountTransactions(ctx context.Context, sourceFile string) (int, error) {
	query := "SELECT COUNT(*) FROM transactions"
	var args []interface{}
	if sourceFile != "" {
		query += " WHERE source_file = ?"
		args = append(args, sourceFile)
	}

	var count int
	if err := imp.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError,
			"failed to count transactions")
	}
	return count, nil
}
