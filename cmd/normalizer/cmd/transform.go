package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"report-normalization-service/cmd/normalizer/config"
	"report-normalization-service/internal/importer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the transform command
var (
	transformFormatName   string
	transformOutputFormat string
	transformOutputFile   string
	transformImportDB     string
)

// transformCmd normalizes a report file into the canonical schema.
var transformCmd = &cobra.Command{
	Use:   "transform <file>",
	Short: "Transform a report file into the canonical transaction schema",
	Long: `Transform detects the report format (unless --format names one), runs the
format's transformation pipeline, and validates the canonical output.

Validation findings annotate the result; they do not suppress the output.
With --import-db the canonical rows are also loaded into a SQLite database
with per-row success/failure counts.

Examples:
  normalizer transform payments.csv
  normalizer transform claims.csv --format insurance_claims
  normalizer transform payments.csv --output-format csv --output-file normalized.csv
  normalizer transform payments.csv --import-db billing.db`,

	Args: cobra.ExactArgs(1),
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().StringVar(&transformFormatName, "format", "", "explicit format name (skips detection)")
	transformCmd.Flags().StringVarP(&transformOutputFormat, "output-format", "f", "console", "output format: console, json, csv")
	transformCmd.Flags().StringVarP(&transformOutputFile, "output-file", "o", "", "output file path (default: stdout)")
	transformCmd.Flags().StringVar(&transformImportDB, "import-db", "", "SQLite database to load the canonical rows into")

	viper.BindPFlag("import-db", transformCmd.Flags().Lookup("import-db"))
}

func runTransform(cmd *cobra.Command, args []string) error {
	file := args[0]

	transformer, err := config.CreateTransformer()
	if err != nil {
		return err
	}

	table, meta := transformer.Transform(file, transformFormatName)

	out, closer, err := outputWriter(transformOutputFile)
	if err != nil {
		return err
	}
	defer closer()

	rep := config.CreateReporter(transformOutputFormat)
	if err := rep.WriteTransformReport(out, file, table, meta); err != nil {
		return err
	}

	if transformImportDB != "" && meta.Error == "" {
		imp, err := importer.New(transformImportDB)
		if err != nil {
			return err
		}
		defer imp.Close()

		result, err := imp.Import(context.Background(), table, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Imported %d rows (%d failed) into %s\n",
			result.RowsInserted, result.RowsFailed, transformImportDB)
	}

	return nil
}

func outputWriter(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}
