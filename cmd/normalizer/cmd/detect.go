package cmd

import (
	"os"

	"report-normalization-service/cmd/normalizer/config"
	"report-normalization-service/internal/detector"

	"github.com/spf13/cobra"
)

var detectOutputFormat string

// detectCmd identifies which registered report format a file uses.
var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Detect the report format of a CSV file",
	Long: `Detect inspects the leading rows of a delimited report file, sniffs its
dialect, and scores it against every profile in the format registry.

An unrecognized file is not an error: the command prints the top candidate
formats and their confidence scores for diagnosis.

Examples:
  normalizer detect payments.csv
  normalizer detect claims.csv --output-format json`,

	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&detectOutputFormat, "output-format", "f", "console", "output format: console, json")
}

func runDetect(cmd *cobra.Command, args []string) error {
	file := args[0]

	registry, err := config.CreateRegistry()
	if err != nil {
		return err
	}

	result := detector.New(registry).DetectFormat(file)

	rep := config.CreateReporter(detectOutputFormat)
	return rep.WriteDetectionReport(os.Stdout, file, result)
}
