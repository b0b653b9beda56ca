package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"report-normalization-service/cmd/normalizer/config"
	"report-normalization-service/internal/detector"

	"github.com/spf13/cobra"
)

var learnDescription string

// formatsCmd groups the registry management subcommands.
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "Manage the report format registry",
	Long: `Formats lists, shows, and learns report format profiles in the
JSON-backed registry.

Examples:
  normalizer formats list
  normalizer formats show insurance_claims
  normalizer formats learn lab_billing sample_export.csv --description "Lab billing export"`,
}

var formatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered format profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.CreateRegistry()
		if err != nil {
			return err
		}
		for _, profile := range registry.Profiles() {
			fmt.Printf("%-25s %s\n", profile.Name, profile.Description)
		}
		return nil
	},
}

var formatsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one format profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.CreateRegistry()
		if err != nil {
			return err
		}
		profile, err := registry.GetProfile(args[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(profile)
	},
}

var formatsLearnCmd = &cobra.Command{
	Use:   "learn <name> <sample-file>",
	Short: "Learn a format profile from a sample file's headers",
	Long: `Learn reads the sample file's header row and builds a profile by
suggesting canonical columns from the shared header pattern dictionary.
Headers with no suggestion are left unmapped; review the profile with
'formats show' and add explicit mappings as needed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, sampleFile := args[0], args[1]

		registry, err := config.CreateRegistry()
		if err != nil {
			return err
		}

		detection := detector.New(registry).DetectFormat(sampleFile)
		headers, ok := headersFromMetadata(detection)
		if !ok {
			return fmt.Errorf("could not read headers from %s", sampleFile)
		}

		profile, err := registry.LearnProfile(name, learnDescription, headers)
		if err != nil {
			return err
		}

		fmt.Printf("Learned profile %q with %d column mappings\n",
			profile.Name, len(profile.ColumnMappings))
		return nil
	},
}

func headersFromMetadata(result *detector.DetectionResult) ([]string, bool) {
	if result.Metadata == nil {
		return nil, false
	}
	headers, ok := result.Metadata["headers"].([]string)
	return headers, ok && len(headers) > 0
}

func init() {
	rootCmd.AddCommand(formatsCmd)
	formatsCmd.AddCommand(formatsListCmd)
	formatsCmd.AddCommand(formatsShowCmd)
	formatsCmd.AddCommand(formatsLearnCmd)

	formatsLearnCmd.Flags().StringVar(&learnDescription, "description", "", "profile description")
}
