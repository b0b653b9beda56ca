package main

import (
	"os"

	"report-normalization-service/cmd/normalizer/cmd"
	"report-normalization-service/pkg/errors"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		if nerr, ok := errors.AsNormalizerError(err); ok {
			os.Exit(nerr.GetExitCode())
		}
		os.Exit(1)
	}
}
