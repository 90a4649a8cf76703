package main

import (
	"fmt"
	"os"

	"ecommerce-feature-pipeline/cmd/featurize/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Set version information
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		code, reported := cmd.ExitCode(err)
		if !reported {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(code)
	}
}
