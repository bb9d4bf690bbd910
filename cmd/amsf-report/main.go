// Package main is the entry point for the amsf-report CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/amsf-survey/cmd/amsf-report/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
