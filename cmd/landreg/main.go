// Package main provides the command line client of the land registry
//
// This CLI tool provides:
//   - Private key login and role lookup (auth)
//   - Document upload and land registration (land)
//   - A p2p node serving stored documents (node)
//   - An interactive terminal interface (tui)
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
