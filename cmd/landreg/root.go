package main

import (
	"github.com/spf13/cobra"

	"landRegistry/cmd/landreg/auth"
	"landRegistry/cmd/landreg/land"
)

var (
	// Version information (set via ldflags during build)
	version = "1.0.0"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "landreg",
	Short: "Land registry client",
	Long: `A command line client for the blockchain land registry.

This tool provides commands for:
  • Signing in with a private key and checking registry roles
  • Uploading land documents to content storage
  • Registering land parcels on the registry contract
  • Running a p2p node that serves stored documents
  • An interactive terminal interface`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(land.LandCmd)
}
