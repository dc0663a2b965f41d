// Package auth provides the sign-in commands of the land registry client
package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd represents the auth command group
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Private key sign-in",
	Long: `Sign in to the land registry with a private key.

This command group provides operations for:
  • Signing in and storing the credential locally
  • Looking up the registry roles of an account`,
}
