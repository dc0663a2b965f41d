// Package land provides document upload and land registration commands
package land

import (
	"github.com/spf13/cobra"
)

// LandCmd represents the land command group
var LandCmd = &cobra.Command{
	Use:   "land",
	Short: "Land documents and registration",
	Long: `Upload land documents and register land parcels.

This command group provides operations for:
  • Uploading documents and printing their content hash
  • Fetching a stored document by hash
  • Registering a land parcel on the registry contract
  • Listing local submission records`,
}
