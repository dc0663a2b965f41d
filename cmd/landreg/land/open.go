package land

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"landRegistry/pkg/app"
)

var outputPath string

// openCmd represents the land open command
var openCmd = &cobra.Command{
	Use:   "open <hash>",
	Short: "Write a stored document to a file or stdout",
	Long: `Write a stored document to a file or stdout.

Documents that are not stored locally are fetched from the p2p network when
it is enabled. Every chunk is verified against its hash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ChainTimeout())
		defer cancel()

		w, err := app.NewWire(ctx, cfg)
		if err != nil {
			return err
		}
		defer w.Close()

		out := os.Stdout
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return w.Open(ctx, args[0], out)
	},
}

func init() {
	LandCmd.AddCommand(openCmd)

	openCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default stdout)")
}
