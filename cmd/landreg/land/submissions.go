package land

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"landRegistry/pkg/app"
)

// submissionsCmd represents the land submissions command
var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "List local submission records",
	Long: `List local submission records, newest first.

A submission stays pending while its transaction is in flight and blocks
resubmitting the same record. Use --reset with the submission id to release
a pending submission that will never complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		ctx := context.Background()
		w, err := app.NewWire(ctx, cfg)
		if err != nil {
			return err
		}
		defer w.Close()

		if resetID != "" {
			if err := w.Journal.Reset(ctx, resetID); err != nil {
				return fmt.Errorf("failed to reset submission %s: %w", resetID, err)
			}
			fmt.Printf("Submission %s reset, the record can be submitted again\n", resetID)
			return nil
		}

		subs, err := w.Journal.List(ctx)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No submissions")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tCITY\tPID\tTX\tCREATED")
		for _, s := range subs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Status, s.City, s.Identifier, s.TxHash, s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

var resetID string

func init() {
	LandCmd.AddCommand(submissionsCmd)

	submissionsCmd.Flags().StringVar(&resetID, "reset", "", "Mark a pending submission as failed")
}
