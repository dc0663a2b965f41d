package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"landRegistry/pkg/app"
	"landRegistry/pkg/tui"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}
		// the alternate screen owns the terminal
		logrus.SetOutput(io.Discard)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := app.NewWire(ctx, cfg)
		if err != nil {
			return err
		}
		defer w.Close()

		return tui.NewApp(ctx, tui.Ports{
			NewAuthenticator: w.NewAuthenticator,
			NewForm:          w.NewRegistrationForm,
			Submissions:      w.Journal.List,
		}).Run()
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
