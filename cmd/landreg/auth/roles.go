package auth

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"landRegistry/pkg/app"
	"landRegistry/pkg/registry"
)

// rolesCmd represents the auth roles command
var rolesCmd = &cobra.Command{
	Use:   "roles [address]",
	Short: "Show the registry roles of an account",
	Long: `Show whether an account is a seller, a buyer or a land inspector.

Without an address the account of the stored credential is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRoles(cmd, args)
	},
}

func init() {
	AuthCmd.AddCommand(rolesCmd)
}

func showRoles(cmd *cobra.Command, args []string) error {
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

	var address string
	if len(args) == 1 {
		address = args[0]
	} else {
		key, err := w.Vault.LoadKey()
		if err != nil {
			return fmt.Errorf("no address given and no stored credential: %w", err)
		}
		address = key.Address
	}

	roles, err := registry.Roles(ctx, w.Contract, address)
	if err != nil {
		return err
	}
	fmt.Printf("Account: %s\n", address)
	fmt.Printf("Roles: %s\n", formatRoles(roles))
	fmt.Printf("Landing page: %s\n", registry.RouteFor(roles))
	return nil
}
