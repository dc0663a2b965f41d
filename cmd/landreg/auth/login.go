package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"landRegistry/pkg/app"
	"landRegistry/pkg/contract"
	"landRegistry/pkg/registry"
)

var privateKey string

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a private key",
	Long: `Sign in with a private key.

The key resolves to an account, the registry contract is located on the
connected network and the account's roles are checked. On success the key
is stored in the local vault and used to sign later registrations.

Without --key the key is read from the terminal without echo.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return login(cmd)
	},
}

func init() {
	AuthCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&privateKey, "key", "k", "", "Private key (hex)")
}

func login(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	key := privateKey
	if key == "" {
		fmt.Fprint(os.Stderr, "Private key: ")
		key = readSecret()
		fmt.Fprintln(os.Stderr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ChainTimeout())
	defer cancel()

	w, err := app.NewWire(ctx, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	alert := registry.AlerterFunc(func(message string) {
		fmt.Fprintln(os.Stderr, message)
	})
	res, err := w.NewAuthenticator(nil, alert).Login(ctx, key)
	if err != nil {
		return err
	}

	fmt.Printf("Account: %s\n", res.Account)
	fmt.Printf("Network: %s (chain %s)\n", res.Network.ID, res.Network.ChainID)
	fmt.Printf("Contract: %s\n", res.Network.ContractAddress)
	fmt.Printf("Roles: %s\n", formatRoles(res.Roles))
	fmt.Printf("Next: %s\n", res.Route)
	return nil
}

func formatRoles(roles []contract.Role) string {
	if len(roles) == 0 {
		return "none"
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

//nolint:errcheck // CLI helper, error ignored for UX
func readSecret() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
