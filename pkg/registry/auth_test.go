package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landRegistry/pkg/contract"
	"landRegistry/pkg/credential"
)

type failingConnector struct{ err error }

func (f failingConnector) Connect(context.Context) (contract.Client, *contract.Network, error) {
	return nil, nil, f.err
}

func newAuth(t *testing.T, connector contract.Connector) (*Authenticator, *Recorder, *credential.Vault) {
	t.Helper()
	vault := credential.NewVault(filepath.Join(t.TempDir(), "vault.json"), "secret")
	rec := &Recorder{}
	return NewAuthenticator(connector, vault, rec, rec), rec, vault
}

func TestLoginRoutesByRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []contract.Role
		route string
	}{
		{name: "no role", route: RouteRegistration},
		{name: "seller", roles: []contract.Role{contract.RoleSeller}, route: RouteUserDashboard},
		{name: "buyer", roles: []contract.Role{contract.RoleBuyer}, route: RouteUserDashboard},
		{name: "inspector", roles: []contract.Role{contract.RoleInspector}, route: RouteInspectorDashboard},
		{name: "inspector and seller", roles: []contract.Role{contract.RoleSeller, contract.RoleInspector}, route: RouteInspectorDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := contract.NewLedger()
			for _, r := range tt.roles {
				require.NoError(t, ledger.Grant(r, devAddress))
			}
			auth, rec, vault := newAuth(t, ledger)

			res, err := auth.Login(context.Background(), "0x"+devKey)
			require.NoError(t, err)
			assert.Equal(t, devAddress, res.Account)
			assert.Equal(t, []string{devAddress}, res.Accounts)
			assert.Equal(t, "memory", res.Network.ID)
			assert.ElementsMatch(t, tt.roles, res.Roles)
			assert.Equal(t, []string{tt.route}, rec.Routes())
			assert.Empty(t, rec.Alerts())

			stored, err := vault.Get(credential.CredentialKey)
			require.NoError(t, err)
			assert.Equal(t, devKey, stored)
		})
	}
}

func TestLoginFailureAlertsOnce(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		connector contract.Connector
	}{
		{name: "malformed key", key: "not-a-key", connector: contract.NewLedger()},
		{name: "connect fails", key: devKey, connector: failingConnector{err: contract.ErrNotDeployed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, rec, vault := newAuth(t, tt.connector)

			var err error
			assert.NotPanics(t, func() {
				_, err = auth.Login(context.Background(), tt.key)
			})
			assert.Error(t, err)
			assert.Equal(t, []string{AlertLoadFailed}, rec.Alerts())
			assert.Empty(t, rec.Routes())

			_, err = vault.Get(credential.CredentialKey)
			assert.ErrorIs(t, err, credential.ErrNotFound)
		})
	}
}

func TestLoginRoleCheckFailure(t *testing.T) {
	client := &mockClient{}
	client.On("IsLandInspector", context.Background(), devAddress).Return(false, errors.New("call reverted"))
	connector := connectorFunc(func(context.Context) (contract.Client, *contract.Network, error) {
		return client, &contract.Network{ID: "5777"}, nil
	})
	auth, rec, _ := newAuth(t, connector)

	_, err := auth.Login(context.Background(), devKey)
	assert.Error(t, err)
	assert.Len(t, rec.Alerts(), 1)
	client.AssertNotCalled(t, "IsSeller", context.Background(), devAddress)
}

type connectorFunc func(context.Context) (contract.Client, *contract.Network, error)

func (f connectorFunc) Connect(ctx context.Context) (contract.Client, *contract.Network, error) {
	return f(ctx)
}

func TestRouteFor(t *testing.T) {
	assert.Equal(t, RouteRegistration, RouteFor(nil))
	assert.Equal(t, RouteUserDashboard, RouteFor([]contract.Role{contract.RoleBuyer, contract.RoleSeller}))
	assert.Equal(t, RouteInspectorDashboard, RouteFor([]contract.Role{contract.RoleBuyer, contract.RoleInspector}))
}
