package registry

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"landRegistry/pkg/contract"
	"landRegistry/pkg/credential"
)

// Login is the outcome of a successful login.
type Login struct {
	Account  string           `json:"account"`
	Accounts []string         `json:"accounts"`
	Network  contract.Network `json:"network"`
	Roles    []contract.Role  `json:"roles"`
	Route    string           `json:"route"`
}

// Authenticator is the private-key login form.
type Authenticator struct {
	connector contract.Connector
	keys      KeyStore
	nav       Navigator
	alert     Alerter
}

// NewAuthenticator returns an Authenticator. nav and alert may be nil.
func NewAuthenticator(connector contract.Connector, keys KeyStore, nav Navigator, alert Alerter) *Authenticator {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	if alert == nil {
		alert = AlerterFunc(func(string) {})
	}
	return &Authenticator{connector: connector, keys: keys, nav: nav, alert: alert}
}

// Login resolves privateKey to an account, connects to the contract, checks
// the account's roles, stores the credential and navigates by role. Any
// failure is logged, alerted exactly once and returned.
func (a *Authenticator) Login(ctx context.Context, privateKey string) (*Login, error) {
	res, err := a.login(ctx, privateKey)
	if err != nil {
		logrus.WithError(err).Error("Login failed")
		a.alert.Alert(AlertLoadFailed)
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"account": res.Account,
		"network": res.Network.ID,
		"roles":   res.Roles,
	}).Info("Logged in")
	a.nav.Navigate(res.Route)
	return res, nil
}

func (a *Authenticator) login(ctx context.Context, privateKey string) (*Login, error) {
	key, err := credential.Parse(privateKey)
	if err != nil {
		return nil, err
	}
	accounts := key.Accounts()

	client, network, err := a.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to contract: %w", err)
	}

	roles, err := Roles(ctx, client, key.Address)
	if err != nil {
		return nil, err
	}

	if err := a.keys.SaveKey(key); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return &Login{
		Account:  key.Address,
		Accounts: accounts,
		Network:  *network,
		Roles:    roles,
		Route:    RouteFor(roles),
	}, nil
}

// Roles returns the roles address holds on the contract.
func Roles(ctx context.Context, client contract.Client, address string) ([]contract.Role, error) {
	checks := []struct {
		role contract.Role
		call func(context.Context, string) (bool, error)
	}{
		{contract.RoleInspector, client.IsLandInspector},
		{contract.RoleSeller, client.IsSeller},
		{contract.RoleBuyer, client.IsBuyer},
	}
	var roles []contract.Role
	for _, c := range checks {
		ok, err := c.call(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s role: %w", c.role, err)
		}
		if ok {
			roles = append(roles, c.role)
		}
	}
	return roles, nil
}

// RouteFor picks the landing page for a set of roles. Inspectors take
// precedence.
func RouteFor(roles []contract.Role) string {
	route := RouteRegistration
	for _, r := range roles {
		switch r {
		case contract.RoleInspector:
			return RouteInspectorDashboard
		case contract.RoleSeller, contract.RoleBuyer:
			route = RouteUserDashboard
		}
	}
	return route
}
