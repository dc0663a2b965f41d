package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"landRegistry/pkg/registry"
)

// Page identifies the page currently shown.
type Page int

const (
	PageAuth Page = iota
	PageRegistration
	PageDashboard
)

// Ports are the services the interface drives.
type Ports struct {
	NewAuthenticator AuthFactory
	NewForm          FormFactory
	Submissions      SubmissionLister
}

// App is the top-level bubbletea model.
type App struct {
	ctx    context.Context
	ports  Ports
	styles *Styles

	page         Page
	login        *registry.Login
	auth         *AuthView
	registration *RegistrationView
	dashboard    *DashboardView

	width, height int
}

// NewApp creates the interface starting at the login page.
func NewApp(ctx context.Context, ports Ports) *App {
	s := DefaultStyles()
	return &App{
		ctx:    ctx,
		ports:  ports,
		styles: s,
		page:   PageAuth,
		auth:   NewAuthView(ctx, s, ports.NewAuthenticator),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.auth.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "esc":
			if a.page == PageRegistration && a.login != nil {
				return a, a.navigate(registry.RouteUserDashboard)
			}
		}

	case LoginDone:
		var cmd tea.Cmd
		a.auth, cmd = a.auth.Update(msg)
		if msg.Err != nil {
			return a, cmd
		}
		a.login = msg.Login
		return a, tea.Batch(cmd, a.navigate(msg.Route))

	case Navigated:
		return a, a.navigate(msg.Route)

	case SubmitDone:
		var cmd tea.Cmd
		if a.registration != nil {
			a.registration, cmd = a.registration.Update(msg)
		}
		if msg.Err != nil || msg.Route == "" {
			return a, cmd
		}
		return a, tea.Batch(cmd, a.navigate(msg.Route))

	case SubmissionsLoaded:
		if a.dashboard != nil {
			var cmd tea.Cmd
			a.dashboard, cmd = a.dashboard.Update(msg)
			return a, cmd
		}
		return a, nil

	case UploadProgress, UploadFinished:
		if a.registration != nil {
			var cmd tea.Cmd
			a.registration, cmd = a.registration.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	var cmd tea.Cmd
	switch a.page {
	case PageAuth:
		a.auth, cmd = a.auth.Update(msg)
	case PageRegistration:
		a.registration, cmd = a.registration.Update(msg)
	case PageDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	}
	return a, cmd
}

// navigate switches to the page for route.
func (a *App) navigate(route string) tea.Cmd {
	logrus.WithField("route", route).Debug("Navigate")
	switch route {
	case registry.RouteRegistration:
		if a.registration == nil || a.page == PageDashboard {
			a.registration = NewRegistrationView(a.ctx, a.styles, a.ports.NewForm)
		}
		a.page = PageRegistration
		return a.registration.Init()
	case registry.RouteUserDashboard, registry.RouteInspectorDashboard:
		a.dashboard = NewDashboardView(a.ctx, a.styles, route, a.login, a.ports.Submissions)
		a.page = PageDashboard
		return a.dashboard.Init()
	}
	logrus.Warnf("Unknown route %q", route)
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	switch a.page {
	case PageRegistration:
		return a.registration.View()
	case PageDashboard:
		return a.dashboard.View()
	}
	return a.auth.View()
}

// Run starts the interface on the alternate screen.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Page returns the page currently shown.
func (a *App) Page() Page { return a.page }

// Login returns the signed-in account, or nil.
func (a *App) Login() *registry.Login { return a.login }
