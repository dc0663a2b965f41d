package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"landRegistry/pkg/journal"
	"landRegistry/pkg/registry"
)

// SubmissionLister returns the locally recorded submissions.
type SubmissionLister func(ctx context.Context) ([]journal.Submission, error)

// DashboardView shows the signed-in account and its submissions.
type DashboardView struct {
	styles *Styles
	ctx    context.Context
	list   SubmissionLister

	route       string
	login       *registry.Login
	submissions []journal.Submission
	err         error
}

// NewDashboardView creates a dashboard for route.
func NewDashboardView(ctx context.Context, s *Styles, route string, login *registry.Login, list SubmissionLister) *DashboardView {
	if s == nil {
		s = DefaultStyles()
	}
	return &DashboardView{styles: s, ctx: ctx, list: list, route: route, login: login}
}

// Init loads the submissions.
func (v *DashboardView) Init() tea.Cmd {
	return v.load()
}

func (v *DashboardView) load() tea.Cmd {
	if v.list == nil {
		return nil
	}
	ctx, list := v.ctx, v.list
	return func() tea.Msg {
		subs, err := list(ctx)
		return SubmissionsLoaded{Submissions: subs, Err: err}
	}
}

// Update handles messages for the dashboard.
func (v *DashboardView) Update(msg tea.Msg) (*DashboardView, tea.Cmd) {
	switch msg := msg.(type) {
	case SubmissionsLoaded:
		v.submissions, v.err = msg.Submissions, msg.Err
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return v, v.load()
		case "n":
			return v, func() tea.Msg { return Navigated{Route: registry.RouteRegistration} }
		}
	}
	return v, nil
}

// View renders the dashboard.
func (v *DashboardView) View() string {
	var b strings.Builder
	title := "Dashboard"
	if v.route == registry.RouteInspectorDashboard {
		title = "Inspector Dashboard"
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")

	if v.login != nil {
		b.WriteString(v.styles.Label.Render("Account "))
		b.WriteString(v.styles.Normal.Render(v.login.Account))
		b.WriteString("\n")
		b.WriteString(v.styles.Label.Render("Network "))
		b.WriteString(v.styles.Normal.Render(v.login.Network.ID))
		b.WriteString("\n")
		roles := make([]string, 0, len(v.login.Roles))
		for _, r := range v.login.Roles {
			roles = append(roles, string(r))
		}
		if len(roles) == 0 {
			roles = append(roles, "none")
		}
		b.WriteString(v.styles.Label.Render("Roles   "))
		b.WriteString(v.styles.Normal.Render(strings.Join(roles, ", ")))
		b.WriteString("\n\n")
	}

	b.WriteString(v.styles.Label.Render("Submissions"))
	b.WriteString("\n")
	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	case len(v.submissions) == 0:
		b.WriteString(v.styles.Muted.Render("No submissions yet"))
	default:
		for _, s := range v.submissions {
			line := fmt.Sprintf("%-9s %-10s %-12s %s", s.Status, s.City, s.Identifier, s.CreatedAt.Format("2006-01-02 15:04"))
			style := v.styles.Normal
			switch s.Status {
			case journal.StatusConfirmed:
				style = v.styles.Success
			case journal.StatusFailed:
				style = v.styles.Error
			}
			b.WriteString(style.Render(line))
			if s.TxHash != "" {
				b.WriteString(" ")
				b.WriteString(v.styles.Muted.Render(s.TxHash))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("n: register land • r: refresh • ctrl+c: quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// Submissions returns the loaded submissions.
func (v *DashboardView) Submissions() []journal.Submission { return v.submissions }
