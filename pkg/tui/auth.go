package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"landRegistry/pkg/registry"
)

// AuthFactory builds an Authenticator reporting to nav and alert.
type AuthFactory func(nav registry.Navigator, alert registry.Alerter) *registry.Authenticator

// AuthView is the private-key login page.
type AuthView struct {
	styles  *Styles
	newAuth AuthFactory
	ctx     context.Context

	input textinput.Model
	busy  bool
	alert string
}

// NewAuthView creates the login page.
func NewAuthView(ctx context.Context, s *Styles, newAuth AuthFactory) *AuthView {
	if s == nil {
		s = DefaultStyles()
	}
	ti := textinput.New()
	ti.Placeholder = "Private key"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 130
	ti.Width = 66
	ti.Focus()

	return &AuthView{styles: s, newAuth: newAuth, ctx: ctx, input: ti}
}

// Init starts the cursor blink.
func (v *AuthView) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the login page.
func (v *AuthView) Update(msg tea.Msg) (*AuthView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return v, v.submit()
		}
	case LoginDone:
		v.busy = false
		if msg.Err != nil && len(msg.Alerts) > 0 {
			v.alert = msg.Alerts[0]
		}
		return v, nil
	}

	if v.busy {
		return v, nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *AuthView) submit() tea.Cmd {
	if v.busy {
		return nil
	}
	key := strings.TrimSpace(v.input.Value())
	v.busy = true
	v.alert = ""
	ctx := v.ctx
	newAuth := v.newAuth
	return func() tea.Msg {
		rec := &registry.Recorder{}
		login, err := newAuth(rec, rec).Login(ctx, key)
		return LoginDone{Login: login, Err: err, Alerts: rec.Alerts(), Route: rec.Last()}
	}
}

// View renders the login page.
func (v *AuthView) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Land Registry · Sign in"))
	b.WriteString("\n")
	b.WriteString(v.styles.Focused.Render(v.input.View()))
	b.WriteString("\n\n")

	if v.busy {
		b.WriteString(v.styles.Button.Render("Connecting…"))
	} else {
		b.WriteString(v.styles.Button.Render("Continue"))
	}
	if v.alert != "" {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Error.Render(v.alert))
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("enter: continue • ctrl+c: quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// Busy reports whether a login is in flight.
func (v *AuthView) Busy() bool { return v.busy }

// Alert returns the alert currently shown, or "".
func (v *AuthView) Alert() string { return v.alert }
