package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landRegistry/pkg/app"
	"landRegistry/pkg/config"
	"landRegistry/pkg/credential"
	"landRegistry/pkg/journal"
	"landRegistry/pkg/registry"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const devAddress = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

func newWire(t *testing.T, roles map[string]string) *app.Wire {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	cfg.Storage.ChunkPath = filepath.Join(dir, "chunks")
	cfg.Storage.ManifestPath = filepath.Join(dir, "manifests")
	cfg.Vault.Path = filepath.Join(dir, "vault.json")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Chain.Backend = config.BackendMemory
	cfg.Chain.Roles = roles

	w, err := app.NewWire(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func ports(w *app.Wire) Ports {
	return Ports{
		NewAuthenticator: w.NewAuthenticator,
		NewForm:          w.NewRegistrationForm,
		Submissions:      w.Journal.List,
	}
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLoginNavigatesByRole(t *testing.T) {
	tests := []struct {
		name  string
		roles map[string]string
		page  Page
	}{
		{"seller", map[string]string{devAddress: "seller"}, PageDashboard},
		{"inspector", map[string]string{devAddress: "inspector"}, PageDashboard},
		{"no role", nil, PageRegistration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWire(t, tt.roles)
			a := NewApp(context.Background(), ports(w))

			a.auth.input.SetValue(devKey)
			_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
			require.NotNil(t, cmd)
			assert.True(t, a.auth.Busy())

			msg := cmd()
			done, ok := msg.(LoginDone)
			require.True(t, ok)
			require.NoError(t, done.Err)

			a.Update(msg)
			assert.Equal(t, tt.page, a.Page())
			require.NotNil(t, a.Login())
			assert.Equal(t, devAddress, strings.ToLower(a.Login().Account))
		})
	}
}

func TestLoginFailureShowsOneAlert(t *testing.T) {
	w := newWire(t, nil)
	a := NewApp(context.Background(), ports(w))

	a.auth.input.SetValue("not-a-key")
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	done := msg.(LoginDone)
	require.Error(t, done.Err)
	assert.Len(t, done.Alerts, 1)

	a.Update(msg)
	assert.Equal(t, PageAuth, a.Page())
	assert.False(t, a.auth.Busy())
	assert.Equal(t, registry.AlertLoadFailed, a.auth.Alert())
	assert.Contains(t, a.View(), registry.AlertLoadFailed)
}

func TestSecondEnterWhileLoggingInIsIgnored(t *testing.T) {
	w := newWire(t, nil)
	v := NewAuthView(context.Background(), nil, w.NewAuthenticator)
	v.input.SetValue(devKey)

	_, first := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, second := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, first)
	assert.Nil(t, second)
}

func fillFields(t *testing.T, v *RegistrationView, values []string) {
	t.Helper()
	for i, val := range values {
		v.Update(typeText(val))
		if i < len(values)-1 {
			v.Update(tea.KeyMsg{Type: tea.KeyTab})
		}
	}
}

func TestSubmitDisabledUntilFieldsFilled(t *testing.T) {
	w := newWire(t, nil)
	v := NewRegistrationView(context.Background(), nil, w.NewRegistrationForm)

	// area, city, state, price, pid; survey left empty
	fillFields(t, v, []string{"1200", "Pune", "MH", "500000", "PAN123"})
	assert.False(t, v.Form().CanSubmit())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)
	assert.False(t, v.Submitting())

	v.Update(tea.KeyMsg{Type: tea.KeyTab})
	v.Update(typeText("SRV99"))
	assert.True(t, v.Form().CanSubmit())

	f := v.Form().Fields()
	assert.Equal(t, "1200", f.Area)
	assert.Equal(t, "Pune", f.City)
	assert.Equal(t, "SRV99", f.Survey)
}

func TestFocusWraps(t *testing.T) {
	w := newWire(t, nil)
	v := NewRegistrationView(context.Background(), nil, w.NewRegistrationForm)

	v.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, v.submitIndex(), v.Focus())
	v.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, v.Focus())
}

// runUpload feeds the upload command chain back into v until it finishes.
func runUpload(t *testing.T, v *RegistrationView, cmd tea.Cmd) UploadFinished {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		_, next := v.Update(msg)
		if fin, ok := msg.(UploadFinished); ok {
			return fin
		}
		cmd = next
	}
	t.Fatal("upload command chain ended without finishing")
	return UploadFinished{}
}

func TestUploadAndSubmit(t *testing.T) {
	w := newWire(t, map[string]string{devAddress: "seller"})
	key, err := credential.Parse(devKey)
	require.NoError(t, err)
	require.NoError(t, w.Vault.SaveKey(key))

	dir := t.TempDir()
	deed := filepath.Join(dir, "deed.pdf")
	plot := filepath.Join(dir, "plot.png")
	require.NoError(t, os.WriteFile(deed, []byte("sale deed"), 0o644))
	require.NoError(t, os.WriteFile(plot, []byte("plot image"), 0o644))

	v := NewRegistrationView(context.Background(), nil, w.NewRegistrationForm)
	fillFields(t, v, []string{"1200", "Pune", "MH", "500000", "PAN123", "SRV99"})

	for i, path := range []string{deed, plot} {
		v.setFocus(len(v.fields) + i)
		v.files[i].SetValue(path)
		_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)
		fin := runUpload(t, v, cmd)
		require.NoError(t, fin.Err)
		assert.NotEmpty(t, fin.Hash)
	}
	assert.Equal(t, 100, v.Form().Document.Progress())
	assert.Equal(t, 100, v.Form().Image.Progress())

	v.setFocus(v.submitIndex())
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, v.Submitting())

	done := cmd().(SubmitDone)
	require.NoError(t, done.Err)
	assert.Equal(t, registry.RouteUserDashboard, done.Route)
	v.Update(done)
	assert.False(t, v.Submitting())
	assert.Contains(t, v.View(), done.Receipt.TxHash)

	require.Len(t, w.Ledger.Lands(), 1)
	subs, err := w.Journal.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, journal.StatusConfirmed, subs[0].Status)
}

func TestSubmitWithoutDocumentsShowsError(t *testing.T) {
	w := newWire(t, nil)
	v := NewRegistrationView(context.Background(), nil, w.NewRegistrationForm)
	fillFields(t, v, []string{"1200", "Pune", "MH", "500000", "PAN123", "SRV99"})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	done := cmd().(SubmitDone)
	assert.ErrorIs(t, done.Err, registry.ErrDocumentsPending)
	assert.Empty(t, done.Route)

	v.Update(done)
	assert.ErrorIs(t, v.Err(), registry.ErrDocumentsPending)
	assert.Empty(t, w.Ledger.Lands())
}

func TestMissingFileShowsError(t *testing.T) {
	w := newWire(t, nil)
	v := NewRegistrationView(context.Background(), nil, w.NewRegistrationForm)
	v.setFocus(len(v.fields))
	v.files[SlotDocument].SetValue(filepath.Join(t.TempDir(), "missing.pdf"))

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Error(t, v.Err())
	assert.Nil(t, v.Form().Document.Session())
}

func TestDashboardListsSubmissions(t *testing.T) {
	list := func(context.Context) ([]journal.Submission, error) {
		return []journal.Submission{{ID: "1", Status: journal.StatusConfirmed, City: "Pune", Identifier: "PAN123", TxHash: "0xabc"}}, nil
	}
	v := NewDashboardView(context.Background(), nil, registry.RouteUserDashboard, nil, list)

	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
	require.Len(t, v.Submissions(), 1)
	assert.Contains(t, v.View(), "0xabc")

	_, cmd = v.Update(typeText("n"))
	require.NotNil(t, cmd)
	assert.Equal(t, Navigated{Route: registry.RouteRegistration}, cmd())
}
