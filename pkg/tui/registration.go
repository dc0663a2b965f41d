package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"landRegistry/pkg/land"
	"landRegistry/pkg/registry"
	"landRegistry/pkg/upload"
)

// FormFactory builds a registration form navigating through nav.
type FormFactory func(nav registry.Navigator) *registry.RegistrationForm

// Slot indexes.
const (
	SlotDocument = iota
	SlotImage
)

// RegistrationView is the land registration page.
type RegistrationView struct {
	styles *Styles
	ctx    context.Context
	form   *registry.RegistrationForm
	nav    *registry.Recorder

	fields []textinput.Model
	files  [2]textinput.Model
	bars   [2]progress.Model
	focus  int

	submitting bool
	err        error
	status     string
}

// NewRegistrationView creates the registration page with an empty form.
func NewRegistrationView(ctx context.Context, s *Styles, newForm FormFactory) *RegistrationView {
	if s == nil {
		s = DefaultStyles()
	}
	nav := &registry.Recorder{}
	v := &RegistrationView{
		styles: s,
		ctx:    ctx,
		form:   newForm(nav),
		nav:    nav,
	}

	for _, name := range land.FieldOrder {
		ti := textinput.New()
		ti.Placeholder = land.Labels[name]
		ti.CharLimit = 128
		ti.Width = 40
		v.fields = append(v.fields, ti)
	}
	for i, label := range []string{"Document", "Image"} {
		ti := textinput.New()
		ti.Placeholder = label + " file path"
		ti.CharLimit = 1024
		ti.Width = 40
		v.files[i] = ti
		v.bars[i] = progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	}
	v.fields[0].Focus()
	return v
}

// Init starts the cursor blink.
func (v *RegistrationView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *RegistrationView) inputCount() int { return len(v.fields) + len(v.files) }

// submitIndex is the focus index of the submit button.
func (v *RegistrationView) submitIndex() int { return v.inputCount() }

func (v *RegistrationView) input(i int) *textinput.Model {
	if i < len(v.fields) {
		return &v.fields[i]
	}
	if i < v.inputCount() {
		return &v.files[i-len(v.fields)]
	}
	return nil
}

func (v *RegistrationView) setFocus(i int) tea.Cmd {
	n := v.submitIndex() + 1
	i = ((i % n) + n) % n
	if in := v.input(v.focus); in != nil {
		in.Blur()
	}
	v.focus = i
	if in := v.input(i); in != nil {
		return in.Focus()
	}
	return nil
}

// Update handles messages for the registration page.
func (v *RegistrationView) Update(msg tea.Msg) (*RegistrationView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case UploadProgress:
		if v.current(msg.Slot) != msg.session {
			return v, closeAfter(msg.watch, msg.file)
		}
		return v, watchUpload(msg.Slot, msg.session, msg.watch, msg.file)

	case UploadFinished:
		if v.current(msg.Slot) != msg.session {
			return v, nil
		}
		if msg.Err != nil {
			v.err = fmt.Errorf("%s upload failed: %w", v.slot(msg.Slot).Label, msg.Err)
		}
		return v, nil

	case SubmitDone:
		v.submitting = false
		if msg.Err != nil {
			v.err = msg.Err
			v.status = ""
			return v, nil
		}
		v.err = nil
		v.status = "Registered in tx " + msg.Receipt.TxHash
		return v, nil
	}
	return v, nil
}

func (v *RegistrationView) handleKey(msg tea.KeyMsg) (*RegistrationView, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return v, v.setFocus(v.focus + 1)
	case "shift+tab", "up":
		return v, v.setFocus(v.focus - 1)
	case "ctrl+s":
		return v, v.submit()
	case "enter":
		switch {
		case v.focus == v.submitIndex():
			return v, v.submit()
		case v.focus >= len(v.fields):
			return v, v.selectFile(v.focus - len(v.fields))
		default:
			return v, v.setFocus(v.focus + 1)
		}
	}

	in := v.input(v.focus)
	if in == nil {
		return v, nil
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	if v.focus < len(v.fields) {
		if err := v.form.Set(land.FieldOrder[v.focus], in.Value()); err != nil {
			logrus.WithError(err).Debug("Ignoring field update")
		}
	}
	return v, cmd
}

func (v *RegistrationView) slot(i int) *upload.Slot {
	if i == SlotImage {
		return v.form.Image
	}
	return v.form.Document
}

func (v *RegistrationView) current(i int) *upload.Session {
	return v.slot(i).Session()
}

// selectFile starts uploading the file named in slot i's path input.
func (v *RegistrationView) selectFile(i int) tea.Cmd {
	path := strings.TrimSpace(v.files[i].Value())
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		v.err = err
		return nil
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		v.err = err
		return nil
	}
	v.err = nil
	sess := v.slot(i).Select(v.ctx, filepath.Base(path), f, info.Size())
	return watchUpload(i, sess, sess.Watch(), f)
}

// watchUpload waits for the next progress value of sess.
func watchUpload(slot int, sess *upload.Session, watch <-chan int, f *os.File) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-watch
		if !ok {
			if f != nil {
				f.Close()
			}
			return UploadFinished{Slot: slot, Hash: sess.Hash(), Err: sess.Err(), session: sess}
		}
		return UploadProgress{Slot: slot, Percent: p, session: sess, watch: watch, file: f}
	}
}

// closeAfter drains a superseded session and closes its file.
func closeAfter(watch <-chan int, f *os.File) tea.Cmd {
	return func() tea.Msg {
		for range watch {
		}
		if f != nil {
			f.Close()
		}
		return nil
	}
}

func (v *RegistrationView) submit() tea.Cmd {
	if v.submitting || !v.form.CanSubmit() {
		return nil
	}
	v.submitting = true
	v.err = nil
	v.status = "Submitting…"
	ctx, form, nav := v.ctx, v.form, v.nav
	return func() tea.Msg {
		receipt, err := form.Submit(ctx)
		done := SubmitDone{Receipt: receipt, Err: err}
		if err == nil {
			done.Route = nav.Last()
		}
		return done
	}
}

// View renders the registration page.
func (v *RegistrationView) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Register Land"))
	b.WriteString("\n")

	errs := v.form.Errors()
	for i, name := range land.FieldOrder {
		b.WriteString(v.styles.Label.Render(land.Labels[name]))
		b.WriteString("\n")
		b.WriteString(v.box(i).Render(v.fields[i].View()))
		if msg, ok := errs[name]; ok && v.focus > i {
			b.WriteString(" ")
			b.WriteString(v.styles.Error.Render(msg))
		}
		b.WriteString("\n")
	}

	for i := range v.files {
		s := v.slot(i)
		b.WriteString(v.styles.Label.Render(s.Label))
		b.WriteString("\n")
		b.WriteString(v.box(len(v.fields) + i).Render(v.files[i].View()))
		b.WriteString("\n")
		b.WriteString(v.bars[i].ViewAs(float64(s.Progress()) / 100))
		if h := s.Hash(); h != "" {
			b.WriteString(" ")
			b.WriteString(v.styles.Muted.Render(h))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	label := "Submit"
	if v.submitting {
		label = "Submitting…"
	}
	switch {
	case !v.form.CanSubmit() || v.submitting:
		b.WriteString(v.styles.Disabled.Render(label))
	case v.focus == v.submitIndex():
		b.WriteString(v.styles.Button.Underline(true).Render(label))
	default:
		b.WriteString(v.styles.Button.Render(label))
	}

	if v.status != "" {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Success.Render(v.status))
	}
	if v.err != nil {
		b.WriteString("\n\n")
		b.WriteString(v.styles.Error.Render(v.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("tab/↓: next • shift+tab/↑: previous • enter on a file: upload • ctrl+s: submit • esc: back"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (v *RegistrationView) box(i int) lipgloss.Style {
	if v.focus == i {
		return v.styles.Focused
	}
	return v.styles.InputField
}

// Form returns the underlying form.
func (v *RegistrationView) Form() *registry.RegistrationForm { return v.form }

// Focus returns the focused input index.
func (v *RegistrationView) Focus() int { return v.focus }

// Submitting reports whether a submit is in flight.
func (v *RegistrationView) Submitting() bool { return v.submitting }

// Err returns the last error shown on the page.
func (v *RegistrationView) Err() error { return v.err }
