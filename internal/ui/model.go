package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muon-ssh/muon/internal/ansi"
	"github.com/muon-ssh/muon/internal/editor"
	"github.com/muon-ssh/muon/internal/session"
)

const defaultWidth = 80

type refreshMsg struct{}

type closedMsg struct {
	id  int
	err error
}

type editedMsg struct {
	path string
	err  error
}

type model struct {
	w       *Window
	theme   Theme
	spinner spinner.Model
	input   textinput.Model

	panels       []session.Panel
	cursor       int
	width        int
	pendingClose int
	editing      bool
	status       string
	failed       bool
}

func newModel(w *Window) *model {
	input := textinput.New()
	input.Prompt = "edit> "
	input.Placeholder = "/path/to/file"

	return &model{
		w:       w,
		theme:   w.opts.Theme,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(w.opts.Theme.Title)),
		input:   input,
		panels:  w.opts.Sessions(),
		width:   defaultWidth,
	}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) reload() {
	m.panels = m.w.opts.Sessions()
	if m.cursor >= len(m.panels) {
		m.cursor = max(len(m.panels)-1, 0)
	}
}

func (m *model) selected() (session.Panel, bool) {
	if len(m.panels) == 0 {
		return nil, false
	}

	return m.panels[m.cursor], true
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case refreshMsg:
		m.reload()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case closedMsg:
		m.reload()

		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("close session %d: %v", msg.id, msg.err), true
		} else {
			m.status, m.failed = fmt.Sprintf("closed session %d", msg.id), false
		}

		return m, nil

	case editedMsg:
		if msg.err != nil {
			m.status, m.failed = fmt.Sprintf("edit %s: %v", msg.path, msg.err), true
		} else {
			m.status, m.failed = fmt.Sprintf("editing %s", msg.path), false
		}

		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// Input is ignored while an operation holds the block.
	if m.w.state().blocking {
		return m, nil
	}

	if m.editing {
		return m.handleEditKey(msg)
	}

	if m.pendingClose != 0 {
		id := m.pendingClose
		m.pendingClose = 0

		if key == "y" {
			return m, m.closeCmd(id)
		}

		m.status, m.failed = "", false

		return m, nil
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.panels)-1 {
			m.cursor++
		}
	case "r":
		m.reload()
	case "e":
		if _, ok := m.selected(); !ok || m.w.opts.Edit == nil {
			return m, nil
		}

		m.editing = true
		m.input.SetValue("")

		return m, m.input.Focus()
	case "x":
		p, ok := m.selected()
		if !ok {
			return m, nil
		}

		if m.w.opts.ConfirmClose {
			m.pendingClose = p.SessionID()
			m.status, m.failed = fmt.Sprintf("close %s? (y/n)", p.Title()), false

			return m, nil
		}

		return m, m.closeCmd(p.SessionID())
	}

	return m, nil
}

func (m *model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()

		return m, nil
	case tea.KeyEnter:
		m.editing = false
		m.input.Blur()

		path := strings.TrimSpace(m.input.Value())
		p, ok := m.selected()

		if path == "" || !ok {
			return m, nil
		}

		return m, m.editCmd(p.SessionID(), path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m *model) editCmd(id int, path string) tea.Cmd {
	editFn := m.w.opts.Edit

	return func() tea.Msg {
		return editedMsg{path: path, err: editFn(id, path)}
	}
}

func (m *model) closeCmd(id int) tea.Cmd {
	closeFn := m.w.opts.CloseSession

	return func() tea.Msg {
		if closeFn == nil {
			return closedMsg{id: id, err: fmt.Errorf("closing sessions is not supported")}
		}

		return closedMsg{id: id, err: closeFn(id)}
	}
}

func (m *model) line(s string) string {
	return ansi.Truncate(ansi.Strip(s), max(m.width, 1))
}

func (m *model) View() string {
	var b strings.Builder

	st := m.w.state()

	b.WriteString(m.theme.Title.Render(m.line("muon")))
	b.WriteString("\n\n")

	if len(m.panels) == 0 {
		b.WriteString(m.theme.Muted.Render("No open sessions"))
		b.WriteString("\n")
	}

	for i, p := range m.panels {
		row := m.line(fmt.Sprintf(" %d  %s  %s", p.SessionID(), p.Title(), p.HostKey()))
		if i == m.cursor {
			b.WriteString(m.theme.Selected.Render(row))
		} else {
			b.WriteString(m.theme.Normal.Render(row))
		}

		b.WriteString("\n")
	}

	if p, ok := m.selected(); ok {
		if logs := m.w.opts.Pinned(p.HostKey()); len(logs) > 0 {
			b.WriteString("\n")
			b.WriteString(m.theme.Muted.Render("Pinned logs"))
			b.WriteString("\n")

			for _, path := range logs {
				b.WriteString(m.line("  " + path))
				b.WriteString("\n")
			}
		}
	}

	if len(st.events) > 0 {
		b.WriteString("\n")

		for _, ev := range st.events {
			text := m.line(eventText(ev))
			if ev.Kind == editor.EventSyncFailed {
				b.WriteString(m.theme.Error.Render(text))
			} else {
				b.WriteString(m.theme.Muted.Render(text))
			}

			b.WriteString("\n")
		}
	}

	if m.editing {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if st.blocking {
		b.WriteString("\n")
		b.WriteString(m.theme.Overlay.Render(m.spinner.View() + " " + st.message))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")

		if m.failed {
			b.WriteString(m.theme.Error.Render(m.line(m.status)))
		} else {
			b.WriteString(m.line(m.status))
		}

		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Muted.Render(m.line("j/k move  e edit file  x close  r refresh  q quit")))
	b.WriteString("\n")

	return b.String()
}

func eventText(ev editor.Event) string {
	text := fmt.Sprintf("%s %s", ev.Kind, ev.Path)
	if ev.Err != nil {
		text += ": " + ev.Err.Error()
	}

	return text
}
