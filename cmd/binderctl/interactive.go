package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/binder"
	"github.com/wippyai/binder/parcel"
	"github.com/wippyai/binder/proxy"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	handleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entry struct {
	proxy      *proxy.Proxy
	recipient  *proxy.DeathRecipientFunc
	descriptor string
	obituaries int
}

type interactiveModel struct {
	err        error
	session    *session
	obituaries chan binder.Handle
	wasm       []byte
	descriptor string
	result     string
	entries    []*entry
	input      textinput.Model
	selected   int
	state      modelState
}

type modelState int

const (
	stateSelect modelState = iota
	stateInput
)

type loadedMsg struct {
	err error
	e   *entry
}

type resultMsg struct {
	err    error
	result string
}

type obituaryMsg binder.Handle

func newInteractiveModel(wasm []byte, descriptor string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "payload"
	ti.Prompt = "data: "
	ti.Width = 40

	return &interactiveModel{
		session:    newSession(context.Background()),
		obituaries: make(chan binder.Handle, 16),
		wasm:       wasm,
		descriptor: descriptor,
		input:      ti,
		state:      stateSelect,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.load, m.waitForObituary)
}

func (m *interactiveModel) load() tea.Msg {
	h, err := m.session.host.Load(context.Background(), m.wasm, m.descriptor)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{e: &entry{
		proxy:      m.session.cache.Get(h),
		descriptor: m.descriptor,
	}}
}

func (m *interactiveModel) waitForObituary() tea.Msg {
	return obituaryMsg(<-m.obituaries)
}

func (m *interactiveModel) current() *entry {
	if m.selected < 0 || m.selected >= len(m.entries) {
		return nil
	}
	return m.entries[m.selected]
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateInput {
			return m.updateInput(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.shutdown()
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "n":
			return m, m.load

		case "p":
			if e := m.current(); e != nil {
				return m, ping(e.proxy)
			}

		case "t":
			if m.current() != nil {
				m.state = stateInput
				m.input.SetValue("")
				m.input.Focus()
				return m, textinput.Blink
			}

		case "l":
			if e := m.current(); e != nil {
				m.toggleLink(e)
			}

		case "x":
			if e := m.current(); e != nil {
				if err := m.session.driver.Kill(e.proxy.Handle()); err != nil {
					m.err, m.result = err, ""
				} else {
					m.err, m.result = nil, fmt.Sprintf("killed handle %d", e.proxy.Handle())
				}
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.entries = append(m.entries, msg.e)
		m.selected = len(m.entries) - 1
		m.err = nil

	case resultMsg:
		m.result = msg.result
		m.err = msg.err

	case obituaryMsg:
		for _, e := range m.entries {
			if e.proxy.Handle() == binder.Handle(msg) {
				e.obituaries++
			}
		}
		m.result = fmt.Sprintf("obituary for handle %d", binder.Handle(msg))
		return m, m.waitForObituary
	}

	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.state = stateSelect
		m.input.Blur()
		if e := m.current(); e != nil {
			return m, transact(e.proxy, m.input.Value())
		}
		return m, nil
	case "esc":
		m.state = stateSelect
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) toggleLink(e *entry) {
	if e.recipient != nil {
		if _, err := e.proxy.UnlinkToDeath(e.recipient, 0, 0); err != nil {
			m.err = err
			return
		}
		e.recipient = nil
		m.err, m.result = nil, "unlinked"
		return
	}

	ch := m.obituaries
	r := proxy.DeathRecipientFunc(func(who *proxy.Proxy) {
		select {
		case ch <- who.Handle():
		default:
		}
	})
	if err := e.proxy.LinkToDeath(&r, 0, 0); err != nil {
		m.err = err
		return
	}
	e.recipient = &r
	m.err, m.result = nil, "linked"
}

func (m *interactiveModel) shutdown() {
	for _, e := range m.entries {
		e.proxy.DecStrong()
	}
	m.entries = nil
	_ = m.session.close(context.Background())
}

func ping(p *proxy.Proxy) tea.Cmd {
	return func() tea.Msg {
		if err := p.PingBinder(); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{result: fmt.Sprintf("handle %d: pong", p.Handle())}
	}
}

func transact(p *proxy.Proxy, payload string) tea.Cmd {
	return func() tea.Msg {
		req := parcel.New()
		req.WriteByteArray([]byte(payload))
		reply, err := p.Transact(binder.FirstCallTransaction, req, 0)
		if err != nil {
			return resultMsg{err: err}
		}
		b, err := reply.ReadByteArray()
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{result: fmt.Sprintf("reply: %q", b)}
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("binderctl"))
	b.WriteString(fmt.Sprintf(" %d node(s)\n\n", m.session.driver.Len()))

	if len(m.entries) == 0 {
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\nPress q to quit.")
			return b.String()
		}
		b.WriteString("Loading guest...")
		return b.String()
	}

	for i, e := range m.entries {
		line := m.formatEntry(e)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.state == stateInput {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter send • esc cancel"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("↑/↓ select • p ping • t transact • l link/unlink • x kill • n new • q quit"))
	return b.String()
}

func (m *interactiveModel) formatEntry(e *entry) string {
	status := resultStyle.Render("alive")
	if !e.proxy.IsAlive() {
		status = deadStyle.Render("dead")
	}
	linked := ""
	if e.recipient != nil {
		linked = " linked"
	}
	return fmt.Sprintf("%s %s %s strong=%d weak=%d%s obituaries=%d",
		handleStyle.Render(fmt.Sprintf("#%d", e.proxy.Handle())),
		e.descriptor, status,
		e.proxy.StrongCount(), e.proxy.WeakCount(),
		linked, e.obituaries)
}

func runInteractive(wasm []byte, descriptor string) error {
	p := tea.NewProgram(newInteractiveModel(wasm, descriptor), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
