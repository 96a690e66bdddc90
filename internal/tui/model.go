// Package tui is the interactive terminal chat front end.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/tanya/internal/models"
)

// Asker is the TUI-facing subset of the assistant.
type Asker interface {
	Answer(ctx context.Context, query string) models.Answer
}

// Ingester adds a file to the knowledge base; used by the /ingest command.
type Ingester interface {
	IngestFile(ctx context.Context, path string, allowedExts []string) (int, error)
}

type answerMsg struct {
	query  string
	answer models.Answer
}

type ingestMsg struct {
	path  string
	added int
	err   error
}

type exchange struct {
	query  string
	answer models.Answer
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	asker    Asker
	ingester Ingester
	input    textinput.Model
	viewport viewport.Model
	log      []exchange
	summary  string
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model. ingester may be nil, which disables /ingest.
func New(ctx context.Context, asker Asker, ingester Ingester, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /ingest <file> or /quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		asker:    asker,
		ingester: ingester,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, input, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case answerMsg:
		m.pending = false
		m.log = append(m.log, exchange{query: msg.query, answer: msg.answer})
		if msg.answer.Failed {
			m.status = "Generation failed; nothing was remembered."
		} else {
			m.status = fmt.Sprintf("score=%.3f  memory=%d turns", msg.answer.Score, msg.answer.MemorySize)
		}
		m.refresh()
		return m, nil
	case ingestMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Ingest failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Ingested %s: %d new passages", msg.path, msg.added)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.pending {
		return m, nil
	}
	m.input.SetValue("")
	switch {
	case text == "/quit" || text == "/exit":
		return m, tea.Quit
	case strings.HasPrefix(text, "/ingest"):
		path := strings.TrimSpace(strings.TrimPrefix(text, "/ingest"))
		if m.ingester == nil || path == "" {
			m.status = "Usage: /ingest <file> (requires a knowledge base)"
			return m, nil
		}
		m.pending = true
		m.status = "Ingesting " + path + "..."
		return m, m.ingest(path)
	}
	m.pending = true
	m.status = "Thinking..."
	return m, m.ask(text)
}

func (m Model) ask(query string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		return answerMsg{query: query, answer: asker.Answer(ctx, query)}
	}
}

func (m Model) ingest(path string) tea.Cmd {
	ctx, ingester := m.ctx, m.ingester
	return func() tea.Msg {
		n, err := ingester.IngestFile(ctx, path, nil)
		return ingestMsg{path: path, added: n, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Tanya")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.log) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for i, ex := range m.log {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(ex.query)
		b.WriteString("\n")
		if ex.answer.Failed {
			b.WriteString(errorStyle.Render(ex.answer.Text))
			continue
		}
		b.WriteString(assistantStyle.Render("Tanya: "))
		b.WriteString(ex.answer.Text)
	}
	return b.String()
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
