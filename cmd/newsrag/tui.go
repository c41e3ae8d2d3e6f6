package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/document"
	"github.com/fyrsmithlabs/newsrag/internal/imagestore"
	"github.com/fyrsmithlabs/newsrag/internal/logging"
	"github.com/fyrsmithlabs/newsrag/internal/rag"
)

const (
	chatTitle    = "Multimodal News Assistant"
	thinkingText = "Generating response..."
	imagesNote   = "Note: The retrieved images are potentially relevant to your question, but may not exactly match your intended request."
)

// Lipgloss styles
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Italic(true)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// chatKeyMap holds the chat key bindings.
type chatKeyMap struct {
	Submit     key.Binding
	Clear      key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

func defaultChatKeyMap() chatKeyMap {
	return chatKeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear history"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c", "ctrl+d"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Clear, k.ScrollUp, k.ScrollDown, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type chatRole int

const (
	roleUser chatRole = iota
	roleAssistant
)

// chatMessage is one entry of the chat history.
type chatMessage struct {
	role    chatRole
	content string
	sources []string
	images  []*document.ImageDocument
}

// answerMsg carries a finished query back to Update. session ties it to
// the history it was asked in.
type answerMsg struct {
	session  int
	question string
	resp     *rag.Response
	err      error
}

// chatModel is the interactive chat: a scrollable history above a single
// line input. Queries run as commands so the spinner keeps turning.
type chatModel struct {
	ctx      context.Context
	answerer answerer
	k        int
	images   map[string]*document.ImageDocument
	logger   *logging.Logger
	keys     chatKeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	history  []chatMessage
	session  int
	pending  bool
	ready    bool
	quitting bool
}

func newChatModel(ctx context.Context, a answerer, k int, images map[string]*document.ImageDocument, logger *logging.Logger) chatModel {
	if logger == nil {
		logger = logging.Nop()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask your question"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("51"))),
	)

	return chatModel{
		ctx:      ctx,
		answerer: a,
		k:        k,
		images:   images,
		logger:   logger,
		keys:     defaultChatKeyMap(),
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
	}
}

// Init starts the cursor blinking.
func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// ask runs the query off the update loop.
func (m chatModel) ask(question string) tea.Cmd {
	ctx, a, k, session := m.ctx, m.answerer, m.k, m.session
	return func() tea.Msg {
		resp, err := a.Query(ctx, question, k)
		return answerMsg{session: session, question: question, resp: resp, err: err}
	}
}

// Update handles key, resize, spinner and answer messages.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ih := inputBoxStyle.GetFrameSize()
		// title, spinner line, help line and the input box
		reserved := 3 + 1 + ih
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-6)
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.history = nil
			m.session++
			m.pending = false
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.ScrollUp):
			m.viewport.HalfPageUp()
			return m, nil
		case key.Matches(msg, m.keys.ScrollDown):
			m.viewport.HalfPageDown()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}

	case answerMsg:
		if msg.session != m.session {
			return m, nil
		}
		m.pending = false
		m.history = append(m.history, m.assistantMessage(msg))
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	switch {
	case question == "" || m.pending:
		return m, nil
	case question == "exit" || question == "quit":
		m.quitting = true
		return m, tea.Quit
	}

	m.input.Reset()
	m.history = append(m.history, chatMessage{role: roleUser, content: question})
	m.pending = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.ask(question))
}

// assistantMessage turns a finished query into a history entry. Failures
// show the fallback answer; their detail only goes to the log.
func (m chatModel) assistantMessage(msg answerMsg) chatMessage {
	if msg.err != nil {
		m.logger.Error(m.ctx, "query failed", zap.String("query", msg.question), zap.Error(msg.err))
		return chatMessage{role: roleAssistant, content: fallbackAnswer}
	}
	return chatMessage{
		role:    roleAssistant,
		content: msg.resp.TextResponse(),
		sources: msg.resp.Sources(),
		images:  imagestore.Attach(msg.resp.Images(), m.images),
	}
}

// refresh re-renders the history and keeps the newest entry in view.
func (m *chatModel) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m chatModel) renderHistory() string {
	if len(m.history) == 0 {
		return dimStyle.Render("Ask a question about the ingested news articles.")
	}

	var b strings.Builder
	for i, msg := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		if msg.role == roleUser {
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(msg.content + "\n")
			continue
		}

		b.WriteString(assistantStyle.Render("Assistant") + "\n")
		b.WriteString(msg.content + "\n")
		if len(msg.sources) > 0 {
			b.WriteString(sectionStyle.Render("Sources") + "\n")
			for _, s := range msg.sources {
				fmt.Fprintf(&b, "  %s\n", s)
			}
		}
		if len(msg.images) > 0 {
			b.WriteString(noteStyle.Render(imagesNote) + "\n")
			b.WriteString(sectionStyle.Render("Images") + "\n")
			for _, img := range msg.images {
				fmt.Fprintf(&b, "  %s\n", img.ImageURL())
				if payload := img.Image(); payload != nil {
					bounds := payload.Bounds()
					b.WriteString(dimStyle.Render(fmt.Sprintf("    %dx%d, %s", bounds.Dx(), bounds.Dy(), img.Content())) + "\n")
				} else {
					b.WriteString(dimStyle.Render("    "+img.Content()) + "\n")
				}
			}
		}
	}
	return b.String()
}

// View renders the title, history, spinner, input and key help.
func (m chatModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	status := ""
	if m.pending {
		status = m.spinner.View() + " " + thinkingText
	}

	return titleStyle.Render(chatTitle) + "\n" +
		m.viewport.View() + "\n" +
		status + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		m.help.View(m.keys)
}

// runChatTUI runs the chat model until the user quits or ctx is done.
func runChatTUI(ctx context.Context, m chatModel, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
