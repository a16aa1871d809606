package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
	"docchat/internal/history"
	"docchat/internal/ingest"
	"docchat/internal/rag"
	"docchat/internal/session"
)

// ChatPort is the TUI-facing subset of the query orchestrator.
type ChatPort interface {
	Ask(question string) (*domain.Answer, error)
	ListTables() ([]domain.Table, error)
	DropTable(name string) error
}

// IngestPort runs one ingestion submission.
type IngestPort interface {
	Run(bucket string, urls []string, state *session.State) (*ingest.Report, error)
}

// transcriptFile is where ctrl+s exports and ctrl+o imports the chat.
const transcriptFile = "transcript.json"

type view int

const (
	viewSelect view = iota
	viewNewTable
	viewNewURLs
	viewModel
	viewChat
)

const selectStatus = "Select table(s): space to mark, enter to confirm, n for new, m for model, d to drop"

// Model is the Bubble Tea model for the chat application.
type Model struct {
	chat    ChatPort
	ingest  IngestPort
	state   *session.State
	history *history.History

	bucket   string
	greeting string

	view     view
	tables   []domain.Table
	cursor   int
	marked   map[int]bool
	input    textinput.Model
	viewport viewport.Model
	answer   *domain.Answer
	status   string
	busy     bool
	ready    bool
}

type tablesMsg struct {
	tables []domain.Table
	err    error
}

type answerMsg struct {
	answer *domain.Answer
	err    error
}

type ingestMsg struct {
	report *ingest.Report
	err    error
}

// New creates the TUI model and schedules the initial table listing.
func New(chat ChatPort, ing IngestPort, state *session.State, hist *history.History, bucket, greeting string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		chat:     chat,
		ingest:   ing,
		state:    state,
		history:  hist,
		bucket:   bucket,
		greeting: greeting,
		marked:   map[int]bool{},
		input:    ti,
		viewport: vp,
		status:   "Loading tables...",
	}
}

// Init triggers the first table fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchTables())
}

func (m Model) fetchTables() tea.Cmd {
	return func() tea.Msg {
		tables, err := m.chat.ListTables()
		return tablesMsg{tables: tables, err: err}
	}
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.chat.Ask(question)
		return answerMsg{answer: answer, err: err}
	}
}

func (m Model) runIngest(urls []string) tea.Cmd {
	return func() tea.Msg {
		report, err := m.ingest.Run(m.bucket, urls, m.state)
		return ingestMsg{report: report, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := inputBoxStyle.GetFrameSize()
		_, rh := chatBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - rh
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case tablesMsg:
		if msg.err != nil {
			m.status = "Error loading tables: " + msg.err.Error()
			m.tables = nil
			return m, nil
		}
		m.tables = msg.tables
		m.cursor = 0
		m.marked = map[int]bool{}
		m.status = selectStatus
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.answer = msg.answer
			m.status = fmt.Sprintf("Answered in %s", msg.answer.Elapsed.Round(time.Second))
		}
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoBottom()
		return m, nil

	case ingestMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Ingest failed: " + msg.err.Error()
			return m, nil
		}
		if msg.report.Empty() {
			m.status = "No matching documents found in bucket " + m.bucket
			return m, nil
		}
		m.status = fmt.Sprintf("Ingested %d chunks from %d files in %s",
			msg.report.Chunks, len(msg.report.Files), msg.report.Elapsed.Round(time.Second))
		m.enterChat()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch m.view {
		case viewSelect:
			return m.updateSelect(msg)
		case viewNewTable:
			return m.updateNewTable(msg)
		case viewNewURLs:
			return m.updateNewURLs(msg)
		case viewModel:
			return m.updateModel(msg)
		case viewChat:
			return m.updateChat(msg)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down", "j":
		if len(m.tables) > 0 {
			m.cursor = (m.cursor + 1) % len(m.tables)
		}
	case "up", "k":
		if len(m.tables) > 0 {
			m.cursor = (m.cursor - 1 + len(m.tables)) % len(m.tables)
		}
	case " ":
		if len(m.tables) > 0 {
			m.marked[m.cursor] = !m.marked[m.cursor]
		}
	case "r":
		m.status = "Refreshing tables..."
		return m, m.fetchTables()
	case "n":
		m.view = viewNewTable
		m.input.Placeholder = "New table name (empty for default)"
		m.input.SetValue("")
		m.status = "Name the new table, then Enter to ingest bucket " + m.bucket
	case "m":
		m.view = viewModel
		m.input.Placeholder = "Embedding model (empty keeps current)"
		m.input.SetValue("")
		m.status = "Embedding model: " + m.state.EmbeddingModel()
	case "d":
		if len(m.tables) > 0 {
			name := m.tables[m.cursor].Name
			if err := m.chat.DropTable(name); err != nil {
				m.status = "Drop failed: " + err.Error()
			} else {
				m.status = "Table " + session.DisplayName(name) + " dropped"
				return m, m.fetchTables()
			}
		}
	case "enter":
		names, displays := m.markedTables()
		switch {
		case len(names) >= 2:
			m.state.Select(session.Multi, names, displays)
			m.enterChat()
		case len(names) == 1:
			m.state.Select(session.Single, names, displays)
			m.enterChat()
		case len(m.tables) > 0:
			t := m.tables[m.cursor]
			m.state.Select(session.Single, []string{t.Name}, []string{t.DisplayName})
			m.enterChat()
		}
	}
	m.viewport.SetContent(m.renderContent())
	return m, nil
}

func (m Model) updateNewTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewSelect
		m.status = selectStatus
		return m, nil
	case "enter":
		m.state.SetNewTableName(m.input.Value())
		m.view = viewNewURLs
		m.input.Placeholder = "Optional URLs separated by spaces (empty for none)"
		m.input.SetValue("")
		m.status = "Add URLs to ingest alongside bucket " + m.bucket + ", or press Enter to skip"
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateNewURLs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewNewTable
		m.input.Placeholder = "New table name (empty for default)"
		m.input.SetValue("")
		m.status = "Name the new table, then Enter to ingest bucket " + m.bucket
		return m, nil
	case "enter":
		urls := strings.Fields(m.input.Value())
		m.busy = true
		m.status = "Ingesting documents into " + m.state.NewTableName() + "..."
		m.input.SetValue("")
		return m, m.runIngest(urls)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateModel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewSelect
		m.status = selectStatus
		return m, nil
	case "enter":
		if model := strings.TrimSpace(m.input.Value()); model != "" {
			m.state.SetEmbeddingModel(model)
		}
		m.input.SetValue("")
		m.view = viewSelect
		m.status = "Embedding model: " + m.state.EmbeddingModel()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewSelect
		m.status = selectStatus
		m.viewport.SetContent(m.renderContent())
		return m, m.fetchTables()
	case "ctrl+s":
		data, err := m.history.Export()
		if err == nil {
			err = os.WriteFile(transcriptFile, data, 0o644)
		}
		if err != nil {
			m.status = "Export failed: " + err.Error()
		} else {
			m.status = "Transcript exported to " + transcriptFile
		}
		return m, nil
	case "ctrl+o":
		data, err := os.ReadFile(transcriptFile)
		if err == nil {
			err = m.history.Import(data)
		}
		if err != nil {
			m.status = "Import failed: " + err.Error()
		} else {
			m.status = "Transcript imported from " + transcriptFile
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil
	case "enter":
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		if !m.state.Ready() {
			m.status = "Select at least 2 tables for a multi-table query"
			return m, nil
		}
		m.busy = true
		m.status = "Thinking..."
		m.input.SetValue("")
		m.history.Seed(m.greeting)
		return m, m.ask(question)
	case "up":
		m.viewport.LineUp(3)
		return m, nil
	case "down":
		m.viewport.LineDown(3)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) enterChat() {
	m.view = viewChat
	m.input.Placeholder = "Ask a question and press Enter"
	m.input.SetValue("")
	m.history.Seed(m.greeting)
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()
}

func (m Model) markedTables() (names, displays []string) {
	for i, t := range m.tables {
		if m.marked[i] {
			names = append(names, t.Name)
			displays = append(displays, t.DisplayName)
		}
	}
	return names, displays
}

// View renders the TUI layout for the current view.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docchat")
	status := statusStyle.Render(m.status)
	content := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + content + "\n" + input + "\n" + status
}

func (m Model) renderContent() string {
	switch m.view {
	case viewChat:
		return m.renderChat()
	default:
		return m.renderTables()
	}
}

func (m Model) renderTables() string {
	if len(m.tables) == 0 {
		return "No tables yet. Press n to create one from bucket " + m.bucket + "."
	}
	var b strings.Builder
	b.WriteString("Tables:\n\n")
	for i, t := range m.tables {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		mark := "[ ]"
		if m.marked[i] {
			mark = "[x]"
		}
		line := cursor + mark + " " + t.DisplayName
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderChat() string {
	var b strings.Builder
	for _, turn := range m.history.Turns() {
		label := aiLabelStyle.Render("ai")
		if turn.Role == domain.RoleHuman {
			label = humanLabelStyle.Render("you")
		}
		b.WriteString(label + "  " + turn.Content + "\n\n")
	}
	if m.answer != nil && len(m.answer.Context) > 0 {
		b.WriteString(contextHeaderStyle.Render("Supporting context") + "\n")
		for _, group := range rag.GroupContext(m.answer.Context, m.state.TargetTable()) {
			b.WriteString(contextTableStyle.Render("Table: "+group.Table) + "\n")
			for _, ref := range group.Items {
				name := ref.Filename
				if ref.SourceURL != "" {
					name = ref.Filename + " (" + ref.SourceURL + ")"
				}
				b.WriteString("  " + name + "\n")
				b.WriteString("  " + truncate(ref.Content, 240) + "\n")
			}
		}
	}
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	chatBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	humanLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	aiLabelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	contextHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	contextTableStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
