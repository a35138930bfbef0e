package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trendscope/internal/core"
	"trendscope/internal/dashboard"
	"trendscope/internal/markdown"
	"trendscope/internal/render"
)

// Dashboard is the part of a dashboard.Session the terminal UI drives.
type Dashboard interface {
	View() dashboard.View
	Search(ctx context.Context, query string, maxResults int) (dashboard.View, error)
	SwitchTab(tab core.TabID, snapshot *core.TabStateUpdate) (dashboard.View, error)
	SetFilter(cfg core.FilterConfig) (dashboard.View, error)
	SetAPIKey(apiKey string) error
	GenerateSummary(ctx context.Context) (dashboard.View, error)
	AskQuestion(ctx context.Context, question string) (dashboard.View, error)
	ComposePost(ctx context.Context) (string, dashboard.View, error)
	AddBookmark(id string) (bool, error)
	Export(now time.Time) (string, []byte, error)
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeQuestion
	modeAPIKey
)

func (m inputMode) prompt() string {
	switch m {
	case modeSearch:
		return "Search: "
	case modeQuestion:
		return "Ask: "
	case modeAPIKey:
		return "Membit API key: "
	}
	return ""
}

func newInput() textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 60
	return ti
}

const filterStep = 0.05

// opDoneMsg carries the outcome of an operation run off the update loop.
type opDoneMsg struct {
	view   dashboard.View
	status string
	err    error
}

// Model is the bubbletea model over a dashboard session.
type Model struct {
	dash      Dashboard
	exportDir string
	timeout   time.Duration

	view     dashboard.View
	mode     inputMode
	input    textinput.Model
	selected int
	busy     string
	status   string
	errText  string
	width    int
	height   int
	quitting bool
}

// NewModel returns the initial model. Exports are written under exportDir.
func NewModel(dash Dashboard, exportDir string) Model {
	return Model{
		dash:      dash,
		exportDir: exportDir,
		timeout:   90 * time.Second,
		view:      dash.View(),
		input:     newInput(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-20)

	case opDoneMsg:
		m.busy = ""
		m.view = msg.view
		m.status = msg.status
		m.errText = ""
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
		if m.selected >= len(m.view.Results) {
			m.selected = max(0, len(m.view.Results)-1)
		}

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

// startInput switches to mode with an empty, focused input. API keys are masked.
func (m Model) startInput(mode inputMode) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Reset()
	m.input.Prompt = mode.prompt()
	m.input.Placeholder = ""
	if mode == modeSearch {
		m.input.Placeholder = m.view.Placeholder
	}
	m.input.EchoMode = textinput.EchoNormal
	if mode == modeAPIKey {
		m.input.EchoMode = textinput.EchoPassword
	}
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) stopInput() Model {
	m.mode = modeNormal
	m.input.Reset()
	m.input.Blur()
	return m
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.stopInput(), nil
	case tea.KeyEnter:
		mode, text := m.mode, m.input.Value()
		return m.stopInput().submit(mode, text)
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(mode inputMode, text string) (tea.Model, tea.Cmd) {
	dash, timeout := m.dash, m.timeout
	switch mode {
	case modeSearch:
		m.busy = "Searching..."
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			v, err := dash.Search(ctx, text, 0)
			return opDoneMsg{view: v, err: err, status: fmt.Sprintf("%d results", v.RawCount)}
		}
	case modeQuestion:
		m.busy = "Thinking..."
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			v, err := dash.AskQuestion(ctx, text)
			return opDoneMsg{view: v, err: err}
		}
	case modeAPIKey:
		err := m.dash.SetAPIKey(text)
		m.view = m.dash.View()
		m.status, m.errText = "API key saved", ""
		if err != nil {
			m.status, m.errText = "", err.Error()
		}
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	dash, timeout := m.dash, m.timeout
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.view.Results)-1 {
			m.selected++
		}
	case "/":
		return m.startInput(modeSearch)
	case "?":
		return m.startInput(modeQuestion)
	case "K":
		return m.startInput(modeAPIKey)
	case "t":
		next := core.TabPosts
		if m.view.Tab == core.TabPosts {
			next = core.TabClusters
		}
		v, err := m.dash.SwitchTab(next, nil)
		m.view, m.selected = v, 0
		m.setResult("", err)
	case "f":
		cfg := m.view.Filter
		cfg.UseSearchScore = !cfg.UseSearchScore
		m.applyFilter(cfg)
	case "+", "=":
		cfg := m.view.Filter
		cfg.MinSearchScore = min(1, cfg.MinSearchScore+filterStep)
		m.applyFilter(cfg)
	case "-":
		cfg := m.view.Filter
		cfg.MinSearchScore = max(0, cfg.MinSearchScore-filterStep)
		m.applyFilter(cfg)
	case "g":
		m.busy = "Generating insights..."
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			v, err := dash.GenerateSummary(ctx)
			return opDoneMsg{view: v, err: err}
		}
	case "p":
		m.busy = "Crafting post..."
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			post, v, err := dash.ComposePost(ctx)
			status := ""
			if err == nil {
				status = fmt.Sprintf("Post ready (%d/%d)", len([]rune(post)), render.MaxPostLength)
			}
			return opDoneMsg{view: v, err: err, status: status}
		}
	case "b":
		if m.selected < len(m.view.Results) {
			added, err := m.dash.AddBookmark(m.view.Results[m.selected].UUID)
			status := "Bookmarked"
			if !added {
				status = "Already bookmarked"
			}
			m.setResult(status, err)
		}
	case "e":
		name, data, err := m.dash.Export(time.Now())
		if err == nil {
			var path string
			path, err = render.WriteExport(data, m.exportDir, name)
			m.setResult("Exported to "+path, err)
		} else {
			m.setResult("", err)
		}
	}
	return m, nil
}

func (m *Model) applyFilter(cfg core.FilterConfig) {
	v, err := m.dash.SetFilter(cfg)
	m.view = v
	if m.selected >= len(v.Results) {
		m.selected = max(0, len(v.Results)-1)
	}
	m.setResult("", err)
}

func (m *Model) setResult(status string, err error) {
	m.status, m.errText = status, ""
	if err != nil {
		m.status, m.errText = "", err.Error()
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	activeTab   = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
)

func (m Model) View() string {
	if m.quitting {
		return "Quitting...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Trendscope") + "  ")
	for _, tab := range core.Tabs() {
		label := " " + string(tab) + " "
		if tab == m.view.Tab {
			label = activeTab.Render(label)
		}
		b.WriteString(label)
	}
	b.WriteString("\n")

	filterLine := fmt.Sprintf("filter: off (%.2f)", m.view.Filter.MinSearchScore)
	if m.view.Filter.UseSearchScore {
		filterLine = fmt.Sprintf("filter: score ≥ %.2f", m.view.Filter.MinSearchScore)
	}
	if !m.view.HasAPIKey {
		filterLine += "  no API key, press K"
	}
	b.WriteString(mutedStyle.Render(filterLine) + "\n")

	if m.mode != modeNormal {
		b.WriteString(m.input.View() + "\n")
	} else if m.view.State.SearchInput != "" {
		b.WriteString(mutedStyle.Render("query: "+m.view.State.SearchInput) + "\n")
	} else {
		b.WriteString(mutedStyle.Render(m.view.Placeholder) + "\n")
	}

	half := max(20, m.width/2-4)
	left := paneStyle.Width(half).Render(m.resultsPane())
	right := paneStyle.Width(half).Render(m.insightPane())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right) + "\n")

	switch {
	case m.busy != "":
		b.WriteString(statusStyle.Render(m.busy) + "\n")
	case m.errText != "":
		b.WriteString(errorStyle.Render(m.errText) + "\n")
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}

	b.WriteString(mutedStyle.Render("[/] search  [t] tab  [f] filter  [+/-] threshold  [g] insights  [?] ask  [p] post  [b] bookmark  [e] export  [q] quit"))
	return b.String()
}

func (m Model) resultsPane() string {
	if len(m.view.Results) == 0 {
		if m.view.EmptyMessage != "" {
			return m.view.EmptyMessage
		}
		return "No results."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d results\n\n", len(m.view.Results), m.view.RawCount)
	for i, item := range m.view.Results {
		cursor := " "
		if i == m.selected {
			cursor = ">"
		}
		fmt.Fprintf(&b, "%s %s\n", cursor, itemLine(m.view.Tab, item))
	}
	return b.String()
}

func itemLine(tab core.TabID, item core.ResultItem) string {
	score := "-"
	if s, ok := item.Score(); ok {
		score = fmt.Sprintf("%.2f", s)
	}
	if tab == core.TabClusters {
		return fmt.Sprintf("[%s] %s (%s)", score, item.Label, item.Category)
	}
	text := []rune(markdown.CollapseWhitespace(item.Text()))
	if len(text) > 60 {
		text = append(text[:57], []rune("...")...)
	}
	return fmt.Sprintf("[%s] %s: %s", score, item.Author.DisplayName(), string(text))
}

func (m Model) insightPane() string {
	st := m.view.State
	sections := []string{markdown.PlainText(st.AISummaryHTML)}
	if st.NLQueryResponseHTML != "" {
		sections = append(sections, markdown.PlainText(st.NLQueryResponseHTML))
	}
	if st.GeneratedPostText != "" {
		sections = append(sections, markdown.PlainText(st.GeneratedPostText))
	}
	return strings.Join(sections, "\n\n")
}

// Run starts the terminal UI and blocks until it exits.
func Run(dash Dashboard, exportDir string) error {
	p := tea.NewProgram(NewModel(dash, exportDir), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
