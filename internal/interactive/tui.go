package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/swfz/gh-repos/internal/formatter"
	"github.com/swfz/gh-repos/internal/models"
	"github.com/swfz/gh-repos/internal/store"
)

// RepoStore is the part of the repository store the views drive
type RepoStore interface {
	State() store.State
	NeedsInitialFetch() bool
	FetchNextPage(ctx context.Context) error
	SetSortField(ctx context.Context, field models.SortField) error
	SetSortOrder(ctx context.Context, order models.SortOrder) error
	SetSort(ctx context.Context, sort models.Sort) error
	EditRepo(id int64, name string) bool
	DeleteRepo(id int64) int
	ResetToDefault(ctx context.Context) error
	Subscribe(fn func(store.State)) (unsubscribe func())
}

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(0, 1)
)

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeEdit
	modeConfirmDelete
)

// model represents the TUI state
type model struct {
	store    RepoStore
	ctx      context.Context
	logger   *slog.Logger
	state    store.State         // Last observed store state
	filtered []models.Repository // Rows matching query, in list order
	cursor   int                 // Current cursor position in filtered
	query    string              // Search query
	mode     mode                // Current input mode
	target   *models.Repository  // Record being edited or deleted
	input    textinput.Model     // Name editor
	spinner  spinner.Model       // Loading indicator
	message  string              // Status message
	msgType  string              // "error", "success", or ""
	width    int                 // Terminal width
	height   int                 // Terminal height
	done     bool                // Whether to quit
}

// storeChangedMsg signals that the store has a newer state than the model
type storeChangedMsg struct{}

// opDoneMsg reports the outcome of a blocking store operation
type opDoneMsg struct {
	op  string
	err error
}

func newModel(ctx context.Context, s RepoStore, logger *slog.Logger) model {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	input := textinput.New()
	input.Placeholder = "repository name"
	input.CharLimit = 100
	input.Prompt = "Rename: "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		store:   s,
		ctx:     ctx,
		logger:  logger,
		input:   input,
		spinner: sp,
		width:   80,
		height:  24,
	}
	m.refresh()

	return m
}

// Init starts the spinner and requests the first page when the list is empty
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.store.NeedsInitialFetch() {
		cmds = append(cmds, m.runOp("fetch", m.store.FetchNextPage))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case storeChangedMsg:
		m.refresh()
		return m, nil

	case opDoneMsg:
		m.refresh()
		m.handleOpResult(msg)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		case modeSearch:
			return m.updateSearch(msg)
		default:
			return m.updateBrowse(msg)
		}
	}

	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear message on any key press
	m.message = ""
	m.msgType = ""

	switch msg.String() {
	case "ctrl+c", "q":
		m.done = true
		return m, tea.Quit

	case "esc":
		if m.query != "" {
			m.query = ""
			m.applyFilter()
		}
		return m, nil

	case "/":
		m.mode = modeSearch
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, m.maybeLoadMore()

	case "g", "home":
		m.cursor = 0
		return m, nil

	case "G", "end":
		if len(m.filtered) > 0 {
			m.cursor = len(m.filtered) - 1
		}
		return m, m.maybeLoadMore()

	case "m", " ":
		return m, m.loadMore()

	case "s":
		field := m.state.Sort.Field.Next()
		m.cursor = 0
		return m, m.runOp("sort", func(ctx context.Context) error {
			return m.store.SetSortField(ctx, field)
		})

	case "o":
		order := m.state.Sort.Order.Toggle()
		m.cursor = 0
		return m, m.runOp("sort", func(ctx context.Context) error {
			return m.store.SetSortOrder(ctx, order)
		})

	case "R":
		m.cursor = 0
		m.query = ""
		return m, m.runOp("reset", m.store.ResetToDefault)

	case "e", "enter":
		if repo, ok := m.selected(); ok {
			m.mode = modeEdit
			m.target = &repo
			m.input.SetValue(repo.Name)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
		return m, nil

	case "d", "x":
		if repo, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
			m.target = &repo
		}
		return m, nil
	}

	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.done = true
		return m, tea.Quit

	case "esc":
		m.mode = modeBrowse
		m.query = ""
		m.applyFilter()

	case "enter":
		m.mode = modeBrowse

	case "backspace":
		if len(m.query) > 0 {
			runes := []rune(m.query)
			m.query = string(runes[:len(runes)-1])
			m.applyFilter()
		}

	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.query += string(msg.Runes)
			m.applyFilter()
		}
	}

	return m, nil
}

func (m model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.done = true
		return m, tea.Quit

	case "esc":
		m.mode = modeBrowse
		m.target = nil
		m.input.Blur()
		return m, nil

	case "enter":
		name := strings.TrimSpace(m.input.Value())
		target := m.target
		m.mode = modeBrowse
		m.target = nil
		m.input.Blur()

		if target == nil || name == "" {
			return m, nil
		}
		if m.store.EditRepo(target.ID, name) {
			m.message = fmt.Sprintf("Renamed %s to %s", target.Name, name)
			m.msgType = "success"
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.done = true
		return m, tea.Quit

	case "y", "enter":
		if m.target != nil {
			if m.store.DeleteRepo(m.target.ID) > 0 {
				m.message = fmt.Sprintf("Deleted %s", m.target.Name)
				m.msgType = "success"
			}
		}
		m.mode = modeBrowse
		m.target = nil
		m.refresh()

	case "n", "esc", "q":
		// Cancel confirmation
		m.mode = modeBrowse
		m.target = nil
	}

	return m, nil
}

// maybeLoadMore requests the next page once the cursor reaches the last row
func (m model) maybeLoadMore() tea.Cmd {
	if m.query != "" || len(m.filtered) == 0 || m.cursor < len(m.filtered)-1 {
		return nil
	}
	return m.loadMore()
}

func (m model) loadMore() tea.Cmd {
	if m.state.Loading {
		return nil
	}
	return m.runOp("fetch", m.store.FetchNextPage)
}

// runOp runs a blocking store operation off the event loop
func (m model) runOp(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *model) handleOpResult(msg opDoneMsg) {
	switch {
	case msg.err == nil:
	case errors.Is(msg.err, store.ErrFetchInFlight), errors.Is(msg.err, store.ErrStaleFetch):
		m.logger.Debug("store operation superseded", "op", msg.op, "error", msg.err)
	default:
		// the store already exposes the user-facing message; keep the cause in the log
		m.logger.Error("store operation failed", "op", msg.op, "error", msg.err)
	}
}

// refresh pulls the latest store state and re-applies the filter
func (m *model) refresh() {
	m.state = m.store.State()
	m.applyFilter()
}

// applyFilter filters repositories based on query
func (m *model) applyFilter() {
	if m.query == "" {
		m.filtered = m.state.Repos
	} else {
		m.filtered = make([]models.Repository, 0, len(m.state.Repos))
		for _, repo := range m.state.Repos {
			if repo.Matches(m.query) {
				m.filtered = append(m.filtered, repo)
			}
		}
	}

	// Reset cursor if out of bounds
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) selected() (models.Repository, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return models.Repository{}, false
	}
	return m.filtered[m.cursor], true
}

// View renders the UI
func (m model) View() string {
	if m.done {
		return "Exiting...\n"
	}

	var b strings.Builder

	// Header
	b.WriteString(headerStyle.Render(" GitHub Repositories ") + "\n")
	b.WriteString(dimStyle.Render("  ↑/↓ j/k navigate · s sort field · o order · e rename · d delete · R reset · / filter · q quit") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  Sort: %s (%s) · page %d",
		m.state.Sort.Field, m.state.Sort.Order.DisplayName(), m.state.Page)) + "\n\n")

	// Search bar
	if m.mode == modeSearch {
		b.WriteString(fmt.Sprintf("Search: %s█\n\n", m.query))
	} else if m.query != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Filter: %s (press / to edit, Esc to clear)", m.query)) + "\n\n")
	}

	if m.state.Error != "" {
		b.WriteString(errorStyle.Render("✗ "+m.state.Error) + "\n\n")
	}

	// Status message
	if m.message != "" {
		switch m.msgType {
		case "error":
			b.WriteString(errorStyle.Render("✗ "+m.message) + "\n\n")
		case "success":
			b.WriteString(successStyle.Render("✓ "+m.message) + "\n\n")
		default:
			b.WriteString(m.message + "\n\n")
		}
	}

	// List header
	listHeader := fmt.Sprintf("%-4s %-30s %-12s %-10s %s", "#", "NAME", "STARS", "UPDATED", "DESCRIPTION")
	b.WriteString(dimStyle.Render(listHeader) + "\n")
	b.WriteString(strings.Repeat("─", m.width) + "\n")

	// List (limited to visible area)
	maxVisible := m.height - 12 // Reserve space for header, footer, etc.
	if maxVisible < 5 {
		maxVisible = 5
	}

	startIdx := m.cursor - maxVisible/2
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + maxVisible
	if endIdx > len(m.filtered) {
		endIdx = len(m.filtered)
		startIdx = endIdx - maxVisible
		if startIdx < 0 {
			startIdx = 0
		}
	}

	for i := startIdx; i < endIdx; i++ {
		line := m.formatRepoLine(i+1, m.filtered[i])

		if i == m.cursor {
			b.WriteString(selectedStyle.Render("❯ "+line) + "\n")
		} else {
			b.WriteString(normalStyle.Render("  "+line) + "\n")
		}
	}

	// Footer
	switch {
	case m.state.Loading:
		b.WriteString("\n  " + m.spinner.View() + " Loading repositories...\n")
	case len(m.filtered) == 0 && m.query != "":
		b.WriteString("\n" + dimStyle.Render("  No repositories match your filter") + "\n")
	case len(m.filtered) == 0:
		b.WriteString("\n" + dimStyle.Render("  No repositories loaded (press m to load)") + "\n")
	default:
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  %d/%d repositories", m.cursor+1, len(m.filtered))) + "\n")
	}

	if m.mode == modeEdit {
		b.WriteString("\n" + m.input.View() + "\n")
		b.WriteString(dimStyle.Render("  Enter to save, Esc to cancel") + "\n")
	}

	// Confirmation modal overlay
	if m.mode == modeConfirmDelete && m.target != nil {
		var modal strings.Builder
		modal.WriteString("Are you sure you want to delete this repository?\n\n")
		modal.WriteString(fmt.Sprintf("Name:   %s\n", formatter.TruncateWithEllipsis(m.target.Name, 49)))
		modal.WriteString(fmt.Sprintf("Stars:  %s\n", formatter.FormatStars(m.target.StarCount)))
		modal.WriteString(fmt.Sprintf("ID:     %d\n\n", m.target.ID))
		modal.WriteString("Delete? (y/n or Esc to cancel)")

		b.WriteString("\n" + modalStyle.Render(modal.String()) + "\n")
	}

	return b.String()
}

// formatRepoLine formats a single repository line for display
func (m model) formatRepoLine(num int, repo models.Repository) string {
	name := formatter.TruncateWithEllipsis(repo.Name, 30)
	stars := formatter.FormatStars(repo.StarCount)

	// Fixed columns: # (4) + NAME (30) + STARS (12) + UPDATED (10) plus separators and margins
	fixedWidth := 64
	descWidth := m.width - fixedWidth
	if descWidth < 20 {
		descWidth = 20
	}
	desc := formatter.TruncateWithEllipsis(formatter.OrDash(repo.Description), descWidth)

	return fmt.Sprintf("%-4d %-30s %-12s %-10s %s", num, name, stars, repo.FormattedDate(), desc)
}

// RunTUI starts the interactive TUI
func RunTUI(ctx context.Context, s RepoStore, logger *slog.Logger) error {
	m := newModel(ctx, s, logger)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Send must not block the store: edits run inside Update
	unsubscribe := s.Subscribe(func(store.State) {
		go p.Send(storeChangedMsg{})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
