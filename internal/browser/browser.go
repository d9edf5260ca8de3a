// Package browser is an interactive terminal view of a project's
// datasources.
package browser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kylinctl/kylinctl/internal/datasource"
	"github.com/kylinctl/kylinctl/internal/report"
)

// Loader lists and loads datasources. *kylin.Project satisfies it.
type Loader interface {
	AllDatasourceNames(ctx context.Context) (map[datasource.Kind][]string, error)
	Datasource(ctx context.Context, name string, kind datasource.Kind) (datasource.Datasource, error)
}

type entry struct {
	name    string
	kind    datasource.Kind
	visible bool
}

// Model is the bubbletea model of the browser. It starts on the list of
// datasource names; enter opens one and esc goes back.
type Model struct {
	ctx    context.Context
	loader Loader
	now    func() time.Time

	entries     []entry
	visibleIdxs []int
	cursor      int
	filter      string
	filtering   bool

	loading bool
	spinner spinner.Model
	detail  *report.DatasourceReport
	lines   []string
	offset  int
	err     error

	done   bool
	width  int
	height int
}

type namesLoadedMsg struct {
	names map[datasource.Kind][]string
	err   error
}

type detailLoadedMsg struct {
	report *report.DatasourceReport
	err    error
}

// New creates a browser over loader. Requests made by the browser use ctx.
func New(ctx context.Context, loader Loader) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctx:     ctx,
		loader:  loader,
		now:     time.Now,
		loading: true,
		spinner: s,
		width:   80,
		height:  24,
	}
}

// Run starts the browser on the terminal and blocks until the user quits.
func Run(ctx context.Context, loader Loader) error {
	_, err := tea.NewProgram(New(ctx, loader), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadNames())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case namesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setEntries(msg.names)
		return m, nil

	case detailLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.detail = msg.report
		m.lines = strings.Split(strings.TrimRight(report.FormatReport(msg.report), "\n"), "\n")
		m.offset = 0
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}
		if m.detail != nil {
			return m.updateDetail(msg)
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.done = true
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)

	case "down", "j":
		m.moveCursor(1)

	case "home":
		m.cursor = 0

	case "end":
		if len(m.visibleIdxs) > 0 {
			m.cursor = len(m.visibleIdxs) - 1
		}

	case "/":
		m.filtering = true
		m.filter = ""
		m.applyFilter()

	case "enter":
		e, ok := m.current()
		if !ok {
			return m, nil
		}
		m.loading = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.loadDetail(e))
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter = ""
		m.applyFilter()

	case "enter":
		m.filtering = false

	case "backspace":
		if len(m.filter) > 0 {
			m.filter = m.filter[:len(m.filter)-1]
			m.applyFilter()
		}

	default:
		if len(msg.String()) == 1 {
			m.filter += msg.String()
			m.applyFilter()
		}
	}
	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.done = true
		return m, tea.Quit

	case "esc", "backspace", "left", "h":
		m.detail = nil
		m.lines = nil
		m.offset = 0

	case "up", "k":
		m.scroll(-1)

	case "down", "j":
		m.scroll(1)

	case "pgup":
		m.scroll(-m.pageSize())

	case "pgdown", " ":
		m.scroll(m.pageSize())
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	if m.detail != nil {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", m.detail.Kind, m.detail.Name)) + "\n\n")
		end := min(m.offset+m.pageSize(), len(m.lines))
		for _, line := range m.lines[m.offset:end] {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  %d-%d of %d • ↑/↓ scroll • esc back • q quit", m.offset+1, end, len(m.lines))) + "\n")
		return b.String()
	}

	b.WriteString(titleStyle.Render("Datasources") + "\n\n")

	if m.filtering {
		b.WriteString(highlightStyle.Render("  Filter: ") + m.filter + "█\n\n")
	} else if m.filter != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  Filter: %s (/ to change, esc in filter to clear)", m.filter)) + "\n\n")
	}

	switch {
	case m.loading && len(m.entries) == 0:
		b.WriteString(fmt.Sprintf("  %s Loading datasources...\n", m.spinner.View()))
		return b.String()
	case len(m.entries) == 0 && m.err == nil:
		b.WriteString(dimStyle.Render("  No datasources in this project") + "\n")
	case len(m.visibleIdxs) == 0 && len(m.entries) > 0:
		b.WriteString(dimStyle.Render("  No datasources match the filter") + "\n")
	}

	// Keep the cursor inside the visible window.
	page := m.pageSize()
	first := 0
	if m.cursor >= page {
		first = m.cursor - page + 1
	}
	last := min(first+page, len(m.visibleIdxs))
	for i := first; i < last; i++ {
		e := m.entries[m.visibleIdxs[i]]
		kind := kindStyle.Render(fmt.Sprintf("%-8s", e.kind))
		if i == m.cursor {
			b.WriteString(highlightStyle.Render("> ") + kind + " " + highlightStyle.Render(e.name) + "\n")
		} else {
			b.WriteString("  " + kind + " " + e.name + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(fmt.Sprintf("  %s Loading...\n", m.spinner.View()))
	case m.err != nil:
		b.WriteString(errStyle.Render("  "+m.err.Error()) + "\n")
	default:
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d of %d • enter open • / filter • q quit", len(m.visibleIdxs), len(m.entries))) + "\n")
	}
	return b.String()
}

// Done reports whether the user quit.
func (m Model) Done() bool {
	return m.done
}

func (m Model) loadNames() tea.Cmd {
	ctx, loader := m.ctx, m.loader
	return func() tea.Msg {
		names, err := loader.AllDatasourceNames(ctx)
		return namesLoadedMsg{names: names, err: err}
	}
}

func (m Model) loadDetail(e entry) tea.Cmd {
	ctx, loader, now := m.ctx, m.loader, m.now
	return func() tea.Msg {
		ds, err := loader.Datasource(ctx, e.name, e.kind)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		r, err := report.Generate(ds, now())
		return detailLoadedMsg{report: r, err: err}
	}
}

// setEntries lists the names grouped by kind in kind order, then by name.
func (m *Model) setEntries(names map[datasource.Kind][]string) {
	kinds := make([]datasource.Kind, 0, len(names))
	for k := range names {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	m.entries = m.entries[:0]
	for _, k := range kinds {
		sorted := append([]string(nil), names[k]...)
		sort.Strings(sorted)
		for _, n := range sorted {
			m.entries = append(m.entries, entry{name: n, kind: k, visible: true})
		}
	}
	m.applyFilter()
}

func (m *Model) current() (entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visibleIdxs) {
		return entry{}, false
	}
	return m.entries[m.visibleIdxs[m.cursor]], true
}

func (m *Model) moveCursor(delta int) {
	if len(m.visibleIdxs) == 0 {
		return
	}
	m.cursor = max(0, min(m.cursor+delta, len(m.visibleIdxs)-1))
}

func (m *Model) scroll(delta int) {
	m.offset = max(0, min(m.offset+delta, len(m.lines)-m.pageSize()))
}

func (m *Model) applyFilter() {
	lower := strings.ToLower(m.filter)
	m.visibleIdxs = m.visibleIdxs[:0]
	for i := range m.entries {
		m.entries[i].visible = m.filter == "" || strings.Contains(strings.ToLower(m.entries[i].name), lower)
		if m.entries[i].visible {
			m.visibleIdxs = append(m.visibleIdxs, i)
		}
	}
	if m.cursor >= len(m.visibleIdxs) {
		m.cursor = max(0, len(m.visibleIdxs)-1)
	}
}

// pageSize is the number of list or detail rows that fit the terminal.
func (m Model) pageSize() int {
	return max(1, m.height-6)
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	kindStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)
