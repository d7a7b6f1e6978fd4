// Package browse is the interactive terminal list of branches. It renders a
// listview.View and maps keys onto its navigator, search, sort and filters.
package browse

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Sternrassler/branchdesk/pkg/branch"
	"github.com/Sternrassler/branchdesk/pkg/listview"
	"github.com/Sternrassler/branchdesk/pkg/query"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// sortFields is the cycle order of the "s" key.
var sortFields = []string{"id", "name", "code", "email"}

// activeCycle is the cycle order of the is_active filter.
var activeCycle = []string{"", "true", "false"}

// limits is the cycle order of the page size key.
var limits = []int{10, 25, 50}

// changedMsg tells the model to re-read the view snapshot.
type changedMsg struct{}

// Model is the bubbletea model of the branch list.
type Model struct {
	view    *listview.View[branch.Branch]
	changed chan struct{}
	done    chan struct{}

	table     table.Model
	search    textinput.Model
	searching bool
	snap      listview.Snapshot[branch.Branch]
	styles    Styles
	width     int
	height    int
}

// New creates a model over view. Run closes the view when the program exits.
func New(view *listview.View[branch.Branch]) *Model {
	styles := DefaultStyles()

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(12),
		table.WithStyles(styles.Table),
	)

	in := textinput.New()
	in.Prompt = "search: "
	in.Placeholder = "name, code or email"
	in.SetValue(view.State().Search)

	m := &Model{
		view:    view,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		table:   t,
		search:  in,
		styles:  styles,
	}
	view.OnChange(func(listview.Snapshot[branch.Branch]) {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	})
	m.refresh()
	return m
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, view *listview.View[branch.Branch]) error {
	m := New(view)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	m.quit()
	view.Close()
	return err
}

func columns(width int) []table.Column {
	name := max(width-4-6-10-28-8-10, 12)
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Code", Width: 10},
		{Title: "Name", Width: name},
		{Title: "Email", Width: 28},
		{Title: "Active", Width: 8},
	}
}

// Init waits for the first snapshot change.
func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changed:
			return changedMsg{}
		case <-m.done:
			return nil
		}
	}
}

func (m *Model) refresh() {
	m.snap = m.view.Snapshot()
	rows := make([]table.Row, 0, len(m.snap.Data.Items))
	for _, b := range m.snap.Data.Items {
		active := "no"
		if b.IsActive {
			active = "yes"
		}
		rows = append(rows, table.Row{strconv.FormatInt(b.ID, 10), b.Code, b.Name, b.Email, active})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *Model) quit() tea.Cmd {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	return tea.Quit
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetWidth(msg.Width - 2)
		m.table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case tea.KeyMsg:
		if m.searching {
			return m, m.updateSearch(msg)
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "n", "right":
		m.view.Next()
	case "p", "left":
		m.view.Prev()
	case "g":
		m.view.GoTo(1)
	case "G":
		if m.snap.HasData && m.snap.Data.Meta.Known() {
			m.view.GoTo(m.snap.Data.Meta.LastPage)
		}
	case "/":
		m.searching = true
		return m.search.Focus()
	case "s":
		m.cycleSortField()
	case "o":
		m.toggleSortDirection()
	case "a":
		m.cycleActiveFilter()
	case "l":
		m.cycleLimit()
	case "x":
		m.view.ResetFilters()
	case "r":
		m.view.Refresh()
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.view.FlushSearch()
		return nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return nil
	case tea.KeyCtrlC:
		return m.quit()
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.view.SetSearch(v)
	}
	return cmd
}

func (m *Model) currentSort() query.SortBy {
	sort, err := query.ParseSortBy(m.view.State().SortBy)
	if err != nil {
		sort, _ = query.ParseSortBy(query.DefaultSortBy)
	}
	return sort
}

func (m *Model) cycleSortField() {
	sort := m.currentSort()
	i := slices.Index(sortFields, sort.Field)
	sort.Field = sortFields[(i+1)%len(sortFields)]
	_ = m.view.SetSortBy(sort)
}

func (m *Model) toggleSortDirection() {
	_ = m.view.SetSortBy(m.currentSort().Toggle())
}

func (m *Model) cycleActiveFilter() {
	cur := m.view.State().Filters[branch.FilterIsActive]
	i := slices.Index(activeCycle, cur)
	_ = m.view.SetFilter(branch.FilterIsActive, activeCycle[(i+1)%len(activeCycle)])
}

func (m *Model) cycleLimit() {
	i := slices.Index(limits, m.view.State().Limit)
	m.view.SetLimit(limits[(i+1)%len(limits)])
}

// View renders the screen.
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("Branches"))
	sb.WriteString("  ")
	sb.WriteString(m.styles.Query.Render("?" + m.view.Location().RawQuery()))
	sb.WriteString("\n")
	sb.WriteString(m.search.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Content.Render(m.table.View()))
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Help.Render("n/p page · g/G first/last · / search · s sort · o order · a active · l limit · x reset · r reload · q quit"))
	return sb.String()
}

func (m *Model) statusLine() string {
	st := m.view.State()
	meta := m.snap.Data.Meta

	parts := []string{fmt.Sprintf("page %d", st.Page)}
	if m.snap.HasData && meta.Known() {
		parts[0] = fmt.Sprintf("page %d/%d", meta.CurrentPage, meta.LastPage)
		parts = append(parts, fmt.Sprintf("%d-%d of %d", meta.From, meta.To, meta.Total))
	}
	parts = append(parts, "sort "+st.SortBy)
	if v := st.Filters[branch.FilterIsActive]; v != "" {
		parts = append(parts, "active="+v)
	}
	if m.snap.Pending {
		parts = append(parts, "loading…")
	}

	line := m.styles.Status.Render(strings.Join(parts, " · "))
	if m.snap.Err != nil {
		line = lipgloss.JoinHorizontal(lipgloss.Top, line, "  ", m.styles.Error.Render(m.snap.Err.Message))
	}
	return line
}
