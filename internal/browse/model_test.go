package browse

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/branch"
	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/listview"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
	"github.com/Sternrassler/branchdesk/pkg/query"
	tea "github.com/charmbracelet/bubbletea"
)

// fakeAPI serves three pages of generated branches.
type fakeAPI struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeAPI) fetch(_ context.Context, params *client.Params) (pagination.Result[branch.Branch], error) {
	f.mu.Lock()
	f.queries = append(f.queries, params.Encode())
	f.mu.Unlock()

	page := 1
	if v, ok := params.Get("page"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			page = n
		}
	}
	items := make([]branch.Branch, 0, 10)
	for i := 1; i <= 10; i++ {
		id := int64((page-1)*10 + i)
		items = append(items, branch.Branch{ID: id, Name: fmt.Sprintf("Branch %03d", id), Code: fmt.Sprintf("BR-%03d", id), IsActive: id%3 != 0})
	}
	return pagination.Result[branch.Branch]{
		Items: items,
		Meta:  pagination.Meta{Total: 30, PerPage: 10, CurrentPage: page, LastPage: 3, From: (page-1)*10 + 1, To: page * 10},
	}, nil
}

func newModel(t *testing.T) (*Model, *listview.View[branch.Branch]) {
	t.Helper()
	api := &fakeAPI{}
	v := listview.NewView[branch.Branch](query.MustLocation("/branches"), api.fetch, listview.Options{
		Resource:   branch.Resource,
		FilterKeys: branch.FilterKeys(),
		Clock:      query.NewManualClock(time.Unix(0, 0)),
	})
	t.Cleanup(v.Close)

	m := New(v)
	settle(t, m)
	return m, v
}

// settle waits for the current fetch and applies it to the model.
func settle(t *testing.T, m *Model) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.view.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	m.Update(changedMsg{})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_RendersSnapshot(t *testing.T) {
	m, _ := newModel(t)

	if got := len(m.table.Rows()); got != 10 {
		t.Fatalf("Expected 10 rows, got %d", got)
	}
	if m.table.Rows()[0][2] != "Branch 001" {
		t.Errorf("Expected first row name 'Branch 001', got %q", m.table.Rows()[0][2])
	}

	out := m.View()
	for _, want := range []string{"Branches", "page 1/3", "1-10 of 30", "sort id|asc"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestModel_Paging(t *testing.T) {
	m, v := newModel(t)

	tests := []struct {
		key  string
		page int
	}{
		{"n", 2},
		{"right", 3},
		{"n", 3}, // last page
		{"p", 2},
		{"left", 1},
		{"p", 1}, // first page
		{"G", 3},
		{"g", 1},
	}

	for _, tt := range tests {
		m.Update(key(tt.key))
		settle(t, m)
		if got := v.State().Page; got != tt.page {
			t.Errorf("After %q: expected page %d, got %d", tt.key, tt.page, got)
		}
	}
}

func TestModel_Search(t *testing.T) {
	m, v := newModel(t)
	m.Update(key("n"))
	settle(t, m)

	m.Update(key("/"))
	if !m.searching {
		t.Fatal("Expected search mode after '/'")
	}
	m.Update(key("n"))
	m.Update(key("o"))

	if v.State().Page != 2 {
		t.Error("Keys typed into search must not page")
	}
	if got := v.State().Search; got != "no" {
		t.Errorf("Expected raw search 'no', got %q", got)
	}
	if got := v.DebouncedSearch(); got != "" {
		t.Errorf("Expected no committed search yet, got %q", got)
	}

	m.Update(key("enter"))
	settle(t, m)

	if m.searching {
		t.Error("Expected search mode to end on enter")
	}
	if got := v.DebouncedSearch(); got != "no" {
		t.Errorf("Expected committed search 'no', got %q", got)
	}
	if got := v.State().Page; got != 1 {
		t.Errorf("Expected search commit to reset page, got %d", got)
	}
}

func TestModel_SortFilterLimit(t *testing.T) {
	m, v := newModel(t)

	m.Update(key("s"))
	if got := v.State().SortBy; got != "name|asc" {
		t.Errorf("Expected sort 'name|asc', got %q", got)
	}
	m.Update(key("o"))
	if got := v.State().SortBy; got != "name|desc" {
		t.Errorf("Expected sort 'name|desc', got %q", got)
	}

	for _, want := range []string{"true", "false", ""} {
		m.Update(key("a"))
		if got := v.State().Filters[branch.FilterIsActive]; got != want {
			t.Errorf("Expected is_active %q, got %q", want, got)
		}
	}

	m.Update(key("l"))
	if got := v.State().Limit; got != 25 {
		t.Errorf("Expected limit 25, got %d", got)
	}

	m.Update(key("a"))
	m.Update(key("x"))
	if got := v.State().Filters[branch.FilterIsActive]; got != "" {
		t.Errorf("Expected filters reset, got is_active=%q", got)
	}

	settle(t, m)
	if want := "page=1&limit=25&sort_by=name%7Cdesc"; v.Location().RawQuery() != want {
		t.Errorf("Expected query %q, got %q", want, v.Location().RawQuery())
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newModel(t)

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}

	// The change listener returns once the model has quit.
	select {
	case <-m.changed:
	default:
	}
	if msg := m.waitForChange()(); msg != nil {
		t.Errorf("Expected nil message after quit, got %T", msg)
	}
}
