package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/Sternrassler/branchdesk/pkg/auth"
	"github.com/Sternrassler/branchdesk/pkg/branch"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

var borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2a3850"))

func checkFormat(format string) error {
	switch format {
	case formatTable, formatYAML, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, yaml or json)", format)
}

// writeDoc encodes v as YAML or JSON.
func writeDoc(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return checkFormat(format)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func branchTable(items []branch.Branch) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "CODE", "NAME", "EMAIL", "PHONE", "ACTIVE")
	for _, b := range items {
		t.Row(strconv.FormatInt(b.ID, 10), b.Code, b.Name, b.Email, b.Phone, yesNo(b.IsActive))
	}
	return t.String()
}

func printPage(w io.Writer, format string, page pagination.Result[branch.Branch]) error {
	if format != formatTable {
		return writeDoc(w, format, page)
	}
	if len(page.Items) == 0 {
		_, err := fmt.Fprintln(w, "No branches found.")
		return err
	}
	fmt.Fprintln(w, branchTable(page.Items))
	if m := page.Meta; m.Known() {
		fmt.Fprintf(w, "page %d/%d · %d-%d of %d\n", m.CurrentPage, m.LastPage, m.From, m.To, m.Total)
	}
	return nil
}

func printBranch(w io.Writer, format string, b branch.Branch) error {
	if format != formatTable {
		return writeDoc(w, format, b)
	}
	_, err := fmt.Fprintln(w, branchTable([]branch.Branch{b}))
	return err
}

func printUser(w io.Writer, format string, u *auth.User) error {
	if format != formatTable {
		return writeDoc(w, format, u)
	}
	fmt.Fprintf(w, "%s <%s>\nrole: %s\n", u.Name, u.Email, u.Role.Name)
	if len(u.Permissions) == 0 {
		return nil
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("PERMISSION", "RESOURCE", "ACTION")
	for _, p := range u.Permissions {
		t.Row(p.Name, p.Resource, p.Action)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
