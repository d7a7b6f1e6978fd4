package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/Sternrassler/branchdesk/pkg/branch"
	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/listview"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
	"github.com/Sternrassler/branchdesk/pkg/query"
	"github.com/Sternrassler/branchdesk/pkg/resource"
	"github.com/spf13/cobra"
)

// listFlags are the query flags shared by list, export and browse.
type listFlags struct {
	page    int
	limit   int
	search  string
	sort    string
	filters map[string]string
}

func (f *listFlags) register(cmd *cobra.Command, withPage bool) {
	fl := cmd.Flags()
	if withPage {
		fl.IntVar(&f.page, "page", query.DefaultPage, "page number")
	}
	fl.IntVar(&f.limit, "limit", 0, "page size (default from config)")
	fl.StringVar(&f.search, "search", "", "search term")
	fl.StringVar(&f.sort, "sort", query.DefaultSortBy, `sort as "field|asc" or "field|desc"`)
	fl.StringToStringVar(&f.filters, "filter", nil, "filter as key=value (name, email, phone, address, is_active)")
}

// state builds the list query. Unknown filter keys are rejected.
func (f *listFlags) state(defaultLimit int) (query.State, error) {
	keys := branch.FilterKeys()
	st := query.DefaultState(keys)

	if f.page < 0 {
		return st, fmt.Errorf("--page must be at least 1")
	}
	if f.page > 0 {
		st.Page = f.page
	}

	st.Limit = defaultLimit
	if f.limit < 0 {
		return st, fmt.Errorf("--limit must be at least 1")
	}
	if f.limit > 0 {
		st.Limit = f.limit
	}

	sortBy, err := query.ParseSortBy(f.sort)
	if err != nil {
		return st, err
	}
	st.SortBy = sortBy.String()
	st.Search = f.search

	for _, k := range slices.Sorted(maps.Keys(f.filters)) {
		if !slices.Contains(keys, k) {
			return st, fmt.Errorf("%w: %q", query.ErrUnknownFilter, k)
		}
		st.Filters[k] = f.filters[k]
	}
	return st, nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var lf listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of branches",
		Example: `  branchctl list --search north --sort "name|desc"
  branchctl list --filter is_active=true --page 2 -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := lf.state(a.cfg.List.Limit)
			if err != nil {
				return err
			}

			out := a.branches.Paginate(cmd.Context(), listview.RequestParams(st, st.Search, branch.FilterKeys()))
			if !out.OK() {
				return a.fail(out.Err)
			}
			return printPage(cmd.OutOrStdout(), opts.output, out.Data)
		},
	}
	lf.register(cmd, true)
	return cmd
}

func parseID(arg string) (resource.ID, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid branch id %q", arg)
	}
	return id, nil
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.branches.Find(cmd.Context(), id)
			if !out.OK() {
				return a.fail(out.Err)
			}
			return printBranch(cmd.OutOrStdout(), opts.output, out.Data)
		},
	}
}

// payloadFlags are the writable branch fields.
type payloadFlags struct {
	name, code, address, email, phone string
	active                            bool
}

func (f *payloadFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "branch name")
	fl.StringVar(&f.code, "code", "", "branch code")
	fl.StringVar(&f.address, "address", "", "postal address")
	fl.StringVar(&f.email, "email", "", "contact email")
	fl.StringVar(&f.phone, "phone", "", "contact phone")
	fl.BoolVar(&f.active, "active", true, "whether the branch is active")
}

// apply overwrites the fields of p whose flags were set on cmd.
func (f *payloadFlags) apply(cmd *cobra.Command, p branch.Payload) branch.Payload {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = f.name
	}
	if changed("code") {
		p.Code = f.code
	}
	if changed("address") {
		p.Address = f.address
	}
	if changed("email") {
		p.Email = f.email
	}
	if changed("phone") {
		p.Phone = f.phone
	}
	if changed("active") {
		p.IsActive = f.active
	}
	return p
}

// cliNotifier prints form successes. Failures are returned by the command.
type cliNotifier struct {
	w io.Writer
}

func (n cliNotifier) Success(message string) { fmt.Fprintln(n.w, message) }

func (n cliNotifier) Error(string) {}

// formError prints the field errors of a failed submit to w.
func formError(w io.Writer, st branch.FormState) error {
	fields := st.FieldErrors()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
	if st.Err != nil && st.Err.Class == client.ErrorClassUnauthorized {
		return errNotLoggedIn
	}
	return errors.New(st.ErrorMessage)
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var pf payloadFlags

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a branch",
		Example: `  branchctl create --name "North" --code NO-1 --email north@example.com`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			form := branch.NewForm(a.branches, cliNotifier{w: cmd.ErrOrStderr()})
			payload := pf.apply(cmd, branch.Payload{IsActive: true})
			if out := form.Submit(cmd.Context(), payload); !out.OK() {
				return formError(cmd.ErrOrStderr(), form.State())
			}
			return printBranch(cmd.OutOrStdout(), opts.output, form.State().Fields)
		},
	}
	pf.register(cmd)
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var pf payloadFlags

	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Update a branch; only the given flags change",
		Example: `  branchctl update 7 --phone "+1-555-0100" --active=false`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			form := branch.NewForm(a.branches, cliNotifier{w: cmd.ErrOrStderr()})
			if !form.Load(cmd.Context(), id) {
				return a.fail(form.State().Err)
			}

			payload := pf.apply(cmd, form.State().Fields.Payload())
			if out := form.Submit(cmd.Context(), payload); !out.OK() {
				return formError(cmd.ErrOrStderr(), form.State())
			}
			return printBranch(cmd.OutOrStdout(), opts.output, form.State().Fields)
		},
	}
	pf.register(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if out := a.branches.Delete(cmd.Context(), id); !out.OK() {
				return a.fail(out.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Branch %d deleted.\n", id)
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		lf   listFlags
		file string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch every page of branches and write them out",
		Long: `Export fetches page 1, then the remaining pages concurrently
(export.max_concurrency), and writes all matching branches in page order.`,
		Example: `  branchctl export --filter is_active=true -o yaml --file active.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := lf.state(a.cfg.List.Limit)
			if err != nil {
				return err
			}

			repo := a.branches.Repository()
			keys := branch.FilterKeys()
			walker := pagination.NewWalker(func(ctx context.Context, page int) (pagination.Result[branch.Branch], error) {
				pst := st.Clone()
				pst.Page = page
				return repo.Paginate(ctx, listview.RequestParams(pst, pst.Search, keys))
			}, a.cfg.Export)

			items, meta, err := walker.All(cmd.Context())
			if err != nil {
				if client.IsUnauthorized(err) {
					return errNotLoggedIn
				}
				return err
			}

			w := cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if opts.output == formatTable {
				_, err = fmt.Fprintln(w, branchTable(items))
			} else {
				err = writeDoc(w, opts.output, items)
			}
			if err != nil {
				return fmt.Errorf("write export: %w", err)
			}

			a.logger.Info().
				Int("items", len(items)).
				Int("total", meta.Total).
				Int("pages", meta.LastPage).
				Msg("Export complete")
			if file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d branches to %s\n", len(items), file)
			}
			return nil
		},
	}
	lf.register(cmd, false)
	cmd.Flags().StringVar(&file, "file", "", "write to this file instead of stdout")
	return cmd
}
