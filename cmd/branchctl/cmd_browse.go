package main

import (
	"github.com/Sternrassler/branchdesk/internal/browse"
	"github.com/Sternrassler/branchdesk/pkg/branch"
	"github.com/Sternrassler/branchdesk/pkg/listview"
	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/Sternrassler/branchdesk/pkg/query"
	"github.com/spf13/cobra"
)

// browsePath is the list location the interactive view starts from.
const browsePath = "/branches"

// browseLocation encodes the initial list query as the view's location.
func browseLocation(st query.State) (*query.Location, error) {
	raw := browsePath
	if q := st.Params(branch.FilterKeys()).Encode(); q != "" {
		raw += "?" + q
	}
	return query.NewLocation(raw)
}

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var lf listFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse branches interactively",
		Long: `Browse opens a paginated, searchable list of branches. Typing in the
search box refetches once the input settles for list.debounce.

Logging is disabled unless --log-level is given, since the list owns the
terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.logLevel == "" {
				opts.logLevel = string(logging.LevelDisabled)
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
			loc, err := browseLocation(st)
			if err != nil {
				return err
			}

			view := branch.NewListView(a.branches.Repository(), loc, listview.Options{
				Debounce: a.cfg.List.Debounce,
			})
			return browse.Run(cmd.Context(), view)
		},
	}
	lf.register(cmd, true)
	return cmd
}
