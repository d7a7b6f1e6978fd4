package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FetchKey identifies the request a state produces. It is built from the
// resource name and the state with Search replaced by the debounced value,
// e.g. "branch:page=2:limit=10:search=north:sort_by=name%7Casc:is_active=true".
// Filters are sorted by key and empty values are omitted, so equal requests
// always produce equal keys. Values are query-escaped so a ':' or '=' inside
// one cannot make two states collide.
func FetchKey(resource string, st State, debouncedSearch string) string {
	parts := []string{
		resource,
		KeyPage + "=" + strconv.Itoa(st.Page),
		KeyLimit + "=" + strconv.Itoa(st.Limit),
	}
	if debouncedSearch != "" {
		parts = append(parts, KeySearch+"="+url.QueryEscape(debouncedSearch))
	}
	if st.SortBy != "" {
		parts = append(parts, KeySortBy+"="+url.QueryEscape(st.SortBy))
	}

	keys := make([]string, 0, len(st.Filters))
	for k, v := range st.Filters {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(st.Filters[k]))
	}

	return strings.Join(parts, ":")
}
