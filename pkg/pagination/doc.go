// Package pagination decodes the list envelope returned by the branch API
// and walks every page of a collection.
//
// The list envelope has the shape:
//
//	{"data": {"data": [...], "pagination": {"total": 42, "per_page": 10,
//	          "current_page": 1, "last_page": 5, "from": 1, "to": 10}}}
//
// Decode never fails on a shape mismatch. A missing, null or mistyped items
// array becomes an empty slice and a missing pagination object becomes a
// zero Meta. Only a body that is not a JSON object is reported as an error.
//
// Example usage:
//
//	result, err := pagination.Decode[branch.Branch](body)
//	if result.Meta.HasNext() { ... }
//
// The Walker fetches the first page to learn the last page, then fetches the
// remaining pages concurrently with a bounded errgroup and returns the items
// in page order:
//
//	walker := pagination.NewWalker(fetchPage, pagination.DefaultConfig())
//	items, meta, err := walker.All(ctx)
package pagination
