// Package resource provides generic HTTP repositories and services for REST
// resources exposed under a single base path.
package resource

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
)

// ID identifies a single resource.
type ID = int64

// Pager fetches one page of a resource collection.
type Pager[T any] interface {
	Paginate(ctx context.Context, params *client.Params) (pagination.Result[T], error)
}

// Repository performs CRUD calls for resource T with write payload P.
type Repository[T any, P any] struct {
	client   *client.Client
	basePath string
}

// NewRepository creates a repository for basePath, e.g. "/api/v1/branch".
func NewRepository[T any, P any](c *client.Client, basePath string) *Repository[T, P] {
	return &Repository[T, P]{client: c, basePath: basePath}
}

// BasePath returns the collection path.
func (r *Repository[T, P]) BasePath() string {
	return r.basePath
}

func (r *Repository[T, P]) itemPath(id ID) string {
	return r.basePath + "/" + strconv.FormatInt(id, 10)
}

// List fetches the collection without pagination.
func (r *Repository[T, P]) List(ctx context.Context, params *client.Params) ([]T, error) {
	body, err := r.client.Fetch(ctx, http.MethodGet, r.basePath, params, nil)
	if err != nil {
		return nil, err
	}
	items, err := pagination.DecodeList[T](body)
	if err != nil {
		return nil, decodeError("decode list", err)
	}
	return items, nil
}

// Paginate fetches one page and decodes the list envelope.
func (r *Repository[T, P]) Paginate(ctx context.Context, params *client.Params) (pagination.Result[T], error) {
	body, err := r.client.Fetch(ctx, http.MethodGet, r.basePath, params, nil)
	if err != nil {
		return pagination.Empty[T](), err
	}
	result, err := pagination.Decode[T](body)
	if err != nil {
		return result, decodeError("decode list envelope", err)
	}
	return result, nil
}

// Find fetches a single resource.
func (r *Repository[T, P]) Find(ctx context.Context, id ID) (T, error) {
	return r.item(ctx, http.MethodGet, r.itemPath(id), nil)
}

// Create posts a new resource and returns the stored representation.
func (r *Repository[T, P]) Create(ctx context.Context, payload P) (T, error) {
	item, err := r.item(ctx, http.MethodPost, r.basePath, payload)
	if err == nil {
		r.client.InvalidatePath(ctx, r.basePath)
	}
	return item, err
}

// Update replaces the resource with id.
func (r *Repository[T, P]) Update(ctx context.Context, id ID, payload P) (T, error) {
	item, err := r.item(ctx, http.MethodPut, r.itemPath(id), payload)
	if err == nil {
		r.client.InvalidatePath(ctx, r.basePath)
	}
	return item, err
}

// Delete removes the resource with id.
func (r *Repository[T, P]) Delete(ctx context.Context, id ID) error {
	if _, err := r.client.Fetch(ctx, http.MethodDelete, r.itemPath(id), nil, nil); err != nil {
		return err
	}
	r.client.InvalidatePath(ctx, r.basePath)
	return nil
}

func (r *Repository[T, P]) item(ctx context.Context, method, path string, body any) (T, error) {
	var zero T

	data, err := r.client.Fetch(ctx, method, path, nil, body)
	if err != nil {
		return zero, err
	}
	if len(data) == 0 {
		return zero, nil
	}

	item, err := pagination.DecodeItem[T](data)
	if err != nil {
		return zero, decodeError("decode item", err)
	}
	return item, nil
}

func decodeError(msg string, err error) *client.APIError {
	return &client.APIError{Class: client.ErrorClassInternal, Message: msg, Err: err}
}
