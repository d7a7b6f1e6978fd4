package resource

import (
	"context"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/pagination"
)

// Outcome is the result of a service call: either Data or Err is meaningful.
type Outcome[T any] struct {
	Data T
	Err  *client.APIError
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Success wraps data.
func Success[T any](data T) Outcome[T] {
	return Outcome[T]{Data: data}
}

// Failure wraps err. Errors that are not API errors become
// {code: 500, message: "Unknown error"}.
func Failure[T any](err error) Outcome[T] {
	return Outcome[T]{Err: client.AsAPIError(err)}
}

func outcome[T any](data T, err error) Outcome[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(data)
}

// Service adapts a Repository to calls that never return an error value.
type Service[T any, P any] struct {
	repo *Repository[T, P]
}

// NewService creates a service over repo.
func NewService[T any, P any](repo *Repository[T, P]) *Service[T, P] {
	return &Service[T, P]{repo: repo}
}

// Repository returns the underlying repository.
func (s *Service[T, P]) Repository() *Repository[T, P] {
	return s.repo
}

// List fetches the unpaginated collection.
func (s *Service[T, P]) List(ctx context.Context, params *client.Params) Outcome[[]T] {
	items, err := s.repo.List(ctx, params)
	return outcome(items, err)
}

// Paginate fetches one page.
func (s *Service[T, P]) Paginate(ctx context.Context, params *client.Params) Outcome[pagination.Result[T]] {
	result, err := s.repo.Paginate(ctx, params)
	return outcome(result, err)
}

// Find fetches one resource.
func (s *Service[T, P]) Find(ctx context.Context, id ID) Outcome[T] {
	item, err := s.repo.Find(ctx, id)
	return outcome(item, err)
}

// Create stores a new resource.
func (s *Service[T, P]) Create(ctx context.Context, payload P) Outcome[T] {
	item, err := s.repo.Create(ctx, payload)
	return outcome(item, err)
}

// Update replaces a resource.
func (s *Service[T, P]) Update(ctx context.Context, id ID, payload P) Outcome[T] {
	item, err := s.repo.Update(ctx, id, payload)
	return outcome(item, err)
}

// Delete removes a resource.
func (s *Service[T, P]) Delete(ctx context.Context, id ID) Outcome[struct{}] {
	return outcome(struct{}{}, s.repo.Delete(ctx, id))
}
