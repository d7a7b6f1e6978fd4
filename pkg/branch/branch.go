// Package branch is the branch administration domain: the Branch model,
// its repository and service, the edit form and the list view wiring.
package branch

import (
	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/listview"
	"github.com/Sternrassler/branchdesk/pkg/query"
	"github.com/Sternrassler/branchdesk/pkg/resource"
)

// BasePath is the branch collection endpoint.
const BasePath = "/api/v1/branch"

// Resource names branch lists in fetch keys, logs and metrics.
const Resource = "branch"

// Filter query keys, in URL order.
const (
	FilterName     = "name"
	FilterEmail    = "email"
	FilterPhone    = "phone"
	FilterAddress  = "address"
	FilterIsActive = "is_active"
)

// FilterKeys returns the branch filter keys in URL order.
func FilterKeys() []string {
	return []string{FilterName, FilterEmail, FilterPhone, FilterAddress, FilterIsActive}
}

// Branch is a branch as returned by the API.
type Branch struct {
	ID       resource.ID `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Code     string      `json:"code" yaml:"code"`
	Address  string      `json:"address,omitempty" yaml:"address,omitempty"`
	Email    string      `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string      `json:"phone,omitempty" yaml:"phone,omitempty"`
	IsActive bool        `json:"is_active" yaml:"is_active"`
}

// Payload returns the writable fields of b.
func (b Branch) Payload() Payload {
	return Payload{
		Name:     b.Name,
		Code:     b.Code,
		Address:  b.Address,
		Email:    b.Email,
		Phone:    b.Phone,
		IsActive: b.IsActive,
	}
}

// Payload is the body of create and update calls.
type Payload struct {
	Name     string `json:"name" yaml:"name"`
	Code     string `json:"code" yaml:"code"`
	Address  string `json:"address" yaml:"address"`
	Email    string `json:"email" yaml:"email"`
	Phone    string `json:"phone" yaml:"phone"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// Repository is the branch repository.
type Repository = resource.Repository[Branch, Payload]

// Service is the branch service.
type Service = resource.Service[Branch, Payload]

// NewRepository creates a repository for BasePath.
func NewRepository(c *client.Client) *Repository {
	return resource.NewRepository[Branch, Payload](c, BasePath)
}

// NewService creates a branch service.
func NewService(c *client.Client) *Service {
	return resource.NewService(NewRepository(c))
}

// NewListView mounts a branch list on loc. Resource and FilterKeys default to
// the branch values when opts leaves them empty.
func NewListView(repo *Repository, loc *query.Location, opts listview.Options) *listview.View[Branch] {
	if opts.Resource == "" {
		opts.Resource = Resource
	}
	if opts.FilterKeys == nil {
		opts.FilterKeys = FilterKeys()
	}
	return listview.NewView[Branch](loc, repo.Paginate, opts)
}
