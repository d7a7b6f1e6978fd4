package auth

import (
	"context"
	"net/http"

	"github.com/Sternrassler/branchdesk/pkg/client"
)

// Auth endpoints.
const (
	PathLogin   = "/auth/login"
	PathLogout  = "/auth/logout"
	PathProfile = "/auth/profile"
	PathRefresh = "/auth/refresh"
)

// Service calls the auth endpoints. Responses are bare JSON, not enveloped.
type Service struct {
	client *client.Client
}

// NewService creates an auth service.
func NewService(c *client.Client) *Service {
	return &Service{client: c}
}

// Login exchanges credentials for tokens. A 401 here means bad credentials
// and does not trigger the client's unauthorized hook.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Response, error) {
	var resp Response
	err := s.client.SendJSON(client.WithoutUnauthorizedHook(ctx), http.MethodPost, PathLogin, nil, creds, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the current token on the server.
func (s *Service) Logout(ctx context.Context) error {
	return s.client.SendJSON(client.WithoutUnauthorizedHook(ctx), http.MethodPost, PathLogout, nil, nil, nil)
}

// Profile returns the authenticated user.
func (s *Service) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.GetJSON(ctx, PathProfile, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Response, error) {
	var resp Response
	body := map[string]string{"refreshToken": refreshToken}
	err := s.client.SendJSON(client.WithoutUnauthorizedHook(ctx), http.MethodPost, PathRefresh, nil, body, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
