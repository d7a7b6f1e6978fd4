package auth

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Navigation targets after login and logout.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// expiryLeeway treats tokens this close to expiry as expired.
const expiryLeeway = 5 * time.Second

// ErrNoRefreshToken is returned when a refresh is needed but no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Navigator moves the application to a path. *query.Location implements it.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// Session is the authenticated state: the current user, the token store and
// the navigation that follows login, logout and 401 responses.
type Session struct {
	svc    *Service
	store  TokenStore
	nav    Navigator
	logger zerolog.Logger
	now    func() time.Time

	mu            sync.RWMutex
	user          *User
	authenticated bool
	loading       bool

	tearingDown atomic.Bool
}

// NewSession creates a session. nav may be nil when nothing needs to follow
// login and logout.
func NewSession(svc *Service, store TokenStore, nav Navigator) *Session {
	return &Session{
		svc:    svc,
		store:  store,
		nav:    nav,
		logger: logging.NewLogger("auth"),
		now:    time.Now,
	}
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is loaded.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// IsLoading reports whether a login is in progress.
func (s *Session) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Store returns the token store.
func (s *Session) Store() TokenStore {
	return s.store
}

// Login authenticates, stores both tokens and the user, then navigates to
// the dashboard.
func (s *Session) Login(ctx context.Context, creds Credentials) (*Response, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	resp, err := s.svc.Login(ctx, creds)
	if err == nil {
		err = storePair(ctx, s.store, resp.Token, resp.RefreshToken)
	}

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.authenticated = false
		s.mu.Unlock()
		authEvents.WithLabelValues("login_failed").Inc()
		s.logger.Warn().Err(err).Str("email", creds.Email).Msg("Login failed")
		return nil, err
	}
	user := resp.User
	s.user = &user
	s.authenticated = true
	s.mu.Unlock()

	authEvents.WithLabelValues("login").Inc()
	s.logger.Info().Str("email", user.Email).Str("role", user.Role.Name).Msg("Logged in")
	s.navigate(ctx, DashboardPath)
	return resp, nil
}

// Logout revokes the token on the server best-effort, then always clears the
// local session and navigates to the login page.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.svc.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Server logout failed - clearing local session anyway")
	}
	authEvents.WithLabelValues("logout").Inc()
	return s.teardown(ctx)
}

func (s *Session) teardown(ctx context.Context) error {
	err := s.store.Clear(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear token store")
	}

	s.mu.Lock()
	s.user = nil
	s.authenticated = false
	s.mu.Unlock()

	s.navigate(ctx, LoginPath)
	return err
}

func (s *Session) navigate(ctx context.Context, path string) {
	if s.nav == nil {
		return
	}
	if err := s.nav.Navigate(ctx, path); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Navigation failed")
	}
}

// FetchUser loads the profile for the stored token.
func (s *Session) FetchUser(ctx context.Context) error {
	user, err := s.svc.Profile(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.authenticated = false
		return err
	}
	s.user = user
	s.authenticated = true
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair.
func (s *Session) Refresh(ctx context.Context) error {
	refresh, err := s.store.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if refresh == "" {
		return ErrNoRefreshToken
	}

	resp, err := s.svc.Refresh(ctx, refresh)
	if err != nil {
		authEvents.WithLabelValues("refresh_failed").Inc()
		return err
	}
	if err := storePair(ctx, s.store, resp.Token, resp.RefreshToken); err != nil {
		return err
	}

	authEvents.WithLabelValues("refresh").Inc()
	s.logger.Debug().Msg("Access token refreshed")
	return nil
}

// CheckAuth restores the session from the stored token. It does nothing
// without a token or when already authenticated. An expired token is
// refreshed first; any failure logs the session out.
func (s *Session) CheckAuth(ctx context.Context) error {
	token, err := s.store.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" || s.IsAuthenticated() {
		return nil
	}

	if exp, ok := TokenExpiry(token); ok && !s.now().Add(expiryLeeway).Before(exp) {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Token refresh failed - logging out")
			_ = s.Logout(ctx)
			return err
		}
	}

	if err := s.FetchUser(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Session restore failed - logging out")
		_ = s.Logout(ctx)
		return err
	}
	return nil
}

// HandleUnauthorized tears the session down after a 401 and navigates to the
// login page. Concurrent 401s collapse into one teardown. Use it as the
// client's OnUnauthorized hook.
func (s *Session) HandleUnauthorized(ctx context.Context, apiErr *client.APIError) {
	if !s.tearingDown.CompareAndSwap(false, true) {
		return
	}
	defer s.tearingDown.Store(false)

	authEvents.WithLabelValues("unauthorized").Inc()
	s.logger.Warn().Err(apiErr).Msg("Unauthorized response - ending session")
	_ = s.teardown(ctx)
}

// HasPermission reports whether the user holds action on resource.
func (s *Session) HasPermission(resource, action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return false
	}
	return slices.ContainsFunc(s.user.Permissions, func(p Permission) bool {
		return p.Resource == resource && p.Action == action
	})
}

// Can is HasPermission.
func (s *Session) Can(resource, action string) bool {
	return s.HasPermission(resource, action)
}

// HasRole reports whether the user's role is name.
func (s *Session) HasRole(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role.Name == name
}

// HasAnyRole reports whether the user's role is one of names.
func (s *Session) HasAnyRole(names ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role := ""
	if s.user != nil {
		role = s.user.Role.Name
	}
	return slices.Contains(names, role)
}

// TokenExpiry returns the exp claim of a JWT without verifying its
// signature. ok is false for opaque tokens and tokens without exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}
