// Package auth implements login, token storage and the authenticated
// session, including the 401 teardown hook for the API client.
package auth

// Permission grants one action on one resource.
type Permission struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Resource string `json:"resource" yaml:"resource"`
	Action   string `json:"action" yaml:"action"`
}

// Role is the user's role.
type Role struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// User is the authenticated profile.
type User struct {
	ID          string       `json:"id" yaml:"id"`
	Email       string       `json:"email" yaml:"email"`
	Name        string       `json:"name" yaml:"name"`
	Role        Role         `json:"role" yaml:"role"`
	Permissions []Permission `json:"permissions" yaml:"permissions"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Response is returned by login and refresh.
type Response struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
