package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key written by the manager.
const KeyPrefix = "branchdesk"

// Key identifies a cached API response.
type Key struct {
	// Path is the request path, e.g. "/api/v1/branch".
	Path string

	// Query holds the request query parameters.
	Query url.Values

	// Scope separates entries of different sessions (see ScopeForToken).
	Scope string
}

// String generates a deterministic key.
// Format: branchdesk:path:q1=v1:q2=v2:scope=abc
//
// Example:
//
//	branchdesk:api/v1/branch:limit=10:page=2:scope=9f86d081884c7d65
func (k Key) String() string {
	parts := []string{pathKey(k.Path)}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, strings.Join(k.Query[name], ",")))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}

// pathKey returns the key stem shared by every entry of a path.
func pathKey(path string) string {
	stem := KeyPrefix
	if p := strings.Trim(path, "/"); p != "" {
		stem += ":" + p
	}
	return stem
}

// ScopeForToken derives a short, non-reversible scope from a bearer token.
// An empty token yields the empty (anonymous) scope.
func ScopeForToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
