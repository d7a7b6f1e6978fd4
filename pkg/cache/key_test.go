package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "collection without params",
			key:  Key{Path: "/api/v1/branch"},
			want: "branchdesk:api/v1/branch",
		},
		{
			name: "detail path",
			key:  Key{Path: "/api/v1/branch/7/"},
			want: "branchdesk:api/v1/branch/7",
		},
		{
			name: "query params sorted",
			key: Key{
				Path: "/api/v1/branch",
				Query: url.Values{
					"sort_by": {"name|asc"},
					"page":    {"2"},
					"limit":   {"10"},
				},
			},
			want: "branchdesk:api/v1/branch:limit=10:page=2:sort_by=name|asc",
		},
		{
			name: "scoped",
			key:  Key{Path: "/auth/profile", Scope: "abc"},
			want: "branchdesk:auth/profile:scope=abc",
		},
		{
			name: "empty path",
			key:  Key{},
			want: "branchdesk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey_Determinism(t *testing.T) {
	key := Key{
		Path: "/api/v1/branch",
		Query: url.Values{
			"name":      {"north"},
			"is_active": {"true"},
			"page":      {"1"},
		},
		Scope: "s",
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("iteration %d: %v, want %v (not deterministic)", i, got, first)
		}
	}
}

func TestScopeForToken(t *testing.T) {
	if got := ScopeForToken(""); got != "" {
		t.Errorf("ScopeForToken(\"\") = %q, want empty", got)
	}

	a := ScopeForToken("token-a")
	b := ScopeForToken("token-b")
	if a == b {
		t.Error("different tokens should produce different scopes")
	}
	if len(a) != 16 {
		t.Errorf("scope length = %d, want 16", len(a))
	}
	if a != ScopeForToken("token-a") {
		t.Error("scope should be stable for the same token")
	}
}
