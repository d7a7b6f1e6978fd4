// Package testutil provides testing utilities for the branchdesk client.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Default credentials seeded into every MockAPI.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "secret"
)

// BranchRecord is a branch as stored by the mock API.
type BranchRecord struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Address  string `json:"address"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	IsActive bool   `json:"is_active"`
}

// PermissionRecord is a user permission.
type PermissionRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// RoleRecord is a user role.
type RoleRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// UserRecord is the profile returned by the auth endpoints.
type UserRecord struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Role        RoleRecord         `json:"role"`
	Permissions []PermissionRecord `json:"permissions"`
}

// RecordedRequest captures one request seen by the mock.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
}

type mockUser struct {
	profile      UserRecord
	passwordHash []byte
}

type failure struct {
	status int
	body   string
}

// MockAPI is an in-memory branch administration API for tests.
type MockAPI struct {
	server *httptest.Server
	secret []byte

	mu       sync.Mutex
	branches map[int64]BranchRecord
	nextID   int64
	users    map[string]mockUser
	revoked  map[string]bool
	requests []RecordedRequest
	failures []failure
	delay    func(r *http.Request) time.Duration

	// AccessTTL is the lifetime of issued access tokens.
	AccessTTL time.Duration

	// RequireAuth rejects requests without a valid bearer token with 401.
	RequireAuth bool
}

// NewMockAPI starts a mock API with one admin user and no branches.
func NewMockAPI() *MockAPI {
	gin.SetMode(gin.TestMode)

	m := &MockAPI{
		secret:      []byte("branchdesk-test-secret"),
		branches:    make(map[int64]BranchRecord),
		nextID:      1,
		users:       make(map[string]mockUser),
		revoked:     make(map[string]bool),
		AccessTTL:   15 * time.Minute,
		RequireAuth: true,
	}

	m.AddUser(AdminPassword, UserRecord{
		ID:    "u-1",
		Email: AdminEmail,
		Name:  "Admin",
		Role:  RoleRecord{ID: "r-1", Name: "admin", Permissions: []string{"branch.*"}},
		Permissions: []PermissionRecord{
			{ID: "p-1", Name: "branch.read", Resource: "branch", Action: "read"},
			{ID: "p-2", Name: "branch.create", Resource: "branch", Action: "create"},
			{ID: "p-3", Name: "branch.update", Resource: "branch", Action: "update"},
			{ID: "p-4", Name: "branch.delete", Resource: "branch", Action: "delete"},
		},
	})

	m.server = httptest.NewServer(m.routes())
	return m
}

func (m *MockAPI) routes() *gin.Engine {
	r := gin.New()
	r.Use(m.record(), m.inject())

	authGroup := r.Group("/auth")
	authGroup.POST("/login", m.login)
	authGroup.POST("/refresh", m.refresh)
	authGroup.POST("/logout", m.authenticate(), m.logout)
	authGroup.GET("/profile", m.authenticate(), m.profile)

	branches := r.Group("/api/v1/branch", m.authenticate())
	branches.GET("", m.listBranches)
	branches.POST("", m.createBranch)
	branches.GET("/:id", m.showBranch)
	branches.PUT("/:id", m.updateBranch)
	branches.DELETE("/:id", m.deleteBranch)

	return r
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// AddUser registers a user who can log in with password.
func (m *MockAPI) AddUser(password string, user UserRecord) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("hash password: %v", err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[strings.ToLower(user.Email)] = mockUser{profile: user, passwordHash: hash}
}

// AddBranch stores a branch and returns it with its assigned ID.
func (m *MockAPI) AddBranch(b BranchRecord) BranchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextID
	m.nextID++
	m.branches[b.ID] = b
	return b
}

// SeedBranches stores n generated branches named "Branch 001" onwards.
// Every third branch is inactive.
func (m *MockAPI) SeedBranches(n int) {
	for i := 1; i <= n; i++ {
		m.AddBranch(BranchRecord{
			Name:     fmt.Sprintf("Branch %03d", i),
			Code:     fmt.Sprintf("BR-%03d", i),
			Address:  fmt.Sprintf("%d Main Street", i),
			Email:    fmt.Sprintf("branch%03d@example.com", i),
			Phone:    fmt.Sprintf("+1-555-%04d", i),
			IsActive: i%3 != 0,
		})
	}
}

// Branch returns a stored branch.
func (m *MockAPI) Branch(id int64) (BranchRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[id]
	return b, ok
}

// IssueToken mints an access token for email without a login request.
func (m *MockAPI) IssueToken(email string) string {
	tok, err := m.sign(email, "access", m.AccessTTL)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return tok
}

// IssueExpiredToken mints an access token that expired a minute ago.
func (m *MockAPI) IssueExpiredToken(email string) string {
	tok, err := m.sign(email, "access", -time.Minute)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return tok
}

// IssueRefreshToken mints a refresh token for email.
func (m *MockAPI) IssueRefreshToken(email string) string {
	tok, err := m.sign(email, "refresh", 24*time.Hour)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return tok
}

// SetDelay installs a per-request delay. The delay ends early when the
// client cancels the request.
func (m *MockAPI) SetDelay(fn func(r *http.Request) time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = fn
}

// FailNext makes the next n requests answer status with an error envelope.
func (m *MockAPI) FailNext(n, status int) {
	body := fmt.Sprintf(`{"code":%d,"message":%q}`, status, http.StatusText(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures = append(m.failures, failure{status: status, body: body})
	}
}

// Requests returns a copy of all recorded requests.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request.
func (m *MockAPI) LastRequest() (RecordedRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// ConditionalCount returns the number of requests carrying If-None-Match.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.Header.Get("If-None-Match") != "" {
			n++
		}
	}
	return n
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

func (m *MockAPI) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			RawQuery: c.Request.URL.RawQuery,
			Header:   c.Request.Header.Clone(),
		})
		m.mu.Unlock()

		if rid := c.GetHeader("X-Request-ID"); rid != "" {
			c.Header("X-Request-ID", rid)
		}
		c.Next()
	}
}

// inject applies configured delays and queued failures.
func (m *MockAPI) inject() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.Lock()
		delay := m.delay
		var fail *failure
		if len(m.failures) > 0 {
			f := m.failures[0]
			m.failures = m.failures[1:]
			fail = &f
		}
		m.mu.Unlock()

		if delay != nil {
			if d := delay(c.Request); d > 0 {
				select {
				case <-time.After(d):
				case <-c.Request.Context().Done():
					c.Abort()
					return
				}
			}
		}

		if fail != nil {
			c.Data(fail.status, "application/json", []byte(fail.body))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *MockAPI) sign(email, typ string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": email,
		"typ": typ,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
		"jti": strconv.FormatInt(time.Now().UnixNano(), 36),
	})
	return token.SignedString(m.secret)
}

func (m *MockAPI) parse(tokenString, typ string) (string, bool) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", false
	}
	if claims["typ"] != typ {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}

func (m *MockAPI) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")

		email, ok := "", false
		if token != "" && token != header {
			email, ok = m.parse(token, "access")
			m.mu.Lock()
			if m.revoked[token] {
				ok = false
			}
			m.mu.Unlock()
		}

		if !ok {
			if m.RequireAuth {
				abortError(c, http.StatusUnauthorized, "Unauthenticated")
				return
			}
			email = AdminEmail
		}

		c.Set("email", email)
		c.Set("token", token)
		c.Next()
	}
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
}

func validationError(c *gin.Context, errs []gin.H) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"code":    http.StatusUnprocessableEntity,
		"message": "The given data was invalid.",
		"errors":  errs,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (m *MockAPI) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid payload")
		return
	}

	var errs []gin.H
	if req.Email == "" {
		errs = append(errs, gin.H{"field": "email", "message": "The email field is required."})
	}
	if req.Password == "" {
		errs = append(errs, gin.H{"field": "password", "message": "The password field is required."})
	}
	if len(errs) > 0 {
		validationError(c, errs)
		return
	}

	m.mu.Lock()
	user, ok := m.users[strings.ToLower(req.Email)]
	m.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(user.passwordHash, []byte(req.Password)) != nil {
		abortError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	m.issue(c, user.profile)
}

func (m *MockAPI) issue(c *gin.Context, user UserRecord) {
	access, err := m.sign(user.Email, "access", m.AccessTTL)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Failed to sign token")
		return
	}
	refresh, err := m.sign(user.Email, "refresh", 24*time.Hour)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Failed to sign token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"token":        access,
		"refreshToken": refresh,
	})
}

func (m *MockAPI) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		abortError(c, http.StatusBadRequest, "Invalid payload")
		return
	}

	email, ok := m.parse(req.RefreshToken, "refresh")
	if !ok {
		abortError(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	m.mu.Lock()
	user, ok := m.users[strings.ToLower(email)]
	m.mu.Unlock()
	if !ok {
		abortError(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	m.issue(c, user.profile)
}

func (m *MockAPI) logout(c *gin.Context) {
	m.mu.Lock()
	m.revoked[c.GetString("token")] = true
	m.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (m *MockAPI) profile(c *gin.Context) {
	m.mu.Lock()
	user, ok := m.users[strings.ToLower(c.GetString("email"))]
	m.mu.Unlock()
	if !ok {
		abortError(c, http.StatusUnauthorized, "Unauthenticated")
		return
	}
	c.JSON(http.StatusOK, user.profile)
}

// writeJSON answers with an ETag and honours If-None-Match.
func writeJSON(c *gin.Context, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		abortError(c, http.StatusInternalServerError, "Failed to encode response")
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, max-age=60")

	if status == http.StatusOK && c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func (m *MockAPI) listBranches(c *gin.Context) {
	m.mu.Lock()
	rows := make([]BranchRecord, 0, len(m.branches))
	for _, b := range m.branches {
		rows = append(rows, b)
	}
	m.mu.Unlock()

	rows = filterBranches(rows, c)
	sortBranches(rows, c.Query("sort_by"))

	if _, paged := c.GetQuery("page"); !paged {
		writeJSON(c, http.StatusOK, gin.H{"data": rows})
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	total := len(rows)
	lastPage := int(math.Max(1, math.Ceil(float64(total)/float64(limit))))

	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	from, to := 0, 0
	if end > start {
		from, to = start+1, end
	}

	writeJSON(c, http.StatusOK, gin.H{
		"data": gin.H{
			"data": rows[start:end],
			"pagination": gin.H{
				"total":        total,
				"per_page":     limit,
				"current_page": page,
				"last_page":    lastPage,
				"from":         from,
				"to":           to,
			},
		},
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func filterBranches(rows []BranchRecord, c *gin.Context) []BranchRecord {
	search := c.Query("search")
	out := rows[:0]
	for _, b := range rows {
		if search != "" && !containsFold(b.Name, search) && !containsFold(b.Code, search) && !containsFold(b.Email, search) {
			continue
		}
		if v := c.Query("name"); v != "" && !containsFold(b.Name, v) {
			continue
		}
		if v := c.Query("email"); v != "" && !containsFold(b.Email, v) {
			continue
		}
		if v := c.Query("phone"); v != "" && !containsFold(b.Phone, v) {
			continue
		}
		if v := c.Query("address"); v != "" && !containsFold(b.Address, v) {
			continue
		}
		if v := c.Query("is_active"); v != "" {
			active := v == "true" || v == "1"
			if b.IsActive != active {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

func sortBranches(rows []BranchRecord, sortBy string) {
	field, dir, _ := strings.Cut(sortBy, "|")
	less := func(a, b BranchRecord) bool { return a.ID < b.ID }
	switch field {
	case "name":
		less = func(a, b BranchRecord) bool { return a.Name < b.Name }
	case "code":
		less = func(a, b BranchRecord) bool { return a.Code < b.Code }
	case "email":
		less = func(a, b BranchRecord) bool { return a.Email < b.Email }
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if dir == "desc" {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

func (m *MockAPI) branchID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortError(c, http.StatusNotFound, "Branch not found")
		return 0, false
	}
	return id, true
}

func (m *MockAPI) showBranch(c *gin.Context) {
	id, ok := m.branchID(c)
	if !ok {
		return
	}
	b, found := m.Branch(id)
	if !found {
		abortError(c, http.StatusNotFound, "Branch not found")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"data": b})
}

func validateBranch(b BranchRecord) []gin.H {
	var errs []gin.H
	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, gin.H{"field": "name", "message": "The name field is required."})
	}
	if strings.TrimSpace(b.Code) == "" {
		errs = append(errs, gin.H{"field": "code", "message": "The code field is required."})
	}
	if b.Email != "" && !strings.Contains(b.Email, "@") {
		errs = append(errs, gin.H{"field": "email", "message": "The email must be a valid email address."})
	}
	return errs
}

func (m *MockAPI) createBranch(c *gin.Context) {
	var b BranchRecord
	if err := c.ShouldBindJSON(&b); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid payload")
		return
	}
	if errs := validateBranch(b); len(errs) > 0 {
		validationError(c, errs)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"data": m.AddBranch(b)})
}

func (m *MockAPI) updateBranch(c *gin.Context) {
	id, ok := m.branchID(c)
	if !ok {
		return
	}
	var b BranchRecord
	if err := c.ShouldBindJSON(&b); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid payload")
		return
	}
	if errs := validateBranch(b); len(errs) > 0 {
		validationError(c, errs)
		return
	}

	m.mu.Lock()
	_, found := m.branches[id]
	if found {
		b.ID = id
		m.branches[id] = b
	}
	m.mu.Unlock()

	if !found {
		abortError(c, http.StatusNotFound, "Branch not found")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"data": b})
}

func (m *MockAPI) deleteBranch(c *gin.Context) {
	id, ok := m.branchID(c)
	if !ok {
		return
	}

	m.mu.Lock()
	_, found := m.branches[id]
	delete(m.branches, id)
	m.mu.Unlock()

	if !found {
		abortError(c, http.StatusNotFound, "Branch not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Branch deleted"})
}
