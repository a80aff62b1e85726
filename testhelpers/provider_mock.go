package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-github/v62/github"
)

// TokenReply is one scripted answer of the mock token endpoint.
type TokenReply struct {
	// Status overrides the HTTP status; zero means 200.
	Status int
	// Raw replaces the JSON body when set.
	Raw string

	AccessToken string
	Error       string
	Interval    int64
}

// MockProviderConfig configures the behavior of a mock OAuth provider.
type MockProviderConfig struct {
	ClientID        string
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int64
	Interval        int64

	// TokenReplies are served in order; once exhausted the last one repeats.
	TokenReplies []TokenReply

	// ValidTokens maps an access token to the profile it unlocks.
	ValidTokens map[string]*github.User
	// Emails is served from /user/emails for any valid token.
	Emails []*github.UserEmail
}

// NewMockProviderConfig creates a provider config with defaults.
func NewMockProviderConfig() *MockProviderConfig {
	return &MockProviderConfig{
		ClientID:        "test-client",
		DeviceCode:      "device-123",
		UserCode:        "WDJB-MJHT",
		VerificationURI: "https://example.invalid/login/device",
		ExpiresIn:       900,
		Interval:        5,
		ValidTokens:     make(map[string]*github.User),
	}
}

// MockProvider is a running mock of the device-code, token and profile
// endpoints.
type MockProvider struct {
	Server *httptest.Server
	Config *MockProviderConfig

	mu            sync.Mutex
	tokenRequests int
	deviceForms   []map[string]string
}

// NewMockProvider starts a mock provider that is closed with the test.
func NewMockProvider(t *testing.T, config *MockProviderConfig) *MockProvider {
	t.Helper()
	if config == nil {
		config = NewMockProviderConfig()
	}
	p := &MockProvider{Config: config}

	mux := http.NewServeMux()
	mux.HandleFunc("/login/device/code", p.handleDeviceCode)
	mux.HandleFunc("/login/oauth/access_token", p.handleToken)
	mux.HandleFunc("/api/user", p.handleUser)
	mux.HandleFunc("/api/user/emails", p.handleEmails)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// DeviceCodeURL returns the device authorization endpoint.
func (p *MockProvider) DeviceCodeURL() string {
	return p.Server.URL + "/login/device/code"
}

// TokenURL returns the token endpoint.
func (p *MockProvider) TokenURL() string {
	return p.Server.URL + "/login/oauth/access_token"
}

// APIBaseURL returns the REST API root.
func (p *MockProvider) APIBaseURL() string {
	return p.Server.URL + "/api/"
}

// TokenRequests returns how many times the token endpoint was polled.
func (p *MockProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// RevokeAll invalidates every access token.
func (p *MockProvider) RevokeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Config.ValidTokens = map[string]*github.User{}
}

func (p *MockProvider) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") != p.Config.ClientID {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_client"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":      p.Config.DeviceCode,
		"user_code":        p.Config.UserCode,
		"verification_uri": p.Config.VerificationURI,
		"expires_in":       p.Config.ExpiresIn,
		"interval":         p.Config.Interval,
	})
}

func (p *MockProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil ||
		r.PostForm.Get("device_code") != p.Config.DeviceCode ||
		r.PostForm.Get("grant_type") != "urn:ietf:params:oauth:grant-type:device_code" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	reply := TokenReply{Error: "authorization_pending"}
	if n := len(p.Config.TokenReplies); n > 0 {
		idx := p.tokenRequests
		if idx >= n {
			idx = n - 1
		}
		reply = p.Config.TokenReplies[idx]
	}
	p.tokenRequests++
	p.mu.Unlock()

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Raw != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply.Raw))
		return
	}
	body := map[string]any{}
	if reply.AccessToken != "" {
		body["access_token"] = reply.AccessToken
		body["token_type"] = "bearer"
	}
	if reply.Error != "" {
		body["error"] = reply.Error
	}
	if reply.Interval != 0 {
		body["interval"] = reply.Interval
	}
	writeJSON(w, status, body)
}

func (p *MockProvider) authorized(r *http.Request) *github.User {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Config.ValidTokens[token]
}

func (p *MockProvider) handleUser(w http.ResponseWriter, r *http.Request) {
	user := p.authorized(r)
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (p *MockProvider) handleEmails(w http.ResponseWriter, r *http.Request) {
	if p.authorized(r) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
		return
	}
	emails := p.Config.Emails
	if emails == nil {
		emails = []*github.UserEmail{}
	}
	writeJSON(w, http.StatusOK, emails)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
