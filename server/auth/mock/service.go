package mock

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// AuthorizationService simulates an upstream OAuth2 authorization server.
type AuthorizationService struct {
	PrivateKey       *rsa.PrivateKey
	KeyID            string
	Issuer           string
	ClientID         string
	ClientSecret     string
	Subject          string
	AuthorizedScopes []string
	AccessTokenTTL   time.Duration
	// FlatScope emits a space separated scope claim instead of access.scope.
	FlatScope bool

	TokenHandler     func(w http.ResponseWriter, r *http.Request)
	AuthorizeHandler func(w http.ResponseWriter, r *http.Request)
	MetadataHandler  func(w http.ResponseWriter, r *http.Request)
	JwksHandler      func(w http.ResponseWriter, r *http.Request)

	mu     sync.Mutex
	codes  map[string]*issuedCode
	issued int
}

type issuedCode struct {
	subject       string
	clientID      string
	redirectURI   string
	codeChallenge string
}

// Option configures the mock service.
type Option func(m *AuthorizationService)

// WithSubject sets the default subject for issued tokens.
func WithSubject(subject string) Option {
	return func(m *AuthorizationService) { m.Subject = subject }
}

// WithScopes sets the granted scopes.
func WithScopes(scopes ...string) Option {
	return func(m *AuthorizationService) { m.AuthorizedScopes = scopes }
}

// WithClient sets the expected upstream client credentials.
func WithClient(clientID, clientSecret string) Option {
	return func(m *AuthorizationService) {
		m.ClientID = clientID
		m.ClientSecret = clientSecret
	}
}

// WithAccessTokenTTL sets the access token lifetime.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(m *AuthorizationService) { m.AccessTokenTTL = ttl }
}

// NewAuthorizationService creates a new mock OAuth2 authorization server
func NewAuthorizationService(opts ...Option) (*AuthorizationService, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %v", err)
	}
	service := &AuthorizationService{
		PrivateKey:       privateKey,
		KeyID:            "mock-key-1",
		ClientID:         "test_client_id",
		ClientSecret:     "test_client_secret",
		Subject:          "test_subject",
		AuthorizedScopes: []string{"view", "download", "modify"},
		AccessTokenTTL:   time.Hour,
		codes:            map[string]*issuedCode{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Register registers HTTP handlers for all mock endpoints onto the given ServeMux.
func (m *AuthorizationService) Register(mux *http.ServeMux) {
	mux.Handle("/", &Handler{Server: m})
}

// Handler returns an http.Handler for all mock endpoints, suitable for any HTTP server.
func (m *AuthorizationService) Handler() http.Handler {
	mux := http.NewServeMux()
	m.Register(mux)
	return mux
}

// Issued returns how many access tokens were minted.
func (m *AuthorizationService) Issued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}
