package session

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcpauth/server/auth/mock"
	"github.com/viant/mcpauth/server/auth/registry"
	"github.com/viant/mcpauth/server/auth/store"
	"golang.org/x/oauth2"
)

const clientRedirectURI = "https://client.example/cb"

type clientMap map[string]*registry.Registration

func (m clientMap) Lookup(_ context.Context, clientID string) (*registry.Registration, bool) {
	ret, ok := m[clientID]
	return ret, ok
}

type fakeUpstream struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{tokens: map[string]*oauth2.Token{}}
}

func (f *fakeUpstream) issue(code string, token *oauth2.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[code] = token
}

func (f *fakeUpstream) AuthCodeURL(state, verifier string) (string, error) {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state), nil
}

func (f *fakeUpstream) Exchange(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[code]
	if !ok {
		return nil, errors.New("unknown upstream code")
	}
	delete(f.tokens, code)
	return token, nil
}

func (f *fakeUpstream) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	return f.Exchange(context.Background(), refreshToken, "")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	coordinator *Coordinator
	tokens      *store.MemoryStore
	upstream    *fakeUpstream
	idp         *mock.AuthorizationService
	clock       *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	idp, err := mock.NewAuthorizationService()
	require.NoError(t, err)
	c := &clock{now: time.Now()}
	tokens := store.NewMemoryStore(store.WithClock(c.Now))
	clients := clientMap{
		"public": {ClientID: "public", RedirectURIs: []string{clientRedirectURI}, GrantTypes: registry.DefaultGrantTypes, TokenEndpointAuthMethod: registry.AuthMethodNone},
		"confidential": {ClientID: "confidential", ClientSecret: "s3cret", RedirectURIs: []string{clientRedirectURI, "https://client.example/alt"},
			GrantTypes: registry.DefaultGrantTypes, TokenEndpointAuthMethod: registry.AuthMethodSecretPost},
	}
	upstream := newFakeUpstream()
	coordinator := New(tokens, clients, upstream, append([]Option{WithClock(c.Now)}, opts...)...)
	return &fixture{coordinator: coordinator, tokens: tokens, upstream: upstream, idp: idp, clock: c}
}

func challengeOf(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// authorize drives Begin and Callback and returns the code handed to the client.
func (f *fixture) authorize(t *testing.T, sessionID, clientID, upstreamCode, verifier string) string {
	t.Helper()
	ctx := context.Background()
	target, err := f.coordinator.Begin(ctx, &AuthorizeRequest{
		SessionID:           sessionID,
		ClientID:            clientID,
		RedirectURI:         clientRedirectURI,
		ResponseType:        "code",
		State:               "client-state",
		CodeChallenge:       challengeOf(verifier),
		CodeChallengeMethod: "S256",
	})
	require.NoError(t, err)
	parsed, err := url.Parse(target)
	require.NoError(t, err)
	redirect, err := f.coordinator.Callback(ctx, parsed.Query().Get("state"), upstreamCode, "")
	require.NoError(t, err)
	back, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "client.example", back.Host)
	assert.Equal(t, "client-state", back.Query().Get("state"))
	return back.Query().Get("code")
}

func (f *fixture) upstreamToken(t *testing.T, code, subject string) string {
	t.Helper()
	token, err := f.idp.CreateAccessToken(subject)
	require.NoError(t, err)
	f.upstream.issue(code, &oauth2.Token{AccessToken: token, RefreshToken: "refresh-" + subject, Expiry: time.Now().Add(time.Hour)})
	return token
}

func TestCoordinator_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.upstreamToken(t, "up-1", "user-42")

	code := f.authorize(t, "sess-1", "public", "up-1", "verifier-1")
	require.NotEmpty(t, code)

	resp, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, RedirectURI: clientRedirectURI, CodeVerifier: "verifier-1", ClientID: "public"})
	require.NoError(t, err)
	assert.Equal(t, token, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "user-42", resp.Subject)
	assert.Equal(t, "refresh-user-42", resp.RefreshToken)
	assert.True(t, resp.ExpiresIn > 0 && resp.ExpiresIn <= int(DefaultMaxTokenTTL/time.Second))

	stored, ok := f.tokens.GetUserToken(ctx, "user-42")
	require.True(t, ok)
	assert.Equal(t, token, stored)

	binding, ok := f.coordinator.Binding("sess-1")
	require.True(t, ok)
	assert.Equal(t, token, binding.Token)
	assert.Equal(t, "user-42", binding.Subject)

	_, err = f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, RedirectURI: clientRedirectURI, CodeVerifier: "verifier-1", ClientID: "public"})
	var oauthErr *Error
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, CodeInvalidGrant, oauthErr.Code)
}

func TestCoordinator_ConcurrentSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const sessions = 12
	tokens := make([]string, sessions)
	for i := 0; i < sessions; i++ {
		tokens[i] = f.upstreamToken(t, fmt.Sprintf("up-%d", i), fmt.Sprintf("user-%d", i))
	}
	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			verifier := fmt.Sprintf("verifier-%d", i)
			code := f.authorize(t, fmt.Sprintf("sess-%d", i), "public", fmt.Sprintf("up-%d", i), verifier)
			_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, RedirectURI: clientRedirectURI, CodeVerifier: verifier, ClientID: "public"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	for i := 0; i < sessions; i++ {
		binding, ok := f.coordinator.Binding(fmt.Sprintf("sess-%d", i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("user-%d", i), binding.Subject)
		assert.Equal(t, tokens[i], binding.Token)
	}
	assert.Equal(t, sessions, f.coordinator.Bindings())
}

func TestCoordinator_CallbackLinksOnlyItsOwnCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upstreamToken(t, "up-a", "user-a")
	f.upstreamToken(t, "up-b", "user-b")

	targetA, err := f.coordinator.Begin(ctx, &AuthorizeRequest{SessionID: "sess-a", ClientID: "public", ResponseType: "code", CodeChallenge: "plain-a"})
	require.NoError(t, err)
	targetB, err := f.coordinator.Begin(ctx, &AuthorizeRequest{SessionID: "sess-b", ClientID: "public", ResponseType: "code", CodeChallenge: "plain-b"})
	require.NoError(t, err)
	stateA := mustQuery(t, targetA, "state")
	stateB := mustQuery(t, targetB, "state")
	require.NotEqual(t, stateA, stateB)

	redirectB, err := f.coordinator.Callback(ctx, stateB, "up-b", "")
	require.NoError(t, err)
	redirectA, err := f.coordinator.Callback(ctx, stateA, "up-a", "")
	require.NoError(t, err)

	_, err = f.coordinator.Callback(ctx, stateA, "up-a", "")
	assert.Error(t, err)

	_, err = f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: mustQuery(t, redirectA, "code"), CodeVerifier: "plain-a", ClientID: "public"})
	require.NoError(t, err)
	_, err = f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: mustQuery(t, redirectB, "code"), CodeVerifier: "plain-b", ClientID: "public"})
	require.NoError(t, err)

	bindingA, _ := f.coordinator.Binding("sess-a")
	bindingB, _ := f.coordinator.Binding("sess-b")
	assert.Equal(t, "user-a", bindingA.Subject)
	assert.Equal(t, "user-b", bindingB.Subject)
}

func TestCoordinator_ReissuedCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.upstreamToken(t, "up-1", "user-1")
	f.upstream.issue("up-2", &oauth2.Token{AccessToken: token})

	code := f.authorize(t, "sess-1", "public", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	code = f.authorize(t, "sess-2", "public", "up-2", "v2")
	resp, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v2", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)
	assert.Equal(t, token, resp.AccessToken)
	binding, ok := f.coordinator.Binding("sess-2")
	require.True(t, ok)
	assert.Equal(t, "user-1", binding.Subject)
	assert.Equal(t, 1, f.coordinator.Live())
}

func TestCoordinator_ReissuedCredentialAcrossClients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.upstreamToken(t, "up-1", "user-1")
	code := f.authorize(t, "sess-1", "confidential", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "confidential", ClientSecret: "s3cret"})
	require.NoError(t, err)

	second := f.upstreamToken(t, "up-2", "user-2")
	code = f.authorize(t, "sess-2", "public", "up-2", "v2")
	_, err = f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v2", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	f.upstream.issue("up-3", &oauth2.Token{AccessToken: first, Expiry: time.Now().Add(time.Hour)})
	code = f.authorize(t, "sess-3", "public", "up-3", "v3")
	resp, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v3", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)
	assert.Equal(t, first, resp.AccessToken)
	assert.Equal(t, "user-1", resp.Subject)

	binding, ok := f.coordinator.Binding("sess-3")
	require.True(t, ok)
	assert.Equal(t, first, binding.Token)
	assert.Equal(t, "user-1", binding.Subject)

	binding, ok = f.coordinator.Binding("sess-2")
	require.True(t, ok)
	assert.Equal(t, second, binding.Token)
	assert.Equal(t, "user-2", binding.Subject)
}

func TestCoordinator_FallsBackToClientCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.upstreamToken(t, "up-1", "user-1")
	f.upstream.issue("up-2", &oauth2.Token{RefreshToken: "refresh-user-1"})

	code := f.authorize(t, "sess-1", "public", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	code = f.authorize(t, "sess-2", "public", "up-2", "v2")
	resp, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v2", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)
	assert.Equal(t, token, resp.AccessToken)
	binding, ok := f.coordinator.Binding("sess-2")
	require.True(t, ok)
	assert.Equal(t, "user-1", binding.Subject)
}

func TestCoordinator_Rejections(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		description string
		options     []Option
		authorize   *AuthorizeRequest
		token       func(code string) *TokenRequest
		expectCode  string
	}{
		{
			description: "unknown client",
			authorize:   &AuthorizeRequest{ClientID: "nobody", ResponseType: "code", CodeChallenge: "x"},
			expectCode:  CodeInvalidClient,
		},
		{
			description: "unsupported response type",
			authorize:   &AuthorizeRequest{ClientID: "public", ResponseType: "token", CodeChallenge: "x"},
			expectCode:  CodeUnsupportedResponse,
		},
		{
			description: "unregistered redirect",
			authorize:   &AuthorizeRequest{ClientID: "public", ResponseType: "code", RedirectURI: "https://evil.example/cb", CodeChallenge: "x"},
			expectCode:  CodeInvalidRequest,
		},
		{
			description: "public client without pkce",
			authorize:   &AuthorizeRequest{ClientID: "public", ResponseType: "code"},
			expectCode:  CodeInvalidRequest,
		},
		{
			description: "ambiguous redirect",
			authorize:   &AuthorizeRequest{ClientID: "confidential", ResponseType: "code"},
			expectCode:  CodeInvalidRequest,
		},
		{
			description: "session required",
			options:     []Option{WithRequireSession(true)},
			authorize:   &AuthorizeRequest{ClientID: "public", ResponseType: "code", CodeChallenge: "x"},
			expectCode:  CodeInvalidRequest,
		},
		{
			description: "pkce mismatch",
			authorize:   &AuthorizeRequest{SessionID: "s", ClientID: "public", ResponseType: "code", CodeChallenge: "expected"},
			token: func(code string) *TokenRequest {
				return &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "other", ClientID: "public"}
			},
			expectCode: CodeInvalidGrant,
		},
		{
			description: "wrong secret",
			authorize:   &AuthorizeRequest{SessionID: "s", ClientID: "confidential", RedirectURI: clientRedirectURI, ResponseType: "code"},
			token: func(code string) *TokenRequest {
				return &TokenRequest{GrantType: "authorization_code", Code: code, RedirectURI: clientRedirectURI, ClientID: "confidential", ClientSecret: "nope"}
			},
			expectCode: CodeInvalidClient,
		},
		{
			description: "redirect mismatch",
			authorize:   &AuthorizeRequest{SessionID: "s", ClientID: "confidential", RedirectURI: clientRedirectURI, ResponseType: "code"},
			token: func(code string) *TokenRequest {
				return &TokenRequest{GrantType: "authorization_code", Code: code, RedirectURI: "https://client.example/alt", ClientID: "confidential", ClientSecret: "s3cret"}
			},
			expectCode: CodeInvalidGrant,
		},
		{
			description: "code of another client",
			authorize:   &AuthorizeRequest{SessionID: "s", ClientID: "public", ResponseType: "code", CodeChallenge: "v"},
			token: func(code string) *TokenRequest {
				return &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v", RedirectURI: clientRedirectURI, ClientID: "confidential", ClientSecret: "s3cret"}
			},
			expectCode: CodeInvalidGrant,
		},
		{
			description: "unsupported grant",
			authorize:   &AuthorizeRequest{SessionID: "s", ClientID: "public", ResponseType: "code", CodeChallenge: "v"},
			token: func(code string) *TokenRequest {
				return &TokenRequest{GrantType: "password", ClientID: "public"}
			},
			expectCode: CodeUnsupportedGrant,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			f := newFixture(t, testCase.options...)
			f.upstreamToken(t, "up", "user")
			var oauthErr *Error
			target, err := f.coordinator.Begin(ctx, testCase.authorize)
			if testCase.token == nil {
				require.ErrorAs(t, err, &oauthErr)
				assert.Equal(t, testCase.expectCode, oauthErr.Code)
				return
			}
			require.NoError(t, err)
			redirect, err := f.coordinator.Callback(ctx, mustQuery(t, target, "state"), "up", "")
			require.NoError(t, err)
			_, err = f.coordinator.Exchange(ctx, testCase.token(mustQuery(t, redirect, "code")))
			require.ErrorAs(t, err, &oauthErr)
			assert.Equal(t, testCase.expectCode, oauthErr.Code)
			_, ok := f.coordinator.Binding("s")
			assert.False(t, ok)
		})
	}
}

func TestCoordinator_CallbackState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target, err := f.coordinator.Begin(ctx, &AuthorizeRequest{SessionID: "s", ClientID: "public", ResponseType: "code", State: "none", CodeChallenge: "x"})
	require.NoError(t, err)
	redirect, err := f.coordinator.Callback(ctx, mustQuery(t, target, "state"), "up", "")
	require.NoError(t, err)
	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.False(t, parsed.Query().Has("state"))
	assert.NotEmpty(t, parsed.Query().Get("code"))

	target, err = f.coordinator.Begin(ctx, &AuthorizeRequest{SessionID: "s", ClientID: "public", ResponseType: "code", State: "abc", CodeChallenge: "x"})
	require.NoError(t, err)
	redirect, err = f.coordinator.Callback(ctx, mustQuery(t, target, "state"), "", CodeAccessDenied)
	require.NoError(t, err)
	assert.Equal(t, CodeAccessDenied, mustQuery(t, redirect, "error"))
	assert.Equal(t, "abc", mustQuery(t, redirect, "state"))

	f.clock.Advance(DefaultCodeTTL + time.Second)
	_, err = f.coordinator.Callback(ctx, mustQuery(t, target, "state"), "up", "")
	assert.Error(t, err)
}

func TestCoordinator_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upstreamToken(t, "up-1", "user-1")
	code := f.authorize(t, "sess-1", "public", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	refreshed := f.upstreamToken(t, "refresh-user-1", "user-1")
	resp, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "refresh_token", RefreshToken: "refresh-user-1", ClientID: "public"})
	require.NoError(t, err)
	assert.Equal(t, refreshed, resp.AccessToken)

	binding, ok := f.coordinator.Binding("sess-1")
	require.True(t, ok)
	assert.Equal(t, refreshed, binding.Token)
	stored, _ := f.tokens.GetUserToken(ctx, "user-1")
	assert.Equal(t, refreshed, stored)
	assert.Equal(t, 1, f.coordinator.Live())
}

func TestCoordinator_RefreshIgnoresForeignSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	victim := f.upstreamToken(t, "up-1", "user-1")
	code := f.authorize(t, "victim-sess", "public", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	f.upstreamToken(t, "refresh-attacker", "attacker")
	resp, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "refresh_token", RefreshToken: "refresh-attacker", ClientID: "public", SessionID: "victim-sess"})
	require.NoError(t, err)
	assert.Equal(t, "attacker", resp.Subject)

	binding, ok := f.coordinator.Binding("victim-sess")
	require.True(t, ok)
	assert.Equal(t, victim, binding.Token)
	assert.Equal(t, "user-1", binding.Subject)
	assert.Equal(t, 1, f.coordinator.Bindings())
}

func TestCoordinator_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const unmapped = 3
	for i := 0; i < unmapped; i++ {
		token, err := f.idp.CreateAccessToken(fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		f.coordinator.live.Put(token, &liveCredential{Token: token, ClientID: "public", AddedAt: f.clock.Now()})
	}
	f.coordinator.live.Put("opaque-credential", &liveCredential{Token: "opaque-credential", ClientID: "public", AddedAt: f.clock.Now()})
	noSubject, err := f.idp.CreateToken(map[string]interface{}{"scope": "view"})
	require.NoError(t, err)
	f.coordinator.live.Put(noSubject, &liveCredential{Token: noSubject, ClientID: "public", AddedAt: f.clock.Now()})

	result := f.coordinator.Reconcile(ctx)
	assert.Equal(t, unmapped, result.Registered)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{"user-0", "user-1", "user-2"}, f.tokens.AllSubjects(ctx))

	result = f.coordinator.Reconcile(ctx)
	assert.Equal(t, 0, result.Registered)
}

func TestCoordinator_ReconcileKeepsNewerMapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older, err := f.idp.CreateAccessToken("user-1")
	require.NoError(t, err)
	newer, err := f.idp.CreateAccessToken("user-1")
	require.NoError(t, err)
	require.NoError(t, f.tokens.SetUserToken(ctx, "user-1", newer, time.Hour))
	f.coordinator.live.Put(older, &liveCredential{Token: older, ClientID: "public", AddedAt: f.clock.Now()})

	f.coordinator.Reconcile(ctx)
	current, _ := f.tokens.GetUserToken(ctx, "user-1")
	assert.Equal(t, newer, current)
	_, ok := f.tokens.FindSubjectByToken(ctx, older)
	assert.False(t, ok)
}

func TestCoordinator_CleanupGrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upstreamToken(t, "up-1", "user-1")
	code := f.authorize(t, "sess-1", "public", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	orphan, err := f.idp.CreateAccessToken("user-2")
	require.NoError(t, err)
	f.coordinator.live.Put(orphan, &liveCredential{Token: orphan, ClientID: "public", AddedAt: f.clock.Now()})
	f.coordinator.bind("sess-2", orphan, "user-2", "public")

	result, err := f.coordinator.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Orphans)
	assert.Equal(t, 2, f.coordinator.Live())

	f.clock.Advance(DefaultOrphanGrace + time.Second)
	result, err = f.coordinator.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Orphans)
	assert.Equal(t, 1, result.Bindings)
	assert.Equal(t, 1, f.coordinator.Live())
	_, ok := f.coordinator.Binding("sess-2")
	assert.False(t, ok)
	_, ok = f.coordinator.Binding("sess-1")
	assert.True(t, ok)
}

func TestCoordinator_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upstreamToken(t, "up-1", "user-1")
	code := f.authorize(t, "sess-1", "public", "up-1", "v1")
	_, err := f.coordinator.Exchange(ctx, &TokenRequest{GrantType: "authorization_code", Code: code, CodeVerifier: "v1", RedirectURI: clientRedirectURI, ClientID: "public"})
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Logout(ctx, "sess-1"))
	_, ok := f.coordinator.Binding("sess-1")
	assert.False(t, ok)
	_, ok = f.tokens.GetUserToken(ctx, "user-1")
	assert.False(t, ok)
	assert.Equal(t, 0, f.coordinator.Live())
	require.NoError(t, f.coordinator.Logout(ctx, "sess-1"))
}

func TestCoordinator_Run(t *testing.T) {
	f := newFixture(t, WithOrphanGrace(0))
	ctx, cancel := context.WithCancel(context.Background())
	f.coordinator.live.Put("opaque-credential", &liveCredential{Token: "opaque-credential", ClientID: "public", AddedAt: f.clock.Now().Add(-time.Minute)})

	done := make(chan error, 1)
	go func() { done <- f.coordinator.Run(ctx, 10*time.Millisecond) }()
	assert.Eventually(t, func() bool { return f.coordinator.Live() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func mustQuery(t *testing.T, raw, key string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get(key)
}
