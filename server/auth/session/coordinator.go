package session

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/viant/mcpauth/internal/collection"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/internal/redact"
	"github.com/viant/mcpauth/server/auth/pending"
	"github.com/viant/mcpauth/server/auth/registry"
	"github.com/viant/mcpauth/server/auth/store"
	"github.com/viant/mcpauth/server/auth/verifier"
	"github.com/viant/scy/auth/flow"
	"golang.org/x/oauth2"
	"pkt.systems/pslog"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// Clients resolves registered clients.
type Clients interface {
	Lookup(ctx context.Context, clientID string) (*registry.Registration, bool)
}

// Coordinator runs the authorization-code flow on behalf of downstream
// clients and owns the session binding map.
type Coordinator struct {
	store    store.TokenStore
	clients  Clients
	upstream Upstream

	transactions *pending.Manager[authorization]
	codes        *pending.Manager[grant]
	live         *collection.SyncMap[string, *liveCredential]
	bindings     *collection.SyncMap[string, *Binding]

	orphanGrace    time.Duration
	maxTokenTTL    time.Duration
	codeTTL        time.Duration
	requireSession bool
	now            func() time.Time
	logger         pslog.Logger
	metrics        *metrics.Metrics
}

// New creates a coordinator.
func New(tokens store.TokenStore, clients Clients, upstream Upstream, opts ...Option) *Coordinator {
	ret := &Coordinator{
		store:       tokens,
		clients:     clients,
		upstream:    upstream,
		live:        collection.NewSyncMap[string, *liveCredential](),
		bindings:    collection.NewSyncMap[string, *Binding](),
		orphanGrace: DefaultOrphanGrace,
		maxTokenTTL: DefaultMaxTokenTTL,
		codeTTL:     DefaultCodeTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.logger = logging.Subsystem(ret.logger, "session")
	ret.transactions = &pending.Manager[authorization]{Store: pending.NewMemoryStore[authorization](), TTL: ret.codeTTL, Now: ret.now}
	ret.codes = &pending.Manager[grant]{Store: pending.NewMemoryStore[grant](), TTL: ret.codeTTL, Now: ret.now}
	return ret
}

// Begin validates an authorize request, records the session that issued it and
// returns the upstream authorization URL.
func (c *Coordinator) Begin(ctx context.Context, req *AuthorizeRequest) (string, error) {
	if req.ResponseType != "code" {
		return "", newError(CodeUnsupportedResponse, "response_type must be code")
	}
	client, ok := c.clients.Lookup(ctx, req.ClientID)
	if !ok {
		return "", newError(CodeInvalidClient, "unknown client %q", req.ClientID)
	}
	if !client.AllowsGrant(grantAuthorizationCode) {
		return "", newError(CodeUnauthorizedClient, "client may not use %s", grantAuthorizationCode)
	}
	redirectURI := req.RedirectURI
	if redirectURI == "" {
		if len(client.RedirectURIs) != 1 {
			return "", newError(CodeInvalidRequest, "redirect_uri is required")
		}
		redirectURI = client.RedirectURIs[0]
	} else if !client.AllowsRedirect(redirectURI) {
		return "", newError(CodeInvalidRequest, "redirect_uri is not registered")
	}
	method := req.CodeChallengeMethod
	if req.CodeChallenge != "" && method == "" {
		method = methodPlain
	}
	if req.CodeChallenge != "" && !validChallengeMethod(method) {
		return "", newError(CodeInvalidRequest, "unsupported code_challenge_method %q", method)
	}
	if req.CodeChallenge == "" && client.IsPublic() {
		return "", newError(CodeInvalidRequest, "code_challenge is required for public clients")
	}
	if req.SessionID == "" && c.requireSession {
		return "", newError(CodeInvalidRequest, "a session id is required before authorization")
	}
	verifierCode := flow.GenerateCodeVerifier()
	txn, err := c.transactions.Create(ctx, pending.Spec[authorization]{
		Session:  req.SessionID,
		Kind:     StateInitiated.String(),
		ClientID: client.ClientID,
		Data: authorization{
			RedirectURI:         redirectURI,
			RedirectProvided:    req.RedirectURI != "",
			State:               normalizeState(req.State),
			Scope:               req.Scope,
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: method,
			UpstreamVerifier:    verifierCode,
		},
	})
	if err != nil {
		return "", wrapError(CodeServerError, err, "failed to record authorization")
	}
	target, err := c.upstream.AuthCodeURL(txn.ID, verifierCode)
	if err != nil {
		_, _ = c.transactions.Consume(ctx, txn.ID)
		return "", wrapError(CodeServerError, err, "failed to build upstream url")
	}
	c.logger.Info("session.authorize", "session", req.SessionID, "client", client.ClientID, "state", StateInitiated.String())
	return target, nil
}

// Callback consumes the upstream redirect and returns the client redirect URL
// carrying a newly minted gateway code. Only the code created here is linked to
// the session recorded by Begin.
func (c *Coordinator) Callback(ctx context.Context, state, code, upstreamError string) (string, error) {
	txn, err := c.transactions.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, pending.ErrExpired) {
			return "", wrapError(CodeAccessDenied, err, "authorization expired")
		}
		return "", wrapError(CodeInvalidRequest, err, "unknown authorization state")
	}
	if upstreamError != "" || code == "" {
		if upstreamError == "" {
			upstreamError = CodeInvalidRequest
		}
		c.logger.Warn("session.callback.denied", "session", txn.Session, "client", txn.ClientID, "error", upstreamError)
		return clientRedirect(txn.Data.RedirectURI, url.Values{"error": {upstreamError}}, txn.Data.State), nil
	}
	issued, err := c.codes.Create(ctx, pending.Spec[grant]{
		Session:  txn.Session,
		Kind:     StateCodeIssued.String(),
		ClientID: txn.ClientID,
		Data:     grant{authorization: txn.Data, UpstreamCode: code},
	})
	if err != nil {
		return "", wrapError(CodeServerError, err, "failed to issue code")
	}
	c.logger.Info("session.callback", "session", txn.Session, "client", txn.ClientID, "state", StateCodeIssued.String())
	return clientRedirect(txn.Data.RedirectURI, url.Values{"code": {issued.ID}}, txn.Data.State), nil
}

// Exchange serves the token endpoint for both supported grants.
func (c *Coordinator) Exchange(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	var (
		resp *TokenResponse
		err  error
	)
	switch req.GrantType {
	case grantAuthorizationCode:
		resp, err = c.exchangeCode(ctx, req)
	case grantRefreshToken:
		resp, err = c.refresh(ctx, req)
	default:
		c.metrics.Exchange(req.GrantType, "unsupported")
		return nil, newError(CodeUnsupportedGrant, "grant_type %q is not supported", req.GrantType)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var oauthErr *Error
		if errors.As(err, &oauthErr) {
			outcome = oauthErr.Code
		}
	}
	c.metrics.Exchange(req.GrantType, outcome)
	return resp, err
}

func (c *Coordinator) exchangeCode(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := c.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	issued, err := c.codes.Consume(ctx, req.Code)
	if err != nil {
		return nil, wrapError(CodeInvalidGrant, err, "authorization code is invalid or already used")
	}
	if issued.ClientID != client.ClientID {
		return nil, newError(CodeInvalidGrant, "code was issued to another client")
	}
	if issued.Data.RedirectProvided && req.RedirectURI != issued.Data.RedirectURI {
		return nil, newError(CodeInvalidGrant, "redirect_uri mismatch")
	}
	if !verifyPKCE(issued.Data.CodeChallenge, issued.Data.CodeChallengeMethod, req.CodeVerifier) {
		return nil, newError(CodeInvalidGrant, "code_verifier mismatch")
	}
	upstreamToken, err := c.upstream.Exchange(ctx, issued.Data.UpstreamCode, issued.Data.UpstreamVerifier)
	if err != nil {
		c.logger.Warn("session.exchange.upstream", "session", issued.Session, "client", client.ClientID, "error", err)
		return nil, wrapError(CodeInvalidGrant, err, "upstream exchange failed")
	}
	resp, err := c.register(ctx, client.ClientID, issued.Session, upstreamToken)
	if err != nil {
		return nil, err
	}
	if resp.Scope == "" {
		resp.Scope = issued.Data.Scope
	}
	c.logger.Info("session.exchange", "session", issued.Session, "client", client.ClientID, "subject", resp.Subject, "state", StateExchanged.String())
	return resp, nil
}

func (c *Coordinator) refresh(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := c.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrant(grantRefreshToken) {
		return nil, newError(CodeUnauthorizedClient, "client may not use %s", grantRefreshToken)
	}
	if req.RefreshToken == "" {
		return nil, newError(CodeInvalidRequest, "refresh_token is required")
	}
	upstreamToken, err := c.upstream.Refresh(ctx, req.RefreshToken)
	if err != nil {
		c.logger.Warn("session.refresh.upstream", "client", client.ClientID, "error", err)
		return nil, wrapError(CodeInvalidGrant, err, "upstream refresh failed")
	}
	if upstreamToken.RefreshToken == "" {
		upstreamToken.RefreshToken = req.RefreshToken
	}
	// sessions follow the subject; req.SessionID never selects the binding
	return c.register(ctx, client.ClientID, "", upstreamToken)
}

func (c *Coordinator) authenticate(ctx context.Context, req *TokenRequest) (*registry.Registration, error) {
	if req.ClientID == "" {
		return nil, newError(CodeInvalidClient, "client_id is required")
	}
	client, ok := c.clients.Lookup(ctx, req.ClientID)
	if !ok || !client.Authenticate(req.ClientSecret) {
		return nil, newError(CodeInvalidClient, "client authentication failed")
	}
	return client, nil
}

// register identifies the credential produced by an upstream call, maps its
// subject in the token store and binds the session.
func (c *Coordinator) register(ctx context.Context, clientID, sessionID string, upstreamToken *oauth2.Token) (*TokenResponse, error) {
	token, ok := c.identify(clientID, upstreamToken.AccessToken)
	if !ok {
		return nil, newError(CodeServerError, "upstream returned no credential")
	}
	claims, err := verifier.Decode(token)
	if err != nil {
		c.live.DeleteIf(token, func(v *liveCredential) bool { return v.ClientID == clientID })
		c.logger.Warn("session.exchange.malformed", "client", clientID, "token", redact.Token(token), "error", err)
		return nil, wrapError(CodeServerError, err, "credential carries no subject")
	}
	ttl := c.ttl(claims.ExpiresAt, upstreamToken.Expiry)
	if ttl <= 0 {
		c.live.Delete(token)
		return nil, newError(CodeInvalidGrant, "credential already expired")
	}
	if err = c.store.SetUserToken(ctx, claims.Subject, token, ttl); err != nil {
		c.logger.Warn("session.exchange.store", "subject", claims.Subject, "error", err)
	} else {
		c.retire(claims.Subject, token)
	}
	if sessionID != "" {
		c.bind(sessionID, token, claims.Subject, clientID)
	} else {
		c.rebind(claims.Subject, token)
	}
	scope := ""
	if v, ok := upstreamToken.Extra("scope").(string); ok {
		scope = v
	}
	return &TokenResponse{
		AccessToken:  token,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl / time.Second),
		RefreshToken: upstreamToken.RefreshToken,
		Scope:        scope,
		Subject:      claims.Subject,
	}, nil
}

// identify returns the credential produced by this call. A credential the
// upstream hands back while it is already live is reassigned to clientID. The
// client's latest live credential is used only when the upstream returned none.
func (c *Coordinator) identify(clientID, token string) (string, bool) {
	now := c.now()
	if token != "" {
		if !c.live.PutIfAbsent(token, &liveCredential{Token: token, ClientID: clientID, AddedAt: now}) {
			c.live.Put(token, &liveCredential{Token: token, ClientID: clientID, AddedAt: now})
		}
		return token, true
	}
	var latest *liveCredential
	c.live.Range(func(_ string, candidate *liveCredential) bool {
		if candidate.ClientID == clientID && (latest == nil || candidate.AddedAt.After(latest.AddedAt)) {
			latest = candidate
		}
		return true
	})
	if latest == nil {
		return "", false
	}
	return latest.Token, true
}

// retire drops live credentials superseded by token for the same subject.
func (c *Coordinator) retire(subject, token string) {
	c.live.Range(func(candidate string, entry *liveCredential) bool {
		if candidate == token {
			return true
		}
		if claims, err := verifier.Decode(candidate); err == nil && claims.Subject == subject {
			c.live.DeleteIf(candidate, func(v *liveCredential) bool { return v == entry })
		}
		return true
	})
}

func (c *Coordinator) ttl(claimed, upstream time.Time) time.Duration {
	now := c.now()
	ttl := c.maxTokenTTL
	for _, expiry := range []time.Time{claimed, upstream} {
		if expiry.IsZero() {
			continue
		}
		if remaining := expiry.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

func (c *Coordinator) bind(sessionID, token, subject, clientID string) {
	c.bindings.Put(sessionID, &Binding{SessionID: sessionID, Token: token, Subject: subject, ClientID: clientID, BoundAt: c.now()})
	c.metrics.SessionBindings(c.bindings.Size())
	c.logger.Debug("session.bind", "session", sessionID, "subject", subject, "token", redact.Token(token))
}

// rebind moves every session of subject onto a refreshed token.
func (c *Coordinator) rebind(subject, token string) {
	c.bindings.Range(func(sessionID string, binding *Binding) bool {
		if binding.Subject == subject && binding.Token != token {
			c.bind(sessionID, token, subject, binding.ClientID)
		}
		return true
	})
}

// Binding returns the credential bound to sessionID.
func (c *Coordinator) Binding(sessionID string) (*Binding, bool) {
	if sessionID == "" {
		return nil, false
	}
	binding, ok := c.bindings.Get(sessionID)
	if !ok {
		return nil, false
	}
	ret := *binding
	return &ret, true
}

// Bindings returns the number of bound sessions.
func (c *Coordinator) Bindings() int {
	return c.bindings.Size()
}

// Live returns the number of credentials handed out and not yet evicted.
func (c *Coordinator) Live() int {
	return c.live.Size()
}

// Logout unbinds sessionID, removes its subject mapping and aborts any
// authorization the session still has in flight.
func (c *Coordinator) Logout(ctx context.Context, sessionID string) error {
	if _, err := c.transactions.Cancel(ctx, sessionID); err != nil {
		return err
	}
	if _, err := c.codes.Cancel(ctx, sessionID); err != nil {
		return err
	}
	binding, ok := c.bindings.Take(sessionID)
	if !ok {
		return nil
	}
	c.metrics.SessionBindings(c.bindings.Size())
	c.live.Delete(binding.Token)
	if current, ok := c.store.GetUserToken(ctx, binding.Subject); ok && current == binding.Token {
		if err := c.store.RemoveUserToken(ctx, binding.Subject); err != nil {
			return err
		}
	}
	c.dropBindings(binding.Token)
	c.logger.Info("session.logout", "session", sessionID, "subject", binding.Subject)
	return nil
}

func (c *Coordinator) dropBindings(token string) int {
	removed := 0
	c.bindings.Range(func(sessionID string, binding *Binding) bool {
		if binding.Token == token && c.bindings.DeleteIf(sessionID, func(v *Binding) bool { return v == binding }) {
			removed++
		}
		return true
	})
	if removed > 0 {
		c.metrics.SessionBindings(c.bindings.Size())
	}
	return removed
}

// normalizeState drops placeholder state values some clients send.
func normalizeState(state string) string {
	if state == "none" {
		return ""
	}
	return state
}

func clientRedirect(redirectURI string, values url.Values, state string) string {
	target, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	query := target.Query()
	for k, v := range values {
		query[k] = v
	}
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()
	return target.String()
}
