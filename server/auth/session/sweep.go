package session

import (
	"context"
	"errors"
	"time"

	"github.com/viant/mcpauth/internal/redact"
	"github.com/viant/mcpauth/server/auth/verifier"
)

// Reconcile registers every live credential that has no token store mapping.
// Credentials that cannot be decoded are logged and skipped.
func (c *Coordinator) Reconcile(ctx context.Context) ReconcileResult {
	var result ReconcileResult
	c.live.Range(func(token string, entry *liveCredential) bool {
		if ctx.Err() != nil {
			return false
		}
		if _, ok := c.store.FindSubjectByToken(ctx, token); ok {
			return true
		}
		claims, err := verifier.Decode(token)
		if err != nil {
			c.logger.Warn("session.reconcile.malformed", "client", entry.ClientID, "token", redact.Token(token), "error", err)
			result.Skipped++
			return true
		}
		ttl := c.ttl(claims.ExpiresAt, time.Time{})
		if ttl <= 0 {
			return true
		}
		if current, ok := c.store.GetUserToken(ctx, claims.Subject); ok && current != token {
			return true
		}
		if err = c.store.SetUserToken(ctx, claims.Subject, token, ttl); err != nil {
			c.logger.Warn("session.reconcile.store", "subject", claims.Subject, "error", err)
			return true
		}
		result.Registered++
		return true
	})
	if result.Registered > 0 || result.Skipped > 0 {
		c.logger.Info("session.reconcile", "registered", result.Registered, "skipped", result.Skipped)
	}
	return result
}

// Cleanup sweeps the token store, then evicts live credentials that have no
// token store mapping and are older than the orphan grace period, drops
// bindings to them and purges expired pending authorizations. Age is taken
// from the later of the iat claim and the time the credential became live.
func (c *Coordinator) Cleanup(ctx context.Context) (CleanupResult, error) {
	var result CleanupResult
	var errs []error
	n, err := c.store.CleanupExpired(ctx)
	result.Store = n
	errs = append(errs, err)

	now := c.now()
	c.live.Range(func(token string, entry *liveCredential) bool {
		if ctx.Err() != nil {
			return false
		}
		if now.Sub(c.issuedAt(entry)) < c.orphanGrace {
			return true
		}
		if _, ok := c.store.FindSubjectByToken(ctx, token); ok {
			return true
		}
		if c.live.DeleteIf(token, func(v *liveCredential) bool { return v == entry }) {
			result.Orphans++
			result.Bindings += c.dropBindings(token)
			c.logger.Debug("session.cleanup.orphan", "client", entry.ClientID, "token", redact.Token(token))
		}
		return true
	})
	c.bindings.Range(func(sessionID string, binding *Binding) bool {
		if now.Sub(binding.BoundAt) < c.orphanGrace {
			return true
		}
		if _, ok := c.live.Get(binding.Token); ok {
			return true
		}
		if subject, ok := c.store.FindSubjectByToken(ctx, binding.Token); ok && subject == binding.Subject {
			return true
		}
		if c.bindings.DeleteIf(sessionID, func(v *Binding) bool { return v == binding }) {
			result.Bindings++
		}
		return true
	})
	for _, sweep := range []func(context.Context) (int, error){c.transactions.Sweep, c.codes.Sweep} {
		n, err := sweep(ctx)
		result.Pending += n
		errs = append(errs, err)
	}

	c.metrics.SweepRemoved("orphan", result.Orphans)
	c.metrics.SweepRemoved("binding", result.Bindings)
	c.metrics.SweepRemoved("pending", result.Pending)
	c.metrics.SweepRemoved("store", result.Store)
	c.metrics.SessionBindings(c.bindings.Size())
	if result.Orphans+result.Bindings+result.Pending+result.Store > 0 {
		c.logger.Info("session.cleanup", "orphans", result.Orphans, "bindings", result.Bindings, "pending", result.Pending, "store", result.Store)
	}
	return result, errors.Join(errs...)
}

// issuedAt returns the reference time for the orphan grace check. A credential
// without iat only counts from when it became live.
func (c *Coordinator) issuedAt(entry *liveCredential) time.Time {
	ret := entry.AddedAt
	if claims, err := verifier.Decode(entry.Token); err == nil && claims.IssuedAt.After(ret) {
		ret = claims.IssuedAt
	}
	return ret
}

// Run reconciles and cleans up every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Reconcile(ctx)
			if _, err := c.Cleanup(ctx); err != nil {
				c.logger.Warn("session.cleanup.failed", "error", err)
			}
		}
	}
}
