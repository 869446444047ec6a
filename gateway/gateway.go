package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/viant/mcpauth/config"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/server"
	"github.com/viant/mcpauth/server/auth"
	"github.com/viant/mcpauth/server/auth/registry"
	"github.com/viant/mcpauth/server/auth/resolver"
	"github.com/viant/mcpauth/server/auth/session"
	"github.com/viant/mcpauth/server/auth/store"
	"github.com/viant/mcpauth/server/auth/verifier"
	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"
)

const shutdownTimeout = 10 * time.Second

// Gateway holds the assembled components.
type Gateway struct {
	Config      *config.Config
	Tokens      store.TokenStore
	Clients     *registry.Catalog
	Coordinator *session.Coordinator
	Resolver    *resolver.Resolver
	Server      *server.Server
	logger      pslog.Logger
	metrics     *metrics.Metrics
}

// New builds a gateway. In PAT mode the OAuth surface, token store and
// coordinator are not created.
func New(ctx context.Context, cfg *config.Config, logger pslog.Logger, m *metrics.Metrics) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.Ensure(logger)
	ret := &Gateway{Config: cfg, logger: logger, metrics: m}
	serverOptions := []server.Option{
		server.WithAddr(cfg.Listen),
		server.WithUpstream(cfg.UpstreamURL),
		server.WithLogger(logger),
		server.WithMetrics(m),
	}
	if cfg.PATMode() {
		logger.Warn("gateway.pat_mode", "hint", "every request runs as the personal access token owner")
		ret.Resolver = resolver.New(nil, []resolver.Strategy{resolver.NewPATStrategy(cfg.PAT)},
			resolver.WithLogger(logger), resolver.WithMetrics(m))
	} else {
		if err := ret.initOAuth(ctx, &serverOptions); err != nil {
			return nil, err
		}
	}
	srv, err := server.New(ret.Resolver, serverOptions...)
	if err != nil {
		return nil, err
	}
	ret.Server = srv
	return ret, nil
}

func (g *Gateway) initOAuth(ctx context.Context, serverOptions *[]server.Option) error {
	cfg := g.Config
	keys, err := verifier.NewRemoteKeySet(ctx, cfg.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("jwks %s: %w", cfg.JWKSURL, err)
	}
	verifierOptions := []verifier.Option{verifier.WithRequiredScopes(cfg.RequiredScopes...)}
	if cfg.Issuer != "" {
		verifierOptions = append(verifierOptions, verifier.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		verifierOptions = append(verifierOptions, verifier.WithAudience(cfg.Audience))
	}
	credentials := verifier.New(keys, verifierOptions...)

	g.Tokens = store.New(ctx, cfg.TokenStore(), store.WithLogger(g.logger), store.WithMetrics(g.metrics))
	static, err := registry.LoadStatic(ctx, cfg.StaticClients, cfg.StaticClientsURL)
	if err != nil {
		return err
	}
	g.Clients = registry.NewCatalog(ctx, registry.New(ctx, cfg.Registry(), g.logger), static, g.logger)
	g.Coordinator = session.New(g.Tokens, g.Clients, session.NewOAuthUpstream(cfg.OAuth2(), nil),
		session.WithLogger(g.logger),
		session.WithMetrics(g.metrics),
		session.WithOrphanGrace(cfg.OrphanGrace),
		session.WithMaxTokenTTL(cfg.MaxTokenTTL),
		session.WithCodeTTL(cfg.CodeTTL),
		session.WithRequireSession(cfg.RequireSession),
	)
	g.Resolver = resolver.NewDefault(credentials, g.Coordinator, g.Tokens,
		resolver.WithAnonymous(cfg.AllowAnonymous),
		resolver.WithRequiredScopes(cfg.RequiredScopes...),
		resolver.WithLogger(g.logger),
		resolver.WithMetrics(g.metrics),
	)
	service := auth.New(cfg.Auth(), g.Coordinator, g.Clients, auth.WithLogger(g.logger), auth.WithMetrics(g.metrics))
	*serverOptions = append(*serverOptions, server.WithAuthService(service), server.WithReadiness(g.ready))
	return nil
}

// ready reports a Redis token store outage.
func (g *Gateway) ready(ctx context.Context) error {
	if redisStore, ok := g.Tokens.(*store.RedisStore); ok {
		if _, err := redisStore.IndexSize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run serves HTTP and runs the sweepers until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	httpServer := g.Server.HTTP(g.Config.Listen)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		g.logger.Info("gateway.listen", "addr", httpServer.Addr, "pat_mode", g.Config.PATMode())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if g.Coordinator != nil {
		group.Go(func() error {
			return g.Coordinator.Run(ctx, g.Config.CleanupInterval)
		})
	}
	if cache := g.Resolver.Cache(); cache != nil {
		group.Go(func() error {
			ticker := time.NewTicker(g.Config.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case now := <-ticker.C:
					if pruned := cache.Prune(now); pruned > 0 {
						g.logger.Debug("gateway.cache.pruned", "entries", pruned)
					}
				}
			}
		})
	}
	return group.Wait()
}

// Close releases the token store.
func (g *Gateway) Close() error {
	if g.Tokens == nil {
		return nil
	}
	return g.Tokens.Close()
}
