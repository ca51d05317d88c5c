package library

import (
	"context"
	"time"
)

// ClientConfig wires a Client. Only Gateway is required.
type ClientConfig struct {
	Gateway      GatewayConfig
	Storage      Storage
	Logger       Logger
	ActivitySink ActivitySink
	Validator    TokenValidator
	CheckExpiry  bool
	ExpiryLeeway time.Duration
}

// Client bundles the session store, the API, the lending cache and the
// guard. A 401 from any session bound call logs the session out, which in
// turn resets the cache.
type Client struct {
	Sessions *SessionStore
	Gateway  *Gateway
	API      *API
	Cache    *Cache
	Guard    *Guard

	detach func()
}

func NewClient(cfg ClientConfig) *Client {
	logger := normalizeLogger(cfg.Logger)

	gateway := NewGateway(cfg.Gateway).WithLogger(logger)
	api := NewAPI(gateway)

	store := NewSessionStore(cfg.Storage, api).
		WithLogger(logger).
		WithActivitySink(cfg.ActivitySink)
	if cfg.Validator != nil {
		store.WithTokenValidator(cfg.Validator)
	}
	if cfg.CheckExpiry {
		store.WithExpiryCheck(cfg.ExpiryLeeway)
	}

	api.WithSessions(store)

	gateway.WithTokenSource(store).OnUnauthorized(func(ctx context.Context, err *APIError) {
		logger.Warn("Backend rejected session on %s %s, logging out", err.Method, err.Path)
		store.Logout(ctx)
	})

	cache := NewCache(api, store).WithLogger(logger)

	return &Client{
		Sessions: store,
		Gateway:  gateway,
		API:      api,
		Cache:    cache,
		Guard:    NewGuard().WithLogger(logger),
		detach:   cache.Attach(store),
	}
}

// Context returns ctx carrying the current session snapshot
func (c *Client) Context(ctx context.Context) context.Context {
	return WithSession(ctx, c.Sessions.Current(ctx))
}

// Close detaches the cache from the session store
func (c *Client) Close() {
	if c.detach != nil {
		c.detach()
	}
}
