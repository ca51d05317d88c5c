package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Deployment modes
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

const (
	DefaultProductionOrigin = "http://localhost:8080/api"
	DefaultDevProxyOrigin   = "http://localhost:5173"
	apiPrefix               = "/api"
	maxMessageLength        = 512
)

// GatewayConfig selects the backend address. In production the backend is
// called directly; in every other mode requests go through the dev proxy.
type GatewayConfig struct {
	Mode             string
	ProductionOrigin string
	DevProxyOrigin   string
	Timeout          time.Duration
	HTTPClient       *http.Client
}

// BaseURL resolves the API root for the configured mode
func (c GatewayConfig) BaseURL() string {
	if strings.EqualFold(strings.TrimSpace(c.Mode), ModeProduction) {
		origin := strings.TrimRight(c.ProductionOrigin, "/")
		if origin == "" {
			origin = DefaultProductionOrigin
		}
		return origin
	}

	origin := strings.TrimRight(c.DevProxyOrigin, "/")
	if origin == "" {
		origin = DefaultDevProxyOrigin
	}
	return origin + apiPrefix
}

// Gateway is the single HTTP entry point. It attaches the bearer token when
// there is one and turns every non 2xx answer into an *APIError.
type Gateway struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	logger         Logger
	onUnauthorized func(ctx context.Context, err *APIError)
}

// NewGateway builds a gateway from cfg
func NewGateway(cfg GatewayConfig) *Gateway {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Gateway{
		baseURL:    cfg.BaseURL(),
		httpClient: client,
		logger:     defLogger{},
	}
}

func (g *Gateway) WithLogger(logger Logger) *Gateway {
	g.logger = normalizeLogger(logger)
	return g
}

// WithTokenSource sets where bearer tokens are read from
func (g *Gateway) WithTokenSource(tokens TokenSource) *Gateway {
	g.tokens = tokens
	return g
}

// OnUnauthorized registers the hook called for every 401 response
func (g *Gateway) OnUnauthorized(fn func(ctx context.Context, err *APIError)) *Gateway {
	g.onUnauthorized = fn
	return g
}

// BaseURL is the resolved API root
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Do sends in as JSON to path and decodes the response into out. Either may
// be nil.
func (g *Gateway) Do(ctx context.Context, method, path string, in, out any) error {
	return g.send(ctx, method, path, in, out, true)
}

// send is Do with control over the 401 hook. Login and registration answer
// 401 for bad credentials, which says nothing about the stored session.
func (g *Gateway) send(ctx context.Context, method, path string, in, out any, sessionBound bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return transportFailure(err, "request failed")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if g.tokens != nil {
		if token, ok := g.tokens.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("%s %s failed: %v", method, path, err)
		return transportFailure(err, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(err, "request failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: extractMessage(raw),
			Body:    raw,
		}
		g.logger.Debug("%s %s: %d %s", method, path, resp.StatusCode, logMessage(apiErr.Message))
		if resp.StatusCode == http.StatusUnauthorized && sessionBound && g.onUnauthorized != nil {
			g.onUnauthorized(ctx, apiErr)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if s, ok := out.(*string); ok && !json.Valid(raw) {
		*s = string(raw)
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return transportFailure(err, "invalid response")
	}
	return nil
}

// extractMessage pulls a human readable message out of an error body. JSON
// bodies use message, then error; anything else is taken as text.
func extractMessage(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	if trimmed[0] == '{' {
		var payload map[string]any
		if err := json.Unmarshal(trimmed, &payload); err == nil {
			for _, field := range []string{"message", "error"} {
				if msg, ok := payload[field].(string); ok && strings.TrimSpace(msg) != "" {
					return strings.TrimSpace(msg)
				}
			}
			return ""
		}
	}

	if trimmed[0] == '"' {
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err == nil {
			return strings.TrimSpace(msg)
		}
	}

	if trimmed[0] == '<' {
		return ""
	}

	return string(trimmed)
}

// logMessage shortens msg for log lines, cutting on a rune boundary
func logMessage(msg string) string {
	if len(msg) <= maxMessageLength {
		return msg
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}
