package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

// RefreshableTokenSource is satisfied by *Provider.
type RefreshableTokenSource interface {
	Token(context.Context) (*oauth2.Token, error)
	ForceRefresh(context.Context) (*oauth2.Token, error)
}

// Transport is an http.RoundTripper that authenticates all requests
// using the provided token source. A 401 triggers one forced refresh and
// a single replay of the request.
type Transport struct {
	// Source supplies the token to be used.
	Source RefreshableTokenSource

	// Base is the base RoundTripper used to make the actual HTTP requests.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: cannot get token: %w", err)
	}

	req2 := cloneRequest(req)
	req2.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}

	// Requests with a body that cannot be rewound are not replayed.
	if resp.StatusCode != http.StatusUnauthorized || (req.Body != nil && req.GetBody == nil) {
		return resp, nil
	}

	// Drain body to allow connection reuse
	resp.Body.Close()
	t.logger().Warn("Got 401 Unauthorized, attempting force refresh", "url", req.URL.String())

	token, err = t.Source.ForceRefresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: force refresh failed: %w", err)
	}

	req3 := cloneRequest(req)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("oauth: rewind body: %w", err)
		}
		req3.Body = body
	}
	req3.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return base.RoundTrip(req3)
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// cloneRequest returns a clone of the provided *http.Request.
// The clone is a shallow copy of the struct and its Header map.
func cloneRequest(r *http.Request) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.Header = make(http.Header, len(r.Header))
	for k, s := range r.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}

// NewClient returns an HTTP client authenticated by source.
func NewClient(source RefreshableTokenSource, base http.RoundTripper, logger *slog.Logger) *http.Client {
	return &http.Client{
		Transport: &Transport{Source: source, Base: base, Logger: logger},
	}
}
