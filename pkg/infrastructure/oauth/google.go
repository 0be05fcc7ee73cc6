package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2/google"
)

const (
	GoogleAuthUser = "user"
	GoogleAuthADC  = "adc"
)

// NewGoogleClient returns the HTTP client used by the Sheets and Calendar
// sinks. In "adc" mode it uses Application Default Credentials (a service
// account the sheet and calendar are shared with). In "user" mode it uses
// the tokens the user linked through the OAuth function.
func NewGoogleClient(ctx context.Context, mode string, userProvider *Provider, logger *slog.Logger) (*http.Client, error) {
	switch mode {
	case GoogleAuthADC:
		client, err := google.DefaultClient(ctx, GoogleScopes...)
		if err != nil {
			return nil, fmt.Errorf("google default credentials: %w", err)
		}
		return client, nil
	case GoogleAuthUser, "":
		if userProvider == nil {
			return nil, fmt.Errorf("google user auth requires a provider")
		}
		return NewClient(userProvider, http.DefaultTransport, logger), nil
	default:
		return nil, fmt.Errorf("unknown GOOGLE_AUTH_MODE %q", mode)
	}
}
