package oauth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/sheets/v4"

	"github.com/fitglue/healthsync/pkg/fitbit"
)

// FitbitEndpoint expects client credentials in a Basic auth header.
var FitbitEndpoint = oauth2.Endpoint{
	AuthURL:   "https://www.fitbit.com/oauth2/authorize",
	TokenURL:  "https://api.fitbit.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// GoogleScopes cover the Sheets row sink and the Calendar annotation sink.
var GoogleScopes = []string{
	sheets.SpreadsheetsScope,
	calendar.CalendarEventsScope,
}

func NewFitbitConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     FitbitEndpoint,
		Scopes:       fitbit.Scopes,
	}
}

func NewGoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       GoogleScopes,
	}
}
