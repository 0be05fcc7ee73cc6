// Package types holds the persisted shapes shared by storage, the OAuth
// layer and the sync pipeline.
package types

import "time"

const (
	ProviderFitbit = "fitbit"
	ProviderGoogle = "google"
)

// OAuthIntegration is one linked provider under users/{uid}.integrations.
type OAuthIntegration struct {
	Enabled        bool
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	ExternalUserID string
	Scope          string
	LinkedAt       time.Time
	LastUsedAt     time.Time
}

// UserRecord is the users/{uid} document.
type UserRecord struct {
	UserID       string
	CreatedAt    time.Time
	Integrations map[string]*OAuthIntegration
}

// Integration returns the linked provider, or nil.
func (u *UserRecord) Integration(provider string) *OAuthIntegration {
	if u == nil || u.Integrations == nil {
		return nil
	}
	return u.Integrations[provider]
}

// OAuthState is a pending authorization started by the OAuth function.
type OAuthState struct {
	State     string
	UserID    string
	Provider  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type SyncRunKind string

const (
	SyncRunDaily    SyncRunKind = "daily"
	SyncRunBackfill SyncRunKind = "backfill"
)

type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunCompleted SyncRunStatus = "completed"
	SyncRunAborted   SyncRunStatus = "aborted"
)

// SyncRun is stored under users/{uid}/sync_runs/{run_id}.
type SyncRun struct {
	RunID       string
	UserID      string
	Kind        SyncRunKind
	Status      SyncRunStatus
	StartDate   string
	EndDate     string
	Succeeded   int
	Failed      int
	FailedDates []string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// PubSubMessage is the push envelope Cloud Functions receives for a
// Pub/Sub-triggered CloudEvent.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription,omitempty"`
}
