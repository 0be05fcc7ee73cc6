package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fitglue/healthsync/pkg/types"
)

// StateTTL bounds how long an issued authorization URL stays usable.
const StateTTL = 10 * time.Minute

// StateStore persists single-use OAuth state values.
type StateStore interface {
	CreateOAuthState(ctx context.Context, state *types.OAuthState) error
}

// StateIssuer returns a function that creates and stores a fresh state for
// userID and provider. The callback consumes it exactly once.
func StateIssuer(store StateStore, userID, provider string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return IssueState(ctx, store, userID, provider, time.Now())
	}
}

func IssueState(ctx context.Context, store StateStore, userID, provider string, now time.Time) (string, error) {
	st := &types.OAuthState{
		State:     uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(StateTTL),
	}
	if err := store.CreateOAuthState(ctx, st); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return st.State, nil
}
