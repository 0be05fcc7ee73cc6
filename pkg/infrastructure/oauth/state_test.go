package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/healthsync/pkg/testing/mocks"
	"github.com/fitglue/healthsync/pkg/types"
)

func TestIssueState(t *testing.T) {
	var stored *types.OAuthState
	db := &mocks.MockDatabase{CreateOAuthStateFunc: func(ctx context.Context, s *types.OAuthState) error {
		stored = s
		return nil
	}}
	now := time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)

	state, err := IssueState(context.Background(), db, "user-1", types.ProviderFitbit, now)

	require.NoError(t, err)
	_, parseErr := uuid.Parse(state)
	assert.NoError(t, parseErr)
	require.NotNil(t, stored)
	assert.Equal(t, state, stored.State)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, types.ProviderFitbit, stored.Provider)
	assert.Equal(t, now.Add(10*time.Minute), stored.ExpiresAt)
}

func TestIssueState_StoreFailure(t *testing.T) {
	db := &mocks.MockDatabase{CreateOAuthStateFunc: func(ctx context.Context, s *types.OAuthState) error {
		return errors.New("unavailable")
	}}

	_, err := StateIssuer(db, "user-1", types.ProviderFitbit)(context.Background())

	assert.ErrorContains(t, err, "unavailable")
}
