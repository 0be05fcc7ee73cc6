package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	storage "github.com/fitglue/healthsync/pkg/storage/firestore"
	"github.com/fitglue/healthsync/pkg/types"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// FirestoreAdapter provides database operations using Firestore
// It wraps our typed storage client
type FirestoreAdapter struct {
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{storage: storage.NewClient(client)}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// GetIntegration returns nil, nil when the user or the provider is not linked.
func (a *FirestoreAdapter) GetIntegration(ctx context.Context, userID, provider string) (*types.OAuthIntegration, error) {
	user, err := a.storage.Users().Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrStorage.WithCause(err)
	}
	return user.Integration(provider), nil
}

// SaveIntegration replaces the provider sub-object, creating the user
// document when needed.
func (a *FirestoreAdapter) SaveIntegration(ctx context.Context, userID, provider string, integration *types.OAuthIntegration) error {
	err := a.storage.Users().Doc(userID).Update(ctx, map[string]interface{}{
		"user_id": userID,
		"integrations": map[string]interface{}{
			provider: storage.IntegrationToFirestore(integration),
		},
	})
	if err != nil {
		return fmt.Errorf("save %s integration: %w", provider, err)
	}
	return nil
}

// ClearIntegration removes stored tokens and disables the provider.
func (a *FirestoreAdapter) ClearIntegration(ctx context.Context, userID, provider string) error {
	prefix := "integrations." + provider
	_, err := a.storage.Users().Doc(userID).Ref.Update(ctx, []firestore.Update{
		{Path: prefix + ".enabled", Value: false},
		{Path: prefix + ".access_token", Value: firestore.Delete},
		{Path: prefix + ".refresh_token", Value: firestore.Delete},
		{Path: prefix + ".expires_at", Value: firestore.Delete},
	})
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear %s integration: %w", provider, err)
	}
	return nil
}

func (a *FirestoreAdapter) SaveDailyMetrics(ctx context.Context, userID string, record *dailymetrics.Record) error {
	return a.storage.DailyMetrics(userID).Doc(record.Date).Replace(ctx, record)
}

func (a *FirestoreAdapter) GetDailyMetrics(ctx context.Context, userID, date string) (*dailymetrics.Record, error) {
	rec, err := a.storage.DailyMetrics(userID).Doc(date).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("daily metrics %s: %w", date, ErrNotFound)
	}
	return rec, err
}

func (a *FirestoreAdapter) SetSyncRun(ctx context.Context, userID string, run *types.SyncRun) error {
	return a.storage.SyncRuns(userID).Doc(run.RunID).Set(ctx, run)
}

func (a *FirestoreAdapter) CreateOAuthState(ctx context.Context, state *types.OAuthState) error {
	_, err := a.storage.OAuthStates().Doc(state.State).Ref.Create(ctx, storage.OAuthStateToFirestore(state))
	return err
}

// ConsumeOAuthState reads and deletes the state in one transaction so a
// callback URL cannot be replayed. Expired states are deleted and reported
// as not found.
func (a *FirestoreAdapter) ConsumeOAuthState(ctx context.Context, state string) (*types.OAuthState, error) {
	states := a.storage.OAuthStates()
	ref := states.Doc(state).Ref

	var out *types.OAuthState
	err := a.storage.Raw().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		out = states.FromFirestore(snap.Data())
		return tx.Delete(ref)
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("oauth state: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}
	if !out.ExpiresAt.IsZero() && time.Now().After(out.ExpiresAt) {
		return nil, fmt.Errorf("oauth state expired: %w", ErrNotFound)
	}
	return out, nil
}
