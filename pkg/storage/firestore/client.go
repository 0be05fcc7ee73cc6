package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/fitglue/healthsync/pkg"
	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Raw exposes the underlying client for transactions.
func (c *Client) Raw() *firestore.Client {
	return c.fs
}

func (c *Client) Users() *Collection[types.UserRecord] {
	return &Collection[types.UserRecord]{
		Ref:           c.fs.Collection(shared.CollectionUsers),
		ToFirestore:   UserToFirestore,
		FromFirestore: FirestoreToUser,
	}
}

// DailyMetrics are sub-collections of Users: users/{uid}/daily_metrics/{date}
// Keyed by ISO date, so a re-run of the same day overwrites.
func (c *Client) DailyMetrics(userId string) *Collection[dailymetrics.Record] {
	return &Collection[dailymetrics.Record]{
		Ref:           c.fs.Collection(shared.CollectionUsers).Doc(userId).Collection(shared.CollectionDailyMetrics),
		ToFirestore:   DailyMetricsToFirestore,
		FromFirestore: FirestoreToDailyMetrics,
	}
}

// SyncRuns are sub-collections of Users: users/{uid}/sync_runs/{run_id}
func (c *Client) SyncRuns(userId string) *Collection[types.SyncRun] {
	return &Collection[types.SyncRun]{
		Ref:           c.fs.Collection(shared.CollectionUsers).Doc(userId).Collection(shared.CollectionSyncRuns),
		ToFirestore:   SyncRunToFirestore,
		FromFirestore: FirestoreToSyncRun,
	}
}

// OAuthStates is a top-level collection: oauth_states/{state}
func (c *Client) OAuthStates() *Collection[types.OAuthState] {
	return &Collection[types.OAuthState]{
		Ref:           c.fs.Collection(shared.CollectionOAuthStates),
		ToFirestore:   OAuthStateToFirestore,
		FromFirestore: FirestoreToOAuthState,
	}
}
