package mocks

import (
	"context"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	GetIntegrationFunc    func(ctx context.Context, userID, provider string) (*types.OAuthIntegration, error)
	SaveIntegrationFunc   func(ctx context.Context, userID, provider string, integration *types.OAuthIntegration) error
	ClearIntegrationFunc  func(ctx context.Context, userID, provider string) error
	SaveDailyMetricsFunc  func(ctx context.Context, userID string, record *dailymetrics.Record) error
	GetDailyMetricsFunc   func(ctx context.Context, userID, date string) (*dailymetrics.Record, error)
	SetSyncRunFunc        func(ctx context.Context, userID string, run *types.SyncRun) error
	CreateOAuthStateFunc  func(ctx context.Context, state *types.OAuthState) error
	ConsumeOAuthStateFunc func(ctx context.Context, state string) (*types.OAuthState, error)
}

func (m *MockDatabase) GetIntegration(ctx context.Context, userID, provider string) (*types.OAuthIntegration, error) {
	if m.GetIntegrationFunc != nil {
		return m.GetIntegrationFunc(ctx, userID, provider)
	}
	return nil, nil
}
func (m *MockDatabase) SaveIntegration(ctx context.Context, userID, provider string, integration *types.OAuthIntegration) error {
	if m.SaveIntegrationFunc != nil {
		return m.SaveIntegrationFunc(ctx, userID, provider, integration)
	}
	return nil
}
func (m *MockDatabase) ClearIntegration(ctx context.Context, userID, provider string) error {
	if m.ClearIntegrationFunc != nil {
		return m.ClearIntegrationFunc(ctx, userID, provider)
	}
	return nil
}
func (m *MockDatabase) SaveDailyMetrics(ctx context.Context, userID string, record *dailymetrics.Record) error {
	if m.SaveDailyMetricsFunc != nil {
		return m.SaveDailyMetricsFunc(ctx, userID, record)
	}
	return nil
}
func (m *MockDatabase) GetDailyMetrics(ctx context.Context, userID, date string) (*dailymetrics.Record, error) {
	if m.GetDailyMetricsFunc != nil {
		return m.GetDailyMetricsFunc(ctx, userID, date)
	}
	return &dailymetrics.Record{Date: date}, nil
}
func (m *MockDatabase) SetSyncRun(ctx context.Context, userID string, run *types.SyncRun) error {
	if m.SetSyncRunFunc != nil {
		return m.SetSyncRunFunc(ctx, userID, run)
	}
	return nil
}
func (m *MockDatabase) CreateOAuthState(ctx context.Context, state *types.OAuthState) error {
	if m.CreateOAuthStateFunc != nil {
		return m.CreateOAuthStateFunc(ctx, state)
	}
	return nil
}
func (m *MockDatabase) ConsumeOAuthState(ctx context.Context, state string) (*types.OAuthState, error) {
	if m.ConsumeOAuthStateFunc != nil {
		return m.ConsumeOAuthStateFunc(ctx, state)
	}
	return &types.OAuthState{State: state, UserID: "mock-user", Provider: types.ProviderFitbit}, nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}
func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Sinks ---
type MockRowAppender struct {
	AppendRowFunc func(ctx context.Context, record *dailymetrics.Record) error
}

func (m *MockRowAppender) AppendRow(ctx context.Context, record *dailymetrics.Record) error {
	if m.AppendRowFunc != nil {
		return m.AppendRowFunc(ctx, record)
	}
	return nil
}

type MockAnnotator struct {
	CreateAllDayAnnotationFunc func(ctx context.Context, date time.Time, title, description string) error
}

func (m *MockAnnotator) CreateAllDayAnnotation(ctx context.Context, date time.Time, title, description string) error {
	if m.CreateAllDayAnnotationFunc != nil {
		return m.CreateAllDayAnnotationFunc(ctx, date, title, description)
	}
	return nil
}

// --- Mock Token Provider ---
type MockTokenProvider struct {
	AccessTokenFunc      func(ctx context.Context) (string, error)
	HasAccessFunc        func(ctx context.Context) bool
	AuthorizationURLFunc func(state string) string
}

func (m *MockTokenProvider) AccessToken(ctx context.Context) (string, error) {
	if m.AccessTokenFunc != nil {
		return m.AccessTokenFunc(ctx)
	}
	return "mock-access-token", nil
}
func (m *MockTokenProvider) HasAccess(ctx context.Context) bool {
	if m.HasAccessFunc != nil {
		return m.HasAccessFunc(ctx)
	}
	return true
}
func (m *MockTokenProvider) AuthorizationURL(state string) string {
	if m.AuthorizationURLFunc != nil {
		return m.AuthorizationURLFunc(state)
	}
	return "https://www.fitbit.com/oauth2/authorize?state=" + state
}
