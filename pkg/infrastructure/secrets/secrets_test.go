package secrets

import (
	"context"
	"errors"
	"hash/crc32"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(data string, sum *int64) *secretmanagerpb.SecretPayload {
	return &secretmanagerpb.SecretPayload{Data: []byte(data), DataCrc32C: sum}
}

func TestResolve_KeepsCurrentValue(t *testing.T) {
	r := &Resolver{Access: func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error) {
		t.Fatal("Secret Manager should not be called")
		return nil, nil
	}}

	got, err := r.Resolve(context.Background(), "from-env", "fitbit-client-secret")

	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestResolve_FetchesLatestVersion(t *testing.T) {
	sum := int64(crc32.Checksum([]byte("s3cret"), crc32.MakeTable(crc32.Castagnoli)))
	var asked string
	r := &Resolver{ProjectID: "proj", Access: func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error) {
		asked = name
		return payload("s3cret", &sum), nil
	}}

	got, err := r.Resolve(context.Background(), "", "fitbit-client-secret")

	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Equal(t, "projects/proj/secrets/fitbit-client-secret/versions/latest", asked)
}

func TestResolve_ChecksumMismatch(t *testing.T) {
	bad := int64(42)
	r := &Resolver{ProjectID: "proj", Access: func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error) {
		return payload("s3cret", &bad), nil
	}}

	_, err := r.Resolve(context.Background(), "", "fitbit-client-secret")

	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestResolve_AccessError(t *testing.T) {
	r := &Resolver{ProjectID: "proj", Access: func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error) {
		return nil, errors.New("permission denied")
	}}

	_, err := r.Resolve(context.Background(), "", "google-client-secret")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "google-client-secret")
}
