// Package secrets reads OAuth client secrets from Secret Manager when they
// are not set in the environment.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// ErrCorrupted is returned when a payload fails its CRC32C check.
var ErrCorrupted = errors.New("secret payload checksum mismatch")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// AccessFunc fetches the payload of a fully qualified secret version name.
type AccessFunc func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error)

type Resolver struct {
	ProjectID string
	Access    AccessFunc
	Logger    *slog.Logger
}

// NewResolver reads secrets through client.
func NewResolver(client *secretmanager.Client, projectID string, logger *slog.Logger) *Resolver {
	return &Resolver{
		ProjectID: projectID,
		Access: func(ctx context.Context, name string) (*secretmanagerpb.SecretPayload, error) {
			resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
			if err != nil {
				return nil, err
			}
			return resp.GetPayload(), nil
		},
		Logger: logger,
	}
}

// Resolve returns current when it is already set, otherwise the latest
// version of secretName.
func (r *Resolver) Resolve(ctx context.Context, current, secretName string) (string, error) {
	if current != "" {
		return current, nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.ProjectID, secretName)
	payload, err := r.Access(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}

	if payload == nil {
		return "", fmt.Errorf("secret %s has no payload", secretName)
	}
	data := payload.GetData()
	if payload.DataCrc32C != nil && *payload.DataCrc32C != int64(crc32.Checksum(data, castagnoli)) {
		return "", fmt.Errorf("secret %s: %w", secretName, ErrCorrupted)
	}

	if r.Logger != nil {
		r.Logger.Debug("Loaded secret from Secret Manager", "secret", secretName)
	}
	return string(data), nil
}
