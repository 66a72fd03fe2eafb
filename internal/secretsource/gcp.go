package secretsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// KindGCPSecretManager is the source type name for Google Secret Manager.
const KindGCPSecretManager = "gcp-secretmanager"

// GCPSecretIterator yields secrets until iterator.Done.
type GCPSecretIterator interface {
	Next() (*secretmanagerpb.Secret, error)
}

// GCPSecretManagerClient is the subset of Secret Manager calls used here.
type GCPSecretManagerClient interface {
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) GCPSecretIterator
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) GCPSecretIterator {
	return g.c.ListSecrets(ctx, req)
}

func (g gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

// GCPSecretManagerSource lists secrets in one project.
type GCPSecretManagerSource struct {
	client    GCPSecretManagerClient
	projectID string
}

// GCPOption configures a GCPSecretManagerSource.
type GCPOption func(*GCPSecretManagerSource)

// WithGCPSecretManagerClient replaces the SDK client.
func WithGCPSecretManagerClient(client GCPSecretManagerClient) GCPOption {
	return func(s *GCPSecretManagerSource) { s.client = client }
}

// NewGCPSecretManagerSource reads project_id and service_account_key_path
// from configMap. project_id falls back to GOOGLE_CLOUD_PROJECT.
func NewGCPSecretManagerSource(ctx context.Context, configMap map[string]interface{}, opts ...GCPOption) (*GCPSecretManagerSource, error) {
	projectID, _ := configMap["project_id"].(string)
	if projectID == "" {
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "source.project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set project_id in config or GOOGLE_CLOUD_PROJECT environment variable",
		}
	}

	s := &GCPSecretManagerSource{projectID: projectID}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOptions []option.ClientOption
		if keyPath, ok := configMap["service_account_key_path"].(string); ok && keyPath != "" {
			clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
		}
		c, err := secretmanager.NewClient(ctx, clientOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		s.client = gcpClient{c: c}
	}
	return s, nil
}

// Name returns the source type.
func (s *GCPSecretManagerSource) Name() string { return KindGCPSecretManager }

// List drains the project's secrets in one page; the client iterator
// follows server page tokens itself.
func (s *GCPSecretManagerSource) List(ctx context.Context, _ Filter, req PageRequest) (Page, error) {
	listReq := &secretmanagerpb.ListSecretsRequest{Parent: "projects/" + s.projectID}
	if req.PageSize > 0 {
		listReq.PageSize = int32(req.PageSize)
	}

	it := s.client.ListSecrets(ctx, listReq)
	var page Page
	for {
		secret, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, describeGCP(secret))
	}
	return page, nil
}

func describeGCP(secret *secretmanagerpb.Secret) Descriptor {
	name := secret.GetName()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	d := Descriptor{
		Name:    name,
		Version: "latest",
		Enabled: true,
		ID:      secret.GetName(),
	}
	if ts := secret.GetCreateTime(); ts != nil {
		d.Updated = ts.AsTime().UTC()
	}
	if labels := secret.GetLabels(); len(labels) > 0 {
		d.Tags = make(map[string]string, len(labels))
		for k, v := range labels {
			d.Tags[k] = v
		}
	}
	return d
}

// GetValue accesses a secret version, "latest" when version is empty.
func (s *GCPSecretManagerSource) GetValue(ctx context.Context, name, version string) (Value, error) {
	if version == "" {
		version = "latest"
	}
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", s.projectID, name, version)
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return Value{}, dserrors.ProviderError(KindGCPSecretManager, "access secret version", err)
	}
	return Value{Value: string(resp.GetPayload().GetData()), ID: resp.GetName()}, nil
}
