package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/jejernig/keyvault-to-appconfig/internal/secretsource"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager.
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex
	// Secrets maps full resource names (projects/X/secrets/Y) to their data
	Secrets map[string]*GCPSecretData
	// Versions maps version resource names (projects/X/secrets/Y/versions/Z) to their payload
	Versions map[string][]byte
	// Errors maps resource names to errors to return
	Errors map[string]error
	// ListErr is returned by the iterator after all secrets are yielded
	ListErr error
}

// GCPSecretData holds the data for a fake GCP secret
type GCPSecretData struct {
	Name       string
	CreateTime *timestamppb.Timestamp
	Labels     map[string]string
}

// NewFakeGCPSecretManagerClient creates an empty fake client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets:  make(map[string]*GCPSecretData),
		Versions: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretVersion stores a payload under a version, creating the secret if needed
func (f *FakeGCPSecretManagerClient) AddSecretVersion(projectID, secretName, version string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secretFullName := fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)
	if _, exists := f.Secrets[secretFullName]; !exists {
		f.Secrets[secretFullName] = &GCPSecretData{
			Name:       secretFullName,
			CreateTime: timestamppb.New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		}
	}
	f.Versions[secretFullName+"/versions/"+version] = value
}

// AddSecretString adds a string secret readable as "latest" and "1"
func (f *FakeGCPSecretManagerClient) AddSecretString(projectID, secretName, value string) {
	f.AddSecretVersion(projectID, secretName, "latest", []byte(value))
	f.AddSecretVersion(projectID, secretName, "1", []byte(value))
}

// SetLabels replaces a secret's labels
func (f *FakeGCPSecretManagerClient) SetLabels(projectID, secretName string, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.Secrets[fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)]; ok {
		data.Labels = labels
	}
}

// AddError configures an error for a resource name
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[resourceName] = err
}

// AccessSecretVersion returns the stored payload
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, exists := f.Errors[req.Name]; exists {
		return nil, err
	}
	data, exists := f.Versions[req.Name]
	if !exists {
		return nil, GCPNotFoundError(req.Name)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

// ListSecrets iterates the project's secrets sorted by resource name
func (f *FakeGCPSecretManagerClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) secretsource.GCPSecretIterator {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := req.Parent + "/secrets/"
	var secrets []*secretmanagerpb.Secret
	for name, data := range f.Secrets {
		if strings.HasPrefix(name, prefix) {
			secrets = append(secrets, &secretmanagerpb.Secret{
				Name:       data.Name,
				CreateTime: data.CreateTime,
				Labels:     data.Labels,
			})
		}
	}
	sort.Slice(secrets, func(i, j int) bool { return secrets[i].Name < secrets[j].Name })
	return NewFakeSecretIterator(secrets, f.ListErr)
}

// FakeSecretIterator yields secrets, then err or iterator.Done
type FakeSecretIterator struct {
	secrets []*secretmanagerpb.Secret
	index   int
	err     error
}

// Next returns the next secret in the iteration
func (it *FakeSecretIterator) Next() (*secretmanagerpb.Secret, error) {
	if it.index >= len(it.secrets) {
		if it.err != nil {
			return nil, it.err
		}
		return nil, iterator.Done
	}
	secret := it.secrets[it.index]
	it.index++
	return secret, nil
}

// NewFakeSecretIterator creates a new fake secret iterator
func NewFakeSecretIterator(secrets []*secretmanagerpb.Secret, err error) *FakeSecretIterator {
	return &FakeSecretIterator{secrets: secrets, err: err}
}

// GCPNotFoundError creates a GCP not found error
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Resource %s not found", resourceName)
}

// GCPPermissionDeniedError creates a GCP permission denied error
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// GCPUnavailableError creates a GCP unavailable error
func GCPUnavailableError() error {
	return status.Error(codes.Unavailable, "service unavailable")
}
