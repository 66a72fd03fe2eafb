package secretsource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/jejernig/keyvault-to-appconfig/internal/azauth"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// KindAzureKeyVault is the source type name for Azure Key Vault.
const KindAzureKeyVault = "azure-keyvault"

// AzureKeyVaultClient is the subset of *azsecrets.Client used here.
type AzureKeyVaultClient interface {
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultSource lists secrets in one vault.
type AzureKeyVaultSource struct {
	client   AzureKeyVaultClient
	vaultURL string

	// Pagers are resumed by the token handed out with the previous page.
	mu     sync.Mutex
	pagers map[string]*runtime.Pager[azsecrets.ListSecretPropertiesResponse]
	next   int
}

// AzureOption configures an AzureKeyVaultSource.
type AzureOption func(*AzureKeyVaultSource)

// WithAzureKeyVaultClient replaces the SDK client.
func WithAzureKeyVaultClient(client AzureKeyVaultClient) AzureOption {
	return func(s *AzureKeyVaultSource) { s.client = client }
}

// NewAzureKeyVaultSource reads vault_url and the azauth settings from
// configMap.
func NewAzureKeyVaultSource(configMap map[string]interface{}, opts ...AzureOption) (*AzureKeyVaultSource, error) {
	vaultURL, _ := configMap["vault_url"].(string)
	if vaultURL == "" {
		return nil, dserrors.ConfigError{
			Field:      "source.vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if u, err := url.Parse(vaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, dserrors.ConfigError{
			Field:      "source.vault_url",
			Value:      vaultURL,
			Message:    "Invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	s := &AzureKeyVaultSource{
		vaultURL: vaultURL,
		pagers:   make(map[string]*runtime.Pager[azsecrets.ListSecretPropertiesResponse]),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		cred, err := azauth.NewCredential(azauth.ConfigFromMap(configMap))
		if err != nil {
			return nil, err
		}
		client, err := azsecrets.NewClient(vaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		s.client = client
	}
	return s, nil
}

// Name returns the source type.
func (s *AzureKeyVaultSource) Name() string { return KindAzureKeyVault }

// List fetches the next page of secret properties. Key Vault does not
// filter server-side and ignores PageSize on listing.
func (s *AzureKeyVaultSource) List(ctx context.Context, _ Filter, req PageRequest) (Page, error) {
	pager, err := s.pager(req.ContinuationToken)
	if err != nil {
		return Page{}, err
	}
	if !pager.More() {
		return Page{}, nil
	}

	resp, err := pager.NextPage(ctx)
	if err != nil {
		// Keep the pager resumable after a transient failure.
		if req.ContinuationToken != "" {
			s.park(req.ContinuationToken, pager)
		}
		return Page{}, err
	}

	page := Page{Items: make([]Descriptor, 0, len(resp.Value))}
	for _, props := range resp.Value {
		if props == nil {
			continue
		}
		page.Items = append(page.Items, describeAzure(props))
	}
	if pager.More() {
		page.ContinuationToken = s.park("", pager)
	}
	return page, nil
}

func (s *AzureKeyVaultSource) pager(token string) (*runtime.Pager[azsecrets.ListSecretPropertiesResponse], error) {
	if token == "" {
		return s.client.NewListSecretPropertiesPager(nil), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pagers[token]
	if !ok {
		return nil, fmt.Errorf("unknown continuation token %q", token)
	}
	delete(s.pagers, token)
	return p, nil
}

// park stores pager under token, or under a fresh token when token is
// empty, and returns the token used.
func (s *AzureKeyVaultSource) park(token string, pager *runtime.Pager[azsecrets.ListSecretPropertiesResponse]) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		s.next++
		token = "kv-" + strconv.Itoa(s.next)
	}
	s.pagers[token] = pager
	return token
}

func describeAzure(props *azsecrets.SecretProperties) Descriptor {
	d := Descriptor{Enabled: true}
	if props.ID != nil {
		d.Name = props.ID.Name()
		d.Version = props.ID.Version()
		d.ID = string(*props.ID)
	}
	if props.ContentType != nil {
		d.ContentType = *props.ContentType
	}
	if a := props.Attributes; a != nil {
		if a.Enabled != nil {
			d.Enabled = *a.Enabled
		}
		if a.Updated != nil {
			d.Updated = a.Updated.UTC()
		}
	}
	if len(props.Tags) > 0 {
		d.Tags = make(map[string]string, len(props.Tags))
		for k, v := range props.Tags {
			if v != nil {
				d.Tags[k] = *v
			}
		}
	}
	return d
}

// GetValue reads a secret value. An empty or "latest" version reads the
// current version.
func (s *AzureKeyVaultSource) GetValue(ctx context.Context, name, version string) (Value, error) {
	if version == "latest" {
		version = ""
	}
	resp, err := s.client.GetSecret(ctx, name, version, nil)
	if err != nil {
		return Value{}, dserrors.ProviderError(KindAzureKeyVault, "get secret", err)
	}
	v := Value{}
	if resp.Value != nil {
		v.Value = *resp.Value
	}
	if resp.ContentType != nil {
		v.ContentType = *resp.ContentType
	}
	if resp.ID != nil {
		v.ID = string(*resp.ID)
	}
	return v, nil
}
