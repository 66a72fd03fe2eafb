package fakes

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

const fakeVaultURL = "https://test-vault.vault.azure.net"

// AzureSecretData holds one fake Key Vault secret.
type AzureSecretData struct {
	Value       string
	Version     string
	ContentType string
	Enabled     bool
	Tags        map[string]string
	Updated     time.Time
}

// FakeAzureKeyVaultClient serves secrets from memory through real azcore
// pagers.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their data
	Secrets map[string]*AzureSecretData
	// Errors maps secret names to errors returned by GetSecret
	Errors map[string]error
	// PageSize splits listings into pages; 0 returns one page
	PageSize int
	// PageFailures maps a page index to errors returned, one per fetch,
	// before the page succeeds
	PageFailures map[int][]error

	ListCalls int
	GetCalls  int
}

// NewFakeAzureKeyVaultClient creates an empty fake client.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets:      make(map[string]*AzureSecretData),
		Errors:       make(map[string]error),
		PageFailures: make(map[int][]error),
	}
}

// AddSecret adds a secret.
func (f *FakeAzureKeyVaultClient) AddSecret(name string, data *AzureSecretData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = data
}

// AddSecretString adds an enabled secret with a generated version.
func (f *FakeAzureKeyVaultClient) AddSecretString(name, value string) {
	f.AddSecret(name, &AzureSecretData{
		Value:   value,
		Version: "v" + strconv.Itoa(len(f.Secrets)+1),
		Enabled: true,
		Updated: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

// AddError makes GetSecret fail for name.
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func (f *FakeAzureKeyVaultClient) sortedNames() []string {
	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func secretID(name, version string) *azsecrets.ID {
	id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s/%s", fakeVaultURL, name, version))
	return &id
}

func (f *FakeAzureKeyVaultClient) page(index int) (azsecrets.ListSecretPropertiesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls++
	if failures := f.PageFailures[index]; len(failures) > 0 {
		f.PageFailures[index] = failures[1:]
		return azsecrets.ListSecretPropertiesResponse{}, failures[0]
	}

	names := f.sortedNames()
	size := f.PageSize
	if size <= 0 {
		size = len(names)
	}
	start := index * size
	end := min(start+size, len(names))
	if start > end {
		start = end
	}

	var resp azsecrets.ListSecretPropertiesResponse
	for _, name := range names[start:end] {
		data := f.Secrets[name]
		props := &azsecrets.SecretProperties{
			ID: secretID(name, data.Version),
			Attributes: &azsecrets.SecretAttributes{
				Enabled: to.Ptr(data.Enabled),
				Updated: to.Ptr(data.Updated),
			},
		}
		if data.ContentType != "" {
			props.ContentType = to.Ptr(data.ContentType)
		}
		if len(data.Tags) > 0 {
			props.Tags = make(map[string]*string, len(data.Tags))
			for k, v := range data.Tags {
				props.Tags[k] = to.Ptr(v)
			}
		}
		resp.Value = append(resp.Value, props)
	}
	if end < len(names) {
		resp.NextLink = to.Ptr(fmt.Sprintf("%s/secrets?page=%d", fakeVaultURL, index+1))
	}
	return resp, nil
}

// NewListSecretPropertiesPager returns an azcore pager over the fake
// secrets, sorted by name.
func (f *FakeAzureKeyVaultClient) NewListSecretPropertiesPager(_ *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse] {
	return runtime.NewPager(runtime.PagingHandler[azsecrets.ListSecretPropertiesResponse]{
		More: func(page azsecrets.ListSecretPropertiesResponse) bool {
			return page.NextLink != nil && *page.NextLink != ""
		},
		Fetcher: func(ctx context.Context, current *azsecrets.ListSecretPropertiesResponse) (azsecrets.ListSecretPropertiesResponse, error) {
			if err := ctx.Err(); err != nil {
				return azsecrets.ListSecretPropertiesResponse{}, err
			}
			index := 0
			if current != nil && current.NextLink != nil {
				_, n, _ := strings.Cut(*current.NextLink, "page=")
				index, _ = strconv.Atoi(n)
			}
			return f.page(index)
		},
	})
}

// GetSecret returns the stored secret. An empty version reads the current
// one.
func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++

	if err := ctx.Err(); err != nil {
		return azsecrets.GetSecretResponse{}, err
	}
	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	data, ok := f.Secrets[name]
	if !ok || (version != "" && version != data.Version) {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}

	resp := azsecrets.GetSecretResponse{}
	resp.Value = to.Ptr(data.Value)
	resp.ID = secretID(name, data.Version)
	if data.ContentType != "" {
		resp.ContentType = to.Ptr(data.ContentType)
	}
	return resp, nil
}

// AzureNotFoundError creates an Azure 404 error
func AzureNotFoundError(secretName string) error {
	return &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "SecretNotFound"}
}

// AzureForbiddenError creates an Azure 403 error
func AzureForbiddenError() error {
	return &azcore.ResponseError{StatusCode: http.StatusForbidden, ErrorCode: "Forbidden"}
}

// AzureThrottledError creates an Azure 429 error
func AzureThrottledError() error {
	return &azcore.ResponseError{StatusCode: http.StatusTooManyRequests, ErrorCode: "TooManyRequests"}
}
