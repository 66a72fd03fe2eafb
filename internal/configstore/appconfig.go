package configstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/jejernig/keyvault-to-appconfig/internal/azauth"
	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/pkg/planning"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

const (
	appConfigAPIVersion = "1.0"
	appConfigModule     = "kv2appconfig/configstore"
	appConfigVersion    = "v1.0.0"

	mediaTypeKV    = "application/vnd.microsoft.appconfig.kv+json"
	mediaTypeKVSet = "application/vnd.microsoft.appconfig.kvset+json"
)

// AppConfigStore talks to the Azure App Configuration data plane through
// an azcore pipeline with bearer token authentication.
type AppConfigStore struct {
	endpoint string
	pipeline runtime.Pipeline
}

// AppConfigOptions configures an AppConfigStore.
type AppConfigOptions struct {
	// ClientOptions are passed to the pipeline. Tests set Transport here.
	ClientOptions *policy.ClientOptions
}

type keyValue struct {
	Key          string            `json:"key"`
	Label        *string           `json:"label,omitempty"`
	Value        *string           `json:"value,omitempty"`
	ContentType  *string           `json:"content_type,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	LastModified *time.Time        `json:"last_modified,omitempty"`
}

type keyValuePage struct {
	Items    []keyValue `json:"items"`
	NextLink string     `json:"@nextLink"`
}

type putBody struct {
	Value       string            `json:"value"`
	ContentType string            `json:"content_type"`
	Tags        map[string]string `json:"tags"`
}

// NewAppConfigStore creates a store for endpoint, an https URL such as
// https://my-store.azconfig.io.
func NewAppConfigStore(endpoint string, cred azcore.TokenCredential, opts *AppConfigOptions) (*AppConfigStore, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if u, err := url.Parse(endpoint); endpoint == "" || err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, dserrors.ConfigError{
			Field:      "target.endpoint",
			Value:      endpoint,
			Message:    "Invalid App Configuration endpoint",
			Suggestion: "Use format: https://store-name.azconfig.io",
		}
	}
	if cred == nil {
		return nil, dserrors.InvalidArgument("credential")
	}

	var clientOptions *policy.ClientOptions
	if opts != nil {
		clientOptions = opts.ClientOptions
	}
	auth := runtime.NewBearerTokenPolicy(cred, []string{endpoint + "/.default"}, nil)
	pl := runtime.NewPipeline(appConfigModule, appConfigVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, clientOptions)

	return &AppConfigStore{endpoint: endpoint, pipeline: pl}, nil
}

// NewAppConfigStoreFromMap reads endpoint and the azauth settings from
// configMap.
func NewAppConfigStoreFromMap(configMap map[string]interface{}) (*AppConfigStore, error) {
	endpoint, _ := configMap["endpoint"].(string)
	if strings.TrimSpace(endpoint) == "" {
		return nil, dserrors.ConfigError{
			Field:      "target.endpoint",
			Message:    "endpoint is required for Azure App Configuration",
			Suggestion: "Provide the store endpoint (e.g., https://my-store.azconfig.io)",
		}
	}
	cred, err := azauth.NewCredential(azauth.ConfigFromMap(configMap))
	if err != nil {
		return nil, err
	}
	return NewAppConfigStore(endpoint, cred, nil)
}

func (s *AppConfigStore) keyURL(key, label string) string {
	q := url.Values{"api-version": {appConfigAPIVersion}}
	if label != "" {
		q.Set("label", label)
	}
	return s.endpoint + "/kv/" + url.PathEscape(key) + "?" + q.Encode()
}

func (s *AppConfigStore) listURL(keyPrefix string, label *string) string {
	q := url.Values{"api-version": {appConfigAPIVersion}}
	if keyPrefix != "" {
		q.Set("key", keyPrefix+"*")
	}
	if label != nil {
		q.Set("label", *label)
	}
	return s.endpoint + "/kv?" + q.Encode()
}

// resolveLink turns a service next link, usually relative, into a URL on
// this endpoint.
func (s *AppConfigStore) resolveLink(link string) (string, error) {
	base, err := url.Parse(s.endpoint + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid continuation token: %w", err)
	}
	resolved := base.ResolveReference(ref)
	if resolved.Host != base.Host {
		return "", fmt.Errorf("continuation token points at %s, not %s", resolved.Host, base.Host)
	}
	return resolved.String(), nil
}

func (s *AppConfigStore) send(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	req, err := runtime.NewRequest(ctx, method, endpoint)
	if err != nil {
		return nil, err
	}
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return nil, err
		}
		req.Raw().Header.Set("Content-Type", mediaTypeKV)
	}
	return s.pipeline.Do(req)
}

// List reads existing settings, one listing per label.
func (s *AppConfigStore) List(ctx context.Context, sel Selector) (*planning.ExistingSnapshot, error) {
	labels := planning.NormalizeLabels(sel.Labels)
	filters := []*string{nil}
	if len(labels) > 0 {
		filters = make([]*string, 0, len(labels))
		for i := range labels {
			filters = append(filters, &labels[i])
		}
	}

	token := ""
	if len(labels) <= 1 {
		token = sel.ContinuationToken
	}

	snapshot := &planning.ExistingSnapshot{
		RetrievedAt: time.Now().UTC(),
		KeyPrefix:   sel.KeyPrefix,
		Labels:      labels,
		PageSize:    sel.PageSize,
	}
	for _, label := range filters {
		next := s.listURL(sel.KeyPrefix, label)
		if token != "" {
			resolved, err := s.resolveLink(token)
			if err != nil {
				return nil, err
			}
			next = resolved
		}

		for next != "" {
			page, err := s.listPage(ctx, next)
			if err != nil {
				return nil, dserrors.ProviderError(KindAzureAppConfig, "list settings", err)
			}
			for _, kv := range page.Items {
				snapshot.Entries = append(snapshot.Entries, existingEntry(kv))
			}
			token = page.NextLink
			next = ""
			if page.NextLink != "" {
				if next, err = s.resolveLink(page.NextLink); err != nil {
					return nil, err
				}
			}
		}
	}
	snapshot.ContinuationToken = token
	return snapshot, nil
}

func (s *AppConfigStore) listPage(ctx context.Context, endpoint string) (keyValuePage, error) {
	var page keyValuePage
	req, err := runtime.NewRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return page, err
	}
	req.Raw().Header.Set("Accept", mediaTypeKVSet)
	resp, err := s.pipeline.Do(req)
	if err != nil {
		return page, err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return page, runtime.NewResponseError(resp)
	}
	err = runtime.UnmarshalAsJSON(resp, &page)
	return page, err
}

func existingEntry(kv keyValue) planning.ExistingEntry {
	e := planning.ExistingEntry{Key: kv.Key, Tags: cloneTags(kv.Tags), LastModified: kv.LastModified}
	if kv.Label != nil {
		e.Label = *kv.Label
	}
	if kv.Value != nil {
		e.Value = *kv.Value
	}
	if kv.ContentType != nil {
		e.ContentType = *kv.ContentType
	}
	return e
}

// GetTags returns an entry's tags, nil when it does not exist.
func (s *AppConfigStore) GetTags(ctx context.Context, key, label string) (map[string]string, error) {
	resp, err := s.send(ctx, http.MethodGet, s.keyURL(key, label), nil)
	if err != nil {
		return nil, err
	}
	if runtime.HasStatusCode(resp, http.StatusNotFound) {
		return nil, nil
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, runtime.NewResponseError(resp)
	}
	var kv keyValue
	if err := runtime.UnmarshalAsJSON(resp, &kv); err != nil {
		return nil, err
	}
	return cloneTags(kv.Tags), nil
}

// Upsert writes value, content type and tags in one request.
func (s *AppConfigStore) Upsert(ctx context.Context, setting writes.Setting) error {
	tags := setting.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	resp, err := s.send(ctx, http.MethodPut, s.keyURL(setting.Key, setting.Label), putBody{
		Value:       setting.Value,
		ContentType: setting.ContentType,
		Tags:        tags,
	})
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return runtime.NewResponseError(resp)
	}
	return nil
}

// Delete removes an entry. A missing entry is not an error.
func (s *AppConfigStore) Delete(ctx context.Context, key, label string) error {
	resp, err := s.send(ctx, http.MethodDelete, s.keyURL(key, label), nil)
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusNoContent, http.StatusNotFound) {
		return runtime.NewResponseError(resp)
	}
	return nil
}
