package configstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/pkg/writes"
)

type staticCredential struct{}

func (staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
	CType  string
}

// scriptedTransport answers requests in order and records them.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []recordedRequest
}

type scriptedResponse struct {
	status int
	body   string
}

func (s *scriptedTransport) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := recordedRequest{
		Method: req.Method,
		Path:   req.URL.EscapedPath(),
		Query:  req.URL.RawQuery,
		Auth:   req.Header.Get("Authorization"),
		CType:  req.Header.Get("Content-Type"),
	}
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		rec.Body = string(data)
	}
	s.requests = append(s.requests, rec)

	if len(s.responses) == 0 {
		return nil, errors.New("unexpected request " + req.Method + " " + req.URL.String())
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return &http.Response{
		StatusCode: next.status,
		Status:     http.StatusText(next.status),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(next.body)),
		Request:    req,
	}, nil
}

func newTestAppConfig(t *testing.T, responses ...scriptedResponse) (*AppConfigStore, *scriptedTransport) {
	t.Helper()
	transport := &scriptedTransport{responses: responses}
	store, err := NewAppConfigStore("https://store.azconfig.io/", staticCredential{}, &AppConfigOptions{
		ClientOptions: &policy.ClientOptions{
			Transport: transport,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	})
	require.NoError(t, err)
	return store, transport
}

func TestNewAppConfigStoreValidation(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "http://store.azconfig.io", "store.azconfig.io"} {
		_, err := NewAppConfigStore(endpoint, staticCredential{}, nil)
		var cfgErr dserrors.ConfigError
		assert.True(t, errors.As(err, &cfgErr), endpoint)
	}

	_, err := NewAppConfigStore("https://store.azconfig.io", nil, nil)
	assert.ErrorIs(t, err, dserrors.ErrInvalidArgument)

	_, err = NewAppConfigStoreFromMap(map[string]interface{}{})
	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "target.endpoint", cfgErr.Field)
}

func TestAppConfigListFollowsNextLink(t *testing.T) {
	t.Parallel()

	store, transport := newTestAppConfig(t,
		scriptedResponse{status: http.StatusOK, body: `{"items":[{"key":"app:a","label":"prod","value":"1","content_type":"text/plain","tags":{"owner":"x"}}],"@nextLink":"/kv?api-version=1.0&key=app%3A%2A&label=prod&after=YXBwOmE="}`},
		scriptedResponse{status: http.StatusOK, body: `{"items":[{"key":"app:b","label":"prod","value":"2","last_modified":"2026-03-01T10:00:00Z"}]}`},
	)

	snap, err := store.List(context.Background(), Selector{KeyPrefix: "app:", Labels: []string{"prod"}})
	require.NoError(t, err)

	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "app:a", snap.Entries[0].Key)
	assert.Equal(t, "prod", snap.Entries[0].Label)
	assert.Equal(t, "text/plain", snap.Entries[0].ContentType)
	assert.Equal(t, map[string]string{"owner": "x"}, snap.Entries[0].Tags)
	require.NotNil(t, snap.Entries[1].LastModified)
	assert.Empty(t, snap.ContinuationToken)

	require.Len(t, transport.requests, 2)
	first := transport.requests[0]
	assert.Equal(t, http.MethodGet, first.Method)
	assert.Equal(t, "/kv", first.Path)
	assert.Contains(t, first.Query, "key=app%3A%2A")
	assert.Contains(t, first.Query, "label=prod")
	assert.Equal(t, "Bearer token", first.Auth)
	assert.Contains(t, transport.requests[1].Query, "after=YXBwOmE=")
}

func TestAppConfigListOneRequestPerLabel(t *testing.T) {
	t.Parallel()

	store, transport := newTestAppConfig(t,
		scriptedResponse{status: http.StatusOK, body: `{"items":[{"key":"k","label":"dev","value":"1"}]}`},
		scriptedResponse{status: http.StatusOK, body: `{"items":[{"key":"k","label":"prod","value":"2"}]}`},
	)

	snap, err := store.List(context.Background(), Selector{Labels: []string{"prod", "dev", "PROD"}, ContinuationToken: "ignored"})
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
	assert.Equal(t, []string{"dev", "prod"}, snap.Labels)
	require.Len(t, transport.requests, 2)
	assert.NotContains(t, transport.requests[0].Query, "key=")
}

func TestAppConfigListRejectsForeignToken(t *testing.T) {
	t.Parallel()

	store, _ := newTestAppConfig(t)
	_, err := store.List(context.Background(), Selector{ContinuationToken: "https://evil.example.com/kv?after=x"})
	assert.ErrorContains(t, err, "continuation token")
}

func TestAppConfigListError(t *testing.T) {
	t.Parallel()

	store, _ := newTestAppConfig(t, scriptedResponse{status: http.StatusForbidden, body: `{"title":"Forbidden"}`})
	_, err := store.List(context.Background(), Selector{})
	require.Error(t, err)

	var respErr *azcore.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusForbidden, respErr.StatusCode)
}

func TestAppConfigUpsert(t *testing.T) {
	t.Parallel()

	store, transport := newTestAppConfig(t, scriptedResponse{status: http.StatusOK, body: `{}`})
	err := store.Upsert(context.Background(), writes.Setting{
		Key:         "app/db password",
		Label:       "prod",
		Value:       "v",
		ContentType: "text/plain",
		Tags:        map[string]string{"managedBy": "kv2appconfig"},
	})
	require.NoError(t, err)

	req := transport.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/kv/app%2Fdb%20password", req.Path)
	assert.Contains(t, req.Query, "label=prod")
	assert.Equal(t, mediaTypeKV, req.CType)
	assert.JSONEq(t, `{"value":"v","content_type":"text/plain","tags":{"managedBy":"kv2appconfig"}}`, req.Body)
}

func TestAppConfigUpsertFailure(t *testing.T) {
	t.Parallel()

	store, _ := newTestAppConfig(t, scriptedResponse{status: http.StatusConflict, body: `{}`})
	err := store.Upsert(context.Background(), writes.Setting{Key: "locked"})
	var respErr *azcore.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusConflict, respErr.StatusCode)
}

func TestAppConfigGetTags(t *testing.T) {
	t.Parallel()

	store, transport := newTestAppConfig(t,
		scriptedResponse{status: http.StatusOK, body: `{"key":"k","tags":{"a":"1"}}`},
		scriptedResponse{status: http.StatusNotFound, body: `{}`},
	)
	ctx := context.Background()

	tags, err := store.GetTags(ctx, "k", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, tags)
	assert.NotContains(t, transport.requests[0].Query, "label=")

	tags, err = store.GetTags(ctx, "missing", "prod")
	require.NoError(t, err)
	assert.Nil(t, tags)
}

func TestAppConfigDelete(t *testing.T) {
	t.Parallel()

	store, transport := newTestAppConfig(t,
		scriptedResponse{status: http.StatusOK, body: `{}`},
		scriptedResponse{status: http.StatusNoContent},
		scriptedResponse{status: http.StatusInternalServerError, body: `{}`},
	)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "k", "prod"))
	require.NoError(t, store.Delete(ctx, "gone", ""))
	assert.Error(t, store.Delete(ctx, "k", "prod"))
	assert.Equal(t, http.MethodDelete, transport.requests[0].Method)
}
