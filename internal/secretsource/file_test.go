package secretsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileSourceFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "list of names", content: "- db-password\n- api-key\n", want: []string{"db-password", "api-key"}},
		{
			name: "secrets document",
			content: `secrets:
  - name: db-password
    version: v2
    value: hunter2
  - name: api-key
`,
			want: []string{"db-password", "api-key"},
		},
		{name: "json list", content: `["one","two"]`, want: []string{"one", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src, err := LoadFileSource(writeDoc(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Names())
		})
	}
}

func TestLoadFileSourceErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "source.path", cfgErr.Field)

	_, err = LoadFileSource(writeDoc(t, "secrets:\n  - version: v1\n"))
	var userErr dserrors.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Contains(t, userErr.Details, "name is required")

	_, err = NewFileSource(map[string]interface{}{})
	require.True(t, errors.As(err, &cfgErr))
}

func TestFileSourcePagingAndValues(t *testing.T) {
	t.Parallel()

	src, err := LoadFileSource(writeDoc(t, `secrets:
  - name: a
    value: one
  - name: b
    enabled: false
    value: two
  - name: c
    version: v3
    value: three
`))
	require.NoError(t, err)
	ctx := context.Background()

	page, err := src.List(ctx, Filter{}, PageRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.False(t, page.Items[1].Enabled)
	assert.Equal(t, "2", page.ContinuationToken)

	page, err = src.List(ctx, Filter{}, PageRequest{PageSize: 2, ContinuationToken: page.ContinuationToken})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c", page.Items[0].Name)
	assert.Empty(t, page.ContinuationToken)

	_, err = src.List(ctx, Filter{}, PageRequest{ContinuationToken: "x"})
	assert.Error(t, err)

	v, err := src.GetValue(ctx, "C", "latest")
	require.NoError(t, err)
	assert.Equal(t, "three", v.Value)

	_, err = src.GetValue(ctx, "c", "v1")
	assert.Error(t, err)
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	assert.Equal(t, retryBaseDelay, retryDelay(1))
	assert.Equal(t, 2*retryBaseDelay, retryDelay(2))
	assert.Equal(t, retryMaxDelay, retryDelay(10))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Equal(t, []string{KindAWSSecretsManager, KindAzureKeyVault, KindFile, KindGCPSecretManager}, r.Kinds())
	assert.True(t, r.Has("Azure.KeyVault"))
	assert.False(t, r.Has("vault"))

	_, err := r.Create(context.Background(), "vault", nil)
	assert.ErrorContains(t, err, "unknown source type")

	path := writeDoc(t, "- a\n")
	src, err := r.Create(context.Background(), "FILE", map[string]interface{}{"path": path})
	require.NoError(t, err)
	assert.Equal(t, KindFile, src.Name())
}
