package secretsource

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// KindFile is the source type name for a local secrets document.
const KindFile = "file"

// FileSecret is one entry of a secrets document.
type FileSecret struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Enabled     *bool             `yaml:"enabled"`
	Tags        map[string]string `yaml:"tags"`
	ContentType string            `yaml:"contentType"`
	ID          string            `yaml:"id"`
	Value       string            `yaml:"value"`
}

type fileDocument struct {
	Secrets []FileSecret `yaml:"secrets"`
}

// FileSource serves secrets from a YAML or JSON document, either
// {secrets: [{name, version, enabled, tags, contentType, id, value}]} or a
// bare list of names. Names keep document order.
type FileSource struct {
	path    string
	secrets []FileSecret
}

// NewFileSource reads configMap["path"].
func NewFileSource(configMap map[string]interface{}) (*FileSource, error) {
	path, _ := configMap["path"].(string)
	if strings.TrimSpace(path) == "" {
		return nil, dserrors.ConfigError{
			Field:      "source.path",
			Message:    "path is required for the file source",
			Suggestion: "Point source.path at a secrets document",
		}
	}
	return LoadFileSource(path)
}

// LoadFileSource parses the document at path.
func LoadFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				Field:      "source.path",
				Value:      path,
				Message:    "secrets document not found",
				Suggestion: "Check the --source-path value",
			}
		}
		return nil, dserrors.UserError{Message: "Failed to read secrets document", Details: path, Err: err}
	}
	secrets, err := parseFileSecrets(data)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Invalid secrets document",
			Details:    err.Error(),
			Suggestion: "Use {secrets: [{name: ...}]} or a list of names",
			Err:        err,
		}
	}
	return &FileSource{path: path, secrets: secrets}, nil
}

func parseFileSecrets(data []byte) ([]FileSecret, error) {
	var names []string
	if err := yaml.Unmarshal(data, &names); err == nil {
		secrets := make([]FileSecret, 0, len(names))
		for _, n := range names {
			secrets = append(secrets, FileSecret{Name: n})
		}
		return secrets, nil
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for i, s := range doc.Secrets {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("secrets[%d]: name is required", i)
		}
	}
	return doc.Secrets, nil
}

// Names returns the secret names in document order.
func (s *FileSource) Names() []string {
	names := make([]string, 0, len(s.secrets))
	for _, secret := range s.secrets {
		names = append(names, secret.Name)
	}
	return names
}

// Name returns the source type.
func (s *FileSource) Name() string { return KindFile }

// List pages through the document. The continuation token is an offset.
func (s *FileSource) List(ctx context.Context, _ Filter, req PageRequest) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	start := 0
	if req.ContinuationToken != "" {
		n, err := strconv.Atoi(req.ContinuationToken)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid continuation token %q", req.ContinuationToken)
		}
		start = n
	}
	if start > len(s.secrets) {
		start = len(s.secrets)
	}
	end := len(s.secrets)
	if req.PageSize > 0 && start+req.PageSize < end {
		end = start + req.PageSize
	}

	page := Page{Items: make([]Descriptor, 0, end-start)}
	for _, secret := range s.secrets[start:end] {
		d := Descriptor{
			Name:        secret.Name,
			Version:     secret.Version,
			Enabled:     secret.Enabled == nil || *secret.Enabled,
			Tags:        secret.Tags,
			ContentType: secret.ContentType,
			ID:          secret.ID,
		}
		page.Items = append(page.Items, d)
	}
	if end < len(s.secrets) {
		page.ContinuationToken = strconv.Itoa(end)
	}
	return page, nil
}

// GetValue returns the stored value of the first secret with that name.
func (s *FileSource) GetValue(_ context.Context, name, version string) (Value, error) {
	for _, secret := range s.secrets {
		if !strings.EqualFold(secret.Name, name) {
			continue
		}
		if version != "" && version != "latest" && secret.Version != "" && secret.Version != version {
			continue
		}
		return Value{Value: secret.Value, ContentType: secret.ContentType, ID: secret.ID}, nil
	}
	return Value{}, fmt.Errorf("secret %q not found in %s", name, s.path)
}
