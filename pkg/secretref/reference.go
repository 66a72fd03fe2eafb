package secretref

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentTypeKeyVaultRef marks an App Configuration setting as a Key Vault
// reference.
const ContentTypeKeyVaultRef = "application/vnd.microsoft.appconfig.keyvaultref+json;charset=utf-8"

type referenceDocument struct {
	URI string `json:"uri"`
}

// ReferenceValue encodes the setting value for a Key Vault reference.
func ReferenceValue(secretURI string) (string, error) {
	if strings.TrimSpace(secretURI) == "" {
		return "", fmt.Errorf("reference: secret uri is empty")
	}
	data, err := json.Marshal(referenceDocument{URI: secretURI})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsReference reports whether contentType is the Key Vault reference type.
func IsReference(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	ref, _, _ := strings.Cut(ContentTypeKeyVaultRef, ";")
	return strings.EqualFold(strings.TrimSpace(base), ref)
}

// ParseReference extracts the secret URI from a reference value.
func ParseReference(value string) (string, error) {
	var doc referenceDocument
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return "", fmt.Errorf("reference: %w", err)
	}
	if doc.URI == "" {
		return "", fmt.Errorf("reference: missing uri")
	}
	return doc.URI, nil
}

// Materialize returns the value and content type written for one secret.
// In reference mode secretURI becomes a reference document; in copy mode
// the secret's own value and content type pass through.
func Materialize(mode Mode, secretURI, value, contentType string) (string, string, error) {
	if mode == ModeCopy {
		return value, contentType, nil
	}
	ref, err := ReferenceValue(secretURI)
	if err != nil {
		return "", "", err
	}
	return ref, ContentTypeKeyVaultRef, nil
}
