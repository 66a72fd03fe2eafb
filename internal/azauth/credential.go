// Package azauth builds Azure token credentials for the Key Vault source and
// the App Configuration target.
package azauth

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Method names how a credential is obtained.
type Method string

const (
	MethodDefault         Method = "default"
	MethodManagedIdentity Method = "managed-identity"
	MethodClientSecret    Method = "client-secret"
	MethodAzureCLI        Method = "azure-cli"
)

// Config holds Azure authentication settings.
type Config struct {
	Method         Method
	TenantID       string
	ClientID       string
	ClientSecret   string
	UserAssignedID string // user-assigned managed identity client id
}

// ConfigFromMap reads tenant_id, client_id, client_secret,
// user_assigned_identity_id, use_managed_identity and auth_method.
func ConfigFromMap(m map[string]interface{}) Config {
	cfg := Config{Method: MethodDefault}
	if v, ok := m["tenant_id"].(string); ok {
		cfg.TenantID = v
	}
	if v, ok := m["client_id"].(string); ok {
		cfg.ClientID = v
	}
	if v, ok := m["client_secret"].(string); ok {
		cfg.ClientSecret = v
	}
	if v, ok := m["user_assigned_identity_id"].(string); ok {
		cfg.UserAssignedID = v
	}
	if cfg.ClientSecret != "" {
		cfg.Method = MethodClientSecret
	}
	if v, ok := m["use_managed_identity"].(bool); ok && v {
		cfg.Method = MethodManagedIdentity
	}
	if v, ok := m["auth_method"].(string); ok && strings.TrimSpace(v) != "" {
		cfg.Method = Method(strings.ToLower(strings.TrimSpace(v)))
	}
	return cfg
}

// Describe returns a log-safe summary of the credential choice.
func (c Config) Describe() string {
	switch c.Method {
	case MethodManagedIdentity:
		if c.UserAssignedID != "" {
			return "managed identity (user-assigned)"
		}
		return "managed identity (system-assigned)"
	case MethodClientSecret:
		return "service principal " + c.ClientID
	case MethodAzureCLI:
		return "azure cli"
	}
	return "default azure credential chain"
}

// NewCredential creates the token credential selected by cfg.
func NewCredential(cfg Config) (azcore.TokenCredential, error) {
	var (
		cred azcore.TokenCredential
		err  error
	)

	switch cfg.Method {
	case MethodManagedIdentity:
		var opts *azidentity.ManagedIdentityCredentialOptions
		if cfg.UserAssignedID != "" {
			opts = &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(cfg.UserAssignedID)}
		}
		cred, err = azidentity.NewManagedIdentityCredential(opts)
	case MethodClientSecret:
		if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("client-secret authentication needs tenant_id, client_id and client_secret")
		}
		cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	case MethodAzureCLI:
		var opts *azidentity.AzureCLICredentialOptions
		if cfg.TenantID != "" {
			opts = &azidentity.AzureCLICredentialOptions{TenantID: cfg.TenantID}
		}
		cred, err = azidentity.NewAzureCLICredential(opts)
	case MethodDefault, "":
		var opts *azidentity.DefaultAzureCredentialOptions
		if cfg.TenantID != "" {
			opts = &azidentity.DefaultAzureCredentialOptions{TenantID: cfg.TenantID}
		}
		cred, err = azidentity.NewDefaultAzureCredential(opts)
	default:
		return nil, fmt.Errorf("unknown azure auth method %q", cfg.Method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return cred, nil
}
