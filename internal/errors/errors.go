package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/smithy-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Exit codes returned by the kv2appconfig binary
const (
	ExitSuccess        = 0
	ExitChanges        = 1
	ExitPartialFailure = 2
	ExitFatal          = 3
)

// ErrInvalidArgument marks programming errors such as a nil specification
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgument wraps ErrInvalidArgument with the offending parameter name
func InvalidArgument(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ExitError carries a process exit code out of a command. A nil Err means
// the command already reported its outcome and only the code matters.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// WithExitCode attaches an exit code to err
func WithExitCode(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFatal
}

// ProviderError enhances backend-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	suggestion := getProviderSuggestion(provider, err)

	return UserError{
		Message:    fmt.Sprintf("%s error during %s", provider, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "azure-keyvault":
		if code := statusCode(err); code == http.StatusUnauthorized {
			return "Authenticate with 'az login' or set AZURE_CLIENT_ID, AZURE_TENANT_ID and AZURE_CLIENT_SECRET"
		} else if code == http.StatusForbidden {
			return "Grant the identity 'list' and 'get' secret permissions on the vault"
		} else if code == http.StatusNotFound {
			return "Verify the vault URL (https://<vault-name>.vault.azure.net/) and secret name"
		}
		if strings.Contains(errStr, "no such host") {
			return "Verify the vault name in the vault URL"
		}

	case "azure-appconfig":
		if code := statusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
			return "Assign the 'App Configuration Data Owner' role to the identity on the store"
		} else if code == http.StatusConflict || code == http.StatusPreconditionFailed {
			return "The setting is locked or was modified concurrently. Re-run plan and apply"
		}
		if strings.Contains(errStr, "no such host") {
			return "Verify the endpoint (https://<store-name>.azconfig.io)"
		}

	case "aws-secretsmanager":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:ListSecrets and secretsmanager:GetSecretValue"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "gcp-secretmanager":
		switch status.Code(err) {
		case codes.PermissionDenied:
			return "Grant roles/secretmanager.secretAccessor and roles/secretmanager.viewer to the identity"
		case codes.NotFound:
			return "Verify the project_id and secret name"
		case codes.Unauthenticated:
			return "Run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and endpoint configuration"
	}

	return ""
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// IsRetryable reports whether an error is transient: throttling, service
// unavailability or a network timeout.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch statusCode(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceUnavailable":
			return true
		}
	}

	switch status.Code(err) {
	case codes.ResourceExhausted, codes.Unavailable:
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}
	if _, ok := err.(ExitError); ok {
		return err
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") || strings.Contains(errStr, "invalid character") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate the document with 'jq . <file>'",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
