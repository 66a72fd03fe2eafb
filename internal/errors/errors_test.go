package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jejernig/keyvault-to-appconfig/internal/errors"
	"github.com/jejernig/keyvault-to-appconfig/internal/logging"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "writes.max_parallelism",
		Value:      0,
		Message:    "must be at least 1",
		Suggestion: "Set writes.max_parallelism to a positive integer",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "writes.max_parallelism")
	assert.Contains(t, errMsg, "(value: 0)")
	assert.Contains(t, errMsg, "must be at least 1")
	assert.Contains(t, errMsg, "positive integer")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil is success", err: nil, expected: errors.ExitSuccess},
		{name: "plain error is fatal", err: fmt.Errorf("boom"), expected: errors.ExitFatal},
		{name: "exit error carries code", err: errors.WithExitCode(errors.ExitPartialFailure, nil), expected: errors.ExitPartialFailure},
		{name: "wrapped exit error", err: fmt.Errorf("apply: %w", errors.WithExitCode(errors.ExitChanges, nil)), expected: errors.ExitChanges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errors.ExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exit status 2", errors.ExitError{Code: 2}.Error())

	inner := fmt.Errorf("validation failed")
	err := errors.WithExitCode(errors.ExitFatal, inner)
	assert.Equal(t, "validation failed", err.Error())
	assert.True(t, stderrors.Is(err, inner))
}

func TestInvalidArgument(t *testing.T) {
	t.Parallel()

	err := errors.InvalidArgument("specification")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "specification is required")
}

func TestProviderErrorWithSecretRedaction(t *testing.T) {
	t.Parallel()

	secretValue := logging.Secret("my-super-secret-password")
	baseErr := fmt.Errorf("authentication failed with password: %s", secretValue)

	err := errors.ProviderError("azure-keyvault", "list secrets", baseErr)

	errMsg := err.Error()
	assert.Contains(t, errMsg, "azure-keyvault error during list secrets")
	assert.NotContains(t, errMsg, "my-super-secret-password")

	var userErr errors.UserError
	require.True(t, stderrors.As(err, &userErr))
	assert.Contains(t, userErr.Err.Error(), "[REDACTED]")
}

func TestAzureProviderSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		provider   string
		err        error
		suggestion string
	}{
		{
			name:       "key vault unauthorized",
			provider:   "azure-keyvault",
			err:        &azcore.ResponseError{StatusCode: 401},
			suggestion: "az login",
		},
		{
			name:       "key vault forbidden",
			provider:   "azure-keyvault",
			err:        &azcore.ResponseError{StatusCode: 403},
			suggestion: "'list' and 'get' secret permissions",
		},
		{
			name:       "key vault not found",
			provider:   "azure-keyvault",
			err:        fmt.Errorf("get: %w", &azcore.ResponseError{StatusCode: 404}),
			suggestion: "vault.azure.net",
		},
		{
			name:       "app config forbidden",
			provider:   "azure-appconfig",
			err:        &azcore.ResponseError{StatusCode: 403},
			suggestion: "App Configuration Data Owner",
		},
		{
			name:       "app config locked",
			provider:   "azure-appconfig",
			err:        &azcore.ResponseError{StatusCode: 409},
			suggestion: "locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := errors.ProviderError(tt.provider, "operation", tt.err)
			assert.Contains(t, err.Error(), tt.suggestion)
		})
	}
}

func TestAWSProviderSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		errMsg     string
		suggestion string
	}{
		{name: "missing credentials", errMsg: "no valid credentials found", suggestion: "aws configure"},
		{name: "access denied", errMsg: "AccessDenied: not allowed", suggestion: "secretsmanager:ListSecrets"},
		{name: "resource not found", errMsg: "ResourceNotFoundException: nope", suggestion: "list-secrets"},
		{name: "throttling", errMsg: "ThrottlingException: slow down", suggestion: "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := errors.ProviderError("aws-secretsmanager", "list", fmt.Errorf("%s", tt.errMsg))
			assert.Contains(t, err.Error(), tt.suggestion)
		})
	}
}

func TestGCPProviderSuggestions(t *testing.T) {
	t.Parallel()

	err := errors.ProviderError("gcp-secretmanager", "list", status.Error(codes.PermissionDenied, "denied"))
	assert.Contains(t, err.Error(), "roles/secretmanager.secretAccessor")

	err = errors.ProviderError("gcp-secretmanager", "list", status.Error(codes.NotFound, "missing"))
	assert.Contains(t, err.Error(), "project_id")
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil", err: nil, retryable: false},
		{name: "azure 429", err: &azcore.ResponseError{StatusCode: 429}, retryable: true},
		{name: "azure 503 wrapped", err: fmt.Errorf("page: %w", &azcore.ResponseError{StatusCode: 503}), retryable: true},
		{name: "azure 404", err: &azcore.ResponseError{StatusCode: 404}, retryable: false},
		{name: "aws throttling", err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "x"}, retryable: true},
		{name: "aws access denied", err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "x"}, retryable: false},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "down"), retryable: true},
		{name: "grpc exhausted", err: status.Error(codes.ResourceExhausted, "quota"), retryable: true},
		{name: "timeout text", err: fmt.Errorf("i/o timeout"), retryable: true},
		{name: "permanent", err: fmt.Errorf("invalid key"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.retryable, errors.IsRetryable(tt.err))
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "yaml", err: fmt.Errorf("yaml: line 3: mapping values are not allowed"), contains: "Invalid YAML format"},
		{name: "json", err: fmt.Errorf("invalid character '}' looking for beginning of value"), contains: "Invalid JSON format"},
		{name: "permission", err: fmt.Errorf("open plan.json: permission denied"), contains: "Permission denied"},
		{name: "missing file", err: fmt.Errorf("open spec.yaml: no such file or directory"), contains: "File or directory not found"},
		{name: "other", err: fmt.Errorf("something else"), contains: "something else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Contains(t, errors.SimplifyError(tt.err).Error(), tt.contains)
		})
	}

	assert.Nil(t, errors.SimplifyError(nil))

	userErr := errors.UserError{Message: "already friendly"}
	assert.Equal(t, userErr, errors.SimplifyError(userErr))
}

func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	baseErr := fmt.Errorf("base error")
	userErr := errors.UserError{Message: "wrapped", Err: baseErr}

	assert.Equal(t, baseErr, stderrors.Unwrap(userErr))
}
