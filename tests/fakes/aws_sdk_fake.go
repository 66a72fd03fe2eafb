package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager.
type FakeSecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors returned by GetSecretValue
	Errors map[string]error
	// ListErrors are returned, one per call, before ListSecrets succeeds
	ListErrors []error
	// PageSize caps ListSecrets pages when MaxResults is unset
	PageSize int

	ListCalls int
	GetCalls  int
}

// SecretData holds the data for a fake secret
type SecretData struct {
	SecretString    *string
	SecretBinary    []byte
	VersionId       *string
	LastChangedDate *time.Time
	DeletedDate     *time.Time
	Tags            map[string]string
}

// NewFakeSecretsManagerClient creates an empty fake client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*SecretData),
		Errors:  make(map[string]error),
	}
}

// AddSecret adds a secret
func (f *FakeSecretsManagerClient) AddSecret(name string, data *SecretData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = data
}

// AddSecretString adds a string secret with a generated version id
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.AddSecret(name, &SecretData{
		SecretString: aws.String(value),
		VersionId:    aws.String("v" + strconv.Itoa(len(f.Secrets)+1)),
	})
}

// AddSecretBinary adds a binary secret
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.AddSecret(name, &SecretData{
		SecretBinary: value,
		VersionId:    aws.String("v" + strconv.Itoa(len(f.Secrets)+1)),
	})
}

// AddError makes GetSecretValue fail for name
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func secretARN(name string) *string {
	return aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name))
}

// ListSecrets pages through secrets sorted by name. NextToken is the offset
// of the next page.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.ListErrors) > 0 {
		err := f.ListErrors[0]
		f.ListErrors = f.ListErrors[1:]
		return nil, err
	}

	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if token := aws.ToString(params.NextToken); token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 || n > len(names) {
			return nil, &types.InvalidNextTokenException{Message: aws.String("invalid next token")}
		}
		start = n
	}
	size := len(names)
	if params.MaxResults != nil && *params.MaxResults > 0 {
		size = int(*params.MaxResults)
	} else if f.PageSize > 0 {
		size = f.PageSize
	}
	end := min(start+size, len(names))

	out := &secretsmanager.ListSecretsOutput{}
	for _, name := range names[start:end] {
		data := f.Secrets[name]
		entry := types.SecretListEntry{
			ARN:             secretARN(name),
			Name:            aws.String(name),
			LastChangedDate: data.LastChangedDate,
			DeletedDate:     data.DeletedDate,
		}
		if data.VersionId != nil {
			entry.SecretVersionsToStages = map[string][]string{*data.VersionId: {"AWSCURRENT"}}
		}
		for k, v := range data.Tags {
			entry.Tags = append(entry.Tags, types.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		out.SecretList = append(out.SecretList, entry)
	}
	if end < len(names) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// GetSecretValue returns the stored secret. A VersionId that does not match
// the stored one is reported as not found.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secretName := aws.ToString(params.SecretId)
	if err, exists := f.Errors[secretName]; exists {
		return nil, err
	}

	data, exists := f.Secrets[secretName]
	if !exists || (params.VersionId != nil && aws.ToString(data.VersionId) != *params.VersionId) {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", secretName)),
		}
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:          secretARN(secretName),
		Name:         params.SecretId,
		SecretString: data.SecretString,
		SecretBinary: data.SecretBinary,
		VersionId:    data.VersionId,
	}, nil
}

// AWSThrottlingError creates a throttling API error
func AWSThrottlingError() error {
	return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
}

// AWSAccessDeniedError creates an access denied API error
func AWSAccessDeniedError() error {
	return &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
}
