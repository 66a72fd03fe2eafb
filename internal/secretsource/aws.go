package secretsource

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// KindAWSSecretsManager is the source type name for AWS Secrets Manager.
const KindAWSSecretsManager = "aws-secretsmanager"

const awsCurrentStage = "AWSCURRENT"

// SecretsManagerClient is the subset of *secretsmanager.Client used here.
type SecretsManagerClient interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerSource lists secrets in one region.
type AWSSecretsManagerSource struct {
	client SecretsManagerClient
	region string
}

// AWSOption configures an AWSSecretsManagerSource.
type AWSOption func(*AWSSecretsManagerSource)

// WithSecretsManagerClient replaces the SDK client.
func WithSecretsManagerClient(client SecretsManagerClient) AWSOption {
	return func(s *AWSSecretsManagerSource) { s.client = client }
}

// NewAWSSecretsManagerSource reads region, endpoint, access_key_id and
// secret_access_key from configMap.
func NewAWSSecretsManagerSource(ctx context.Context, configMap map[string]interface{}, opts ...AWSOption) (*AWSSecretsManagerSource, error) {
	region := "us-east-1"
	if r, ok := configMap["region"].(string); ok && r != "" {
		region = r
	}
	endpoint, _ := configMap["endpoint"].(string)
	accessKeyID, _ := configMap["access_key_id"].(string)
	secretAccessKey, _ := configMap["secret_access_key"].(string)

	s := &AWSSecretsManagerSource{region: region}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		configOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}
		cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}
	return s, nil
}

// Name returns the source type.
func (s *AWSSecretsManagerSource) Name() string { return KindAWSSecretsManager }

// List fetches one page of ListSecrets. Name matching in Secrets Manager
// is case-sensitive, so the filter is applied by the caller.
func (s *AWSSecretsManagerSource) List(ctx context.Context, _ Filter, req PageRequest) (Page, error) {
	input := &secretsmanager.ListSecretsInput{}
	if req.PageSize > 0 {
		input.MaxResults = aws.Int32(int32(min(req.PageSize, 100)))
	}
	if req.ContinuationToken != "" {
		input.NextToken = aws.String(req.ContinuationToken)
	}

	out, err := s.client.ListSecrets(ctx, input)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: make([]Descriptor, 0, len(out.SecretList))}
	for _, entry := range out.SecretList {
		if entry.DeletedDate != nil {
			continue
		}
		page.Items = append(page.Items, describeAWS(entry))
	}
	page.ContinuationToken = aws.ToString(out.NextToken)
	return page, nil
}

func describeAWS(entry types.SecretListEntry) Descriptor {
	d := Descriptor{
		Name:    aws.ToString(entry.Name),
		ID:      aws.ToString(entry.ARN),
		Enabled: true,
	}
	for version, stages := range entry.SecretVersionsToStages {
		for _, stage := range stages {
			if stage == awsCurrentStage {
				d.Version = version
			}
		}
	}
	if entry.LastChangedDate != nil {
		d.Updated = entry.LastChangedDate.UTC()
	}
	if len(entry.Tags) > 0 {
		d.Tags = make(map[string]string, len(entry.Tags))
		for _, tag := range entry.Tags {
			d.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	return d
}

// GetValue reads a secret value. Binary secrets are returned as raw bytes
// in a string.
func (s *AWSSecretsManagerSource) GetValue(ctx context.Context, name, version string) (Value, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)}
	if version != "" && version != "latest" {
		input.VersionId = aws.String(version)
	}
	out, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		return Value{}, dserrors.ProviderError(KindAWSSecretsManager, "get secret", err)
	}

	v := Value{ID: aws.ToString(out.ARN)}
	switch {
	case out.SecretString != nil:
		v.Value = *out.SecretString
	case out.SecretBinary != nil:
		v.Value = string(out.SecretBinary)
		v.ContentType = "application/octet-stream"
	}
	return v, nil
}
