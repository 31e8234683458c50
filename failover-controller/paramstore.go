package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Error codes that mean the caller may not read or decrypt a parameter.
var accessDeniedCodes = map[string]bool{
	"AccessDeniedException":    true,
	"AccessDenied":             true,
	"KMSAccessDeniedException": true,
}

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore is a ConfigSource backed by SSM Parameter Store. Keys are
// resolved under a fixed prefix, e.g. /SparkApp/prod/primary-db-identifier.
type ParameterStore struct {
	client  ssmAPI
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewParameterStore(cfg aws.Config, prefix string, timeout time.Duration, logger *zap.Logger) *ParameterStore {
	return &ParameterStore{
		client:  ssm.NewFromConfig(cfg),
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *ParameterStore) name(key string) string {
	return strings.TrimRight(p.prefix, "/") + "/" + key
}

func (p *ParameterStore) GetValue(ctx context.Context, key string, decrypt bool) (string, error) {
	ctx, cancel := withCallTimeout(ctx, p.timeout)
	defer cancel()

	name := p.name(key)
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		return "", classifySSMError(name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("get parameter %s: %w", name, ErrParameterNotFound)
	}

	// Never log the value: decrypted parameters are secrets.
	p.logger.Debug("Fetched parameter", zap.String("name", name), zap.Bool("decrypted", decrypt))
	return aws.ToString(out.Parameter.Value), nil
}

func classifySSMError(name string, err error) error {
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("get parameter %s: %w: %w", name, ErrParameterNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && accessDeniedCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("get parameter %s: %w: %w", name, ErrAccessDenied, err)
	}
	return fmt.Errorf("get parameter %s: %w", name, err)
}
