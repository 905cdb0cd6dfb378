package mysql

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
)

// IAMToken builds an RDS IAM authentication token for cfg's endpoint and user
// using the default AWS credential chain. Tokens are valid for 15 minutes,
// which is only needed to establish the connection.
func IAMToken(ctx context.Context, cfg ConnectionConfig, region string) (string, error) {
	if region == "" {
		return "", fmt.Errorf("--rds-region is required with --rds-iam")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	return buildIAMToken(ctx, cfg, region, awsCfg.Credentials)
}

func buildIAMToken(ctx context.Context, cfg ConnectionConfig, region string, creds aws.CredentialsProvider) (string, error) {
	if cfg.Socket != "" {
		return "", fmt.Errorf("RDS IAM authentication requires a TCP host, not a socket")
	}
	token, err := auth.BuildAuthToken(ctx, cfg.Addr(), region, cfg.User, creds)
	if err != nil {
		return "", fmt.Errorf("failed to build auth token: %w", err)
	}
	return token, nil
}

// WithIAMToken returns cfg prepared for token authentication: the token
// becomes the password, and TLS and cleartext auth are turned on as RDS requires.
func WithIAMToken(cfg ConnectionConfig, token string) ConnectionConfig {
	cfg.Password = token
	cfg.AllowCleartext = true
	if cfg.TLSMode == "" || cfg.TLSMode == "disabled" || cfg.TLSMode == "preferred" {
		cfg.TLSMode = "required"
	}
	return cfg
}
