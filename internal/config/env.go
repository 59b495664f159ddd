package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// SecretsClient is the subset of the secrets manager API used to load
// environment variables.
type SecretsClient interface {
	GetSecretValue(
		ctx context.Context,
		input *secretsmanager.GetSecretValueInput,
		opts ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadEnv pulls secrets from AWS Secrets Manager when a secret id is set and
// then loads the .env file at defaultEnvPath, or ENV_FILE_PATH if set.
// Variables already present in the environment are never overwritten by the
// .env file.
func LoadEnv(ctx context.Context, defaultEnvPath string) {
	secretID := os.Getenv("AWS_SECRETS_MANAGER_SECRET_ID")
	if secretID != "" {
		cfg, err := loadAWSConfig(ctx, os.Getenv("AWS_SECRETS_MANAGER_REGION"))
		if err != nil {
			slog.Warn("skipping aws secrets manager", slog.String("error", err.Error()))
		} else {
			overwrite := strings.EqualFold(os.Getenv("AWS_SECRETS_MANAGER_OVERWRITE"), "true")
			n, err := LoadSecrets(ctx, secretsmanager.NewFromConfig(cfg), secretID, overwrite)
			if err != nil {
				slog.Warn("skipping aws secrets manager", slog.String("error", err.Error()))
			} else {
				slog.Info("loaded env vars from aws secrets manager",
					slog.String("secret_id", secretID), slog.Int("count", n))
			}
		}
	}

	envFile := getEnvOrDefault("ENV_FILE_PATH", defaultEnvPath)
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("no .env file loaded", slog.String("path", envFile))
	}
}

// LoadSecrets reads a JSON object secret and exports each of its keys as an
// environment variable. It returns how many variables were set.
func LoadSecrets(ctx context.Context, client SecretsClient, secretID string, overwrite bool) (int, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(getEnvOrDefault("AWS_SECRETS_MANAGER_VERSION_STAGE", "AWSCURRENT")),
	}
	output, err := client.GetSecretValue(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("could not fetch the secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case output.SecretString != nil:
		payload = *output.SecretString
	case len(output.SecretBinary) != 0:
		payload = string(output.SecretBinary)
	default:
		return 0, fmt.Errorf("the secret %s has no payload", secretID)
	}

	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err != nil {
		return 0, fmt.Errorf("the secret %s is not a json object: %w", secretID, err)
	}

	applied := 0
	for key, value := range kv {
		if !overwrite && os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(value)); err != nil {
			return applied, fmt.Errorf("could not set %s: %w", key, err)
		}
		applied++
	}
	return applied, nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if region != "" {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx)
}
