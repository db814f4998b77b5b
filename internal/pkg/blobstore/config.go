package blobstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vitrine-app/vitrine/internal/pkg/env"
)

// Config holds object storage configuration for product images.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Base URL under which stored objects are served
	Enabled         bool
}

// LoadConfig loads object storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   strings.TrimRight(env.GetEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		Enabled:         env.GetEnv("S3_UPLOADS_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when uploads are enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when uploads are enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when uploads are enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if image uploads are enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// PublicURL returns the public URL an object is served under.
func (c *Config) PublicURL(objectKey string) string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL + "/" + objectKey
	}
	if c.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.EndpointURL, "/"), c.BucketName, objectKey)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.BucketName, c.Region, objectKey)
}

// ObjectKeyFromURL maps a public URL back to its object key, returning false
// when the URL does not point into this store.
func (c *Config) ObjectKeyFromURL(rawURL string) (string, bool) {
	prefixes := []string{}
	if c.PublicBaseURL != "" {
		prefixes = append(prefixes, c.PublicBaseURL+"/")
	}
	if c.EndpointURL != "" {
		prefixes = append(prefixes, fmt.Sprintf("%s/%s/", strings.TrimRight(c.EndpointURL, "/"), c.BucketName))
	}
	prefixes = append(prefixes, fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", c.BucketName, c.Region))

	for _, prefix := range prefixes {
		if strings.HasPrefix(rawURL, prefix) {
			key := strings.TrimPrefix(rawURL, prefix)
			if key != "" {
				return key, true
			}
		}
	}
	return "", false
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}
