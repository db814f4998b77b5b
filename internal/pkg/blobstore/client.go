package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Store is the object storage boundary for product images.
type Store interface {
	Put(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, objectKey string) error
	Exists(ctx context.Context, objectKey string) (bool, error)
	URL(objectKey string) string
	KeyFromURL(rawURL string) (string, bool)
}

// Client wraps the S3 client for product image storage
type Client struct {
	s3Client *s3.Client
	config   *Config
}

var (
	globalStore Store
	setupOnce   sync.Once
)

// Setup initializes the shared store from the environment. When uploads are
// disabled it logs a warning and leaves the store nil; GetStore then returns
// nil and callers must treat uploads as unavailable.
func Setup() {
	setupOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			log.Fatalf("[BlobStore] Invalid object storage config: %v", err)
		}
		if !cfg.IsEnabled() {
			log.Warn("[BlobStore] Object storage disabled, image uploads unavailable")
			return
		}
		client, err := NewClient(cfg)
		if err != nil {
			log.Fatalf("[BlobStore] Object storage setup failed: %v", err)
		}
		globalStore = client
	})
}

// GetStore returns the shared store, or nil when uploads are disabled.
func GetStore() Store {
	return globalStore
}

// NewClient creates a new object storage client
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("image uploads are disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to object storage: %w", err)
	}

	log.Infof("[BlobStore] Successfully initialized client for bucket: %s", cfg.BucketName)
	return client, nil
}

// testConnection checks bucket accessibility, creating the bucket outside prod
func (c *Client) testConnection() error {
	ctx := context.Background()

	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})

	if err != nil {
		if GetAppEnv() != "prod" {
			log.Warnf("[BlobStore] Bucket %s not found, attempting to create it", c.config.BucketName)
			return c.createBucket(c.config.BucketName)
		}
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}

	return nil
}

func (c *Client) createBucket(bucketName string) error {
	ctx := context.Background()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	// AWS regions other than us-east-1 need the location constraint;
	// S3-compatible services don't
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}

	_, err := c.s3Client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	log.Infof("[BlobStore] Successfully created bucket: %s", bucketName)
	return nil
}

// Put stores an object and returns its public URL
func (c *Client) Put(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentTypeForExt(path.Ext(objectKey))
	}

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	log.Infof("[BlobStore] Successfully uploaded: s3://%s/%s (%d bytes)", c.config.BucketName, objectKey, size)
	return c.config.PublicURL(objectKey), nil
}

// Delete removes an object
func (c *Client) Delete(ctx context.Context, objectKey string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	log.Infof("[BlobStore] Successfully deleted: s3://%s/%s", c.config.BucketName, objectKey)
	return nil
}

// Exists checks if an object exists
func (c *Client) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// URL returns the public URL for an object key
func (c *Client) URL(objectKey string) string {
	return c.config.PublicURL(objectKey)
}

// KeyFromURL maps a public URL back to its object key
func (c *Client) KeyFromURL(rawURL string) (string, bool) {
	return c.config.ObjectKeyFromURL(rawURL)
}

// NewProductImageKey generates an object key for an uploaded product image.
// Format: products/<ownerID>/<unixnano>-<uuid>.<ext>
func NewProductImageKey(ownerID, fileExtension string) string {
	ext := strings.ToLower(strings.TrimPrefix(fileExtension, "."))
	return fmt.Sprintf("products/%s/%d-%s.%s", ownerID, time.Now().UnixNano(), uuid.New().String(), ext)
}

// NewProfilePhotoKey generates an object key for a seller's store photo.
func NewProfilePhotoKey(ownerID, fileExtension string) string {
	ext := strings.ToLower(strings.TrimPrefix(fileExtension, "."))
	return fmt.Sprintf("profiles/%s/%d-%s.%s", ownerID, time.Now().UnixNano(), uuid.New().String(), ext)
}

// ContentTypeForExt returns the MIME type based on file extension
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}
