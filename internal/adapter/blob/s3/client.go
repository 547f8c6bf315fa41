// Package s3 implements the blob store on Amazon S3 (or any S3-compatible
// endpoint). Downloads stream straight to disk; uploads and presigned URLs
// cover the small artifacts and the transcription provider's read access.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/config"
	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

// Client talks to one bucket.
type Client struct {
	api     *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

// New builds an S3 client from configuration. Static credentials are used
// when provided; otherwise the default AWS chain applies.
func New(ctx context.Context, cfg config.Config) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("op=s3.New: load aws config: %w", err)
	}
	api := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.S3EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.S3EndpointURL)
			o.UsePathStyle = true
		}
	})
	return &Client{
		api:     api,
		presign: awss3.NewPresignClient(api),
		bucket:  cfg.S3BucketName,
	}, nil
}

// Download streams the object into destPath without buffering the whole body
// in memory; videos can be large.
func (c *Client) Download(ctx context.Context, key, destPath string) error {
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("op=s3.Download key=%s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("op=s3.Download key=%s: create %s: %w", key, destPath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("op=s3.Download key=%s: copy: %w", key, err)
	}
	return nil
}

// Upload writes an artifact under the given key. Small artifacts (audio,
// subtitles) may be buffered by the SDK.
func (c *Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("op=s3.Upload key=%s: %w", key, err)
	}
	return nil
}

// PresignGet mints a short-lived read URL, used to hand the audio blob to
// the transcription provider.
func (c *Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("op=s3.PresignGet key=%s: %w", key, err)
	}
	return req.URL, nil
}

// PresignPut mints an upload URL so clients push video bytes straight to the
// bucket without routing them through the API server.
func (c *Client) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("op=s3.PresignPut key=%s: %w", key, err)
	}
	return req.URL, nil
}

// HeadBucket verifies the bucket is reachable; used by readiness checks.
func (c *Client) HeadBucket(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("op=s3.HeadBucket bucket=%s: %w", c.bucket, err)
	}
	return nil
}

var _ domain.BlobStore = (*Client)(nil)
