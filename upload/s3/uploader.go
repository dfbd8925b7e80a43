package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Config holds the bucket coordinates and credentials. Endpoint is
// optional and points at S3-compatible storage such as MinIO;
// PublicBaseURL is the URL prefix returned for uploaded objects.
type Config struct {
	Region        string
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// Uploader stores files in an S3 bucket and returns their public URL.
// It implements the accounts Uploader collaborator.
type Uploader struct {
	client *awss3.Client
	config Config
}

// New creates an [Uploader] for cfg.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("s3: public base URL is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{
		client: client,
		config: cfg,
	}, nil
}

// Upload writes r to the bucket under a date-partitioned random key
// and returns the object's public URL. The original name only
// contributes its extension.
func (u *Uploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	key := storageKey(name)

	input := &awss3.PutObjectInput{
		Bucket: aws.String(u.config.Bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}

	return strings.TrimSuffix(u.config.PublicBaseURL, "/") + "/" + key, nil
}

func storageKey(name string) string {
	d := time.Now().UTC()
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), ext)
}
