package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket
var ErrObjectNotFound = errors.New("object not found")

// S3 stores guestbook images in one bucket of an S3-compatible service.
type S3 struct {
	Client     *s3.Client
	BucketName string
	publicURL  string
}

// Config holds the S3 configuration. Bucket and Region are required.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	// PublicURL is the base URL objects are served from directly, if any
	PublicURL string
}

// New connects to the bucket described by config, creating it when missing.
func New(ctx context.Context, config Config) (*S3, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if config.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load client config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		// MinIO serves buckets under the path, not as subdomains
		o.UsePathStyle = true
	})

	store := &S3{
		Client:     client,
		BucketName: config.Bucket,
		publicURL:  strings.TrimSuffix(config.PublicURL, "/"),
	}
	if err := store.EnsureBucketExists(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// EnsureBucketExists creates the bucket unless HeadBucket already finds it.
func (s *S3) EnsureBucketExists(ctx context.Context) error {
	bucket := aws.String(s.BucketName)
	if _, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket}); err == nil {
		return nil
	}
	if _, err := s.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: bucket}); err != nil {
		return fmt.Errorf("s3: create bucket %s: %w", s.BucketName, err)
	}
	return nil
}

// UploadObject stores data under key with the given content type.
func (s *S3) UploadObject(ctx context.Context, key string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.BucketName),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	}
	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

// GetObject retrieves an object from S3. The caller closes Body.
func (s *S3) GetObject(ctx context.Context, key string) (*s3.GetObjectOutput, error) {
	result, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("s3: get %s: %w", key, err)
	}

	return result, nil
}

// DeleteObject removes an object from S3. Deleting a missing key is not an error.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", key, err)
	}

	return nil
}

// PublicURL returns the direct URL for key, or "" when objects are not publicly served
func (s *S3) PublicURL(key string) string {
	return joinPublicURL(s.publicURL, key)
}

func joinPublicURL(base, key string) string {
	if base == "" {
		return ""
	}
	return base + "/" + strings.TrimPrefix(key, "/")
}
