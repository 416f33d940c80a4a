package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

// S3Config configures the S3 client used for s3:// locations.
type S3Config struct {
	// Region is the AWS region
	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services)
	Endpoint string

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack)
	UsePathStyle bool
}

// S3API is the subset of the S3 client used by S3 sources.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds an S3 client from cfg and the default AWS chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeConfig, "load AWS config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3 is an object in an S3 bucket.
type S3 struct {
	client  S3API
	bucket  string
	key     string
	size    int64
	modTime time.Time
}

// NewS3 creates an S3 source and fetches the object metadata.
func NewS3(ctx context.Context, client S3API, bucket, key string) (*S3, error) {
	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeSourceNotFound, "head object").
			WithContext("location", s3URL(bucket, key))
	}

	src := &S3{client: client, bucket: bucket, key: key, size: -1}
	if out.ContentLength != nil {
		src.size = *out.ContentLength
	}
	if out.LastModified != nil {
		src.modTime = *out.LastModified
	}
	return src, nil
}

func (o *S3) ID() string         { return s3URL(o.bucket, o.key) }
func (o *S3) Location() string   { return s3URL(o.bucket, o.key) }
func (o *S3) Size() int64        { return o.size }
func (o *S3) ModTime() time.Time { return o.modTime }

// Open streams the object body.
func (o *S3) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, lferrors.Wrap(err, lferrors.CodeSourceOpen, "get object").
			WithContext("location", o.Location())
	}
	return out.Body, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", lferrors.New(lferrors.CodeInvalidLocation, "not an s3 url").
			WithContext("location", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", lferrors.New(lferrors.CodeInvalidLocation, "s3 url needs bucket and key").
			WithContext("location", location)
	}
	return bucket, key, nil
}

func s3URL(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
