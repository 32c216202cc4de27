package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/smallbiznis/sekarnet/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("sekarnet/filestore")

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Store struct {
	client objectAPI
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET is required for the s3 storage driver")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return newS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Store(client objectAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Save(ctx context.Context, key string, content io.Reader, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	objectKey := s.objectKey(key)

	ctx, span := tracer.Start(ctx, "S3.PutObject", trace.WithAttributes(
		attribute.String("s3.bucket", s.bucket),
		attribute.String("content.type", contentType),
	))
	defer span.End()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   content,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object failed")
		return "", fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return objectKey, nil
}

func (s *S3Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, err := cleanKey(ref)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "S3.GetObject", trace.WithAttributes(
		attribute.String("s3.bucket", s.bucket),
	))
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrObjectNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get object failed")
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key, err := cleanKey(ref)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "S3.DeleteObject", trace.WithAttributes(
		attribute.String("s3.bucket", s.bucket),
	))
	defer span.End()

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete object failed")
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
