package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DirSink writes every copy as its own file below Dir.
type DirSink struct {
	Dir string
}

func (d DirSink) Name() string { return "dir:" + d.Dir }

func (d DirSink) Put(_ context.Context, c Copy) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.Dir, c.Name()), c.Payload, 0o644)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads copies to an S3-compatible bucket (AWS, R2, MinIO).
type S3Sink struct {
	Bucket string
	Prefix string
	client putObjectAPI
}

type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // empty uses AWS
	AccessKey string // empty falls back to the default credential chain
	SecretKey string
}

func NewS3Sink(ctx context.Context, o S3Options) (*S3Sink, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return &S3Sink{Bucket: o.Bucket, Prefix: o.Prefix, client: client}, nil
}

func (s *S3Sink) Name() string { return "s3:" + s.Bucket }

func (s *S3Sink) Key(c Copy) string {
	return path.Join(s.Prefix, c.Name())
}

func (s *S3Sink) Put(ctx context.Context, c Copy) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.Key(c)),
		Body:        bytes.NewReader(c.Payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
