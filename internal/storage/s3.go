package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3Store. Endpoint is set for S3-compatible
// services (Cloudflare R2, MinIO); PublicBaseURL is the CDN or bucket URL
// durable links are built from.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	HTTPClient    *http.Client
}

// S3Store persists downloaded artifacts into an S3 or S3-compatible
// bucket. Vendor result URLs expire; objects written here do not.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	httpClient    *http.Client
}

// NewS3Store creates an S3 storage backend. For S3-compatible services,
// set the endpoint to enable path-style addressing.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	publicBase := strings.TrimRight(opts.PublicBaseURL, "/")
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.amazonaws.com", opts.Bucket)
	}
	return &S3Store{
		client:        client,
		bucket:        opts.Bucket,
		publicBaseURL: publicBase,
		httpClient:    defaultHTTPClient(opts.HTTPClient),
	}, nil
}

// DownloadAndUpload fetches the source URL and writes the object at the
// given key with the requested content type and disposition.
func (s *S3Store) DownloadAndUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	key := strings.TrimLeft(strings.TrimSpace(req.Key), "/")
	if key == "" {
		return nil, errors.New("storage: key is required")
	}
	data, err := download(ctx, s.httpClient, req.SourceURL)
	if err != nil {
		return nil, err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	if req.Disposition != "" {
		input.ContentDisposition = aws.String(req.Disposition)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("storage: put object: %w", err)
	}
	return &UploadResult{
		URL:   s.publicBaseURL + "/" + key,
		Key:   key,
		Bytes: int64(len(data)),
	}, nil
}

var _ Store = (*S3Store)(nil)
