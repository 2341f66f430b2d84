package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 batch transport.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 transport requires a bucket")
	}
	return nil
}

// S3API is the subset of the S3 client the transport uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Transport delivers batches as objects in an S3-compatible bucket,
// keyed <prefix>/<feature>/<batch-name>. Suitable when the "collector" is a
// data lake drained by a downstream job rather than a live intake endpoint.
type S3Transport struct {
	client S3API
	config S3Config
}

// NewS3Transport creates the S3 transport using the AWS default credential
// chain (env vars, shared config, IAM role).
func NewS3Transport(ctx context.Context, cfg S3Config) (*S3Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Transport{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
	}, nil
}

// NewS3TransportWithClient creates the S3 transport over an existing
// client. Tests use this with a stub S3API.
func NewS3TransportWithClient(client S3API, cfg S3Config) (*S3Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3Transport{client: client, config: cfg}, nil
}

// Send implements Transport. Put failures return an error, which the worker
// treats as retryable; a put is never terminal because the same object key
// can be overwritten safely on retry.
func (t *S3Transport) Send(ctx context.Context, p Payload) (int, error) {
	key := path.Join(t.config.Prefix, p.Feature.String(), p.Name)
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &t.config.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(p.Body),
		ContentType: &contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("put batch %s: %w", key, err)
	}
	return http.StatusOK, nil
}

// Verify S3Transport implements Transport.
var _ Transport = (*S3Transport)(nil)
