// Package s3 uploads reports to an S3 bucket as gzip-compressed JSON.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/hejijunhao/sleuth/internal/model"
	"github.com/hejijunhao/sleuth/internal/output"
)

const (
	defaultRetries   = 3
	defaultTimeout   = 5 * time.Second
	defaultBackoff   = 200 * time.Millisecond
	maxBackoff       = 2 * time.Second
	contentType      = "application/json"
	contentEncoding  = "gzip"
	reportKeySuffix  = ".json.gz"
	reportDateLayout = "2006/01/02"
)

// ErrNoBucket is returned by New when Config.Bucket is empty.
var ErrNoBucket = errors.New("s3 output: bucket is required")

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the upload destination and retry policy.
type Config struct {
	Bucket  string
	Prefix  string
	Region  string
	Retries int           // attempts per report (default 3)
	Timeout time.Duration // per attempt (default 5s)
	Backoff time.Duration // first retry delay, doubled up to 2s (default 200ms)
}

// Option configures an S3 Output.
type Option func(*Output)

// WithClient replaces the client built from the default AWS config.
func WithClient(c PutObjectAPI) Option {
	return func(o *Output) { o.client = c }
}

// WithKeyFunc sets the object key generator.
func WithKeyFunc(fn func() string) Option {
	return func(o *Output) { o.key = fn }
}

// Output uploads each report as one object. SDK retries are disabled; each
// application-level attempt has its own timeout.
type Output struct {
	cfg    Config
	client PutObjectAPI
	key    func() string
}

// New creates an S3 output. Without WithClient the AWS default credential
// chain and region resolution apply.
func New(ctx context.Context, cfg Config, opts ...Option) (*Output, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	o := &Output{cfg: cfg}
	o.key = o.defaultKey
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		client, err := newClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		o.client = client
	}
	return o, nil
}

func newClient(ctx context.Context, region string) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 output: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 1
	}), nil
}

// defaultKey returns {prefix}/{yyyy/mm/dd}/{uuid}.json.gz.
func (o *Output) defaultKey() string {
	day := time.Now().UTC().Format(reportDateLayout)
	return path.Join(o.cfg.Prefix, day, uuid.NewString()+reportKeySuffix)
}

// Write compresses r and uploads it, retrying with exponential backoff.
func (o *Output) Write(ctx context.Context, r model.Report) error {
	body, err := encode(r)
	if err != nil {
		return fmt.Errorf("s3 output: encode: %w", err)
	}
	key := o.key()
	if err := o.upload(ctx, key, body); err != nil {
		return fmt.Errorf("s3 output: put s3://%s/%s: %w", o.cfg.Bucket, key, err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}

func encode(r model.Report) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := output.EncodeJSON(gz, r, false); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Output) upload(ctx context.Context, key string, body []byte) error {
	var lastErr error
	backoff := o.cfg.Backoff

	for attempt := 1; attempt <= o.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := o.putObject(ctx, key, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == o.cfg.Retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		}
	}
	return fmt.Errorf("%d attempts: %w", o.cfg.Retries, lastErr)
}

// putObject makes one attempt. The body reader is rebuilt per attempt.
func (o *Output) putObject(ctx context.Context, key string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(o.cfg.Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String(contentType),
		ContentEncoding: aws.String(contentEncoding),
	})
	return err
}
