// pattern: Imperative Shell

// Package s3source serves an S3 bucket (or any S3-compatible store such as
// MinIO) as an index.Source.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"syncwatch/internal/index"
	"syncwatch/internal/logging"
	"syncwatch/internal/metrics"
)

const sourceName = "s3"

// DefaultPollInterval is how often Watch re-lists the bucket.
const DefaultPollInterval = 30 * time.Second

// API is the subset of *s3.Client the source uses.
type API interface {
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config describes the bucket to serve.
type Config struct {
	// Endpoint overrides the AWS endpoint and switches to path-style
	// addressing. Leave empty for AWS itself.
	Endpoint     string
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	PollInterval time.Duration
	Logger       *logging.ScopedLogger
}

// Source lists, polls and reads objects in one bucket. URLs have the form
// s3://<bucket>/<key>.
type Source struct {
	api          API
	bucket       string
	pollInterval time.Duration
	logger       *logging.ScopedLogger
}

// NewClient builds an S3 client from cfg. Static credentials are used when
// an access key is given; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Connect builds a client from cfg and wraps it in a Source.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg)
}

// New wraps an existing client.
func New(api API, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Source{
		api:          api,
		bucket:       cfg.Bucket,
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}, nil
}

func (s *Source) Name() string { return sourceName }

// List pages through every object under prefix. Directory marker objects
// (keys ending in "/") are skipped.
func (s *Source) List(ctx context.Context, prefix string) ([]index.Object, error) {
	start := time.Now()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if p := strings.Trim(prefix, "/"); p != "" {
		input.Prefix = aws.String(p + "/")
	}

	objs := []index.Object{}
	paginator := s3.NewListObjectsV2Paginator(s.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordSourceOperation(sourceName, "list", time.Since(start), false)
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			objs = append(objs, index.Object{
				Key:     key,
				URL:     s.url(key),
				Size:    aws.ToInt64(o.Size),
				ModTime: aws.ToTime(o.LastModified),
				ETag:    aws.ToString(o.ETag),
			})
		}
	}

	metrics.RecordSourceOperation(sourceName, "list", time.Since(start), true)
	return objs, nil
}

func (s *Source) Stat(ctx context.Context, key string) (index.Object, error) {
	start := time.Now()
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.RecordSourceOperation(sourceName, "head_object", time.Since(start), err == nil)
	if err != nil {
		return index.Object{}, s.wrapErr("stat", key, err)
	}
	return index.Object{
		Key:     key,
		URL:     s.url(key),
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
		ETag:    aws.ToString(out.ETag),
	}, nil
}

func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.RecordSourceOperation(sourceName, "get_object", time.Since(start), err == nil)
	if err != nil {
		return nil, s.wrapErr("open", key, err)
	}
	return out.Body, nil
}

// KeyForURL accepts s3:// URLs for this source's bucket.
func (s *Source) KeyForURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "s3" || u.Host != s.bucket {
		return "", fmt.Errorf("%q: %w", rawURL, index.ErrUnsupportedURL)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("%q: %w", rawURL, index.ErrUnsupportedURL)
	}
	return key, nil
}

// Watch re-lists the prefixes every poll interval and signals changed when
// the listing fingerprint moves. S3 has no push notification a client can
// subscribe to without extra infrastructure.
func (s *Source) Watch(ctx context.Context, prefixes []string, changed func()) error {
	last, _ := s.fingerprint(ctx, prefixes)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fp, err := s.fingerprint(ctx, prefixes)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("bucket poll failed", "bucket", s.bucket, "error", err)
				continue
			}
			if fp != last {
				last = fp
				changed()
			}
		}
	}
}

func (s *Source) fingerprint(ctx context.Context, prefixes []string) (string, error) {
	var all []index.Object
	for _, prefix := range prefixes {
		objs, err := s.List(ctx, prefix)
		if err != nil {
			return "", err
		}
		all = append(all, objs...)
	}
	return index.Fingerprint(all), nil
}

func (s *Source) url(key string) string {
	return (&url.URL{Scheme: "s3", Host: s.bucket, Path: "/" + key}).String()
}

func (s *Source) wrapErr(op, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, key, index.ErrNotFound)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, key, err)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
