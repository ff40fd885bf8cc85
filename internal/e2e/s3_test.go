//go:build e2e

// pattern: Imperative Shell

package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"syncwatch/internal/index/s3source"
)

func TestS3BucketTracking(t *testing.T) {
	SkipIfNoS3(t)

	cfg := S3Config(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := s3source.NewClient(ctx, s3source.Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: os.Getenv(envS3AccessKey),
		SecretKey: os.Getenv(envS3SecretKey),
	})
	if err != nil {
		t.Fatalf("s3 client: %v", err)
	}
	ensureBucket(ctx, t, client, cfg.S3.Bucket)

	put := func(key, body string) {
		t.Helper()
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(cfg.S3.Bucket),
			Key:    aws.String(key),
			Body:   strings.NewReader(body),
		})
		if err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
		t.Cleanup(func() {
			_, _ = client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
				Bucket: aws.String(cfg.S3.Bucket),
				Key:    aws.String(key),
			})
		})
	}

	put(cfg.Scopes.Documents+"/report.pdf", "quarterly numbers")

	tr := TestTracker(t, cfg, TestLogManager(t))
	if err := tr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := WaitForSnapshot(t, tr.Store(), 30*time.Second, AllCurrent(1))
	if row := snap.Row(0); !strings.HasPrefix(row.URL, "s3://"+cfg.S3.Bucket+"/") || row.Name != "report.pdf" {
		t.Errorf("unexpected row %+v", row)
	}

	// A new object is picked up by the polling watch.
	put(cfg.Scopes.External+"/photo.jpg", "jpeg bytes")
	WaitForSnapshot(t, tr.Store(), 30*time.Second, AllCurrent(2))

	data, err := os.ReadFile(filepath.Join(cfg.CacheDir, filepath.FromSlash(cfg.Scopes.External+"/photo.jpg")))
	if err != nil || string(data) != "jpeg bytes" {
		t.Errorf("cached photo = %q, %v", data, err)
	}
}

func ensureBucket(ctx context.Context, t *testing.T, client *s3.Client, bucket string) {
	t.Helper()
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if err != nil && !errors.As(err, &owned) && !errors.As(err, &exists) {
		t.Fatalf("create bucket: %v", err)
	}
}
