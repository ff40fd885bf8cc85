//go:build e2e

// pattern: Imperative Shell

package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"syncwatch/internal/config"
	"syncwatch/internal/logging"
	"syncwatch/internal/store"
	"syncwatch/internal/tracker"
	"syncwatch/internal/web"
)

// S3 settings for the live bucket tests, e.g. a local MinIO.
const (
	envS3Endpoint  = "SYNCWATCH_E2E_S3_ENDPOINT"
	envS3Bucket    = "SYNCWATCH_E2E_S3_BUCKET"
	envS3AccessKey = "SYNCWATCH_E2E_S3_ACCESS_KEY"
	envS3SecretKey = "SYNCWATCH_E2E_S3_SECRET_KEY"
)

// SkipIfNoS3 skips the test unless a live S3 endpoint is configured.
func SkipIfNoS3(t *testing.T) {
	t.Helper()
	for _, name := range []string{envS3Endpoint, envS3Bucket, envS3AccessKey, envS3SecretKey} {
		if os.Getenv(name) == "" {
			t.Skipf("Skipping test: %s not set", name)
		}
	}
}

// TestConfig returns a directory-backed config rooted in a temp dir with a
// short batching interval.
func TestConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Dir.Root = t.TempDir()
	cfg.CacheDir = t.TempDir()
	cfg.BatchingInterval = 20 * time.Millisecond
	return cfg
}

// S3Config points cfg at the live bucket, naming the credentials through
// the environment like a user config would.
func S3Config(t *testing.T) config.Config {
	t.Helper()
	cfg := TestConfig(t)
	cfg.Backend = config.BackendS3
	cfg.S3.Endpoint = os.Getenv(envS3Endpoint)
	cfg.S3.Bucket = os.Getenv(envS3Bucket)
	cfg.S3.PollInterval = 200 * time.Millisecond
	prefix := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	cfg.Scopes = config.ScopesConfig{Documents: prefix + "/Documents", External: prefix + "/Shared"}
	cfg.Credentials = map[string]string{
		config.CredentialS3AccessKey: envS3AccessKey,
		config.CredentialS3SecretKey: envS3SecretKey,
	}
	return cfg
}

// TestLogManager returns a log manager that discards nothing and is closed
// with the test.
func TestLogManager(t *testing.T) *logging.TestLogManager {
	t.Helper()
	lm := logging.NewTestLogManager(1000)
	t.Cleanup(func() { _ = lm.Close() })
	return lm
}

// TestTracker builds a tracker from cfg and closes it with the test.
func TestTracker(t *testing.T, cfg config.Config, logs logging.LoggerProvider) *tracker.Tracker {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tr, err := tracker.New(ctx, cfg, logs)
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// TestWebServer starts a web server for tr on an ephemeral port and returns
// its base URL.
func TestWebServer(t *testing.T, tr web.Tracker, logs logging.LoggerProvider) string {
	t.Helper()
	srv := web.New(web.Config{Bind: "127.0.0.1"}, tr, nil, logs)
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + srv.Addr()
}

// WriteRemoteFile creates a file under the directory backend's root.
func WriteRemoteFile(t *testing.T, root, key, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// WaitForSnapshot polls st until cond holds or the timeout expires.
func WaitForSnapshot(t *testing.T, st *store.Store, timeout time.Duration, cond func(store.Snapshot) bool) store.Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if snap := st.Current(); cond(snap) {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	snap := st.Current()
	t.Fatalf("snapshot condition not met within %s; generation %d rows %+v", timeout, snap.Generation(), snap.Rows())
	return snap
}

// AllCurrent reports whether the snapshot has n rows, all current.
func AllCurrent(n int) func(store.Snapshot) bool {
	return func(snap store.Snapshot) bool {
		if snap.Len() != n {
			return false
		}
		for _, row := range snap.Rows() {
			if row.Status != "current" {
				return false
			}
		}
		return true
	}
}
