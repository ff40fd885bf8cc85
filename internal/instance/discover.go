// pattern: Imperative Shell
package instance

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const healthTimeout = 2 * time.Second

// ErrNoInstance is returned by Discover when no instance holds the lock.
var ErrNoInstance = errors.New("no running syncwatch instance found")

// Discover finds the running syncwatch instance for dataDir and returns its
// base URL (e.g. "http://127.0.0.1:12345"). The lock file tells whether an
// instance runs, the port file where it listens; a health check confirms
// it answers.
func Discover(dataDir string) (string, error) {
	// Acquiring the lock means nobody else holds it.
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return "", fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		_ = fl.Unlock()
		return "", fmt.Errorf("%w (start syncwatch first)", ErrNoInstance)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, portFileName))
	if err != nil {
		return "", fmt.Errorf("syncwatch instance detected but port file missing (try 'syncwatch cleanup'): %w", err)
	}

	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", fmt.Errorf("syncwatch port file is empty (try 'syncwatch cleanup')")
	}

	baseURL := fmt.Sprintf("http://%s", addr)

	client := &http.Client{Timeout: healthTimeout}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return "", fmt.Errorf("syncwatch instance not responding (try 'syncwatch cleanup'): %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("syncwatch health check failed (status %d)", resp.StatusCode)
	}

	return baseURL, nil
}
