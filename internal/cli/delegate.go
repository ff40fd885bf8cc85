// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"syncwatch/internal/instance"
)

const defaultClientTimeout = 10 * time.Second

// Delegate discovers the running syncwatch instance and hands a CLI command
// an HTTP client for it.
//
// Exit codes:
//   - 2: no running instance
//   - 1: any other failure (discovery, transport, non-2xx answer)
type Delegate struct {
	// ConfigDir is the directory holding the lock and port files.
	ConfigDir string

	// ExitFunc defaults to os.Exit.
	ExitFunc func(int)

	// Stderr defaults to os.Stderr.
	Stderr io.Writer

	// ClientTimeout defaults to 10 seconds.
	ClientTimeout time.Duration

	// Discover defaults to instance.Discover.
	Discover func(dataDir string) (string, error)
}

func (d *Delegate) applyDefaults() {
	if d.ExitFunc == nil {
		d.ExitFunc = os.Exit
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.ClientTimeout == 0 {
		d.ClientTimeout = defaultClientTimeout
	}
	if d.Discover == nil {
		d.Discover = instance.Discover
	}
}

// Client discovers the running instance. On failure it reports the error,
// calls ExitFunc and returns nil.
func (d *Delegate) Client() *instance.Client {
	d.applyDefaults()

	baseURL, err := d.Discover(ResolveDataDir(d.ConfigDir))
	if err != nil {
		fmt.Fprintf(d.Stderr, "error: %v\n", err)
		if errors.Is(err, instance.ErrNoInstance) {
			d.ExitFunc(2)
		} else {
			d.ExitFunc(1)
		}
		return nil
	}

	return instance.NewClientWithTimeout(baseURL, d.ClientTimeout)
}

// Run discovers the instance and invokes fn with a client for it. A server
// error is reported by its message alone.
func (d *Delegate) Run(fn func(*instance.Client) error) {
	client := d.Client()
	if client == nil {
		return
	}

	if err := fn(client); err != nil {
		var statusErr *instance.StatusError
		if errors.As(err, &statusErr) {
			fmt.Fprintf(d.Stderr, "error: %s\n", statusErr.Message)
		} else {
			fmt.Fprintf(d.Stderr, "error: %v\n", err)
		}
		d.ExitFunc(1)
	}
}

// PrintJSON writes data to w, indented when w is a terminal. Data that is
// not valid JSON is written as is.
func PrintJSON(w io.Writer, data []byte) error {
	if !isTerminal(w) {
		_, err := w.Write(data)
		return err
	}

	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		_, err := w.Write(data)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(obj)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
