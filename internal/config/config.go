package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the config file.
const (
	BackendDir = "dir"
	BackendS3  = "s3"
)

// Credential names looked up through the credentials map.
const (
	CredentialS3AccessKey = "s3_access_key"
	CredentialS3SecretKey = "s3_secret_key"
)

type Config struct {
	Theme                  string            `yaml:"theme"`
	LogLevel               string            `yaml:"log_level"`
	Backend                string            `yaml:"backend"`
	Dir                    DirConfig         `yaml:"dir"`
	S3                     S3Config          `yaml:"s3"`
	Scopes                 ScopesConfig      `yaml:"scopes"`
	NamePattern            string            `yaml:"name_pattern"`
	BatchingInterval       time.Duration     `yaml:"batching_interval"`
	CacheDir               string            `yaml:"cache_dir"`
	MaxConcurrentDownloads int               `yaml:"max_concurrent_downloads"`
	Credentials            map[string]string `yaml:"credentials"`
	Web                    WebConfig         `yaml:"web"`
}

// DirConfig points the directory backend at the tree that stands in for
// remote storage (a mounted share, a synced bucket mirror, ...).
type DirConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	Endpoint     string        `yaml:"endpoint"`
	Bucket       string        `yaml:"bucket"`
	Region       string        `yaml:"region"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ScopesConfig maps each query scope to a key prefix inside the backend.
type ScopesConfig struct {
	Documents string `yaml:"documents"`
	External  string `yaml:"external"`
}

type WebConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

func DefaultConfig() Config {
	return Config{
		Theme:    "mocha",
		LogLevel: "info",
		Backend:  BackendDir,
		S3: S3Config{
			Region:       "us-east-1",
			PollInterval: 30 * time.Second,
		},
		Scopes: ScopesConfig{
			Documents: "Documents",
			External:  "Shared",
		},
		NamePattern:            "*",
		BatchingInterval:       time.Second,
		MaxConcurrentDownloads: 4,
		Web: WebConfig{
			Bind: "127.0.0.1",
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFromDir loads config.yaml from the given directory.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads a config file. A missing file yields the defaults.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}

	cfg.fillBlanks()
	return cfg, nil
}

// fillBlanks restores defaults for keys that were present but empty.
func (c *Config) fillBlanks() {
	def := DefaultConfig()
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.NamePattern == "" {
		c.NamePattern = def.NamePattern
	}
	if c.S3.Region == "" {
		c.S3.Region = def.S3.Region
	}
	if c.BatchingInterval == 0 {
		c.BatchingInterval = def.BatchingInterval
	}
	if c.S3.PollInterval == 0 {
		c.S3.PollInterval = def.S3.PollInterval
	}
	if c.Web.Bind == "" {
		c.Web.Bind = def.Web.Bind
	}
}

// Validate checks the settings that would otherwise fail deep inside the
// tracker at start time.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDir:
		if c.Dir.Root == "" {
			return fmt.Errorf("dir.root is required for the %q backend", BackendDir)
		}
		// The cache must live outside the watched tree.
		root, cache := ResolvePath(c.Dir.Root), c.ResolveCacheDir()
		if nested(root, cache) || nested(cache, root) {
			return fmt.Errorf("cache_dir %q must not overlap dir.root %q", cache, root)
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the %q backend", BackendS3)
		}
		if c.S3.PollInterval <= 0 {
			return fmt.Errorf("s3.poll_interval must be positive")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendDir, BackendS3)
	}

	if c.BatchingInterval < 0 {
		return fmt.Errorf("batching_interval must not be negative")
	}
	if c.MaxConcurrentDownloads < 0 {
		return fmt.Errorf("max_concurrent_downloads must not be negative")
	}
	if _, err := path.Match(c.NamePattern, ""); err != nil {
		return fmt.Errorf("name_pattern %q: %w", c.NamePattern, err)
	}
	if c.Scopes.Documents == "" && c.Scopes.External == "" {
		return fmt.Errorf("at least one of scopes.documents or scopes.external must be set")
	}
	return nil
}

// nested reports whether p is base or lies below it.
func nested(base, p string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absBase, absP)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// GetCredentialValue looks up a credential by name and returns its value
// from the host environment.
func (c *Config) GetCredentialValue(name string) (string, bool) {
	envVar, ok := c.Credentials[name]
	if !ok {
		return "", false
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", false
	}

	return value, true
}

// ResolvePath expands a leading ~ to the user's home directory.
func ResolvePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// ResolveCacheDir returns the content cache directory, defaulting to
// $XDG_CACHE_HOME/syncwatch/content.
func (c *Config) ResolveCacheDir() string {
	if c.CacheDir != "" {
		return ResolvePath(c.CacheDir)
	}
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "syncwatch", "content")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cache", "syncwatch", "content")
	}
	return filepath.Join(home, ".cache", "syncwatch", "content")
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "syncwatch", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "syncwatch", "config.yaml")
	}

	return filepath.Join(home, ".config", "syncwatch", "config.yaml")
}
