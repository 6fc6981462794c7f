package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Marketarc MarketarcConfig `yaml:"marketarc"`
	Server    ServerConfig    `yaml:"server"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type MarketarcConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

// SnapshotsConfig locates the local snapshot tier. Dir holds one
// subdirectory per partition: regions/<regionID>, history/<typeID>,
// structures/<structureID>.
type SnapshotsConfig struct {
	Dir string `yaml:"dir"`
}

// ArchiveConfig describes the remote bulk archive. Backend selects how the
// day-partitioned objects are reached: "https" issues byte-range GETs against
// Root, "s3" fetches the same keys from a bucket.
type ArchiveConfig struct {
	Backend           string        `yaml:"backend"`
	Root              string        `yaml:"root"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	S3                S3Config      `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const (
	BackendHTTPS = "https"
	BackendS3    = "s3"
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Server: ServerConfig{Address: ":10010"},
		Archive: ArchiveConfig{
			Backend:           BackendHTTPS,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override storage locations from environment variables if available
	if v := os.Getenv("SNAP_DIR"); v != "" {
		config.Snapshots.Dir = strings.TrimSpace(v)
	}
	if v := os.Getenv("ARCHIVE_ROOT"); v != "" {
		config.Archive.Root = strings.TrimSpace(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Address = ":" + strings.TrimSpace(v)
	}
	if config.Archive.Backend == BackendS3 {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Archive.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Archive.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Archive.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Archive.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Archive.S3.Bucket = strings.TrimSpace(config.Archive.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Marketarc.Name == "" {
		return fmt.Errorf("marketarc.name is required")
	}
	if cfg.Marketarc.Version == "" {
		return fmt.Errorf("marketarc.version is required")
	}

	if cfg.Archive.Timeout <= 0 {
		return fmt.Errorf("archive.timeout must be greater than 0")
	}
	if cfg.Archive.RequestsPerSecond <= 0 {
		return fmt.Errorf("archive.requests_per_second must be greater than 0")
	}
	if cfg.Archive.Burst <= 0 {
		return fmt.Errorf("archive.burst must be greater than 0")
	}

	switch cfg.Archive.Backend {
	case BackendHTTPS:
		if cfg.Archive.Root == "" {
			return fmt.Errorf("archive.root is required for the https backend")
		}
	case BackendS3:
		if cfg.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required when the s3 backend is selected")
		}
		if cfg.Archive.S3.Region == "" {
			return fmt.Errorf("archive.s3.region is required when the s3 backend is selected")
		}
		if !isValidS3Bucket(cfg.Archive.S3.Bucket) {
			return fmt.Errorf("archive.s3.bucket '%s' is invalid", cfg.Archive.S3.Bucket)
		}
	default:
		return fmt.Errorf("archive.backend must be one of %q, %q", BackendHTTPS, BackendS3)
	}

	// A missing snapshot directory only disables the local tier in
	// development; production deployments must mount it.
	if cfg.Snapshots.Dir == "" && IsProductionLike(AppEnvironment()) {
		return fmt.Errorf("snapshots.dir (or SNAP_DIR) is required in %s", AppEnvironment())
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
