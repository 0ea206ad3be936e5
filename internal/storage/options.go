// Package storage provides functional options for configuring client behavior.
// These options follow the functional options pattern for clean, composable configuration.
package storage

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// ClientConfig holds configuration for the storage client.
type ClientConfig struct {
	Region          string
	Endpoint        string
	MaxRetries      int
	Timeout         time.Duration
	ForcePathStyle  bool
	CustomAWSConfig *aws.Config
	Filesystem      fs.Filesystem // Filesystem abstraction for file operations
	Logger          *slog.Logger
	Progress        ProgressFactory
}

// Option is a functional option for configuring the storage client.
type Option func(*ClientConfig)

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) Option {
	return func(c *ClientConfig) {
		c.Region = region
	}
}

// WithMaxRetries sets the maximum number of retry attempts for failed operations.
// Default is 3 retries. Set to 0 to disable retries.
func WithMaxRetries(maxRetries int) Option {
	return func(c *ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual remote calls.
// Defaults to DefaultTimeout; no remote call ever runs unbounded.
// Timed-out calls fail with errors.ErrTimeout instead of hanging the run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(c *ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
// Default is false (uses virtual-hosted style).
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) Option {
	return func(c *ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) Option {
	return func(c *ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithLogger sets the logger used for operational logging.
// If not specified, defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = log
	}
}

// WithProgress sets a factory for per-transfer byte-level progress trackers.
// Progress reporting is a side channel: omitting it does not affect transfers.
func WithProgress(factory ProgressFactory) Option {
	return func(c *ClientConfig) {
		c.Progress = factory
	}
}
