// Package storage provides the remote transfer layer for the migration
// pipeline: listing, sizing, downloading, and uploading of S3 objects.
//
// The Client wraps the AWS SDK v2 S3 client behind a small surface so the
// pipeline can treat remote transfers as an opaque collaborator, and so tests
// can substitute a mocked S3 API and an in-memory filesystem.
package storage

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/lhsnam/s3-db-modifier/internal/storage/errors"
	"github.com/lhsnam/s3-db-modifier/internal/storage/s3api"
)

// DefaultTimeout bounds every remote call when no explicit timeout is
// configured. Remote transfers never run unbounded; a stalled call fails
// with errors.ErrTimeout instead of hanging the run.
const DefaultTimeout = 5 * time.Minute

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads and downloads.
type ProgressTracker interface {
	// Update is called periodically with transfer progress
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// ProgressFactory builds a per-object ProgressTracker for a transfer.
// The size is the expected byte count, or 0 when unknown. A nil factory,
// or a factory returning nil, disables byte-level progress for the transfer.
type ProgressFactory func(key string, size int64) ProgressTracker

// Client provides list, head, download, and upload operations against S3.
// All local file I/O goes through the configured filesystem abstraction.
type Client struct {
	// s3Client is the underlying AWS SDK S3 client
	s3Client s3api.S3API

	// config holds the AWS configuration
	config aws.Config

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem

	// log receives operational logging
	log *slog.Logger

	// progress builds byte-level progress trackers for transfers
	progress ProgressFactory

	// timeout is the resolved per-call HTTP timeout
	timeout time.Duration
}

// Timeout returns the per-call timeout the client enforces on remote
// transfers.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// New creates a new storage client with the provided options.
// It loads AWS credentials using the default credential chain
// and applies the specified configuration options.
//
// Example:
//
//	client, err := storage.New(
//	    storage.WithRegion("us-west-2"),
//	    storage.WithTimeout(2*time.Minute),
//	)
func New(opts ...Option) (*Client, error) {
	clientCfg := &ClientConfig{
		MaxRetries: 3, // Default retry count
		Timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}
	if clientCfg.Timeout <= 0 {
		clientCfg.Timeout = DefaultTimeout
	}

	// Start with default AWS configuration or use custom config
	var cfg aws.Config
	var err error

	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1" // AWS default region
	}

	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)

	if clientCfg.Endpoint != "" {
		endpoint := clientCfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	// Handle custom HTTP client for timeout. A timed-out call surfaces as
	// errors.ErrTimeout rather than hanging the run.
	if clientCfg.Timeout > 0 {
		httpClient := &http.Client{
			Timeout: clientCfg.Timeout,
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	s3Client := s3.NewFromConfig(cfg, s3Opts...)

	return &Client{
		s3Client: s3Client,
		config:   cfg,
		fs:       orDefaultFS(clientCfg.Filesystem),
		log:      orDefaultLogger(clientCfg.Logger),
		progress: clientCfg.Progress,
		timeout:  clientCfg.Timeout,
	}, nil
}

// NewWithClient creates a new storage client with a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(s3Client s3api.S3API, opts ...Option) *Client {
	clientCfg := &ClientConfig{}
	for _, opt := range opts {
		opt(clientCfg)
	}

	return &Client{
		s3Client: s3Client,
		config:   aws.Config{},
		fs:       orDefaultFS(clientCfg.Filesystem),
		log:      orDefaultLogger(clientCfg.Logger),
		progress: clientCfg.Progress,
		timeout:  clientCfg.Timeout,
	}
}

func orDefaultFS(fsys fs.Filesystem) fs.Filesystem {
	if fsys != nil {
		return fsys
	}
	return billy.NewOSFS("/")
}

func orDefaultLogger(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.Default()
}
