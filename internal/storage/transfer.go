package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"

	serrors "github.com/lhsnam/s3-db-modifier/internal/storage/errors"
)

const (
	// DefaultContentType is the default content type used when content type detection fails
	DefaultContentType = "application/octet-stream"
)

// ListAllKeys lists every object key under the given prefix, following
// ListObjectsV2 pagination until the listing is exhausted. Keys are returned
// in the order S3 yields them (lexicographic).
//
// Errors:
//   - ErrInvalidInput: If bucket is empty
//   - ErrTimeout: If a page request exceeds the configured timeout
//   - Network errors or AWS SDK errors wrapped in Error type
func (c *Client) ListAllKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	if bucket == "" {
		return nil, serrors.NewError("list", serrors.ErrInvalidInput).
			WithMessage("bucket name cannot be empty")
	}

	var keys []string
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(1000), // Use maximum page size for efficiency
		}
		if continuationToken != nil {
			input.ContinuationToken = continuationToken
		}

		result, err := c.s3Client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, serrors.NewError("list", classify(err)).WithBucket(bucket)
		}

		for _, obj := range result.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		if !aws.ToBool(result.IsTruncated) {
			break
		}
		continuationToken = result.NextContinuationToken
	}

	c.log.Debug("listed objects", "bucket", bucket, "prefix", prefix, "count", len(keys))
	return keys, nil
}

// HeadSize returns the size in bytes of an object using a HEAD request.
// Callers may treat a failure as "size unknown" and proceed without it;
// byte-level progress is the only consumer of the size.
//
// Errors:
//   - ErrInvalidInput: If bucket is empty
//   - ErrObjectNotFound: If the specified object doesn't exist
//   - Network errors or AWS SDK errors wrapped in Error type
func (c *Client) HeadSize(ctx context.Context, bucket, key string) (int64, error) {
	if bucket == "" {
		return 0, serrors.NewError("headSize", serrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("bucket name cannot be empty")
	}

	input := &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	result, err := c.s3Client.HeadObject(ctx, input)
	if err != nil {
		return 0, serrors.NewError("headSize", classify(err)).WithBucket(bucket).WithKey(key)
	}

	return aws.ToInt64(result.ContentLength), nil
}

// DownloadFile downloads an object from S3 to a local file on the configured
// filesystem. The file is created if it doesn't exist, or truncated if it
// does; parent directories are created as needed. On failure no partial file
// is left behind.
//
// Errors:
//   - ErrInvalidInput: If bucket or path is empty
//   - ErrObjectNotFound: If the specified object doesn't exist
//   - ErrTimeout: If the transfer exceeds the configured timeout
//   - File system errors if the file cannot be created or written
//   - Network errors or AWS SDK errors wrapped in Error type
func (c *Client) DownloadFile(ctx context.Context, bucket, key, path string) error {
	if bucket == "" {
		return serrors.NewError("download", serrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("bucket name cannot be empty")
	}
	if path == "" {
		return serrors.NewError("download", serrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("path cannot be empty")
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	output, err := c.s3Client.GetObject(ctx, input)
	if err != nil {
		return serrors.NewError("download", classify(err)).WithBucket(bucket).WithKey(key)
	}
	defer output.Body.Close()

	size := aws.ToInt64(output.ContentLength)

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := c.fs.MkdirAll(dir, 0o755); err != nil {
			return serrors.NewError("download", err).WithBucket(bucket).WithKey(key)
		}
	}

	file, err := c.fs.Create(path)
	if err != nil {
		return serrors.NewError("download", err).WithBucket(bucket).WithKey(key)
	}

	tracker := c.trackerFor(key, size)

	var reader io.Reader = output.Body
	if tracker != nil {
		reader = &progressReader{reader: output.Body, tracker: tracker, total: size}
	}

	written, err := io.Copy(file, reader)
	closeErr := file.Close()
	if err == nil {
		err = classify(closeErr)
	} else {
		err = classify(err)
	}
	if err != nil {
		// Drop the partial artifact so a failed transfer never feeds the pipeline.
		_ = c.fs.Remove(path)
		if tracker != nil {
			tracker.Error(err)
		}
		return serrors.NewError("download", err).WithBucket(bucket).WithKey(key)
	}

	if tracker != nil {
		tracker.Update(written, size)
		tracker.Complete()
	}

	c.log.Debug("downloaded object", "bucket", bucket, "key", key, "bytes", written)
	return nil
}

// UploadFile uploads a file from the configured filesystem to S3.
// The content type is detected from the file content where possible,
// falling back to extension-based lookup.
//
// Errors:
//   - ErrInvalidInput: If bucket or path is empty, or path is a directory
//   - ErrTimeout: If the transfer exceeds the configured timeout
//   - File system errors if the file cannot be read
//   - Network errors or AWS SDK errors wrapped in Error type
func (c *Client) UploadFile(ctx context.Context, bucket, key, path string) error {
	if bucket == "" {
		return serrors.NewError("upload", serrors.ErrInvalidInput).
			WithKey(key).
			WithMessage("bucket name cannot be empty")
	}
	if path == "" {
		return serrors.NewError("upload", serrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("path cannot be empty")
	}

	info, err := c.fs.Stat(path)
	if err != nil {
		return serrors.NewError("upload", err).WithBucket(bucket).WithKey(key)
	}
	if info.IsDir() {
		return serrors.NewError("upload", serrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("path points to a directory, not a file")
	}

	size := info.Size()
	contentType := c.detectContentType(path)

	file, err := c.fs.Open(path)
	if err != nil {
		return serrors.NewError("upload", err).WithBucket(bucket).WithKey(key)
	}
	defer file.Close()

	tracker := c.trackerFor(key, size)

	var body io.Reader = file
	if tracker != nil {
		body = &progressReader{reader: file, tracker: tracker, total: size}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		err = classify(err)
		if tracker != nil {
			tracker.Error(err)
		}
		return serrors.NewError("upload", err).WithBucket(bucket).WithKey(key)
	}

	if tracker != nil {
		tracker.Update(size, size)
		tracker.Complete()
	}

	c.log.Debug("uploaded object", "bucket", bucket, "key", key, "bytes", size)
	return nil
}

// trackerFor builds a progress tracker for a transfer, or nil when progress
// reporting is disabled.
func (c *Client) trackerFor(key string, size int64) ProgressTracker {
	if c.progress == nil {
		return nil
	}
	return c.progress(key, size)
}

// detectContentType determines the content type using mimetype where possible,
// falling back to extension-based lookup when the file cannot be sniffed.
func (c *Client) detectContentType(path string) string {
	file, err := c.fs.Open(path)
	if err != nil {
		return detectContentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	return detectContentTypeFromExtension(path)
}

// detectContentTypeFromExtension detects content type from file extension
func detectContentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}

// progressReader wraps an io.Reader to track progress
type progressReader struct {
	reader    io.Reader
	tracker   ProgressTracker
	total     int64
	bytesRead int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bytesRead += int64(n)
		pr.tracker.Update(pr.bytesRead, pr.total)
	}
	//nolint:wrapcheck // io.Reader interface contract - error comes from underlying reader
	return n, err
}

// classify converts AWS SDK and transport errors to our sentinel errors.
// Unrecognized errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return serrors.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return serrors.ErrTimeout
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return serrors.ErrObjectNotFound
		case "NoSuchBucket":
			return serrors.ErrBucketNotFound
		case "AccessDenied":
			return serrors.ErrAccessDenied
		case "RequestTimeout":
			return serrors.ErrTimeout
		}
	}

	return err
}
