package fsxs3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Abraxas-365/auralis/pkg/fsx"
)

// S3FileSystem implements fsx.FileSystem backed by an S3 bucket.
type S3FileSystem struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string // Key prefix applied to every path
}

// NewS3FileSystem creates a new S3-backed file system.
// prefix may be empty; when set, every path is stored under it.
func NewS3FileSystem(client *s3.Client, bucket, prefix string) *S3FileSystem {
	return &S3FileSystem{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  prefix,
	}
}

func (fs *S3FileSystem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	rc, err := fs.ReadFileStream(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

func (fs *S3FileSystem) ReadFileStream(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := fs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(p)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("file not found: %s", p)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

func (fs *S3FileSystem) Stat(ctx context.Context, p string) (fsx.FileInfo, error) {
	out, err := fs.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(p)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return fsx.FileInfo{}, fmt.Errorf("file not found: %s", p)
		}
		return fsx.FileInfo{}, fmt.Errorf("failed to head object: %w", err)
	}

	info := fsx.FileInfo{
		Name:        path.Base(p),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (fs *S3FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := fs.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(p)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

func (fs *S3FileSystem) WriteFile(ctx context.Context, p string, data []byte) error {
	return fs.WriteFileStream(ctx, p, bytes.NewReader(data))
}

func (fs *S3FileSystem) WriteFileStream(ctx context.Context, p string, r io.Reader) error {
	_, err := fs.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(p)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (fs *S3FileSystem) DeleteFile(ctx context.Context, p string) error {
	_, err := fs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(p)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (fs *S3FileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}

// GetPresignedDownloadURL generates a presigned GET URL for direct download.
func (fs *S3FileSystem) GetPresignedDownloadURL(ctx context.Context, p string, expiration time.Duration) (string, error) {
	req, err := fs.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(p)),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

func (fs *S3FileSystem) key(p string) string {
	if fs.prefix == "" {
		return p
	}
	return path.Join(fs.prefix, p)
}
