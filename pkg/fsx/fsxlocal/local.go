package fsxlocal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Abraxas-365/auralis/pkg/fsx"
)

// LocalFileSystem implements fsx.FileSystem using local disk
type LocalFileSystem struct {
	basePath string // Root directory for all files
}

// NewLocalFileSystem creates a new local file system
// basePath: root directory (e.g., "./uploads" or "/tmp/auralis-audio")
func NewLocalFileSystem(basePath string) (*LocalFileSystem, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return &LocalFileSystem{
		basePath: absPath,
	}, nil
}

func (fs *LocalFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fullPath := fs.fullPath(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (fs *LocalFileSystem) ReadFileStream(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := fs.fullPath(path)
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (fs *LocalFileSystem) Stat(ctx context.Context, path string) (fsx.FileInfo, error) {
	fullPath := fs.fullPath(path)
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fsx.FileInfo{}, fmt.Errorf("file not found: %s", path)
		}
		return fsx.FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}

	return fsx.FileInfo{
		Name:        info.Name(),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDir:       info.IsDir(),
		ContentType: DetectContentType(fullPath),
		Metadata:    make(map[string]string),
	}, nil
}

func (fs *LocalFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := fs.fullPath(path)
	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) WriteFile(ctx context.Context, path string, data []byte) error {
	fullPath := fs.fullPath(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (fs *LocalFileSystem) WriteFileStream(ctx context.Context, path string, r io.Reader) error {
	fullPath := fs.fullPath(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (fs *LocalFileSystem) DeleteFile(ctx context.Context, path string) error {
	fullPath := fs.fullPath(path)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (fs *LocalFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// fullPath converts a relative path to absolute path
func (fs *LocalFileSystem) fullPath(path string) string {
	return filepath.Join(fs.basePath, path)
}

// GetBasePath returns the base path
func (fs *LocalFileSystem) GetBasePath() string {
	return fs.basePath
}

// DetectContentType maps audio/video extensions to MIME types.
func DetectContentType(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
