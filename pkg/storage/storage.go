// Package storage holds the attachment store used for student avatars.
// Drivers share one contract so callers never know whether blobs live on
// local disk, in an S3-compatible bucket or on Cloudinary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DriverFilesystem = "filesystem"
	DriverMinio      = "minio"
	DriverCloudinary = "cloudinary"
)

var (
	// ErrInvalidKey indicates an empty id or one escaping the store root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Object identifies a stored blob. ID is what Delete takes, URL is what
// clients fetch.
type Object struct {
	ID  string
	URL string
}

// AttachmentStore is the contract every driver implements.
type AttachmentStore interface {
	// Put stores the content read from r under a name derived from fileName.
	// size may be -1 when unknown.
	Put(ctx context.Context, r io.Reader, size int64, fileName string) (*Object, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, id string) error
	// Ensure prepares the backing container (directory, bucket). Idempotent.
	Ensure(ctx context.Context) error
}

// Config selects and configures the attachment store driver.
type Config struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"filesystem"`

	BasePath  string `yaml:"base_path" env:"UPLOAD_DIR" env-default:"uploads/students"`
	PublicURL string `yaml:"public_url" env:"UPLOAD_PUBLIC_URL" env-default:"/uploads/students"`

	MinioEndpoint  string `yaml:"minio_endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	MinioAccessKey string `yaml:"minio_access_key" env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `yaml:"minio_secret_key" env:"MINIO_SECRET_KEY"`
	MinioBucket    string `yaml:"minio_bucket" env:"MINIO_BUCKET" env-default:"student-images"`
	MinioRegion    string `yaml:"minio_region" env:"MINIO_REGION" env-default:"us-east-1"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl" env:"MINIO_USE_SSL" env-default:"false"`

	CloudinaryURL    string `yaml:"cloudinary_url" env:"CLOUDINARY_URL"`
	CloudinaryFolder string `yaml:"cloudinary_folder" env:"CLOUDINARY_UPLOAD_FOLDER" env-default:"students"`
}

// Validate checks the driver name and the settings it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverFilesystem:
		if c.BasePath == "" {
			return fmt.Errorf("UPLOAD_DIR required for filesystem storage")
		}
	case DriverMinio:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET required for minio storage")
		}
	case DriverCloudinary:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q (must be filesystem, minio or cloudinary)", c.Driver)
	}
	return nil
}

// New builds the configured driver. Ensure is not called here; the caller
// runs it once at startup.
func New(cfg Config, logger *slog.Logger) (AttachmentStore, error) {
	switch cfg.Driver {
	case DriverFilesystem:
		return NewFilesystemStorage(cfg.BasePath, cfg.PublicURL, logger)
	case DriverMinio:
		return NewMinioStorage(cfg, logger)
	case DriverCloudinary:
		return NewCloudinaryStorage(cfg.CloudinaryURL, cfg.CloudinaryFolder)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// objectName builds a unique name from the upload time, a random suffix and
// the client's file name, e.g. 1718000000000-1f3a9c2e-avatar.png.
func objectName(fileName string, now time.Time) string {
	base := sanitizeFileName(filepath.Base(fileName))
	if base == "" || base == "." {
		base = "image"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], base)
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, name)
}
