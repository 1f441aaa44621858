package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage creates a Cloudinary-backed store. With an empty
// cloudinaryURL the SDK reads CLOUDINARY_URL from the environment.
func NewCloudinaryStorage(cloudinaryURL, folder string) (AttachmentStore, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if cloudinaryURL != "" {
		cld, err = cloudinary.NewFromURL(cloudinaryURL)
	} else {
		cld, err = cloudinary.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	// Ensure HTTPS URLs by default.
	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld, folder: folder}, nil
}

// Ensure is a no-op: Cloudinary folders are created on first upload.
func (s *cloudinaryStorage) Ensure(ctx context.Context) error {
	return nil
}

// Put uploads an image and returns its public id and secure URL.
func (s *cloudinaryStorage) Put(ctx context.Context, r io.Reader, size int64, fileName string) (*Object, error) {
	name := objectName(fileName, time.Now())
	publicID := strings.TrimSuffix(name, filepath.Ext(name))

	params := uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       publicID,
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	}

	// Apply WebP conversion and compression only for images
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		params.Format = "webp"
		params.Transformation = "q_auto"
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image to cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload rejected: %s", resp.Error.Message)
	}

	if resp.SecureURL == "" || resp.PublicID == "" {
		return nil, fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	return &Object{ID: resp.PublicID, URL: resp.SecureURL}, nil
}

// Delete destroys the image with the given public id.
func (s *cloudinaryStorage) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidKey
	}

	// Invalidate: true helps to clear CDN cache
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   id,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from cloudinary: %w", err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}

	return nil
}
