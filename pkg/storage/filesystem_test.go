package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilesystem(t *testing.T) (*filesystemStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "students")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := NewFilesystemStorage(dir, "/uploads/students/", logger)
	require.NoError(t, err)
	require.NoError(t, store.Ensure(context.Background()))

	fs := store.(*filesystemStorage)
	fs.now = func() time.Time { return time.UnixMilli(1718000000000) }
	return fs, dir
}

func TestFilesystem_PutAndDelete(t *testing.T) {
	store, dir := newTestFilesystem(t)
	ctx := context.Background()

	obj, err := store.Put(ctx, strings.NewReader("png-bytes"), 9, "my avatar.png")
	require.NoError(t, err)
	assert.Regexp(t, `^1718000000000-[0-9a-f]{8}-my-avatar\.png$`, obj.ID)
	assert.Equal(t, "/uploads/students/"+obj.ID, obj.URL)

	data, err := os.ReadFile(filepath.Join(dir, obj.ID))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, obj.ID))
	_, err = os.Stat(filepath.Join(dir, obj.ID))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, obj.ID))
}

func TestFilesystem_SameNameSameInstantDoesNotCollide(t *testing.T) {
	store, dir := newTestFilesystem(t)
	ctx := context.Background()

	a, err := store.Put(ctx, strings.NewReader("student-A"), 9, "avatar.png")
	require.NoError(t, err)
	b, err := store.Put(ctx, strings.NewReader("student-B"), 9, "avatar.png")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	data, err := os.ReadFile(filepath.Join(dir, a.ID))
	require.NoError(t, err)
	assert.Equal(t, "student-A", string(data))

	require.NoError(t, store.Delete(ctx, b.ID))
	_, err = os.Stat(filepath.Join(dir, a.ID))
	assert.NoError(t, err)
}

func TestFilesystem_NoTempFilesLeft(t *testing.T) {
	store, dir := newTestFilesystem(t)

	_, err := store.Put(context.Background(), strings.NewReader("x"), 1, "a.gif")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Name(), ".upload-"))
}

func TestFilesystem_RejectsTraversal(t *testing.T) {
	store, _ := newTestFilesystem(t)
	ctx := context.Background()

	for _, key := range []string{"", "../outside.png", "/etc/passwd", "."} {
		assert.ErrorIs(t, store.Delete(ctx, key), ErrInvalidKey, key)
	}
}

func TestFilesystem_EnsureIsIdempotent(t *testing.T) {
	store, _ := newTestFilesystem(t)
	assert.NoError(t, store.Ensure(context.Background()))
	assert.NoError(t, store.Ensure(context.Background()))
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(42)
	tests := map[string]string{
		"photo.jpg":        "photo.jpg",
		"../../etc/passwd": "passwd",
		"":                 "image",
		"日本":               "image",
	}
	for in, base := range tests {
		name := objectName(in, now)
		assert.Regexp(t, regexp.MustCompile(`^42-[0-9a-f]{8}-`+regexp.QuoteMeta(base)+`$`), name, in)
	}

	assert.NotEqual(t, objectName("photo.jpg", now), objectName("photo.jpg", now))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Driver: DriverFilesystem, BasePath: "uploads"}.Validate())
	assert.NoError(t, Config{Driver: DriverMinio, MinioEndpoint: "localhost:9000", MinioBucket: "b"}.Validate())
	assert.NoError(t, Config{Driver: DriverCloudinary}.Validate())
	assert.Error(t, Config{Driver: DriverFilesystem}.Validate())
	assert.Error(t, Config{Driver: "s3"}.Validate())
}

func TestNew_Filesystem(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := New(Config{Driver: DriverFilesystem, BasePath: t.TempDir(), PublicURL: "/uploads"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &filesystemStorage{}, store)

	_, err = New(Config{Driver: "ftp"}, logger)
	assert.Error(t, err)
}
