package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ProfileTracker, cfg.Student.Profile)
	assert.Equal(t, int64(5_000_000), cfg.Student.MaxUploadBytes)
	assert.Equal(t, 12*time.Hour, cfg.Student.CleanupInterval)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "filesystem", cfg.Storage.Driver)
	assert.Equal(t, "student-images", cfg.Storage.MinioBucket)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STUDENT_PROFILE", "enrollment")
	t.Setenv("MAX_UPLOAD_SIZE", "2MB")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProfileEnrollment, cfg.Student.Profile)
	assert.Equal(t, int64(2_000_000), cfg.Student.MaxUploadBytes)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"profile":      {"STUDENT_PROFILE": "classroom"},
		"upload size":  {"MAX_UPLOAD_SIZE": "lots"},
		"db driver":    {"DB_DRIVER": "oracle"},
		"storage":      {"STORAGE_DRIVER": "ftp"},
		"prod no jwt":  {"APP_ENV": "production", "JWT_SECRET": ""},
		"zero cleanup": {"CLEANUP_INTERVAL": "0s"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("CONFIG_PATH", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yaml := "port: \"9090\"\nstudent:\n  profile: enrollment\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ProfileEnrollment, cfg.Student.Profile)
}
