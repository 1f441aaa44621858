package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"uncommon.org/progresstrack/pkg/database"
	"uncommon.org/progresstrack/pkg/storage"
)

const (
	ProfileTracker    = "tracker"
	ProfileEnrollment = "enrollment"
)

type Config struct {
	AppEnv          string        `yaml:"app_env" env:"APP_ENV" env-default:"development"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	AllowedOrigins  string        `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	Log      LogConfig       `yaml:"log"`
	Database database.Config `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	Meili    MeiliConfig     `yaml:"meilisearch"`
	Storage  storage.Config  `yaml:"storage"`
	Auth     AuthConfig      `yaml:"auth"`
	Student  StudentConfig   `yaml:"student"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// RedisConfig is optional. An empty URL disables the cache, the cleanup
// queue, the event feed and login rate limiting.
type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

// MeiliConfig is optional. An empty host disables search indexing.
type MeiliConfig struct {
	Host      string `yaml:"host" env:"MEILISEARCH_HOST"`
	MasterKey string `yaml:"master_key" env:"MEILI_MASTER_KEY"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL       time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"1h"`
	LoginRateLimit time.Duration `yaml:"login_rate_limit" env:"RATE_LIMIT_LOGIN" env-default:"5s"`

	// Outside production a mentor account is created at startup when both
	// are set.
	SeedEmail    string `yaml:"seed_email" env:"SEED_MENTOR_EMAIL"`
	SeedPassword string `yaml:"seed_password" env:"SEED_MENTOR_PASSWORD"`
}

type StudentConfig struct {
	Profile          string        `yaml:"profile" env:"STUDENT_PROFILE" env-default:"tracker"`
	MaxUploadSize    string        `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE" env-default:"5MB"`
	DistinctCacheTTL time.Duration `yaml:"distinct_cache_ttl" env:"DISTINCT_CACHE_TTL" env-default:"10m"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL" env-default:"12h"`

	// MaxUploadBytes is MaxUploadSize parsed at load time.
	MaxUploadBytes int64 `yaml:"-"`
}

// Load reads configuration. A .env file is loaded first if present. When
// CONFIG_PATH points at a YAML file it is read as well, with environment
// variables taking precedence over its values.
func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config env: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) finalize() error {
	switch c.Student.Profile {
	case ProfileTracker, ProfileEnrollment:
	default:
		return fmt.Errorf("invalid STUDENT_PROFILE %q (must be tracker or enrollment)", c.Student.Profile)
	}

	size, err := units.FromHumanSize(c.Student.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("invalid MAX_UPLOAD_SIZE: must be positive")
	}
	c.Student.MaxUploadBytes = size

	if c.Student.CleanupInterval <= 0 {
		return fmt.Errorf("invalid CLEANUP_INTERVAL: must be positive")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET required in production")
		}
		c.Auth.JWTSecret = "dev-secret-change-me"
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
