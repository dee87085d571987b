package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ednaflow server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Blob      BlobConfig      `yaml:"blob"`
	Inference InferenceConfig `yaml:"inference"`
}

type ServerConfig struct {
	Port               int           `yaml:"port"`
	Env                string        `yaml:"env"`
	LogLevel           string        `yaml:"log_level"`
	MaxUploadBytes     int64         `yaml:"max_upload_bytes"`
	RateLimitPerMin    int           `yaml:"rate_limit_per_min"`
	ListCacheTTL       time.Duration `yaml:"list_cache_ttl"`
	RequireCredentials bool          `yaml:"require_credentials"`
	CleanupOrphanBlobs bool          `yaml:"cleanup_orphans"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig is optional. An empty URL disables the listing cache and rate
// limiting.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SupabaseConfig carries the project URL and keys for the identity
// provider and the storage REST API.
type SupabaseConfig struct {
	URL            string `yaml:"url"`
	AnonKey        string `yaml:"anon_key"`
	ServiceRoleKey string `yaml:"service_role_key"`
	JWTSecret      string `yaml:"jwt_secret"`
}

type BlobConfig struct {
	Backend  string      `yaml:"backend"`
	Bucket   string      `yaml:"bucket"`
	LocalDir string      `yaml:"local_dir"`
	S3       S3Config    `yaml:"s3"`
	Minio    MinioConfig `yaml:"minio"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type InferenceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

var validBackends = map[string]bool{
	"supabase": true,
	"s3":       true,
	"minio":    true,
	"gcs":      true,
	"local":    true,
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Env:                "development",
			LogLevel:           "info",
			MaxUploadBytes:     50 << 20,
			RateLimitPerMin:    60,
			ListCacheTTL:       30 * time.Second,
			CleanupOrphanBlobs: true,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Blob: BlobConfig{
			Backend:  "supabase",
			Bucket:   "uploads",
			LocalDir: "/tmp/ednaflow-blobs",
		},
		Inference: InferenceConfig{
			URL:     "http://localhost:8000/cluster",
			Timeout: 60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by EDNA_CONFIG_FILE, and environment variables, in that order of
// precedence (environment wins). The result is validated.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("EDNA_CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("EDNA_PORT", c.Server.Port)
	c.Server.Env = envString("EDNA_ENV", c.Server.Env)
	c.Server.LogLevel = envString("EDNA_LOG_LEVEL", c.Server.LogLevel)
	c.Server.MaxUploadBytes = int64(envInt("EDNA_MAX_UPLOAD_BYTES", int(c.Server.MaxUploadBytes)))
	c.Server.RateLimitPerMin = envInt("EDNA_RATE_LIMIT_PER_MIN", c.Server.RateLimitPerMin)
	c.Server.ListCacheTTL = envDuration("EDNA_LIST_CACHE_TTL", c.Server.ListCacheTTL)
	c.Server.RequireCredentials = envBool("EDNA_REQUIRE_CREDENTIALS", c.Server.RequireCredentials)
	c.Server.CleanupOrphanBlobs = envBool("EDNA_CLEANUP_ORPHANS", c.Server.CleanupOrphanBlobs)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = envDuration("DATABASE_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.URL = envString("REDIS_URL", c.Redis.URL)

	c.Supabase.URL = strings.TrimRight(envString("SUPABASE_URL", c.Supabase.URL), "/")
	c.Supabase.AnonKey = envString("SUPABASE_ANON_KEY", c.Supabase.AnonKey)
	c.Supabase.ServiceRoleKey = envString("SUPABASE_SERVICE_ROLE_KEY", c.Supabase.ServiceRoleKey)
	c.Supabase.JWTSecret = envString("SUPABASE_JWT_SECRET", c.Supabase.JWTSecret)

	c.Blob.Backend = strings.ToLower(envString("BLOB_BACKEND", c.Blob.Backend))
	c.Blob.Bucket = envString("BLOB_BUCKET", c.Blob.Bucket)
	c.Blob.LocalDir = envString("BLOB_LOCAL_DIR", c.Blob.LocalDir)
	c.Blob.S3.Region = envString("S3_REGION", c.Blob.S3.Region)
	c.Blob.S3.Endpoint = envString("S3_ENDPOINT", c.Blob.S3.Endpoint)
	c.Blob.S3.AccessKey = envString("S3_ACCESS_KEY", c.Blob.S3.AccessKey)
	c.Blob.S3.SecretKey = envString("S3_SECRET_KEY", c.Blob.S3.SecretKey)
	c.Blob.Minio.Endpoint = envString("MINIO_ENDPOINT", c.Blob.Minio.Endpoint)
	c.Blob.Minio.AccessKey = envString("MINIO_ACCESS_KEY", c.Blob.Minio.AccessKey)
	c.Blob.Minio.SecretKey = envString("MINIO_SECRET_KEY", c.Blob.Minio.SecretKey)
	c.Blob.Minio.UseSSL = envBool("MINIO_USE_SSL", c.Blob.Minio.UseSSL)

	c.Inference.URL = envString("EDNA_INFERENCE_URL", c.Inference.URL)
	c.Inference.Timeout = envDuration("EDNA_INFERENCE_TIMEOUT", c.Inference.Timeout)
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if !validBackends[c.Blob.Backend] {
		return fmt.Errorf("BLOB_BACKEND must be one of supabase, s3, minio, gcs, local; got %q", c.Blob.Backend)
	}
	if c.Blob.Bucket == "" {
		return fmt.Errorf("BLOB_BUCKET is required")
	}
	if c.Blob.Backend == "minio" && c.Blob.Minio.Endpoint == "" {
		return fmt.Errorf("MINIO_ENDPOINT is required when BLOB_BACKEND is minio")
	}

	if !strings.HasPrefix(c.Inference.URL, "http://") && !strings.HasPrefix(c.Inference.URL, "https://") {
		return fmt.Errorf("EDNA_INFERENCE_URL must start with http:// or https://, got %q", c.Inference.URL)
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("EDNA_INFERENCE_TIMEOUT must be positive")
	}

	if c.Supabase.URL != "" && !strings.HasPrefix(c.Supabase.URL, "http://") && !strings.HasPrefix(c.Supabase.URL, "https://") {
		return fmt.Errorf("SUPABASE_URL must start with http:// or https://, got %q", c.Supabase.URL)
	}

	if missing := c.MissingCredentials(); len(missing) > 0 {
		if c.Server.RequireCredentials {
			return fmt.Errorf("missing Supabase credentials: %s", strings.Join(missing, ", "))
		}
		slog.Error("missing Supabase credentials; dependent endpoints will fail",
			"missing", missing)
	}

	return nil
}

// MissingCredentials lists the Supabase settings that are unset. The
// service-role key only matters when blobs go through the Supabase REST API.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.AnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if c.Blob.Backend == "supabase" && c.Supabase.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	return missing
}

// SlogLevel maps the configured log level onto slog. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
