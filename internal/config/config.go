package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	MediaBackendCloudinary = "cloudinary"
	MediaBackendMinIO      = "minio"
)

type Config struct {
	HTTPServer
	Database
	Media
	Cloudinary
	MinIO
	Redis
	Log
	RateLimit
	Content
}

type HTTPServer struct {
	BindAddress     string        `env:"BIND_ADDRESS" env-default:"0.0.0.0"`
	BindPort        string        `env:"BIND_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" env-default:"30s"`
	GinMode         string        `env:"GIN_MODE" env-default:"release"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`
}

type Database struct {
	URL         string        `env:"DATABASE_URL" env-default:"sqlite://./blogspace.db"`
	Name        string        `env:"DATABASE_NAME" env-default:"blogspace"`
	Collection  string        `env:"DATABASE_COLLECTION" env-default:"blogs"`
	MaxOpen     int           `env:"DB_MAX_OPEN" env-default:"25"`
	MaxIdle     int           `env:"DB_MAX_IDLE" env-default:"25"`
	MaxLifetime time.Duration `env:"DB_MAX_LIFETIME" env-default:"5m"`
}

type Media struct {
	Backend string        `env:"MEDIA_BACKEND" env-default:"cloudinary"`
	Timeout time.Duration `env:"MEDIA_TIMEOUT" env-default:"0s"`
}

type Cloudinary struct {
	CloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `env:"CLOUDINARY_API_KEY"`
	APISecret string `env:"CLOUDINARY_API_SECRET"`
}

type MinIO struct {
	Endpoint  string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	User      string `env:"MINIO_USER" env-default:"minioadmin"`
	Password  string `env:"MINIO_PASSWORD" env-default:"minioadmin"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"blogspace"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	PublicURL string `env:"MINIO_PUBLIC_URL"`
}

type Redis struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL" env-default:"1h"`
}

type Log struct {
	Level      string `env:"LOG_LEVEL" env-default:"info"`
	Pretty     bool   `env:"LOG_PRETTY" env-default:"false"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"7"`
	Compress   bool   `env:"LOG_COMPRESS" env-default:"false"`
}

type RateLimit struct {
	PerMinute int `env:"RATE_LIMIT_PER_MINUTE" env-default:"60"`
}

type Content struct {
	Sanitize bool `env:"SANITIZE_CONTENT" env-default:"true"`
}

// New reads the configuration from the environment. Values in envFile, if it exists,
// override the process environment.
func New(envFile string) (*Config, error) {
	conf := &Config{}

	if envFile != "" {
		if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Overload: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(conf); err != nil {
		return nil, fmt.Errorf("cleanenv.ReadEnv: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Database.URL) == "" {
		problems = append(problems, "DATABASE_URL must not be empty")
	}

	switch c.Media.Backend {
	case MediaBackendCloudinary:
		if c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "" {
			problems = append(problems, "CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for the cloudinary media backend")
		}
	case MediaBackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			problems = append(problems, "MINIO_ENDPOINT and MINIO_BUCKET are required for the minio media backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown MEDIA_BACKEND %q", c.Media.Backend))
	}

	if c.Media.Timeout < 0 {
		problems = append(problems, "MEDIA_TIMEOUT must not be negative")
	}
	for _, proxy := range c.HTTPServer.TrustedProxies {
		if strings.TrimSpace(proxy) == "" {
			continue
		}
		if !validProxy(proxy) {
			problems = append(problems, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy))
		}
	}

	if c.RateLimit.PerMinute < 0 {
		problems = append(problems, "RATE_LIMIT_PER_MINUTE must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// Addr is the listen address of the HTTP server
func (s HTTPServer) Addr() string {
	return fmt.Sprintf("%s:%s", s.BindAddress, s.BindPort)
}

type DatabaseKind int

const (
	DatabaseSQLite DatabaseKind = iota
	DatabasePostgres
	DatabaseMongo
)

// Kind picks the repository backend from the scheme of the database URL
func (d Database) Kind() DatabaseKind {
	url := strings.ToLower(d.URL)
	switch {
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return DatabaseMongo
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DatabasePostgres
	default:
		return DatabaseSQLite
	}
}
