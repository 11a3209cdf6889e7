package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func setCloudinaryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")
}

func TestNew_Defaults(t *testing.T) {
	setCloudinaryEnv(t)

	conf, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if conf.HTTPServer.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %s, want 0.0.0.0:8080", conf.HTTPServer.Addr())
	}
	if conf.Database.URL != "sqlite://./blogspace.db" {
		t.Errorf("Database.URL = %s", conf.Database.URL)
	}
	if conf.Database.Collection != "blogs" {
		t.Errorf("Database.Collection = %s, want blogs", conf.Database.Collection)
	}
	if conf.Media.Backend != MediaBackendCloudinary {
		t.Errorf("Media.Backend = %s, want cloudinary", conf.Media.Backend)
	}
	if conf.Media.Timeout != 0 {
		t.Errorf("Media.Timeout = %v, want 0 (disabled)", conf.Media.Timeout)
	}
	if !conf.Content.Sanitize {
		t.Error("Content.Sanitize should default to true")
	}
	if conf.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, cache should be off by default", conf.Redis.Addr)
	}
	if !reflect.DeepEqual(conf.AllowedOrigins, []string{"*"}) {
		t.Errorf("AllowedOrigins = %v, want [*]", conf.AllowedOrigins)
	}
	if len(conf.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want none trusted by default", conf.TrustedProxies)
	}
}

func TestNew_FromEnvFile(t *testing.T) {
	setCloudinaryEnv(t)

	// Registered so the values written by godotenv are restored afterwards
	t.Setenv("BIND_PORT", "")
	t.Setenv("MEDIA_TIMEOUT", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	envFile := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"BIND_PORT=9090",
		"MEDIA_TIMEOUT=30s",
		"ALLOWED_ORIGINS=https://a.example,https://b.example",
	}, "\n")
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	conf, err := New(envFile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if conf.BindPort != "9090" {
		t.Errorf("BindPort = %s, want 9090", conf.BindPort)
	}
	if conf.Media.Timeout != 30*time.Second {
		t.Errorf("Media.Timeout = %v, want 30s", conf.Media.Timeout)
	}
	if !reflect.DeepEqual(conf.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("AllowedOrigins = %v", conf.AllowedOrigins)
	}
}

func TestNew_MissingEnvFileIsIgnored(t *testing.T) {
	setCloudinaryEnv(t)

	if _, err := New(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("New() with missing env file error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   Database{URL: "sqlite://x.db"},
			Media:      Media{Backend: MediaBackendCloudinary},
			Cloudinary: Cloudinary{CloudName: "demo", APIKey: "k", APISecret: "s"},
			MinIO:      MinIO{Endpoint: "localhost:9000", Bucket: "b"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty database url", func(c *Config) { c.Database.URL = " " }, true},
		{"missing cloudinary secret", func(c *Config) { c.Cloudinary.APISecret = "" }, true},
		{"minio without cloudinary creds", func(c *Config) {
			c.Media.Backend = MediaBackendMinIO
			c.Cloudinary = Cloudinary{}
		}, false},
		{"minio without bucket", func(c *Config) {
			c.Media.Backend = MediaBackendMinIO
			c.MinIO.Bucket = ""
		}, true},
		{"unknown backend", func(c *Config) { c.Media.Backend = "s3" }, true},
		{"negative media timeout", func(c *Config) { c.Media.Timeout = -time.Second }, true},
		{"negative rate limit", func(c *Config) { c.RateLimit.PerMinute = -1 }, true},
		{"trusted proxies", func(c *Config) { c.HTTPServer.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12"} }, false},
		{"bad trusted proxy", func(c *Config) { c.HTTPServer.TrustedProxies = []string{"proxy.local"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabase_Kind(t *testing.T) {
	tests := []struct {
		url  string
		want DatabaseKind
	}{
		{"mongodb://localhost:27017", DatabaseMongo},
		{"mongodb+srv://cluster.example.net", DatabaseMongo},
		{"postgres://u:p@localhost/blog", DatabasePostgres},
		{"postgresql://localhost/blog", DatabasePostgres},
		{"sqlite://./blog.db", DatabaseSQLite},
		{"file:blog.db", DatabaseSQLite},
		{"./blog.db", DatabaseSQLite},
	}

	for _, tt := range tests {
		if got := (Database{URL: tt.url}).Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
