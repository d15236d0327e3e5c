// Package config loads runtime settings from defaults, an optional config
// file, a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Documents DocumentsConfig `mapstructure:"documents"`
	AI        AIConfig        `mapstructure:"ai"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig selects the document/account store. Driver "memory" keeps
// everything in process and is meant for development.
type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"`
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	ConnectRetries int    `mapstructure:"connect_retries"`
}

// DSN returns the URL when set, otherwise builds one from the parts.
func (d DatabaseConfig) DSN() string {
	if strings.TrimSpace(d.URL) != "" {
		return d.URL
	}
	port := d.Port
	if port == "" {
		port = "5432"
	}
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, port, d.DBName, ssl)
}

func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case "memory":
		return nil
	case "postgres":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", d.Driver)
	}
	if strings.TrimSpace(d.URL) != "" {
		return nil
	}
	if strings.TrimSpace(d.Host) == "" || strings.TrimSpace(d.DBName) == "" {
		return errors.New("database.host and database.dbname required when database.url is not provided")
	}
	return nil
}

type AuthConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type StorageConfig struct {
	Driver   string   `mapstructure:"driver"`
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config contains object storage configuration. Endpoint is only needed for
// S3-compatible services such as MinIO.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

func (s StorageConfig) Validate() error {
	switch s.Driver {
	case "local":
		if strings.TrimSpace(s.LocalDir) == "" {
			return errors.New("storage.local_dir required for the local driver")
		}
	case "s3":
		if strings.TrimSpace(s.S3.Bucket) == "" {
			return errors.New("storage.s3.bucket required for the s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver must be local or s3, got %q", s.Driver)
	}
	return nil
}

// MinSummaryChars is the smallest accepted documents.summary_max_chars. Zero
// selects the default.
const MinSummaryChars = 40

type DocumentsConfig struct {
	MaxUploadBytes   int64 `mapstructure:"max_upload_bytes"`
	ChunkSize        int   `mapstructure:"chunk_size"`
	ChunkOverlap     int   `mapstructure:"chunk_overlap"`
	SearchLimit      int   `mapstructure:"search_limit"`
	SummarySentences int   `mapstructure:"summary_sentences"`
	SummaryMaxChars  int   `mapstructure:"summary_max_chars"`
	IndexWorkers     int   `mapstructure:"index_workers"`
}

type AIConfig struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

func (a AIConfig) Validate() error {
	switch a.Provider {
	case "off":
		return nil
	case "gemini":
		if strings.TrimSpace(a.APIKey) == "" {
			return errors.New("ai.api_key required for the gemini provider")
		}
		return nil
	default:
		return fmt.Errorf("ai.provider must be off or gemini, got %q", a.Provider)
	}
}

// RedisConfig enables the shared summary cache when Addr is set.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SummaryTTL time.Duration `mapstructure:"summary_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 90*time.Second)
	v.SetDefault("http.request_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000", "http://localhost:8000"})

	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.connect_retries", 5)

	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.token_ttl", 30*time.Minute)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)

	v.SetDefault("documents.max_upload_bytes", int64(32<<20))
	v.SetDefault("documents.chunk_size", 1000)
	v.SetDefault("documents.chunk_overlap", 200)
	v.SetDefault("documents.search_limit", 10)
	v.SetDefault("documents.summary_sentences", 5)
	v.SetDefault("documents.summary_max_chars", 1200)
	v.SetDefault("documents.index_workers", 2)

	v.SetDefault("ai.provider", "off")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.rate_per_second", 2.0)
	v.SetDefault("ai.burst", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.summary_ttl", 24*time.Hour)
}

// legacyEnv maps the variable names used by earlier deployments onto keys.
var legacyEnv = map[string]string{
	"auth.secret_key":              "SECRET_KEY",
	"ai.api_key":                   "GOOGLE_API_KEY",
	"storage.s3.bucket":            "S3_BUCKET_NAME",
	"storage.s3.region":            "AWS_REGION",
	"storage.s3.access_key_id":     "AWS_ACCESS_KEY_ID",
	"storage.s3.secret_access_key": "AWS_SECRET_ACCESS_KEY",
}

// Load builds a Config. path may name a config file; when empty only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// The canonical variable still wins over the legacy one.
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		return errors.New("auth.secret_key (SECRET_KEY) must be set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Documents.ChunkSize <= 0 || c.Documents.ChunkOverlap < 0 || c.Documents.ChunkOverlap >= c.Documents.ChunkSize {
		return errors.New("documents.chunk_overlap must be smaller than a positive documents.chunk_size")
	}
	if c.Documents.MaxUploadBytes <= 0 {
		return errors.New("documents.max_upload_bytes must be positive")
	}
	if n := c.Documents.SummaryMaxChars; n != 0 && n < MinSummaryChars {
		return fmt.Errorf("documents.summary_max_chars must be at least %d, got %d", MinSummaryChars, n)
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.AI.Validate()
}
