// Package config loads service configuration from an optional YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ASSETTRACK_DB_PATH.
const EnvPrefix = "ASSETTRACK"

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
		Port int
	} `mapstructure:"http"`

	DB struct {
		Path string
	} `mapstructure:"db"`

	Auth struct {
		JWTSecret    string `mapstructure:"jwt_secret"`
		JWTExpiresIn string `mapstructure:"jwt_expires_in"`
		AdminUser    string `mapstructure:"admin_user"`
	} `mapstructure:"auth"`

	Uploads struct {
		Dir          string
		MaxFileSize  int64 `mapstructure:"max_file_size"`
		MaxDimension int   `mapstructure:"max_dimension"`
	} `mapstructure:"uploads"`

	Blob struct {
		Driver string
		S3     S3 `mapstructure:"s3"`
	} `mapstructure:"blob"`

	Audit struct {
		Buffer int
		Kafka  struct {
			Brokers []string
			Topic   string
		} `mapstructure:"kafka"`
	} `mapstructure:"audit"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Log struct {
		File   string
		Format string
	} `mapstructure:"log"`
}

// S3 configures the S3 blob driver.
type S3 struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

var defaults = map[string]any{
	"app.env":                   "production",
	"http.addr":                 "",
	"http.port":                 8080,
	"db.path":                   "assettrack.db",
	"auth.jwt_secret":           "",
	"auth.jwt_expires_in":       "24h",
	"auth.admin_user":           "admin",
	"uploads.dir":               "uploads",
	"uploads.max_file_size":     10 << 20,
	"uploads.max_dimension":     2048,
	"blob.driver":               "fs",
	"blob.s3.bucket":            "",
	"blob.s3.region":            "us-east-1",
	"blob.s3.endpoint":          "",
	"blob.s3.prefix":            "",
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",
	"blob.s3.use_path_style":    false,
	"audit.buffer":              256,
	"audit.kafka.brokers":       []string{},
	"audit.kafka.topic":         "assettrack.audit",
	"metrics.enabled":           true,
	"log.file":                  "",
	"log.format":                "text",
}

// Plain environment variable names accepted alongside the prefixed ones.
var aliases = map[string]string{
	"app.env":               "APP_ENV",
	"http.port":             "PORT",
	"auth.jwt_secret":       "JWT_SECRET",
	"auth.jwt_expires_in":   "JWT_EXPIRES_IN",
	"uploads.max_file_size": "MAX_FILE_SIZE",
	"uploads.dir":           "UPLOAD_DIR",
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment apply. A .env file in the working directory is
// loaded unless APP_ENV is production.
func Load(path string) (Config, error) {
	var c Config

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return c, fmt.Errorf("loading .env: %w", err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return c, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	return c, c.Validate()
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Blob.Driver {
	case "fs":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Uploads.MaxFileSize <= 0 {
		return errors.New("uploads.max_file_size must be positive")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// ListenAddr returns http.addr, or ":<http.port>" when no address is set.
func (c Config) ListenAddr() string {
	if c.HTTP.Addr != "" {
		return c.HTTP.Addr
	}
	return ":" + strconv.Itoa(c.HTTP.Port)
}

// TokenTTL parses auth.jwt_expires_in. Besides Go durations it accepts a
// day suffix ("7d") and bare seconds ("3600").
func (c Config) TokenTTL() (time.Duration, error) {
	s := strings.TrimSpace(c.Auth.JWTExpiresIn)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid jwt_expires_in %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid jwt_expires_in %q", s)
	}
	return d, nil
}
