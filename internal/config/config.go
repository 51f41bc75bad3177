package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	S3       S3Config       `mapstructure:"S3"`
	Trash    TrashConfig    `mapstructure:"Trash"`
	Log      LogConfig      `mapstructure:"Log"`
}

type ServerConfig struct {
	Port     string `mapstructure:"Port"`
	GRPCPort string `mapstructure:"GRPCPort"`
	BaseURL  string `mapstructure:"BaseURL"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"Host"`
	Port         string `mapstructure:"Port"`
	User         string `mapstructure:"User"`
	Password     string `mapstructure:"Password"`
	Name         string `mapstructure:"Name"`
	SSLMode      string `mapstructure:"SSLMode"`
	MaxOpenConns int    `mapstructure:"MaxOpenConns"`
	MaxIdleConns int    `mapstructure:"MaxIdleConns"`
}

// S3Config describes the bucket holding book photos. An empty AccessKeyID
// switches the server to in-memory photo storage.
type S3Config struct {
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	UsePathStyle    bool   `mapstructure:"UsePathStyle"`
}

// Enabled reports whether a real bucket is configured.
func (c S3Config) Enabled() bool {
	return c.AccessKeyID != ""
}

type TrashConfig struct {
	// RetentionDays is how long books stay in the trash before the sweep reclaims them.
	RetentionDays int `mapstructure:"RetentionDays"`
	// Schedule is a standard cron expression for the in-process sweep; empty disables it.
	Schedule string `mapstructure:"Schedule"`
	// LockTTL is the age after which a held sweep lock is treated as abandoned.
	LockTTL time.Duration `mapstructure:"LockTTL"`
}

type LogConfig struct {
	Level  string `mapstructure:"Level"`
	Format string `mapstructure:"Format"`
}

var envBindings = map[string]string{
	"Server.Port":         "HTTP_PORT",
	"Server.GRPCPort":     "GRPC_PORT",
	"Server.BaseURL":      "BASE_URL",
	"Database.Host":       "DATABASE_HOST",
	"Database.Port":       "DATABASE_PORT",
	"Database.User":       "DATABASE_USER",
	"Database.Password":   "DATABASE_PASSWORD",
	"Database.Name":       "DATABASE_NAME",
	"Database.SSLMode":    "DATABASE_SSLMODE",
	"S3.AccessKeyID":      "S3_ACCESS_KEY_ID",
	"S3.SecretAccessKey":  "S3_SECRET_ACCESS_KEY",
	"S3.Bucket":           "S3_BUCKET",
	"S3.Endpoint":         "S3_ENDPOINT",
	"S3.Region":           "S3_REGION",
	"S3.UsePathStyle":     "S3_USE_PATH_STYLE",
	"Trash.RetentionDays": "TRASH_RETENTION_DAYS",
	"Trash.Schedule":      "TRASH_SCHEDULE",
	"Trash.LockTTL":       "TRASH_LOCK_TTL",
	"Log.Level":           "LOG_LEVEL",
	"Log.Format":          "LOG_FORMAT",
}

// NewConfig reads the optional config file at path, then environment variables, which win.
func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("Server.Port", "8000")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.BaseURL", "http://localhost:8000")
	v.SetDefault("Database.Port", "5432")
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Database.MaxOpenConns", 25)
	v.SetDefault("Database.MaxIdleConns", 5)
	v.SetDefault("S3.Endpoint", "https://storage.yandexcloud.net")
	v.SetDefault("S3.Region", "ru-central1")
	v.SetDefault("Trash.RetentionDays", 30)
	v.SetDefault("Trash.Schedule", "0 3 * * *")
	v.SetDefault("Trash.LockTTL", time.Hour)
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "text")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: using only environment variables: %v\n", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}

	if c.Trash.RetentionDays < 0 {
		return fmt.Errorf("trash retention days must not be negative, got %d", c.Trash.RetentionDays)
	}
	if c.Trash.LockTTL <= 0 {
		return fmt.Errorf("trash lock ttl must be positive, got %s", c.Trash.LockTTL)
	}
	if c.Trash.Schedule != "" {
		if _, err := cron.ParseStandard(c.Trash.Schedule); err != nil {
			return fmt.Errorf("invalid trash schedule %q: %w", c.Trash.Schedule, err)
		}
	}

	if c.S3.Enabled() && (c.S3.SecretAccessKey == "" || c.S3.Bucket == "") {
		return fmt.Errorf("s3 configuration is incomplete: SecretAccessKey and Bucket are required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// GetURL is the connection string in the form golang-migrate expects.
func (c *DatabaseConfig) GetURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
