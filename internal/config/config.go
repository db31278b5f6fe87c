package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LEAFDOCTOR_AI_APIKEY.
const EnvPrefix = "LEAFDOCTOR"

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required|min:1|max:65535"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required|in:debug,info,warn,error"`
}

type AIConfig struct {
	APIKey    string        `mapstructure:"apiKey"`
	BaseURL   string        `mapstructure:"baseURL"`
	Model     string        `mapstructure:"model" validate:"required"`
	MaxTokens int           `mapstructure:"maxTokens" validate:"min:0"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type FileStorage struct {
	Dir string `mapstructure:"dir"`
}

type MySQLStorage struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type PostgresStorage struct {
	DSN string `mapstructure:"dsn"`
}

type RedisStorage struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MinioStorage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"accessKey"`
	SecretKey  string `mapstructure:"secretKey"`
	BucketName string `mapstructure:"bucketName"`
	Region     string `mapstructure:"region"`
	UseSSL     bool   `mapstructure:"useSSL"`
}

// StorageConfig selects the durable key-value backend holding the gallery.
type StorageConfig struct {
	Driver   string          `mapstructure:"driver" validate:"required|in:memory,file,mysql,postgres,redis,minio"`
	Key      string          `mapstructure:"key" validate:"required"`
	Compress bool            `mapstructure:"compress"`
	File     FileStorage     `mapstructure:"file"`
	MySQL    MySQLStorage    `mapstructure:"mysql"`
	Postgres PostgresStorage `mapstructure:"postgres"`
	Redis    RedisStorage    `mapstructure:"redis"`
	Minio    MinioStorage    `mapstructure:"minio"`
}

type GalleryConfig struct {
	// Timezone used to derive an item's calendar date for range filters.
	Timezone string `mapstructure:"timezone"`
}

type CameraConfig struct {
	SnapshotURL string        `mapstructure:"snapshotURL"`
	Width       int           `mapstructure:"width" validate:"min:0"`
	Height      int           `mapstructure:"height" validate:"min:0"`
	FacingMode  string        `mapstructure:"facingMode"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SessionsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	MaxUploadBytes  int64         `mapstructure:"maxUploadBytes" validate:"min:1"`
}

type RateLimitConfig struct {
	Capacity   int `mapstructure:"capacity" validate:"min:0"`
	RefillRate int `mapstructure:"refillRate" validate:"min:0"`
}

type SecurityConfig struct {
	APIKeys        []string        `mapstructure:"apiKeys"`
	AllowedOrigins []string        `mapstructure:"allowedOrigins"`
	RateLimit      RateLimitConfig `mapstructure:"rateLimit"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	AI       AIConfig       `mapstructure:"ai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Gallery  GalleryConfig  `mapstructure:"gallery"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 90*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.baseURL", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.maxTokens", 2048)
	v.SetDefault("ai.timeout", time.Duration(0))

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.key", "leafdoctor_gallery")
	v.SetDefault("storage.compress", false)
	v.SetDefault("storage.file.dir", "data")
	v.SetDefault("storage.mysql.host", "127.0.0.1")
	v.SetDefault("storage.mysql.port", 3306)
	v.SetDefault("storage.mysql.user", "")
	v.SetDefault("storage.mysql.password", "")
	v.SetDefault("storage.mysql.name", "leafdoctor")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.accessKey", "")
	v.SetDefault("storage.minio.secretKey", "")
	v.SetDefault("storage.minio.bucketName", "leafdoctor")
	v.SetDefault("storage.minio.region", "")
	v.SetDefault("storage.minio.useSSL", false)

	v.SetDefault("gallery.timezone", "Local")

	v.SetDefault("camera.snapshotURL", "")
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.facingMode", "environment")
	v.SetDefault("camera.timeout", 10*time.Second)

	v.SetDefault("sessions.ttl", 30*time.Minute)
	v.SetDefault("sessions.cleanupInterval", time.Minute)
	v.SetDefault("sessions.maxUploadBytes", 10<<20)

	v.SetDefault("security.apiKeys", []string{})
	v.SetDefault("security.allowedOrigins", []string{"*"})
	v.SetDefault("security.rateLimit.capacity", 30)
	v.SetDefault("security.rateLimit.refillRate", 1)

	v.SetDefault("metrics.enabled", true)
}

// Load reads the YAML file at path (optional when empty), applies
// LEAFDOCTOR_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and the settings required by the selected storage driver.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}

	switch c.Storage.Driver {
	case "file":
		if c.Storage.File.Dir == "" {
			return fmt.Errorf("invalid config: storage.file.dir is required for the file driver")
		}
	case "mysql":
		if c.Storage.MySQL.Host == "" || c.Storage.MySQL.Name == "" {
			return fmt.Errorf("invalid config: storage.mysql.host and storage.mysql.name are required")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("invalid config: storage.postgres.dsn is required")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("invalid config: storage.redis.addr is required")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.BucketName == "" {
			return fmt.Errorf("invalid config: storage.minio.endpoint and storage.minio.bucketName are required")
		}
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: gallery.timezone: %w", err)
	}
	return nil
}

// Location resolves the gallery timezone. Empty and "Local" mean the process timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Gallery.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Gallery.Timezone)
	}
}

// MySQLDSN builds the go-sql-driver DSN from the storage section.
func (c *Config) MySQLDSN() string {
	m := c.Storage.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		m.User,
		m.Password,
		m.Host,
		m.Port,
		m.Name,
	)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
