package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Disk     DiskConfig     `mapstructure:"disk"`
	S3       S3Config       `mapstructure:"s3"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// StorageConfig selects which object storage backend the reports go to.
// "disk" is the cloud disk REST backend, "s3" is any S3-compatible store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DiskConfig configures the cloud disk REST backend.
type DiskConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// TelegramConfig holds the bot token used to verify WebApp init data.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// JWTConfig defines session token configuration.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// UploadConfig bounds the per-submission upload fan-out and file sizes.
type UploadConfig struct {
	MaxConcurrency int   `mapstructure:"max_concurrency"`
	MaxFileSize    int64 `mapstructure:"max_file_size"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variable handling: disk.token -> DISK_TOKEN,
	// telegram.bot_token -> TELEGRAM_BOT_TOKEN, etc.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "wrap_report")
	viper.SetDefault("storage.backend", "disk")
	viper.SetDefault("disk.base_url", "https://cloud-api.yandex.net/v1/disk")
	// Credential keys need registered defaults so AutomaticEnv can fill
	// them in during Unmarshal even without a config file.
	viper.SetDefault("disk.token", "")
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("s3.endpoint", "")
	viper.SetDefault("s3.region", "")
	viper.SetDefault("s3.access_key_id", "")
	viper.SetDefault("s3.secret_access_key", "")
	viper.SetDefault("s3.bucket_name", "")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("jwt.expiration", "12h")
	viper.SetDefault("upload.max_concurrency", 4)
	viper.SetDefault("upload.max_file_size", 20<<20) // 20 MiB per photo

	err = viper.ReadInConfig()
	// Missing config file is fine; env vars and defaults still apply.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
