package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all archive service configuration
type Config struct {
	// Server settings
	HTTPAddress string `validate:"required"`
	LogLevel    string `validate:"required,oneof=trace debug info warn error"`

	// Storage settings
	UploadDir   string `validate:"required"`
	MaxFileSize int64  `validate:"min=0"` // bytes, 0 = unlimited

	StorageRetryAttempts int           `validate:"min=1"`
	StorageRetryDelay    time.Duration `validate:"min=0"`

	// Catalog settings
	CatalogBackend string `validate:"required,oneof=sqlite mongo memory"`

	SQLitePath string

	MongoURI      string
	MongoDatabase string

	CatalogRetryAttempts int           `validate:"min=1"`
	CatalogRetryDelay    time.Duration `validate:"min=0"`

	// AdminIDs lists identities allowed to browse and manage every owner's
	// tree.
	AdminIDs []string
}

// LoadConfig loads configuration from files and environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Configure environment variables - do this BEFORE reading config
	v.AutomaticEnv()
	v.SetEnvPrefix("ARCHIVEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"HTTPAddress":          "ARCHIVEHUB_HTTP_ADDRESS",
		"LogLevel":             "ARCHIVEHUB_LOG_LEVEL",
		"UploadDir":            "ARCHIVEHUB_UPLOAD_DIR",
		"MaxFileSize":          "ARCHIVEHUB_MAX_FILE_SIZE",
		"StorageRetryAttempts": "ARCHIVEHUB_STORAGE_RETRY_ATTEMPTS",
		"StorageRetryDelay":    "ARCHIVEHUB_STORAGE_RETRY_DELAY",
		"CatalogBackend":       "ARCHIVEHUB_CATALOG_BACKEND",
		"SQLitePath":           "ARCHIVEHUB_SQLITE_PATH",
		"MongoURI":             "ARCHIVEHUB_MONGO_URI",
		"MongoDatabase":        "ARCHIVEHUB_MONGO_DATABASE",
		"CatalogRetryAttempts": "ARCHIVEHUB_CATALOG_RETRY_ATTEMPTS",
		"CatalogRetryDelay":    "ARCHIVEHUB_CATALOG_RETRY_DELAY",
		"AdminIDs":             "ARCHIVEHUB_ADMIN_IDS",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("archivehub_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.archivehub")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	switch config.CatalogBackend {
	case "sqlite":
		if config.SQLitePath == "" {
			return nil, fmt.Errorf("SQLitePath is required for the sqlite catalog backend")
		}
	case "mongo":
		if config.MongoURI == "" || config.MongoDatabase == "" {
			return nil, fmt.Errorf("MongoURI and MongoDatabase are required for the mongo catalog backend")
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("LogLevel", "info")

	v.SetDefault("UploadDir", "./uploads")
	v.SetDefault("MaxFileSize", int64(2)<<30)

	v.SetDefault("StorageRetryAttempts", 3)
	v.SetDefault("StorageRetryDelay", time.Second)

	v.SetDefault("CatalogBackend", "sqlite")
	v.SetDefault("SQLitePath", "./archivehub.db")

	v.SetDefault("CatalogRetryAttempts", 3)
	v.SetDefault("CatalogRetryDelay", time.Second)
}
