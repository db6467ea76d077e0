package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Supported scheduling algorithms.
const (
	AlgorithmSM2  = "sm2"
	AlgorithmAnki = "anki"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	SRS      SRSConfig      `mapstructure:"srs"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SRSConfig selects and tunes the scheduling algorithm.
type SRSConfig struct {
	Algorithm string `mapstructure:"algorithm"`

	// Anki tuning; ignored when Algorithm is sm2.
	GraduatingIntervalDays int     `mapstructure:"graduating_interval_days"`
	EasyIntervalDays       int     `mapstructure:"easy_interval_days"`
	StartingEase           float64 `mapstructure:"starting_ease"`
	EasyBonus              float64 `mapstructure:"easy_bonus"`
	IntervalModifier       float64 `mapstructure:"interval_modifier"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	setDefaults()

	// Enable reading from environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.driver", DriverSQLite)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "studydeck")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.path", "data/studydeck.db")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	// Scheduling defaults
	viper.SetDefault("srs.algorithm", AlgorithmSM2)
	viper.SetDefault("srs.graduating_interval_days", 1)
	viper.SetDefault("srs.easy_interval_days", 4)
	viper.SetDefault("srs.starting_ease", 2.5)
	viper.SetDefault("srs.easy_bonus", 1.3)
	viper.SetDefault("srs.interval_modifier", 1.0)
}

// DatabaseDriver returns the normalized driver name.
func (c *Config) DatabaseDriver() string {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", DriverSQLite:
		return DriverSQLite
	case DriverPostgres, "postgresql", "pgx":
		return DriverPostgres
	default:
		return strings.ToLower(strings.TrimSpace(c.Database.Driver))
	}
}

// DatabaseURL returns the connection string for the configured driver.
func (c *Config) DatabaseURL() (string, error) {
	switch c.DatabaseDriver() {
	case DriverPostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
			c.Database.SSLMode,
		), nil
	case DriverSQLite:
		if c.Database.Path == "" {
			return "", fmt.Errorf("sqlite driver requires database.path")
		}
		return c.Database.Path, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
}
