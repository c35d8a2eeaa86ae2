//-------------------------------------------------------------------------
//
// pgEdge Olist Warehouse Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for olist-dw.
// Values are resolved in this order, later sources winning: built-in
// defaults, the config file, OLIST_DW_* environment variables, CLI flags.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. OLIST_DW_DATABASE_HOST.
const EnvPrefix = "OLIST_DW"

// Copy modes for staging ingestion.
const (
	CopyModeStdin  = "stdin"
	CopyModeServer = "server"
)

// Config holds all configuration for olist-dw.
type Config struct {
	// Connection is a full PostgreSQL connection string. When set it
	// takes precedence over the Database fields.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Database holds the discrete connection parameters.
	Database DatabaseConfig `mapstructure:"database"`

	// Staging holds configuration for the staging load.
	Staging StagingConfig `mapstructure:"staging"`

	// Warehouse holds configuration for the warehouse load.
	Warehouse WarehouseConfig `mapstructure:"warehouse"`

	// Generate holds configuration for the generate subcommand.
	Generate GenerateConfig `mapstructure:"generate"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// SSLMode is passed through as the sslmode parameter when non-empty.
	SSLMode string `mapstructure:"sslmode"`
}

// StagingConfig holds configuration for CSV ingestion.
type StagingConfig struct {
	// DataDir is the directory containing the Olist CSV files.
	DataDir string `mapstructure:"data_dir"`

	// Files is the ordered list of file names to ingest. Empty means the
	// canonical foreign-key-safe order.
	Files []string `mapstructure:"files"`

	// CopyMode is "stdin" (stream the local file) or "server" (the
	// database server reads the file itself).
	CopyMode string `mapstructure:"copy_mode"`
}

// WarehouseConfig holds configuration for the warehouse population.
type WarehouseConfig struct {
	// TruncateFirst empties the dw tables before populating.
	TruncateFirst bool `mapstructure:"truncate_first"`

	// DuplicateDimDate reproduces the legacy double insert into dw.dim_date.
	DuplicateDimDate bool `mapstructure:"duplicate_dim_date"`

	// ReviewScoreFromPayments reproduces the legacy dw.dim_review source
	// (order_payments.payment_installments instead of order_reviews.review_score).
	ReviewScoreFromPayments bool `mapstructure:"review_score_from_payments"`
}

// GenerateConfig holds configuration for synthetic dataset generation.
type GenerateConfig struct {
	// OutputDir is where the CSV files are written.
	OutputDir string `mapstructure:"output_dir"`

	// Customers is the number of customers to generate; other entity
	// counts scale from it.
	Customers int `mapstructure:"customers"`

	// Seed makes the output reproducible. Zero picks a random seed.
	Seed uint64 `mapstructure:"seed"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{
			Host: "database",
			Port: 5432,
			Name: "olist",
			User: "username",
		},
		Staging: StagingConfig{
			DataDir:  "/olist_dw/data/olist_datasets/",
			CopyMode: CopyModeStdin,
		},
		Generate: GenerateConfig{
			OutputDir: "./olist_datasets",
			Customers: 1000,
		},
	}
}

// setDefaults registers every key with viper so that environment
// variables are honored by Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("connection", cfg.Connection)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)

	v.SetDefault("staging.data_dir", cfg.Staging.DataDir)
	v.SetDefault("staging.files", cfg.Staging.Files)
	v.SetDefault("staging.copy_mode", cfg.Staging.CopyMode)

	v.SetDefault("warehouse.truncate_first", cfg.Warehouse.TruncateFirst)
	v.SetDefault("warehouse.duplicate_dim_date", cfg.Warehouse.DuplicateDimDate)
	v.SetDefault("warehouse.review_score_from_payments", cfg.Warehouse.ReviewScoreFromPayments)

	v.SetDefault("generate.output_dir", cfg.Generate.OutputDir)
	v.SetDefault("generate.customers", cfg.Generate.Customers)
	v.SetDefault("generate.seed", cfg.Generate.Seed)
}

// Load reads configuration from config files and the environment.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./olist-dw.yaml
// 3. ~/.config/olist-dw/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("olist-dw")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "olist-dw"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// ConnString returns the PostgreSQL connection string, building one from
// the Database fields unless Connection is set.
func (c *Config) ConnString() string {
	if c.Connection != "" {
		return c.Connection
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else if c.Database.User != "" {
		u.User = url.User(c.Database.User)
	}
	if c.Database.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", c.Database.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Validate checks that connection configuration is present.
func (c *Config) Validate() error {
	if c.Connection != "" {
		return nil
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	return nil
}

// ValidateStaging checks configuration required for the staging load.
func (c *Config) ValidateStaging() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Staging.DataDir == "" {
		return fmt.Errorf("staging data_dir is required")
	}
	if c.Staging.CopyMode != CopyModeStdin && c.Staging.CopyMode != CopyModeServer {
		return fmt.Errorf("copy_mode must be '%s' or '%s'", CopyModeStdin, CopyModeServer)
	}
	return nil
}

// ValidateGenerate checks configuration required for dataset generation.
func (c *Config) ValidateGenerate() error {
	if c.Generate.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Generate.Customers < 1 {
		return fmt.Errorf("customers must be at least 1")
	}
	return nil
}
