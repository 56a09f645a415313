package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete license server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	App      AppConfig      `yaml:"app" envconfig:"APP"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig contains the license application identity and token policy
type AppConfig struct {
	// ID is the application identifier embedded in issued tokens. Activation
	// requests must present the same identifier.
	ID string `yaml:"id" envconfig:"ID" default:"ark-watchdog"`
	// TokenTTL bounds the lifetime of issued tokens. A token never outlives
	// the backing license regardless of this value.
	TokenTTL time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL" default:"24h"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	// AdminToken is the pre-shared credential for /admin endpoints. When
	// empty, all admin requests are rejected (fail-closed).
	AdminToken     string          `yaml:"admin_token" envconfig:"ADMIN_TOKEN"`
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/license-server.log"`
}

// PathsConfig contains file system paths and key material configuration
type PathsConfig struct {
	// StoreFile is the durable license key store document.
	StoreFile string `yaml:"store_file" envconfig:"STORE_FILE" default:"valid_keys.json"`
	// PrivateKeyPEM carries the signing key as PEM text. Takes precedence
	// over PrivateKeyFile when non-empty.
	PrivateKeyPEM string `yaml:"private_key_pem" envconfig:"PRIVATE_KEY_PEM"`
	// PrivateKeyFile is a path to a PEM file. Falls back to private.pem next
	// to the executable when empty.
	PrivateKeyFile string `yaml:"private_key_file" envconfig:"PRIVATE_KEY_FILE"`
	LogsDir        string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ARK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	applyLegacyEnv(&cfg)

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyLegacyEnv honors the environment variables used by existing
// deployments, overriding whatever envconfig resolved.
func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("LICENSE_KEYS_FILE"); v != "" {
		cfg.Paths.StoreFile = v
	}
	if v := os.Getenv("LW_PRIVATE_KEY_PEM"); v != "" {
		cfg.Paths.PrivateKeyPEM = v
	}
	if v := os.Getenv("LW_PRIVATE_KEY_FILE"); v != "" {
		cfg.Paths.PrivateKeyFile = v
	}
	if v := os.Getenv("TOKEN_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.App.TokenTTL = time.Duration(secs) * time.Second
		}
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.App.ID == "" {
		envConfig.App.ID = fileConfig.App.ID
	}
	if envConfig.App.TokenTTL == 0 {
		envConfig.App.TokenTTL = fileConfig.App.TokenTTL
	}
	if envConfig.Security.AdminToken == "" {
		envConfig.Security.AdminToken = fileConfig.Security.AdminToken
	}
	if envConfig.Paths.StoreFile == "" {
		envConfig.Paths.StoreFile = fileConfig.Paths.StoreFile
	}
	if envConfig.Paths.PrivateKeyFile == "" {
		envConfig.Paths.PrivateKeyFile = fileConfig.Paths.PrivateKeyFile
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.App.ID == "" {
		return fmt.Errorf("application id must not be empty")
	}

	if c.App.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Paths.StoreFile == "" {
		return fmt.Errorf("store file path must not be empty")
	}

	return nil
}

// findConfigFile returns the path to the config file, if any
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		App: AppConfig{
			ID:       "ark-watchdog",
			TokenTTL: 24 * time.Hour,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/license-server.log",
		},
		Paths: PathsConfig{
			StoreFile: "valid_keys.json",
			LogsDir:   "logs",
		},
	}
}
