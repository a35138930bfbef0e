package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App     App     `mapstructure:"app"`
	Logging Logging `mapstructure:"logging"`
	AI      AI      `mapstructure:"ai"`
	Membit  Membit  `mapstructure:"membit"`
	Filter  Filter  `mapstructure:"filter"`
	Cache   Cache   `mapstructure:"cache"`
	Server  Server  `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	Debug     bool   `mapstructure:"debug"`
	DataDir   string `mapstructure:"data_dir"`
	ExportDir string `mapstructure:"export_dir"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Timeout     string  `mapstructure:"timeout"`
	Temperature float32 `mapstructure:"temperature"`
	TopK        float32 `mapstructure:"top_k"`
	TopP        float32 `mapstructure:"top_p"`
}

// Membit holds search API configuration
type Membit struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    string `mapstructure:"timeout"`
	RateLimit  string `mapstructure:"rate_limit"`
	MaxResults int    `mapstructure:"max_results"`
}

// Filter holds the initial result filter
type Filter struct {
	UseSearchScore bool    `mapstructure:"use_search_score"`
	MinSearchScore float64 `mapstructure:"min_search_score"`
}

// Cache holds the optional Redis response cache configuration
type Cache struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	TTL           string `mapstructure:"ttl"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	RelayEnabled    bool     `mapstructure:"relay_enabled"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".trendscope")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "~/.trendscope")
	viper.SetDefault("app.export_dir", "exports")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash-lite")
	viper.SetDefault("ai.gemini.timeout", "60s")
	viper.SetDefault("ai.gemini.temperature", 0.7)
	viper.SetDefault("ai.gemini.top_k", 40)
	viper.SetDefault("ai.gemini.top_p", 0.95)

	viper.SetDefault("membit.base_url", "https://api.membit.ai/v1")
	viper.SetDefault("membit.timeout", "30s")
	viper.SetDefault("membit.rate_limit", "0s")
	viper.SetDefault("membit.max_results", 10)

	viper.SetDefault("filter.use_search_score", false)
	viper.SetDefault("filter.min_search_score", 0.5)

	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.ttl", "5m")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "90s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.cors_origins", []string{})
	viper.SetDefault("server.relay_enabled", true)
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support the names the browser build used too
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"VITE_GEMINI_API_KEY",
	})

	bindEnvKeys("membit.api_key", []string{
		"MEMBIT_API_KEY",
	})

	bindEnvKeys("cache.redis_addr", []string{
		"REDIS_ADDR",
		"REDIS_URL",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"TRENDSCOPE_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.App.ExportDir != "" {
		config.App.ExportDir = expandPath(config.App.ExportDir)
	}
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
	config.AI.Gemini.APIKey = strings.TrimSpace(config.AI.Gemini.APIKey)
	config.Membit.APIKey = strings.TrimSpace(config.Membit.APIKey)

	durations := map[string]string{
		"ai.gemini.timeout":       config.AI.Gemini.Timeout,
		"membit.timeout":          config.Membit.Timeout,
		"membit.rate_limit":       config.Membit.RateLimit,
		"cache.ttl":               config.Cache.TTL,
		"server.read_timeout":     config.Server.ReadTimeout,
		"server.write_timeout":    config.Server.WriteTimeout,
		"server.shutdown_timeout": config.Server.ShutdownTimeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig checks value ranges. A missing Gemini key is not an error here:
// generation fails per call instead, so search and bookmarks still work without it.
func validateConfig(config *Config) error {
	var errors []string

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging level: %s. Supported: debug, info, warn, error", config.Logging.Level))
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	if config.Membit.MaxResults <= 0 {
		errors = append(errors, "membit.max_results must be positive")
	}

	if config.Filter.MinSearchScore < 0 || config.Filter.MinSearchScore > 1 {
		errors = append(errors, "filter.min_search_score must be between 0 and 1")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("Invalid server port: %d", config.Server.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Duration parses a value already checked by postProcessConfig, returning fallback when empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ConfigFileUsed returns the config file that was read, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// Convenience getters for commonly used configuration values
func GetLogging() Logging     { return Get().Logging }
func GetGeminiAPIKey() string { return Get().AI.Gemini.APIKey }
func IsDebugMode() bool       { return Get().App.Debug }

// HasValidGeminiKey returns true if a non-placeholder Gemini key is configured
func HasValidGeminiKey() bool {
	return isValidAPIKey(GetGeminiAPIKey())
}

// isValidAPIKey checks if an API key is valid (not empty and not a placeholder)
func isValidAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	placeholders := []string{
		"your-api-key", "your-gemini-key", "your-membit-key",
		"YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}

	for _, placeholder := range placeholders {
		if apiKey == placeholder {
			return false
		}
	}

	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
