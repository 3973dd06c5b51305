package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Redis      RedisConfig
	Server     ServerConfig
	Search     SearchConfig
	Ranking    RankingConfig
	Geocoding  GeocodingConfig
	Logging    LoggingConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	AutoMigrate        bool
}

// RedisConfig holds the geocode cache backend. An empty Addr selects the in-memory cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SearchConfig holds search and suggestion configuration
type SearchConfig struct {
	DefaultLimit        int
	MaxLimit            int
	MaxSuggestions      int
	LocationSuggestions int
	PropertySuggestions int
	MinQueryLength      int
	CorpusSize          int
	CorpusRefresh       time.Duration
}

// RankingConfig holds match scorer weights
type RankingConfig struct {
	WeightBudget       float64
	WeightBedrooms     float64
	WeightLocation     float64
	WeightAvailability float64
	NetworkBoost       float64
}

// GeocodingConfig holds the Nominatim-compatible geocoder settings
type GeocodingConfig struct {
	BaseURL     string
	UserAgent   string
	CountryCode string
	Timeout     time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "rentmatch"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			AutoMigrate:        getEnvAsBool("PG_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "rentmatch:geocode:"),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Session-ID"),
		},
		Search: SearchConfig{
			DefaultLimit:        getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:            getEnvAsInt("SEARCH_MAX_LIMIT", 100),
			MaxSuggestions:      getEnvAsInt("SUGGEST_MAX_RESULTS", 8),
			LocationSuggestions: getEnvAsInt("SUGGEST_LOCATION_LIMIT", 5),
			PropertySuggestions: getEnvAsInt("SUGGEST_PROPERTY_LIMIT", 3),
			MinQueryLength:      getEnvAsInt("SUGGEST_MIN_QUERY_LENGTH", 2),
			CorpusSize:          getEnvAsInt("SEARCH_CORPUS_SIZE", 5000),
			CorpusRefresh:       getEnvAsDuration("SEARCH_CORPUS_REFRESH", 5*time.Minute),
		},
		Ranking: RankingConfig{
			WeightBudget:       getEnvAsFloat("RANK_WEIGHT_BUDGET", 0.4),
			WeightBedrooms:     getEnvAsFloat("RANK_WEIGHT_BEDROOMS", 0.3),
			WeightLocation:     getEnvAsFloat("RANK_WEIGHT_LOCATION", 0.2),
			WeightAvailability: getEnvAsFloat("RANK_WEIGHT_AVAILABILITY", 0.1),
			NetworkBoost:       getEnvAsFloat("RANK_NETWORK_BOOST", 1.1),
		},
		Geocoding: GeocodingConfig{
			BaseURL:     getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:   getEnv("GEOCODER_USER_AGENT", "rentmatch/1.0"),
			CountryCode: getEnv("GEOCODER_COUNTRY_CODES", ""),
			Timeout:     getEnvAsDuration("GEOCODER_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("SEARCH_MAX_LIMIT (%d) must be >= SEARCH_DEFAULT_LIMIT (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.MaxSuggestions <= 0 {
		return fmt.Errorf("SUGGEST_MAX_RESULTS must be positive, got %d", c.Search.MaxSuggestions)
	}
	if c.Ranking.NetworkBoost <= 0 {
		return fmt.Errorf("RANK_NETWORK_BOOST must be positive, got %f", c.Ranking.NetworkBoost)
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
