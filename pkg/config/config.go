package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth providers accepted by AUTH_PROVIDER.
const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

const defaultJWTSecret = "safetrade-dev-secret"

type Config struct {
	// DotEnvLoaded reports whether a .env file was found and read.
	DotEnvLoaded            bool
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	Redis                   RedisConfig
	Auth                    AuthConfig
	Logging                 LoggingConfig
	Phone                   PhoneConfig
	SafeZonesSeedFile       string
	AllowedOrigins          []string
	ShutdownTimeout         time.Duration
}

// RedisConfig points at the Redis instance used for phone codes and realtime events.
// An empty Addr switches both to in-process implementations.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Provider        string
	JWTSecret       string
	TokenTTL        time.Duration
	SigninPerMinute int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

// PhoneConfig tunes one-time code delivery for phone verification.
type PhoneConfig struct {
	CodeTTL       time.Duration
	MaxAttempts   int
	SendPerMinute int
}

// Load reads the .env file (when present) and the process environment.
func Load() (*Config, error) {
	dotEnvErr := godotenv.Load()

	cfg := &Config{
		DotEnvLoaded:            dotEnvErr == nil,
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "production"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresConnStr:         os.Getenv("POSTGRES_CONN_STR"),
		MongoURI:                os.Getenv("MONGO_URI"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "safetrade"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			Provider:  strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderJWT)),
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  72 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Phone: PhoneConfig{
			CodeTTL:     10 * time.Minute,
			MaxAttempts: 5,
		},
		SafeZonesSeedFile: os.Getenv("SAFE_ZONES_SEED_FILE"),
		AllowedOrigins:    splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		ShutdownTimeout:   10 * time.Second,
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Phone.SendPerMinute, err = getInt("PHONE_SEND_PER_MINUTE", 3); err != nil {
		return nil, err
	}
	if cfg.Auth.SigninPerMinute, err = getInt("SIGNIN_PER_MINUTE", 10); err != nil {
		return nil, err
	}
	if cfg.Phone.CodeTTL, err = getDuration("PHONE_CODE_TTL", cfg.Phone.CodeTTL); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL, err = getDuration("JWT_TTL", cfg.Auth.TokenTTL); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment is true only when ENV=development is set explicitly. It enables the
// fallback JWT secret and logging of phone codes.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) validate() error {
	if c.PostgresConnStr == "" {
		return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI environment variable not set")
	}
	switch c.Auth.Provider {
	case AuthProviderJWT:
	case AuthProviderFirebase:
		if c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required when AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", c.Auth.Provider)
	}
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET environment variable not set")
		}
		c.Auth.JWTSecret = defaultJWTSecret
	}
	if c.Auth.SigninPerMinute < 1 {
		return fmt.Errorf("SIGNIN_PER_MINUTE must be positive, got %d", c.Auth.SigninPerMinute)
	}
	if c.Phone.SendPerMinute < 1 {
		return fmt.Errorf("PHONE_SEND_PER_MINUTE must be positive, got %d", c.Phone.SendPerMinute)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
