package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Lockout  LockoutConfig
	Verifier VerifierConfig
	Alert    AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AdminAPIKey    string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// LockoutConfig carries the lockout policy constants. These are policy
// decisions, not implementation details, so all of them come from the
// environment.
type LockoutConfig struct {
	MaxFailedAttempts   int
	LockoutDuration     time.Duration
	AttemptResetTimeout time.Duration
	SweepInterval       time.Duration
	SweepBatchSize      int
	SyncSettleDelay     time.Duration
	SyncMaxRetries      int
	StoreBackend        string // postgres, redis, or memory
}

type VerifierConfig struct {
	Mode    string // remote or local
	BaseURL string
	Timeout time.Duration
}

type AlertConfig struct {
	Enabled         bool
	AWSRegion       string
	FromAddress     string
	SecurityAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "lockbox"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AdminAPIKey:    getEnv("ADMIN_API_KEY", ""),
			TrustedProxies: parseTrustedProxies(),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts:   getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:     getEnvAsDuration("LOCKOUT_DURATION", 5*time.Minute),
			AttemptResetTimeout: getEnvAsDuration("LOCKOUT_ATTEMPT_RESET_TIMEOUT", 15*time.Minute),
			SweepInterval:       getEnvAsDuration("LOCKOUT_SWEEP_INTERVAL", 10*time.Minute),
			SweepBatchSize:      getEnvAsInt("LOCKOUT_SWEEP_BATCH_SIZE", 100),
			SyncSettleDelay:     getEnvAsDuration("LOCKOUT_SYNC_SETTLE_DELAY", 250*time.Millisecond),
			SyncMaxRetries:      getEnvAsInt("LOCKOUT_SYNC_MAX_RETRIES", 3),
			StoreBackend:        getEnv("LOCKOUT_STORE_BACKEND", "postgres"),
		},
		Verifier: VerifierConfig{
			Mode:    getEnv("VERIFIER_MODE", "remote"),
			BaseURL: getEnv("VERIFIER_BASE_URL", "http://localhost:9090"),
			Timeout: getEnvAsDuration("VERIFIER_TIMEOUT", 5*time.Second),
		},
		Alert: AlertConfig{
			Enabled:         getEnvAsBool("ALERT_ENABLED", false),
			AWSRegion:       getEnv("ALERT_AWS_REGION", "us-east-1"),
			FromAddress:     getEnv("ALERT_FROM_ADDRESS", ""),
			SecurityAddress: getEnv("ALERT_SECURITY_ADDRESS", ""),
		},
	}

	if cfg.Lockout.StoreBackend == "postgres" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when LOCKOUT_STORE_BACKEND=postgres")
	}

	if err := validateLockoutPolicy(&cfg.Lockout); err != nil {
		return nil, err
	}

	if err := validateAdminAPIKey(cfg.Server.AdminAPIKey, env); err != nil {
		return nil, err
	}

	if cfg.Alert.Enabled && cfg.Alert.FromAddress == "" {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS is required when alerts are enabled")
	}

	return cfg, nil
}

// validateLockoutPolicy rejects configurations that would disable the
// lockout entirely or make every record immortal.
func validateLockoutPolicy(cfg *LockoutConfig) error {
	if cfg.MaxFailedAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_FAILED_ATTEMPTS must be at least 1 (got %d)", cfg.MaxFailedAttempts)
	}
	if cfg.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive (got %s)", cfg.LockoutDuration)
	}
	if cfg.AttemptResetTimeout < cfg.LockoutDuration {
		return fmt.Errorf("LOCKOUT_ATTEMPT_RESET_TIMEOUT (%s) must not be shorter than LOCKOUT_DURATION (%s)",
			cfg.AttemptResetTimeout, cfg.LockoutDuration)
	}
	if cfg.SweepBatchSize < 1 {
		return fmt.Errorf("LOCKOUT_SWEEP_BATCH_SIZE must be at least 1 (got %d)", cfg.SweepBatchSize)
	}
	switch cfg.StoreBackend {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("LOCKOUT_STORE_BACKEND must be postgres, redis, or memory (got %q)", cfg.StoreBackend)
	}
	return nil
}

// validateAdminAPIKey enforces minimum strength for the admin API key
func validateAdminAPIKey(key, env string) error {
	if key == "" {
		if env == "production" {
			return fmt.Errorf("ADMIN_API_KEY is required in production")
		}
		return nil
	}

	minLength := 16
	if env == "production" {
		minLength = 32
	}
	if len(key) < minLength {
		return fmt.Errorf("ADMIN_API_KEY must be at least %d characters in %s environment (got %d)",
			minLength, env, len(key))
	}

	weakKeys := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	keyLower := strings.ToLower(key)
	for _, weak := range weakKeys {
		if keyLower == weak {
			return fmt.Errorf("ADMIN_API_KEY cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseTrustedProxies() []string {
	proxiesStr := getEnv("TRUSTED_PROXIES", "")
	if proxiesStr == "" {
		return nil
	}
	proxies := strings.Split(proxiesStr, ",")
	for i, proxy := range proxies {
		proxies[i] = strings.TrimSpace(proxy)
	}
	return proxies
}
