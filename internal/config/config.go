package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port                   string
	ManualRefreshPerMinute int

	// Ledger store
	LedgerBackend string
	SQLiteDBPath  string
	LedgerUser    string
	DataDirectory string

	// AMQP, disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Refresh coordinator
	RefreshDebounce    time.Duration
	RefreshMinInterval time.Duration
	RefreshRerunPolicy string
	SummaryCacheSize   int

	// Ledger rules
	SplitPolicy    string
	SalaryCategory string

	RolloverCheckInterval time.Duration

	LogLevel string
}

var (
	validBackends      = []string{"memory", "sqlite"}
	validSplitPolicies = []string{"exact", "keep-remainder"}
	validRerunPolicies = []string{"queue", "drop"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port:                   getEnv("PORT", "8081"),
		ManualRefreshPerMinute: getEnvInt("MANUAL_REFRESH_PER_MINUTE", 6),

		LedgerBackend: getEnv("LEDGER_BACKEND", "sqlite"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/budgetflow.db"),
		LedgerUser:    getEnv("LEDGER_USER", "default"),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		RefreshDebounce:    getEnvDuration("REFRESH_DEBOUNCE", 200*time.Millisecond),
		RefreshMinInterval: getEnvDuration("REFRESH_MIN_INTERVAL", 500*time.Millisecond),
		RefreshRerunPolicy: getEnv("REFRESH_RERUN_POLICY", "queue"),
		SummaryCacheSize:   getEnvInt("SUMMARY_CACHE_SIZE", 36),

		SplitPolicy:    getEnv("SPLIT_POLICY", "exact"),
		SalaryCategory: getEnv("SALARY_CATEGORY", "Salary"),

		RolloverCheckInterval: getEnvDuration("ROLLOVER_CHECK_INTERVAL", time.Minute),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.ManualRefreshPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid manual refresh limit %d: must be at least 1", c.ManualRefreshPerMinute))
	}

	if !slices.Contains(validBackends, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.LedgerBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
		if strings.TrimSpace(c.LedgerUser) == "" {
			errors = append(errors, "ledger user cannot be empty when using sqlite backend")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate refresh timing
	if c.RefreshDebounce < 0 {
		errors = append(errors, fmt.Sprintf("invalid refresh debounce %v: must not be negative", c.RefreshDebounce))
	} else if c.RefreshDebounce > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh debounce %v: must be at most 1 minute", c.RefreshDebounce))
	}
	if c.RefreshMinInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid refresh min interval %v: must not be negative", c.RefreshMinInterval))
	} else if c.RefreshMinInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh min interval %v: must be at most 1 hour", c.RefreshMinInterval))
	}
	if !slices.Contains(validRerunPolicies, c.RefreshRerunPolicy) {
		errors = append(errors, fmt.Sprintf("invalid refresh rerun policy '%s': must be one of %v", c.RefreshRerunPolicy, validRerunPolicies))
	}
	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}

	if !slices.Contains(validSplitPolicies, c.SplitPolicy) {
		errors = append(errors, fmt.Sprintf("invalid split policy '%s': must be one of %v", c.SplitPolicy, validSplitPolicies))
	}
	if strings.TrimSpace(c.SalaryCategory) == "" {
		errors = append(errors, "salary category cannot be empty")
	}

	if c.RolloverCheckInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rollover check interval %v: must be at least 1 second", c.RolloverCheckInterval))
	} else if c.RolloverCheckInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rollover check interval %v: must be at most 24 hours", c.RolloverCheckInterval))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// AMQPEnabled reports whether ledger events also travel over AMQP.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
