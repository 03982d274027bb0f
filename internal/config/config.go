package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port         string
	CookieSecure bool

	// Database
	DBDriver          string
	SQLiteDBPath      string
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBQueryTimeout    time.Duration
	DBWriteTimeout    time.Duration

	// Sessions
	SessionTTL time.Duration
	SessionMax int

	// Import and report
	UploadMaxBytes      int64
	PreviewRows         int
	LoginRatePerMinute  int
	UploadRatePerMinute int
	ReportCacheTTL      time.Duration

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets import source, disabled when GoogleSpreadsheetID is empty
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/asetmon.db"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 3306),
		DBUser:            getEnv("DB_USER", "root"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "monitoring_aset"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBQueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		DBWriteTimeout:    getEnvDuration("DB_WRITE_TIMEOUT", 60*time.Second),

		SessionTTL: getEnvDuration("SESSION_TTL", 8*time.Hour),
		SessionMax: getEnvInt("SESSION_MAX", 1000),

		UploadMaxBytes:      int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		PreviewRows:         getEnvInt("PREVIEW_ROWS", 5),
		LoginRatePerMinute:  getEnvInt("LOGIN_RATE_PER_MINUTE", 20),
		UploadRatePerMinute: getEnvInt("UPLOAD_RATE_PER_MINUTE", 10),
		ReportCacheTTL:      getEnvDuration("REPORT_CACHE_TTL", time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "asetmon"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "assets_imported"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         getEnv("GOOGLE_SHEET_RANGE", "Sheet1!A:J"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite driver")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "mysql":
		if c.DBHost == "" {
			errors = append(errors, "DB_HOST is required when using mysql driver")
		}
		if c.DBName == "" {
			errors = append(errors, "DB_NAME is required when using mysql driver")
		}
		if c.DBPort < 1 || c.DBPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid database port %d: must be between 1 and 65535", c.DBPort))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of [sqlite mysql]", c.DBDriver))
	}

	if c.DBMaxOpenConns < 1 {
		errors = append(errors, fmt.Sprintf("invalid max open connections %d: must be at least 1", c.DBMaxOpenConns))
	}
	if c.DBQueryTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid query timeout %v: must be at least 100ms", c.DBQueryTimeout))
	}
	if c.DBWriteTimeout < c.DBQueryTimeout {
		errors = append(errors, fmt.Sprintf("invalid write timeout %v: must not be shorter than the query timeout", c.DBWriteTimeout))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session max %d: must be at least 1", c.SessionMax))
	}

	if c.UploadMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid upload limit %d: must be at least 1024 bytes", c.UploadMaxBytes))
	} else if c.UploadMaxBytes > 100<<20 {
		errors = append(errors, fmt.Sprintf("invalid upload limit %d: must be at most 100MB", c.UploadMaxBytes))
	}
	if c.PreviewRows < 1 || c.PreviewRows > 100 {
		errors = append(errors, fmt.Sprintf("invalid preview rows %d: must be between 1 and 100", c.PreviewRows))
	}
	if c.LoginRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate %d: must be at least 1 per minute", c.LoginRatePerMinute))
	}
	if c.UploadRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid upload rate %d: must be at least 1 per minute", c.UploadRatePerMinute))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}

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

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetRange == "" {
			errors = append(errors, "GOOGLE_SHEET_RANGE cannot be empty when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// MySQLAddr describes the MySQL target without credentials, for logs.
func (c *Config) MySQLAddr() string {
	return fmt.Sprintf("%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
