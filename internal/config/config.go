package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Log      LogConfig
	Security SecurityConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Driver string // sqlite3, postgres or mysql
	Path   string // SQLite database file path, or DSN for postgres/mysql

	BusyTimeoutMS int // SQLite busy_timeout in milliseconds
}

// LogConfig contains diagnostic logging settings.
type LogConfig struct {
	Level  string // logrus level name
	Format string // "text" or "json"
}

// SecurityConfig contains credential storage settings.
type SecurityConfig struct {
	HashPasswords bool // store bcrypt hashes instead of plain text
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "users.db",

			BusyTimeoutMS: 5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from, in increasing precedence: built-in
// defaults, the INI file at iniPath (or $USERCTL_CONFIG), a .env file in the
// working directory and the process environment.
func Load(iniPath string) (*Config, error) {
	cfg := Default()

	if iniPath == "" {
		iniPath = getEnv("USERCTL_CONFIG", "")
	}
	if iniPath != "" {
		if err := applyINI(cfg, iniPath); err != nil {
			return nil, err
		}
	}

	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	busy, err := getEnvInt("DB_BUSY_TIMEOUT_MS", cfg.Database.BusyTimeoutMS)
	if err != nil {
		return nil, err
	}
	cfg.Database.BusyTimeoutMS = busy
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	hash, err := getEnvBool("HASH_PASSWORDS", cfg.Security.HashPasswords)
	if err != nil {
		return nil, err
	}
	cfg.Security.HashPasswords = hash

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyINI overlays values from an INI file:
//
//	[database]
//	driver = sqlite3
//	path   = users.db
//	busy_timeout_ms = 5000
//	[log]
//	level  = debug
//	format = json
//	[security]
//	hash_passwords = true
func applyINI(cfg *Config, path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	db := f.Section("database")
	cfg.Database.Driver = db.Key("driver").MustString(cfg.Database.Driver)
	cfg.Database.Path = db.Key("path").MustString(cfg.Database.Path)
	if db.HasKey("busy_timeout_ms") {
		v, err := db.Key("busy_timeout_ms").Int()
		if err != nil {
			return fmt.Errorf("invalid integer for database.busy_timeout_ms: %w", err)
		}
		cfg.Database.BusyTimeoutMS = v
	}

	lg := f.Section("log")
	cfg.Log.Level = lg.Key("level").MustString(cfg.Log.Level)
	cfg.Log.Format = lg.Key("format").MustString(cfg.Log.Format)

	sec := f.Section("security")
	if sec.HasKey("hash_passwords") {
		v, err := sec.Key("hash_passwords").Bool()
		if err != nil {
			return fmt.Errorf("invalid boolean for security.hash_passwords: %w", err)
		}
		cfg.Security.HashPasswords = v
	}
	return nil
}

// Validate reports settings the tool cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is empty")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy timeout must not be negative, got %d", c.Database.BusyTimeoutMS)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

// getEnvBool retrieves an environment variable as a boolean with a default fallback.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	}
	return defaultVal, nil
}

var passwordKV = regexp.MustCompile(`password=\S+`)

// maskDSN hides credentials in URL, MySQL and key=value style DSNs.
func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if colon := strings.Index(dsn[:at], ":"); colon >= 0 {
			return dsn[:colon+1] + "***" + dsn[at:]
		}
	}
	return passwordKV.ReplaceAllString(dsn, "password=***")
}

// String returns a string representation of the config (credentials are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s %s, Log: %s/%s, HashPasswords: %t}",
		c.Database.Driver, maskDSN(c.Database.Path), c.Log.Level, c.Log.Format, c.Security.HashPasswords)
}
