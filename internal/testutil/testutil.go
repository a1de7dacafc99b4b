package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"userctl/internal/config"
	"userctl/internal/db"
)

// InMemoryConfig returns a database config for a shared-cache in-memory
// SQLite database. The database lives as long as one connection to it is open.
func InMemoryConfig(name string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   "file:" + name + "?mode=memory&cache=shared",
	}
}

// TempFileConfig returns a database config for a SQLite file in a test temp dir.
func TempFileConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "users.db"),
	}
}

// OpenSession opens a migrated in-memory session whose ORM is ready for use.
func OpenSession(t *testing.T, name string) *db.Session {
	t.Helper()
	s, err := db.OpenSession(context.Background(), InMemoryConfig(name), QuietLogger())
	if err != nil {
		t.Fatalf("open test session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// OpenORM is a shorthand for OpenSession(t, name).ORM.
func OpenORM(t *testing.T, name string) *gorm.DB {
	t.Helper()
	return OpenSession(t, name).ORM
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
