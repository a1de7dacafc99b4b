package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"userctl/internal/config"
	"userctl/internal/logging"
)

// Session is a database handle scoped to one unit of work. The ORM shares
// the SQL connection pool, so closing the session releases both.
type Session struct {
	SQL *sql.DB
	ORM *gorm.DB

	driver string
	log    *logrus.Logger
}

// OpenSession opens the database described by cfg and binds an ORM to it.
func OpenSession(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*Session, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Driver == "" {
		cfg.Driver = config.DriverSQLite
	}
	d, err := Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	orm, err := gorm.Open(dialector(cfg.Driver, d), &gorm.Config{Logger: logging.Gorm(log)})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("open orm: %w", err)
	}
	log.WithField("driver", cfg.Driver).Debug("session opened")
	return &Session{SQL: d, ORM: orm, driver: cfg.Driver, log: log}, nil
}

func dialector(driver string, d *sql.DB) gorm.Dialector {
	switch driver {
	case config.DriverPostgres:
		return gormpostgres.New(gormpostgres.Config{Conn: d})
	case config.DriverMySQL:
		return gormmysql.New(gormmysql.Config{Conn: d})
	default:
		return &gormsqlite.Dialector{DriverName: "sqlite3", Conn: d}
	}
}

// ResetSchema drops every table and recreates the schema.
func (s *Session) ResetSchema(ctx context.Context) error {
	if err := Reset(ctx, s.SQL, s.driver); err != nil {
		return err
	}
	v, err := Version(ctx, s.SQL, s.driver)
	if err != nil {
		return err
	}
	s.log.WithField("version", v).Debug("schema recreated")
	return nil
}

// Close releases the session's connections.
func (s *Session) Close() error {
	if err := s.SQL.Close(); err != nil {
		return err
	}
	s.log.Debug("session closed")
	return nil
}

// WithSession opens a session, runs fn and closes the session whatever fn
// returns. A close failure is reported alongside fn's error.
func WithSession(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger, fn func(*Session) error) (err error) {
	s, err := OpenSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("close session: %w", cerr)).ErrorOrNil()
		}
	}()
	return fn(s)
}
