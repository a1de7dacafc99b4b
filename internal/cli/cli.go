package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"userctl/internal/config"
	"userctl/internal/db"
	"userctl/internal/logging"
	"userctl/models"
	"userctl/repository"
)

// Seed user written by initialize.
const (
	seedUsername = "bob"
	seedEmail    = "bob@mail.com"
	seedPassword = "bobpass"
)

// App bundles dependencies shared by every command. A nil Config is loaded
// from flags and the environment before the first command runs; a nil Log
// is built from the loaded config and writes to the command's stderr.
type App struct {
	Config *config.Config
	Log    *logrus.Logger

	configPath string
	dbPath     string
	driver     string
	debug      bool
}

// NewRootCommand builds the userctl command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "userctl",
		Short:         "Create, read, update and delete users in the users table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&app.configPath, "config", "", "path to an INI config file (default $USERCTL_CONFIG)")
	pf.StringVar(&app.dbPath, "db", "", "SQLite file path or DSN, overrides DB_PATH")
	pf.StringVar(&app.driver, "driver", "", "database driver: sqlite3, postgres or mysql")
	pf.BoolVar(&app.debug, "debug", false, "enable debug logging, including SQL")

	root.AddCommand(
		app.initializeCmd(),
		app.getUserCmd(),
		app.getAllUsersCmd(),
		app.changeEmailCmd(),
		app.createUserCmd(),
		app.deleteUserCmd(),
		app.findUserCmd(),
		app.paginatedTableCmd(),
		app.checkPasswordCmd(),
	)
	return root
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Config == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		a.Config.Database.Path = a.dbPath
	}
	if flags.Changed("driver") {
		a.Config.Database.Driver = a.driver
	}
	if a.debug {
		a.Config.Log.Level = "debug"
	}
	if err := a.Config.Validate(); err != nil {
		return err
	}

	if a.Log == nil {
		log, err := logging.NewWithWriter(a.Config.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.Log = log
	} else if a.debug {
		a.Log.SetLevel(logrus.DebugLevel)
	}
	a.Log.WithField("config", a.Config.String()).Debug("configuration loaded")
	return nil
}

// Logger returns the app logger, or a logger writing to w when setup never
// built one.
func (a *App) Logger(w io.Writer) *logrus.Logger {
	if a.Log != nil {
		return a.Log
	}
	log := logrus.New()
	log.SetOutput(w)
	return log
}

// withUsers runs fn against a repository bound to a fresh session.
// The session is released when fn returns.
func (a *App) withUsers(ctx context.Context, fn func(*repository.UserRepository) error) error {
	return db.WithSession(ctx, a.Config.Database, a.Log, func(s *db.Session) error {
		return fn(repository.NewUserRepository(s.ORM))
	})
}

func printUsers(w io.Writer, users []models.User) {
	for _, u := range users {
		fmt.Fprintln(w, u)
	}
}
