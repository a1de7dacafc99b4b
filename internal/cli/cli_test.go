package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userctl/internal/config"
	"userctl/internal/logging"
	"userctl/internal/testutil"
	"userctl/repository"
)

func newApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Database = testutil.TempFileConfig(t)
	return &App{Config: cfg, Log: testutil.QuietLogger()}
}

// run executes one command the way a separate process invocation would.
func run(t *testing.T, app *App, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, app *App, args ...string) string {
	t.Helper()
	out, err := run(t, app, "", args...)
	require.NoError(t, err, "userctl %v", args)
	return out
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestInitializeScenario(t *testing.T) {
	app := newApp(t)

	assert.Equal(t, "Database Initialized\n", mustRun(t, app, "initialize"))
	assert.Equal(t, "id=1 username='bob' email='bob@mail.com' password='bobpass'\n", mustRun(t, app, "get-user", "bob"))

	assert.Equal(t, "Username or email already taken!\n", mustRun(t, app, "create-user", "bob", "x@mail.com", "pw"))
	assert.Len(t, lines(mustRun(t, app, "get-all-users")), 1)

	assert.Equal(t, "bob deleted\n", mustRun(t, app, "delete-user", "bob"))
	assert.Equal(t, "bob not found!\n", mustRun(t, app, "get-user", "bob"))
}

func TestInitializeWipesData(t *testing.T) {
	app := newApp(t)
	mustRun(t, app, "initialize")
	mustRun(t, app, "create-user", "alice", "alice@mail.com", "pw")
	require.Len(t, lines(mustRun(t, app, "get-all-users")), 2)

	mustRun(t, app, "initialize")
	assert.Equal(t, []string{"id=1 username='bob' email='bob@mail.com' password='bobpass'"}, lines(mustRun(t, app, "get-all-users")))
}

func TestCreateAndGetUser(t *testing.T) {
	app := newApp(t)
	assert.Equal(t, "No users found\n", mustRun(t, app, "get-all-users"))

	out := mustRun(t, app, "create-user", "alice", "alice@mail.com", "secret")
	assert.Equal(t, "id=1 username='alice' email='alice@mail.com' password='secret'\n", out)
	assert.Equal(t, out, mustRun(t, app, "get-user", "alice"))

	// Duplicate email with a fresh username is rejected too.
	assert.Equal(t, "Username or email already taken!\n", mustRun(t, app, "create-user", "alice2", "alice@mail.com", "pw"))
	assert.Len(t, lines(mustRun(t, app, "get-all-users")), 1)
}

func TestCreateUser_PasswordFromStdin(t *testing.T) {
	app := newApp(t)
	out, err := run(t, app, "piped-secret\n", "create-user", "carol", "carol@mail.com")
	require.NoError(t, err)
	assert.Contains(t, out, "password='piped-secret'")
}

func TestCreateUser_EmptyPasswordFails(t *testing.T) {
	app := newApp(t)
	_, err := run(t, app, "\n", "create-user", "carol", "carol@mail.com")
	require.Error(t, err)
	assert.Equal(t, "No users found\n", mustRun(t, app, "get-all-users"))
}

func TestChangeEmail(t *testing.T) {
	app := newApp(t)
	mustRun(t, app, "initialize")
	mustRun(t, app, "create-user", "alice", "alice@mail.com", "pw")

	assert.Equal(t, "Updated bob's email to bob@new.com\n", mustRun(t, app, "change-email", "bob", "bob@new.com"))
	assert.Equal(t, "id=1 username='bob' email='bob@new.com' password='bobpass'\n", mustRun(t, app, "get-user", "bob"))

	assert.Equal(t, "ghost not found! Unable to update email.\n", mustRun(t, app, "change-email", "ghost", "g@mail.com"))
	assert.Equal(t, "Email alice@mail.com already taken! Unable to update email.\n", mustRun(t, app, "change-email", "bob", "alice@mail.com"))
	assert.Contains(t, mustRun(t, app, "get-user", "bob"), "email='bob@new.com'")
}

func TestDeleteUser_NotFound(t *testing.T) {
	app := newApp(t)
	assert.Equal(t, "ghost not found! Unable to delete user.\n", mustRun(t, app, "delete-user", "ghost"))
}

func TestFindUser(t *testing.T) {
	app := newApp(t)
	mustRun(t, app, "initialize")
	mustRun(t, app, "create-user", "alice", "alice@example.org", "pw")
	mustRun(t, app, "create-user", "carol", "carol@mail.com", "pw")

	assert.Len(t, lines(mustRun(t, app, "find-user", "mail.com")), 2)
	assert.Len(t, lines(mustRun(t, app, "find-user", "")), 3)
	assert.Equal(t, []string{"id=2 username='alice' email='alice@example.org' password='pw'"}, lines(mustRun(t, app, "find-user", "ali")))
	assert.Equal(t, "No users found matching \"zzz\"\n", mustRun(t, app, "find-user", "zzz"))
}

func TestPaginatedTable(t *testing.T) {
	app := newApp(t)
	for _, n := range []string{"u1", "u2", "u3", "u4"} {
		mustRun(t, app, "create-user", n, n+"@mail.com", "pw")
	}

	first := lines(mustRun(t, app, "paginated-table", "--limit", "2"))
	second := lines(mustRun(t, app, "paginated-table", "--limit", "2", "--offset", "2"))
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.ElementsMatch(t, lines(mustRun(t, app, "get-all-users")), append(first, second...))

	assert.Len(t, lines(mustRun(t, app, "paginated-table")), 4)
	assert.Equal(t, "No users found\n", mustRun(t, app, "paginated-table", "--offset", "4"))

	_, err := run(t, app, "", "paginated-table", "--limit=-1")
	assert.ErrorIs(t, err, repository.ErrInvalidPage)
}

func TestHashedPasswords(t *testing.T) {
	app := newApp(t)
	app.Config.Security.HashPasswords = true

	out := mustRun(t, app, "create-user", "dave", "dave@mail.com", "hunter2")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "password='$2")

	assert.Equal(t, "Password matches\n", mustRun(t, app, "check-password", "dave", "hunter2"))
	assert.Equal(t, "Password does not match\n", mustRun(t, app, "check-password", "dave", "nope"))
	assert.Equal(t, "ghost not found!\n", mustRun(t, app, "check-password", "ghost", "x"))
}

func TestStorageFailureIsAnError(t *testing.T) {
	app := newApp(t)
	app.Config.Database.Path = filepath.Join(t.TempDir(), "missing", "users.db")
	_, err := run(t, app, "", "get-all-users")
	assert.Error(t, err)
}

func TestArgumentValidation(t *testing.T) {
	app := newApp(t)
	_, err := run(t, app, "", "get-user")
	assert.Error(t, err)
	_, err = run(t, app, "", "change-email", "bob")
	assert.Error(t, err)
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	{
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	path := filepath.Join(t.TempDir(), "flag.db")
	app := &App{Log: testutil.QuietLogger()}

	out, err := run(t, app, "", "--db", path, "initialize")
	require.NoError(t, err)
	assert.Equal(t, "Database Initialized\n", out)
	assert.Equal(t, path, app.Config.Database.Path)

	_, err = run(t, &App{Log: testutil.QuietLogger()}, "", "--db", path, "--driver", "oracle", "get-all-users")
	assert.Error(t, err)
}

func TestExpectedFailuresLogNothing(t *testing.T) {
	var logs bytes.Buffer
	log, err := logging.NewWithWriter(config.LogConfig{Level: "info"}, &logs)
	require.NoError(t, err)
	app := newApp(t)
	app.Log = log

	mustRun(t, app, "initialize")
	mustRun(t, app, "create-user", "alice", "alice@mail.com", "alicepw")
	logs.Reset()

	assert.Equal(t, "Username or email already taken!\n", mustRun(t, app, "create-user", "bob", "x@mail.com", "topsecretpw"))
	assert.Equal(t, "Email bob@mail.com already taken! Unable to update email.\n", mustRun(t, app, "change-email", "alice", "bob@mail.com"))
	assert.Equal(t, "ghost not found!\n", mustRun(t, app, "get-user", "ghost"))

	assert.Empty(t, logs.String())
	assert.NotContains(t, logs.String(), "topsecretpw")
}

func TestCreateUserHelpMentionsEmptyPassword(t *testing.T) {
	app := newApp(t)
	out := mustRun(t, app, "create-user", "--help")
	assert.Contains(t, out, "An empty password is rejected")

	_, err := run(t, app, "\n", "create-user", "erin", "erin@mail.com")
	assert.Error(t, err)
	assert.Equal(t, "No users found\n", mustRun(t, app, "get-all-users"))
}
