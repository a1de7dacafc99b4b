package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"userctl/internal/auth"
	"userctl/internal/db"
	"userctl/models"
	"userctl/repository"
)

func (a *App) initializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initialize",
		Short: "Initialize the database with a default user (bob)",
		Long:  "Drop every table, recreate the schema and insert the default user bob. All existing data is lost.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return db.WithSession(ctx, a.Config.Database, a.Log, func(s *db.Session) error {
				if err := s.ResetSchema(ctx); err != nil {
					return err
				}
				pw, err := auth.Prepare(seedPassword, a.Config.Security.HashPasswords)
				if err != nil {
					return err
				}
				bob := &models.User{Username: seedUsername, Email: seedEmail, Password: pw}
				if _, err := repository.NewUserRepository(s.ORM).Create(ctx, bob); err != nil {
					return fmt.Errorf("seed user: %w", err)
				}
				a.Log.WithField("id", bob.ID).Debug("seed user created")
				fmt.Fprintln(cmd.OutOrStdout(), "Database Initialized")
				return nil
			})
		},
	}
}

func (a *App) getUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-user USERNAME",
		Short: "Get a user by username and print it to the console",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				u, err := users.GetByUsername(cmd.Context(), username)
				if errors.Is(err, repository.ErrNotFound) {
					fmt.Fprintf(out, "%s not found!\n", username)
					return nil
				}
				if err != nil {
					return fmt.Errorf("get user %s: %w", username, err)
				}
				fmt.Fprintln(out, u)
				return nil
			})
		},
	}
}

func (a *App) getAllUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-all-users",
		Short: "Get all users and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				all, err := users.All(cmd.Context())
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}
				if len(all) == 0 {
					fmt.Fprintln(out, "No users found")
					return nil
				}
				printUsers(out, all)
				return nil
			})
		},
	}
}

func (a *App) changeEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-email USERNAME NEW_EMAIL",
		Short: "Change a user's email address by username",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, email := args[0], args[1]
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				u, err := users.UpdateEmail(cmd.Context(), username, email)
				switch {
				case errors.Is(err, repository.ErrNotFound):
					fmt.Fprintf(out, "%s not found! Unable to update email.\n", username)
					return nil
				case errors.Is(err, repository.ErrDuplicate):
					fmt.Fprintf(out, "Email %s already taken! Unable to update email.\n", email)
					return nil
				case err != nil:
					return fmt.Errorf("change email for %s: %w", username, err)
				}
				fmt.Fprintf(out, "Updated %s's email to %s\n", u.Username, u.Email)
				return nil
			})
		},
	}
}

func (a *App) createUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user USERNAME EMAIL [PASSWORD]",
		Short: "Create a new user with the given username, email and password",
		Long: "Create a new user with the given username, email and password.\n" +
			"Without PASSWORD it is prompted for on a terminal, or read as one line from stdin.\n" +
			"An empty password is rejected and nothing is stored.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, email := args[0], args[1]
			var plain string
			if len(args) == 3 {
				plain = args[2]
			} else {
				p, err := readPassword(cmd)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				plain = p
			}
			pw, err := auth.Prepare(plain, a.Config.Security.HashPasswords)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				u, err := users.Create(cmd.Context(), &models.User{Username: username, Email: email, Password: pw})
				if errors.Is(err, repository.ErrDuplicate) {
					fmt.Fprintln(out, "Username or email already taken!")
					return nil
				}
				if err != nil {
					return fmt.Errorf("create user %s: %w", username, err)
				}
				fmt.Fprintln(out, u)
				return nil
			})
		},
	}
}

func (a *App) deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user USERNAME",
		Short: "Delete a user by the given username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				err := users.DeleteByUsername(cmd.Context(), username)
				if errors.Is(err, repository.ErrNotFound) {
					fmt.Fprintf(out, "%s not found! Unable to delete user.\n", username)
					return nil
				}
				if err != nil {
					return fmt.Errorf("delete user %s: %w", username, err)
				}
				fmt.Fprintf(out, "%s deleted\n", username)
				return nil
			})
		},
	}
}

func (a *App) findUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find-user QUERY",
		Short: "Find users by partial match of username or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				found, err := users.Find(cmd.Context(), query)
				if err != nil {
					return fmt.Errorf("find users matching %q: %w", query, err)
				}
				if len(found) == 0 {
					fmt.Fprintf(out, "No users found matching \"%s\"\n", query)
					return nil
				}
				printUsers(out, found)
				return nil
			})
		},
	}
}

func (a *App) paginatedTableCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "paginated-table",
		Short: "List users using pagination with limit and offset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				page, err := users.Page(cmd.Context(), limit, offset)
				if err != nil {
					return fmt.Errorf("page users (limit=%d offset=%d): %w", limit, offset, err)
				}
				if len(page) == 0 {
					fmt.Fprintln(out, "No users found")
					return nil
				}
				printUsers(out, page)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of users returned per page")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of users to skip before starting to return results")
	return cmd
}

func (a *App) checkPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password USERNAME PASSWORD",
		Short: "Check a password against the stored one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, plain := args[0], args[1]
			out := cmd.OutOrStdout()
			return a.withUsers(cmd.Context(), func(users *repository.UserRepository) error {
				u, err := users.GetByUsername(cmd.Context(), username)
				if errors.Is(err, repository.ErrNotFound) {
					fmt.Fprintf(out, "%s not found!\n", username)
					return nil
				}
				if err != nil {
					return fmt.Errorf("get user %s: %w", username, err)
				}
				if auth.CheckPassword(u.Password, plain) {
					fmt.Fprintln(out, "Password matches")
				} else {
					fmt.Fprintln(out, "Password does not match")
				}
				return nil
			})
		},
	}
}

// readPassword prompts without echo when stdin is a terminal and otherwise
// reads a single line.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
