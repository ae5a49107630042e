package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/geocoder89/collegehub/internal/client"
	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/geocoder89/collegehub/internal/session"
	"github.com/geocoder89/collegehub/internal/tokenstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyAPIURL  = "api_url"
	keyState   = "state"
	keyTimeout = "timeout"
)

var errNotSignedIn = errors.New("not signed in")

// app is what every subcommand runs against.
type app struct {
	session *session.Session
	out     io.Writer
	close   func() error
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("COLLEGEHUB")
	v.AutomaticEnv()
	v.SetDefault(keyAPIURL, client.DefaultBaseURL)
	v.SetDefault(keyState, defaultStatePath())
	v.SetDefault(keyTimeout, 15*time.Second)

	root := &cobra.Command{
		Use:           "collegehub",
		Short:         "Sign in to the College Portal API from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("api-url", "", "API base URL (env COLLEGEHUB_API_URL)")
	root.PersistentFlags().String("state", "", "token database path (env COLLEGEHUB_STATE)")
	_ = v.BindPFlag(keyAPIURL, root.PersistentFlags().Lookup("api-url"))
	root.PersistentFlags().Duration("timeout", 0, "per-request timeout (env COLLEGEHUB_TIMEOUT)")
	_ = v.BindPFlag(keyState, root.PersistentFlags().Lookup("state"))
	_ = v.BindPFlag(keyTimeout, root.PersistentFlags().Lookup("timeout"))

	open := func(cmd *cobra.Command) (*app, error) {
		return openApp(cmd.Context(), v, cmd.OutOrStdout())
	}

	root.AddCommand(
		newRegisterCommand(open),
		newLoginCommand(open),
		newLogoutCommand(open),
		newWhoamiCommand(open),
	)

	return withErrorPrinting(root)
}

// withErrorPrinting reports every subcommand failure the same way.
func withErrorPrinting(root *cobra.Command) *cobra.Command {
	for _, cmd := range root.Commands() {
		run := cmd.RunE
		cmd.RunE = func(c *cobra.Command, args []string) error {
			err := run(c, args)
			if err != nil {
				fmt.Fprintln(c.ErrOrStderr(), displayError(err))
			}
			return err
		}
	}
	return root
}

// displayError shows server messages verbatim.
func displayError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, client.ErrUnreachable) {
		return "Could not reach the server"
	}
	return err.Error()
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "collegehub.db"
	}
	return filepath.Join(dir, "collegehub", "state.db")
}

func openApp(ctx context.Context, v *viper.Viper, out io.Writer) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	statePath := v.GetString(keyState)
	if err := os.MkdirAll(filepath.Dir(statePath), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	store, err := tokenstore.OpenSQLite(ctx, statePath)
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("COLLEGEHUB_DEBUG") != "" {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	api := client.New(v.GetString(keyAPIURL),
		client.WithHTTPClient(&http.Client{Timeout: v.GetDuration(keyTimeout)}),
	)
	nav := session.NavigatorFunc(func(view session.View) {
		log.Debug("navigate", "view", view)
	})

	return &app{
		session: session.New(api, store, nav, session.WithLogger(log)),
		out:     out,
		close:   store.Close,
	}, nil
}

func printUser(w io.Writer, u user.PublicView) {
	fmt.Fprintf(w, "%s <%s> (%s) id=%s\n", u.Name, u.Email, u.Role, u.ID)
}

func newRegisterCommand(open func(*cobra.Command) (*app, error)) *cobra.Command {
	var in client.RegisterRequest
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			in.Role = user.Role(role)
			u, err := a.session.SignUp(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, "User registered successfully")
			printUser(a.out, u)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", string(user.RoleStudent), "student or admin")
	return cmd
}

func newLoginCommand(open func(*cobra.Command) (*app, error)) *cobra.Command {
	var in client.LoginRequest
	var role string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			in.Role = user.Role(role)
			u, err := a.session.SignIn(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, "Login successful")
			printUser(a.out, u)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", string(user.RoleStudent), "student or admin")
	return cmd
}

func newLogoutCommand(open func(*cobra.Command) (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(open func(*cobra.Command) (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Bootstrap(cmd.Context()); err != nil {
				return err
			}

			u, ok := a.session.Current()
			if !ok {
				return errNotSignedIn
			}

			printUser(a.out, u)
			return nil
		},
	}
}
