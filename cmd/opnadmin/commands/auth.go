package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/penaku/opn-admin/internal/app"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and store the credentials",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "account username (prompted if omitted)",
			},
			&cli.StringFlag{
				Name:    "password",
				Sources: cli.EnvVars("OPNADMIN_PASSWORD"),
				Usage:   "account password (prompted if omitted)",
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			username := cmd.String("username")
			password := cmd.String("password")

			stdin := bufio.NewReader(os.Stdin)
			if username == "" {
				var err error
				if username, err = prompt(stdin, "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				var err error
				if password, err = promptPassword(stdin, "Password: "); err != nil {
					return err
				}
			}

			returnPath, err := application.Login(ctx, username, password)
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			fmt.Fprintln(out, "Logged in.")
			if returnPath != "" {
				fmt.Fprintln(out, "Continue at:", returnPath)
			}
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "clear the stored credentials",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			application.Logout(ctx)
			fmt.Fprintln(cmd.Root().Writer, "Logged out.")
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored session",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			st := application.Status(ctx)
			out := cmd.Root().Writer

			if !st.Authenticated {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}
			fmt.Fprintln(out, "Logged in:    ", st.LoggedIn)
			fmt.Fprintln(out, "Access token: ", st.AccessToken)
			fmt.Fprintln(out, "Refreshable:  ", st.HasRefreshToken)
			if !st.IssuedAt.IsZero() {
				fmt.Fprintln(out, "Issued at:    ", st.IssuedAt.Local().Format(time.RFC1123))
			}
			return nil
		}),
	}
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("no value entered")
	}
	return value, nil
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(r *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(r, label)
	}

	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(b) == 0 {
		return "", errors.New("no password entered")
	}
	return string(b), nil
}
