package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/penaku/opn-admin/internal/apiclient"
	"github.com/penaku/opn-admin/internal/app"
	"github.com/penaku/opn-admin/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "opnadmin",
		Usage: "Organization admin backend client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "backend--base-url",
				Usage: "backend origin, without the API prefix",
				Value: app.DefaultConfigBackendBaseURL,
			},
			&cli.StringFlag{
				Name:  "storage--durable",
				Usage: "durable credential storage (file|keyring|env)",
				Value: string(app.DefaultConfigStorage),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "route logs through OpenTelemetry (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigTelemetryExporter),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			eventsCommand(),
			attendanceCommand(),
			membersCommand(),
			newsCommand(),
			minutesCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the debug-headers endpoint and the news photo upload proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			slog.InfoContext(ctx, "starting")

			if err := application.Start(ctx); err != nil {
				return fmt.Errorf("app failed to start: %w", err)
			}

			slog.InfoContext(ctx, "stopped gracefully")
			return nil
		}),
	}
}

// appAction is an action that needs a configured App.
type appAction func(ctx context.Context, cmd *cli.Command, application *app.App) error

// withApp loads the configuration, sets up logging and builds the App before
// running action. Canceled requests end the command quietly.
func withApp(action appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, observability.Options{
			Level:    cfg.LogLevel,
			Format:   observability.Format(cfg.LogFormat),
			Exporter: cfg.Telemetry.Exporter,
			Endpoint: cfg.Telemetry.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Shutdown.Timeout)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				fmt.Fprintln(os.Stderr, "flushing logs:", err)
			}
		}()

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return describe(action(ctx, cmd, application))
	}
}

// describe turns client errors into messages for the terminal.
func describe(err error) error {
	switch {
	case err == nil:
		return nil
	case apiclient.IsCanceled(err):
		slog.Debug("command canceled", "error", err)
		return nil
	case apiclient.IsAuthRequired(err):
		return errors.New("session expired or missing, run `opnadmin login`")
	}

	var statusErr *apiclient.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%s (HTTP %d)", apiclient.ErrorMessage(err), statusErr.StatusCode)
	}
	return err
}
