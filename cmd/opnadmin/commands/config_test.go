package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/penaku/opn-admin/internal/app"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	credentials := filepath.Join(t.TempDir(), "creds.json")
	path := writeConfig(t, `
log_level = "warn"
log_format = "json"

[backend]
base_url = "https://file.example"
timeout = "20s"

[storage]
durable = "file"
file = "`+filepath.ToSlash(credentials)+`"
session = true

[server]
port = 4100
`)

	tests := []struct {
		name    string
		environ []string
		args    []string
		check   func(t *testing.T, cfg *app.Config)
	}{
		{
			name: "file only",
			check: func(t *testing.T, cfg *app.Config) {
				if cfg.LogLevel != slog.LevelWarn || cfg.LogFormat != app.LogFormatJSON {
					t.Errorf("log = %v/%v", cfg.LogLevel, cfg.LogFormat)
				}
				if cfg.Backend.BaseURL != "https://file.example" || cfg.Backend.Timeout != 20*time.Second {
					t.Errorf("Backend = %+v", cfg.Backend)
				}
				if !cfg.Storage.Session || cfg.Server.Port != 4100 {
					t.Errorf("Storage = %+v, Server = %+v", cfg.Storage, cfg.Server)
				}
				if cfg.Backend.UploadTimeout != app.DefaultConfigUploadTimeout {
					t.Errorf("UploadTimeout = %v, want default", cfg.Backend.UploadTimeout)
				}
			},
		},
		{
			name:    "env overrides file",
			environ: []string{"OPNADMIN_BACKEND__BASE_URL=https://env.example", "OPNADMIN_LOG_LEVEL=debug", "UNRELATED=1"},
			check: func(t *testing.T, cfg *app.Config) {
				if cfg.Backend.BaseURL != "https://env.example" {
					t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
				}
				if cfg.LogLevel != slog.LevelDebug {
					t.Errorf("LogLevel = %v", cfg.LogLevel)
				}
			},
		},
		{
			name:    "flags override env",
			environ: []string{"OPNADMIN_BACKEND__BASE_URL=https://env.example"},
			args:    []string{"--backend--base-url", "https://flag.example", "--log-format", "text"},
			check: func(t *testing.T, cfg *app.Config) {
				if cfg.Backend.BaseURL != "https://flag.example" {
					t.Errorf("BaseURL = %q", cfg.Backend.BaseURL)
				}
				if cfg.LogFormat != app.LogFormatText {
					t.Errorf("LogFormat = %q", cfg.LogFormat)
				}
				// Unset flags keep the file value rather than the flag default
				if cfg.LogLevel != slog.LevelWarn {
					t.Errorf("LogLevel = %v", cfg.LogLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				cfg     *app.Config
				loadErr error
			)
			cmd := &cli.Command{
				Name: "test",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level", Value: "info"},
					&cli.StringFlag{Name: "log-format", Value: "text"},
					&cli.StringFlag{Name: "backend--base-url", Value: app.DefaultConfigBackendBaseURL},
					&cli.IntFlag{Name: "page", Value: 1},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, loadErr = loadConfig(path, cmd, func() []string { return tt.environ })
					return nil
				},
			}
			if err := cmd.Run(context.Background(), append([]string{"test"}, tt.args...)); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if loadErr != nil {
				t.Fatalf("loadConfig() error = %v", loadErr)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		environ []string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.toml")},
		{name: "invalid toml", path: writeConfig(t, "log_level = ")},
		{name: "invalid value", environ: []string{"OPNADMIN_STORAGE__DURABLE=floppy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := append([]string{"OPNADMIN_STORAGE__FILE=" + filepath.Join(t.TempDir(), "c.json")}, tt.environ...)
			if _, err := loadConfig(tt.path, nil, func() []string { return environ }); err == nil {
				t.Error("loadConfig() error = nil")
			}
		})
	}
}

func TestParseAttendance(t *testing.T) {
	records, err := parseAttendance([]string{"12=Hadir", "7=Izin:sakit"})
	if err != nil {
		t.Fatalf("parseAttendance() error = %v", err)
	}
	if len(records) != 2 || records[0].MemberID != 12 || records[0].Status != "Hadir" {
		t.Errorf("records = %+v", records)
	}
	if records[1].Notes != "sakit" {
		t.Errorf("notes = %q", records[1].Notes)
	}

	for _, bad := range [][]string{nil, {"12"}, {"x=Hadir"}} {
		if _, err := parseAttendance(bad); err == nil {
			t.Errorf("parseAttendance(%q) error = nil", bad)
		}
	}
}
