package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestInstrumentLocal(t *testing.T) {
	t.Cleanup(func(prev *slog.Logger) func() {
		return func() { slog.SetDefault(prev) }
	}(slog.Default()))

	tests := []struct {
		name   string
		format Format
		check  func(t *testing.T, out string)
	}{
		{
			name:   "text",
			format: FormatText,
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, "msg=visible") {
					t.Errorf("output = %q, want text record", out)
				}
			},
		},
		{
			name:   "json",
			format: FormatJSON,
			check: func(t *testing.T, out string) {
				var rec map[string]any
				if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
					t.Fatalf("output %q is not one JSON record: %v", out, err)
				}
				if rec["msg"] != "visible" {
					t.Errorf("msg = %v", rec["msg"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			shutdown, err := Instrument(context.Background(), Options{
				Level:  slog.LevelInfo,
				Format: tt.format,
				Writer: &buf,
			})
			if err != nil {
				t.Fatalf("Instrument() error = %v", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			slog.Debug("hidden")
			slog.Info("visible")

			if strings.Contains(buf.String(), "hidden") {
				t.Errorf("debug record written at info level: %q", buf.String())
			}
			tt.check(t, buf.String())
		})
	}
}

func TestInstrumentStdoutExporter(t *testing.T) {
	t.Cleanup(func(prev *slog.Logger) func() {
		return func() { slog.SetDefault(prev) }
	}(slog.Default()))

	var buf bytes.Buffer
	shutdown, err := Instrument(context.Background(), Options{
		Level:    slog.LevelWarn,
		Exporter: ExporterStdout,
		Writer:   &buf,
	})
	if err != nil {
		t.Fatalf("Instrument() error = %v", err)
	}

	slog.Info("filtered")
	slog.Warn("exported")

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "exported") {
		t.Errorf("output = %q, want exported record", buf.String())
	}
	if strings.Contains(buf.String(), "filtered") {
		t.Errorf("info record passed a warn threshold: %q", buf.String())
	}
}

func TestInstrumentRejectsUnknown(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "format", opts: Options{Format: "xml"}},
		{name: "exporter", opts: Options{Exporter: "carrier-pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Writer = &bytes.Buffer{}
			if _, err := Instrument(context.Background(), tt.opts); err == nil {
				t.Error("Instrument() error = nil")
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
		{slog.LevelError + 4, minsev.SeverityError},
	}
	for _, tt := range tests {
		if got := severity(tt.level); got != tt.want {
			t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
