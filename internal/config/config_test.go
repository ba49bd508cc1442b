package config

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level string
		want  slog.Level
	}{
		{name: "debug", level: "debug", want: slog.LevelDebug},
		{name: "info", level: "info", want: slog.LevelInfo},
		{name: "warn", level: "warn", want: slog.LevelWarn},
		{name: "error", level: "error", want: slog.LevelError},
		{name: "mixed case", level: "DeBuG", want: slog.LevelDebug},
		{name: "unknown falls back to info", level: "verbose", want: slog.LevelInfo},
		{name: "empty falls back to info", level: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseLogLevel(tt.level); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestLoadOptionsDefaults(t *testing.T) {
	opts, err := loadOptions()
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if opts.OutputSuffix != "_handa" {
		t.Errorf("OutputSuffix = %q, want %q", opts.OutputSuffix, "_handa")
	}
	if opts.KeysPerSwitch != 100 {
		t.Errorf("KeysPerSwitch = %d, want 100", opts.KeysPerSwitch)
	}
	if opts.Strict {
		t.Error("Strict = true, want false")
	}
}

func TestLoadOptionsEnv(t *testing.T) {
	t.Setenv("HANDA_STRICT", "true")
	t.Setenv("HANDA_KEYS_PER_SWITCH", "25")
	t.Setenv("HANDA_OUTPUT_SUFFIX", "_gen")
	t.Setenv("HANDA_SINGLE_CHECK_SCOPES", "singleton,request")

	opts, err := loadOptions()
	if err != nil {
		t.Fatalf("loadOptions() error = %v", err)
	}
	if !opts.Strict {
		t.Error("Strict = false, want true")
	}
	if opts.KeysPerSwitch != 25 {
		t.Errorf("KeysPerSwitch = %d, want 25", opts.KeysPerSwitch)
	}
	if opts.OutputSuffix != "_gen" {
		t.Errorf("OutputSuffix = %q, want %q", opts.OutputSuffix, "_gen")
	}
	if len(opts.SingleCheckScopes) != 2 || opts.SingleCheckScopes[0] != "singleton" || opts.SingleCheckScopes[1] != "request" {
		t.Errorf("SingleCheckScopes = %v, want [singleton request]", opts.SingleCheckScopes)
	}
}
