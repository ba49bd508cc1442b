// Package config provides CLI configuration and application logic for handa.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/kinmemodoki/handa/internal/driver"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const configFile = ".handa.yaml"

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info'"`
	Generate GenerateCmd      `kong:"cmd,default='withargs',help='Generate DI code (default)'"`
	Modules  ModulesCmd       `kong:"cmd,help='List module and component declarations'"`
	Version  kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

// GenerateCmd is the default command for generating DI code.
type GenerateCmd struct {
	Files         []string `kong:"arg,help='Go files to process'"`
	Strict        bool     `kong:"help='Treat nilability warnings as errors'"`
	KeysPerSwitch int      `kong:"help='Provider fields per generated switch shard (0 uses the configured value)'"`
	Suffix        string   `kong:"help='Output file suffix (overrides the configured value)'"`
}

// Run executes the generate command.
func (c *GenerateCmd) Run(cli *CLI) error {
	setupLogger(cli.LogLevel)

	if len(c.Files) == 0 {
		return fmt.Errorf("no files specified")
	}

	opts, err := loadOptions()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Strict {
		opts.Strict = true
	}
	if c.KeysPerSwitch > 0 {
		opts.KeysPerSwitch = c.KeysPerSwitch
	}
	if c.Suffix != "" {
		opts.OutputSuffix = c.Suffix
	}

	slog.Info("Generating dependency injection code", "files", c.Files)

	return driver.New(opts).ProcessFiles(c.Files)
}

// fileOptions are the generator settings read from .handa.yaml and the
// HANDA_* environment.
type fileOptions struct {
	Strict            bool     `yaml:"strict" env:"HANDA_STRICT"`
	KeysPerSwitch     int      `yaml:"keys_per_switch" env:"HANDA_KEYS_PER_SWITCH" env-default:"100"`
	OutputSuffix      string   `yaml:"output_suffix" env:"HANDA_OUTPUT_SUFFIX" env-default:"_handa"`
	SingleCheckScopes []string `yaml:"single_check_scopes" env:"HANDA_SINGLE_CHECK_SCOPES"`
}

func loadOptions() (driver.Options, error) {
	var fc fileOptions
	if _, err := os.Stat(configFile); err == nil {
		if err := cleanenv.ReadConfig(configFile, &fc); err != nil {
			return driver.Options{}, fmt.Errorf("read %s: %w", configFile, err)
		}
	} else if err := cleanenv.ReadEnv(&fc); err != nil {
		return driver.Options{}, err
	}

	return driver.Options{
		Strict:            fc.Strict,
		KeysPerSwitch:     fc.KeysPerSwitch,
		SingleCheckScopes: fc.SingleCheckScopes,
		OutputSuffix:      fc.OutputSuffix,
	}, nil
}

func Run() error {
	var cli CLI
	kongCtx := kong.Parse(&cli,
		kong.Name("handa"),
		kong.Description("A compile-time dependency injection code generator for Go"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s) released on %s", version, commit, date),
		},
	)

	return kongCtx.Run(&cli)
}

func setupLogger(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
