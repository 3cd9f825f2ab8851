// Package config resolves the task configuration from defaults, config files,
// the environment and command line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/taskstore/internal/recur"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
	ErrDataDirEmpty       = errors.New("data-dir cannot be empty")
	ErrInvalidValue       = errors.New("invalid value")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".taskrc.json"

// EnvDataDir overrides data_dir from config files.
const EnvDataDir = "TASKDATA"

// Config holds the resolved configuration.
type Config struct {
	DataDir      string
	Confirmation bool
	LockTimeout  time.Duration
	LogLevel     string
	Recurrence   Recurrence

	// Contexts are named filters; Context names the active one, empty
	// for none.
	Contexts map[string]Context
	Context  string

	// Resolved, not read from files.
	EffectiveCwd string
	DataDirAbs   string
	Sources      Sources

	// WritePath is the file context changes are saved to: the explicit or
	// project file when one was loaded, else the global file.
	WritePath string
}

// Context is a named filter. Read narrows what listing commands show;
// Write, when set, holds attribute and tag terms that new tasks receive.
type Context struct {
	Read  string
	Write string
}

// Recurrence configures the recurrence engine and propagation.
type Recurrence struct {
	Confirmation recur.Policy
	Limit        int
}

// Sources records where settings came from, for print-config.
type Sources struct {
	Global  string
	Project string
	Env     string
}

// Default returns the built-in configuration. env supplies HOME.
func Default(env map[string]string) Config {
	dataDir := ".task"
	if home := env["HOME"]; home != "" {
		dataDir = filepath.Join(home, ".task")
	}

	return Config{
		DataDir:      dataDir,
		Confirmation: true,
		LockTimeout:  5 * time.Second,
		LogLevel:     "warn",
		Recurrence: Recurrence{
			Confirmation: recur.PolicyPrompt,
			Limit:        recur.DefaultLimit,
		},
	}
}

// fileConfig is the on-disk shape. Pointers tell "unset" from zero values.
type fileConfig struct {
	DataDir      *string `json:"data_dir"     toml:"data_dir"`
	Confirmation *bool   `json:"confirmation" toml:"confirmation"`
	LockTimeout  *string `json:"lock_timeout" toml:"lock_timeout"`
	LogLevel     *string `json:"log_level"    toml:"log_level"`
	Recurrence   struct {
		Confirmation *string `json:"confirmation" toml:"confirmation"`
		Limit        *int    `json:"limit"        toml:"limit"`
	} `json:"recurrence" toml:"recurrence"`
	Contexts map[string]fileContext `json:"contexts" toml:"contexts"`
	Context  *string                `json:"context"  toml:"context"`
}

type fileContext struct {
	Read  string `json:"read"  toml:"read"`
	Write string `json:"write" toml:"write"`
}

// Input holds the inputs of [Load].
type Input struct {
	WorkDirOverride string            // -C/--cwd; empty means os.Getwd
	ConfigPath      string            // -c/--config
	DataDirOverride *string           // --data-dir; nil means not given
	Yes             bool              // -y/--yes disables confirmation
	Debug           bool              // --debug forces log level debug
	Env             map[string]string // environment
}

// Load resolves the configuration. Precedence, lowest first:
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/task/config.json or ~/.config/task/config.json)
//  3. Project config (.taskrc.json in the working directory) or the explicit -c file
//  4. TASKDATA
//  5. Command line flags
//
// Files are JSON with comments and trailing commas; files ending in .toml
// are TOML.
func Load(in Input) (Config, error) {
	workDir := in.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default(in.Env)

	global := globalPath(in.Env)

	if path := global; path != "" {
		loaded, err := loadFile(&cfg, path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
		}
	}

	projectPath, mustExist := filepath.Join(workDir, FileName), false

	if in.ConfigPath != "" {
		projectPath, mustExist = in.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	loaded, err := loadFile(&cfg, projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
	}

	switch {
	case cfg.Sources.Project != "" || global == "":
		cfg.WritePath = projectPath
	default:
		cfg.WritePath = global
	}

	if v, ok := in.Env[EnvDataDir]; ok && v != "" {
		cfg.DataDir = v
		cfg.Sources.Env = EnvDataDir
	}

	if in.DataDirOverride != nil {
		if *in.DataDirOverride == "" {
			return Config{}, ErrDataDirEmpty
		}

		cfg.DataDir = *in.DataDirOverride
	}

	if in.Yes {
		cfg.Confirmation = false
	}

	if in.Debug {
		cfg.LogLevel = "debug"
	}

	cfg.EffectiveCwd = workDir

	cfg.DataDirAbs = cfg.DataDir
	if !filepath.IsAbs(cfg.DataDirAbs) {
		cfg.DataDirAbs = filepath.Join(workDir, cfg.DataDirAbs)
	}

	return cfg, nil
}

// globalPath returns the global config path, or "" without XDG_CONFIG_HOME
// and HOME.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "task", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "task", "config.json")
	}

	return ""
}

// loadFile merges the file at path into cfg. A missing optional file is not
// an error and reports loaded=false.
func loadFile(cfg *Config, path string, mustExist bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist) && mustExist:
			return false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		case errors.Is(err, os.ErrNotExist):
			return false, nil
		default:
			return false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
		}
	}

	fc, err := parse(path, data)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	err = merge(cfg, fc)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return true, nil
}

func parse(path string, data []byte) (fileConfig, error) {
	var fc fileConfig

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err := toml.Unmarshal(data, &fc)
		if err != nil {
			return fileConfig{}, fmt.Errorf("invalid TOML: %w", err)
		}

		return fc, nil
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	err = json.Unmarshal(standardized, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func merge(cfg *Config, fc fileConfig) error {
	if fc.DataDir != nil {
		if *fc.DataDir == "" {
			return fmt.Errorf("data_dir: %w", ErrDataDirEmpty)
		}

		cfg.DataDir = *fc.DataDir
	}

	if fc.Confirmation != nil {
		cfg.Confirmation = *fc.Confirmation
	}

	if fc.LockTimeout != nil {
		d, err := time.ParseDuration(*fc.LockTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("lock_timeout %q: %w (want a positive duration like 5s)", *fc.LockTimeout, ErrInvalidValue)
		}

		cfg.LockTimeout = d
	}

	if fc.LogLevel != nil {
		_, err := parseLevel(*fc.LogLevel)
		if err != nil {
			return err
		}

		cfg.LogLevel = strings.ToLower(*fc.LogLevel)
	}

	if fc.Recurrence.Confirmation != nil {
		p, err := recur.ParsePolicy(*fc.Recurrence.Confirmation)
		if err != nil {
			return fmt.Errorf("recurrence.confirmation: %w", err)
		}

		cfg.Recurrence.Confirmation = p
	}

	if fc.Recurrence.Limit != nil {
		if *fc.Recurrence.Limit < 1 {
			return fmt.Errorf("recurrence.limit %d: %w (want 1 or more)", *fc.Recurrence.Limit, ErrInvalidValue)
		}

		cfg.Recurrence.Limit = *fc.Recurrence.Limit
	}

	for _, name := range slices.Sorted(maps.Keys(fc.Contexts)) {
		c := fc.Contexts[name]
		if strings.TrimSpace(c.Read) == "" {
			return fmt.Errorf("contexts.%s.read: %w (a filter is required)", name, ErrInvalidValue)
		}

		if cfg.Contexts == nil {
			cfg.Contexts = make(map[string]Context)
		}

		cfg.Contexts[name] = Context{Read: c.Read, Write: c.Write}
	}

	if fc.Context != nil {
		cfg.Context = *fc.Context
	}

	return nil
}

// ActiveContext returns the active context. A name that is not defined,
// for example after its file was edited by hand, counts as no context.
func (c Config) ActiveContext() (string, Context, bool) {
	if c.Context == "" {
		return "", Context{}, false
	}

	def, ok := c.Contexts[c.Context]
	if !ok {
		return "", Context{}, false
	}

	return c.Context, def, true
}

// SourceFiles returns the config files that were loaded, global first.
func (c Config) SourceFiles() []string {
	var files []string

	for _, f := range []string{c.Sources.Global, c.Sources.Project} {
		if f != "" {
			files = append(files, f)
		}
	}

	return files
}

// Level returns the slog level of LogLevel.
func (c Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}

	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level %q: %w (want debug, info, warn or error)", s, ErrInvalidValue)
	}
}

// Lines renders the resolved configuration as key=value lines followed by
// the sources.
func (c Config) Lines() []string {
	lines := []string{
		"effective_cwd=" + c.EffectiveCwd,
		"data_dir=" + c.DataDirAbs,
		"confirmation=" + strconv.FormatBool(c.Confirmation),
		"lock_timeout=" + c.LockTimeout.String(),
		"log_level=" + c.LogLevel,
		"recurrence.confirmation=" + string(c.Recurrence.Confirmation),
		"recurrence.limit=" + strconv.Itoa(c.Recurrence.Limit),
		"context=" + c.Context,
	}

	for _, name := range slices.Sorted(maps.Keys(c.Contexts)) {
		def := c.Contexts[name]
		lines = append(lines, "context."+name+".read="+def.Read)

		if def.Write != "" {
			lines = append(lines, "context."+name+".write="+def.Write)
		}
	}

	lines = append(lines, "", "# sources")

	if c.Sources == (Sources{}) {
		return append(lines, "(defaults only)")
	}

	if c.Sources.Global != "" {
		lines = append(lines, "global_config="+c.Sources.Global)
	}

	if c.Sources.Project != "" {
		lines = append(lines, "project_config="+c.Sources.Project)
	}

	if c.Sources.Env != "" {
		lines = append(lines, "env="+c.Sources.Env)
	}

	return lines
}
