// Package config handles loading, parsing, and validating bridge configuration.
// Values are layered: defaults, then a YAML or TOML file, then UNITYBRIDGE_*
// environment variables.
package config

// file: internal/config/config.go

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/unitybridge/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g.
// UNITYBRIDGE_BRIDGE_REQUEST_TIMEOUT=30s.
const EnvPrefix = "UNITYBRIDGE"

// Transport kinds for Bridge.Transport.
const (
	TransportTCP   = "tcp"
	TransportNATS  = "nats"
	TransportLocal = "local"
)

// ServerConfig names the agent-facing server.
type ServerConfig struct {
	Name    string `yaml:"name" toml:"name" validate:"required"`
	Version string `yaml:"version" toml:"version"`
}

// BackoffConfig controls redial delays after the editor link drops.
type BackoffConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" toml:"initial_delay" split_words:"true" validate:"gt=0"`
	MaxDelay     time.Duration `yaml:"max_delay" toml:"max_delay" split_words:"true" validate:"gtefield=InitialDelay"`
	Multiplier   float64       `yaml:"multiplier" toml:"multiplier" validate:"gte=1"`
	Jitter       bool          `yaml:"jitter" toml:"jitter"`
}

// BridgeConfig controls how the bridge reaches the editor.
type BridgeConfig struct {
	// Transport is tcp, nats, or local (editor runs in-process).
	Transport string `yaml:"transport" toml:"transport" validate:"oneof=tcp nats local"`
	// Address is the editor's TCP address.
	Address        string        `yaml:"address" toml:"address" validate:"required_if=Transport tcp,omitempty,hostname_port"`
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout" split_words:"true" validate:"gt=0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" toml:"connect_timeout" split_words:"true" validate:"gt=0"`
	Backoff        BackoffConfig `yaml:"backoff" toml:"backoff"`
	// EditorVersions is the accepted semver range of editor protocol versions.
	EditorVersions string `yaml:"editor_versions" toml:"editor_versions" split_words:"true" validate:"required"`
}

// NATSConfig holds the broker settings used when Bridge.Transport is nats.
type NATSConfig struct {
	URL           string `yaml:"url" toml:"url" validate:"omitempty,url"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix" split_words:"true" validate:"required"`
	// Token is the lowest-priority source for the broker token; the
	// environment and the OS keyring win over it.
	Token string `yaml:"token" toml:"token"`
}

// ProjectConfig locates the project the editor serves.
type ProjectConfig struct {
	Root       string `yaml:"root" toml:"root" validate:"required"`
	ScriptsDir string `yaml:"scripts_dir" toml:"scripts_dir" split_words:"true" validate:"required"`
}

// EditorConfig tunes the headless editor responder.
type EditorConfig struct {
	// Listen is the TCP address the editor accepts bridges on.
	Listen string `yaml:"listen" toml:"listen" validate:"omitempty,hostname_port"`
	// RequestsPerSecond limits request handling; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" split_words:"true" validate:"gte=0"`
	Burst             int     `yaml:"burst" toml:"burst" validate:"gte=0"`
	AnalysisWorkers   int     `yaml:"analysis_workers" toml:"analysis_workers" split_words:"true" validate:"gte=0"`
}

// AuthConfig locates the token file used when no OS keyring is available.
type AuthConfig struct {
	TokenPath string `yaml:"token_path" toml:"token_path" split_words:"true" validate:"required"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`
}

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Bridge  BridgeConfig  `yaml:"bridge" toml:"bridge"`
	NATS    NATSConfig    `yaml:"nats" toml:"nats"`
	Project ProjectConfig `yaml:"project" toml:"project"`
	Editor  EditorConfig  `yaml:"editor" toml:"editor"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// DefaultConfig returns a configuration populated with default values.
func DefaultConfig() *Config {
	tokenPath := "unitybridge_token.json"
	if home, err := os.UserHomeDir(); err == nil {
		tokenPath = filepath.Join(home, ".config", "unitybridge", "token.json")
	}
	return &Config{
		Server: ServerConfig{Name: "unitybridge"},
		Bridge: BridgeConfig{
			Transport:      TransportTCP,
			Address:        "127.0.0.1:8090",
			RequestTimeout: 10 * time.Second,
			ConnectTimeout: 5 * time.Second,
			Backoff: BackoffConfig{
				InitialDelay: 250 * time.Millisecond,
				MaxDelay:     10 * time.Second,
				Multiplier:   2,
				Jitter:       true,
			},
			EditorVersions: "^1.0.0",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "unitybridge",
		},
		Project: ProjectConfig{Root: ".", ScriptsDir: "Assets"},
		Editor:  EditorConfig{Listen: "127.0.0.1:8090", AnalysisWorkers: 4},
		Auth:    AuthConfig{TokenPath: tokenPath},
		Log:     LogConfig{Level: "info"},
	}
}

// Load returns the defaults overlaid with the file at path (skipped when
// path is empty) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnvironment(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML or TOML file (by extension) over the defaults.
// It does not apply the environment or validate.
func LoadFromFile(path string) (*Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path comes from a command-line flag.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file TOML: %s", path)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file YAML: %s", path)
		}
	}
	logging.GetLogger("config").Debug("Loaded config file.", "path", path)
	return cfg, nil
}

// ApplyEnvironment overrides cfg from UNITYBRIDGE_* variables. Unset
// variables leave the current value alone.
func ApplyEnvironment(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return errors.Wrap(err, "invalid environment override")
	}
	var err error
	if cfg.Auth.TokenPath, err = ExpandPath(cfg.Auth.TokenPath); err != nil {
		return err
	}
	if cfg.Project.Root, err = ExpandPath(cfg.Project.Root); err != nil {
		return err
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// ExpandPath replaces a leading '~' with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory to expand path")
	}
	return filepath.Join(home, path[1:]), nil
}
