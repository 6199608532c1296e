package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Audit sink kinds.
const (
	SinkFile  = "file"
	SinkTable = "table"
	SinkBoth  = "both"
)

// Config models mpcasos.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr" validate:"required,hostname_port"`
		BasePath string `yaml:"base_path" validate:"required,startswith=/"`
	} `yaml:"server"`
	Store struct {
		BusyTimeoutMS int `yaml:"busy_timeout_ms" validate:"gte=0"`
		// RequestTimeoutMS bounds each store call; 0 means no extra deadline.
		RequestTimeoutMS int `yaml:"request_timeout_ms" validate:"gte=0"`
	} `yaml:"store"`
	Audit struct {
		Sink string `yaml:"sink" validate:"required,oneof=file table both"`
		// Path is relative to the workspace unless absolute.
		Path string `yaml:"path"`
	} `yaml:"audit"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
		Format string `yaml:"format" validate:"omitempty,oneof=json text"`
	} `yaml:"log"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with mpc config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("config.%s failed %s", yamlPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("%s", strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Audit.Sink != SinkTable && strings.TrimSpace(c.Audit.Path) == "" {
		return fmt.Errorf("config.audit.path is required for sink %s", c.Audit.Sink)
	}
	return nil
}

// yamlPath turns "Config.Audit.Sink" into "audit.sink".
func yamlPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = toSnake(p)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AuditPath resolves the audit log path against the workspace.
func (c *Config) AuditPath(workspace string) string {
	p := c.Audit.Path
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, p)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "mpcasos.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api

store:
  busy_timeout_ms: 5000
  request_timeout_ms: 10000

audit:
  # file | table | both
  sink: file
  path: logs/failed_reassignments.log

log:
  level: info
  format: text
`
