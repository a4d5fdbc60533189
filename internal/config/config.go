package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	nberrors "git.home.luguber.info/inful/novelbuilder/internal/errors"
)

// DefaultPath is the configuration file looked up when -c is not given.
const DefaultPath = "novelbuilder.yaml"

// Config represents the application configuration
type Config struct {
	Tools    ToolsConfig   `yaml:"tools"`
	Template string        `yaml:"template"` // front-matter template copied to <target>/novel.tex
	Map      MapConfig     `yaml:"map"`      // map chapter settings
	History  HistoryConfig `yaml:"history"`  // build-history store
}

// ToolsConfig names the external programs the pipeline invokes. Each value
// may contain leading arguments ("python3 generate.py"); it is split on
// whitespace before execution.
type ToolsConfig struct {
	Generator string `yaml:"generator"` // invoked as <generator> <target>
	Converter string `yaml:"converter"` // markup-to-LaTeX converter
	Latex     string `yaml:"latex"`     // LaTeX build tool, run with --pdf
}

// MapConfig configures the map chapter.
type MapConfig struct {
	Chapter string `yaml:"chapter"` // two-character chapter directory holding the map
}

// HistoryConfig configures the build-history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // defaults to <target>/.novelbuilder/history.db
}

// Load loads configuration from the specified file. A missing file yields
// the defaults rather than an error, so the tool works in a bare checkout
// that only carries frame.tex and chapter directories.
func Load(configPath string) (*Config, error) {
	// Load .env / .env.local if present; existing environment wins.
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("load %s: %w", envPath, err)
			}
			break
		}
	}

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Tools.Generator == "" {
		c.Tools.Generator = "python3 generate.py"
	}
	if c.Tools.Converter == "" {
		c.Tools.Converter = "pandoc"
	}
	if c.Tools.Latex == "" {
		c.Tools.Latex = "latexmk"
	}
	if c.Template == "" {
		c.Template = "frame.tex"
	}
	if c.Map.Chapter == "" {
		c.Map.Chapter = "99"
	}
}

// Validate checks structural constraints that defaults cannot repair.
func (c *Config) Validate() error {
	if len(c.Map.Chapter) != 2 {
		return nberrors.ValidationFailed("map.chapter",
			fmt.Sprintf("must be a two-character chapter name, got %q", c.Map.Chapter))
	}
	for field, value := range map[string]string{
		"tools.generator": c.Tools.Generator,
		"tools.converter": c.Tools.Converter,
		"tools.latex":     c.Tools.Latex,
	} {
		if strings.TrimSpace(value) == "" {
			return nberrors.ValidationFailed(field, "must not be blank")
		}
	}
	return nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Tools: ToolsConfig{
			Generator: "python3 generate.py",
			Converter: "pandoc",
			Latex:     "latexmk",
		},
		Template: "frame.tex",
		Map:      MapConfig{Chapter: "99"},
		History:  HistoryConfig{Enabled: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
