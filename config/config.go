// Package config handles marionette.toml engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/marionette/bus"
	"github.com/chazu/marionette/logic"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "marionette.toml"

// Config represents a marionette.toml file.
type Config struct {
	Bus  Bus  `toml:"bus"`
	Log  Log  `toml:"log"`
	Save Save `toml:"save"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// Bus configures the message and event rings.
type Bus struct {
	// MessageLimit caps live messages, at most bus.DefaultLimit.
	MessageLimit      int `toml:"message-limit"`
	EventLimit        int `toml:"event-limit"`
	DoubleClickMillis int `toml:"double-click-ms"`
	DoubleClickRadius int `toml:"double-click-radius"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Save configures the save-slot database.
type Save struct {
	Database string `toml:"database"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Bus: Bus{
			MessageLimit:      bus.DefaultLimit,
			EventLimit:        bus.DefaultLimit,
			DoubleClickMillis: int(bus.DefaultDoubleClickWindow / time.Millisecond),
			DoubleClickRadius: bus.DefaultDoubleClickRadius,
		},
		Log:  Log{Verbosity: 1},
		Save: Save{Database: "saves.db"},
	}
}

// Load parses marionette.toml from dir. Keys missing from the file keep their
// default values.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(data, dir)
}

// Parse decodes configuration text. dir is recorded as the config directory.
func Parse(data []byte, dir string) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", FileName, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.Dir = abs
	return c, nil
}

func (c *Config) validate() error {
	if c.Bus.MessageLimit < 1 || c.Bus.MessageLimit > bus.DefaultLimit {
		return fmt.Errorf("bus.message-limit must be between 1 and %d, got %d", bus.DefaultLimit, c.Bus.MessageLimit)
	}
	if c.Bus.EventLimit < 1 || c.Bus.EventLimit > bus.DefaultLimit {
		return fmt.Errorf("bus.event-limit must be between 1 and %d, got %d", bus.DefaultLimit, c.Bus.EventLimit)
	}
	if c.Bus.DoubleClickMillis < 0 || c.Bus.DoubleClickRadius < 0 {
		return fmt.Errorf("bus double-click settings must not be negative")
	}
	return nil
}

// FindAndLoad walks up from startDir to find marionette.toml, then loads it.
// Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// DatabasePath returns the save database path, resolved against Dir.
func (c *Config) DatabasePath() string {
	if c.Save.Database == "" || filepath.IsAbs(c.Save.Database) || c.Dir == "" {
		return c.Save.Database
	}
	return filepath.Join(c.Dir, c.Save.Database)
}

// DoubleClickWindow returns the configured double-click window.
func (c *Config) DoubleClickWindow() time.Duration {
	return time.Duration(c.Bus.DoubleClickMillis) * time.Millisecond
}

// Apply configures the queues of e.
func (c *Config) Apply(e *logic.Engine) {
	e.Queue().SetLimit(c.Bus.MessageLimit)
	e.Events().SetLimit(c.Bus.EventLimit)
	e.Events().SetDoubleClick(c.DoubleClickWindow(), c.Bus.DoubleClickRadius)
}

// ConfigureLogging sets up commonlog from the [log] section. Binaries must
// import a commonlog backend, such as github.com/tliron/commonlog/simple.
func (c *Config) ConfigureLogging() {
	if c.Log.File == "" {
		commonlog.Configure(c.Log.Verbosity, nil)
		return
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	commonlog.Configure(c.Log.Verbosity, &path)
}
