package core

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig describes one logical database.
type DatabaseConfig struct {
	// Driver is the registry tag selecting the driver family (mysql, sqlite, sqlite3).
	Driver string `yaml:"driver"`
	// RWHost is the read/write host.
	RWHost string `yaml:"rw_host"`
	// ROHost is the read-only host. It defaults to RWHost.
	ROHost   string `yaml:"ro_host,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	// Database is the default schema, or the database file for SQLite.
	Database string `yaml:"database"`
	Port     int    `yaml:"port,omitempty"`
	// Socket is a unix socket path. When set it wins over host and port.
	Socket         string        `yaml:"socket,omitempty"`
	Charset        string        `yaml:"charset,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// ReadOnlyHost returns the host serving read-only statements.
func (c *DatabaseConfig) ReadOnlyHost() string {
	if c.ROHost != "" {
		return c.ROHost
	}
	return c.RWHost
}

// Validate checks the fields every driver family needs.
func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("%w: driver is required", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: negative connect_timeout", ErrInvalidConfig)
	}
	return nil
}

// Config maps logical database names to their configuration.
type Config struct {
	Databases map[string]DatabaseConfig `yaml:"databases"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(err, "read database config")
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration. ${VAR} references are expanded
// from the environment before decoding.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, WrapError(err, "decode database config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates every configured database.
func (c *Config) Validate() error {
	for _, name := range c.Names() {
		db := c.Databases[name]
		if err := db.Validate(); err != nil {
			return WrapError(err, "database "+name)
		}
	}
	return nil
}

// Names returns the configured logical names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the configuration of a logical database.
func (c *Config) Lookup(name string) (DatabaseConfig, error) {
	db, ok := c.Databases[name]
	if !ok {
		return DatabaseConfig{}, fmt.Errorf("%w: %s", ErrUnknownDatabase, name)
	}
	return db, nil
}
