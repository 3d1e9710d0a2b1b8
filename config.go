package dbrecord

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds connection settings for the master connection, the pool and the
// direct connections opened for transactions.
type Config struct {
	// Driver is the database/sql driver name, "mysql" unless overridden.
	Driver string `json:"driver"`
	// DSN, when set, is passed to sql.Open as is and the fields below are ignored.
	DSN      string            `json:"dsn"`
	User     string            `json:"user"`
	Password string            `json:"password"`
	Host     string            `json:"host"` // host or host:port
	Database string            `json:"database"`
	Params   map[string]string `json:"params"`

	// ReuseConnection makes ExecTransaction run on the caller's connection
	// instead of opening a new one.
	ReuseConnection bool `json:"reuseConnection"`
	// DebugSQL logs every statement issued by connections using this config.
	DebugSQL bool `json:"debugSQL"`
	// ConnectionLimit is the pool size.
	ConnectionLimit int `json:"connectionLimit"`

	ConnMaxLifetime Duration `json:"connMaxLifetime"`
	QueryTimeout    Duration `json:"queryTimeout"`
	MonitorInterval Duration `json:"monitorInterval"`
}

// Duration is a time.Duration that unmarshals from "30s" style strings or nanoseconds
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val))
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			*d = Duration(time.Duration(n))
			return nil
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// DefaultConfig returns a config for a local MySQL server
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverMySQL,
		Host:            "127.0.0.1:3306",
		ConnectionLimit: DefaultConnectionLimit,
		ConnMaxLifetime: Duration(DefaultConnMaxLifetime),
		MonitorInterval: Duration(DefaultMonitorInterval),
	}
}

// LoadConfig reads a JSON config file on top of DefaultConfig
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault tries $DBRECORD_CONFIG, then the well-known locations,
// then falls back to DefaultConfig.
func LoadConfigOrDefault() *Config {
	if envPath := os.Getenv(ConfigEnvVar); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err == nil {
			return cfg
		}
		LogWarn("failed to load config from environment", map[string]interface{}{"path": envPath, "error": err.Error()})
	}

	for _, path := range []string{"dbrecord.json", filepath.Join("config", "dbrecord.json")} {
		if absPath, err := filepath.Abs(path); err == nil {
			if cfg, err := LoadConfig(absPath); err == nil {
				return cfg
			}
		}
	}

	return DefaultConfig()
}

// Validate checks the config for values that can never work
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("dbrecord: nil config")
	}
	if c.DSN == "" && c.driverName() == DriverMySQL && c.Host == "" {
		return errors.New("dbrecord: config needs either dsn or host")
	}
	if c.ConnectionLimit < 0 {
		return fmt.Errorf("dbrecord: connectionLimit must not be negative: %d", c.ConnectionLimit)
	}
	if c.QueryTimeout < 0 || c.ConnMaxLifetime < 0 || c.MonitorInterval < 0 {
		return errors.New("dbrecord: durations must not be negative")
	}
	return nil
}

// FormatDSN returns the data source name handed to sql.Open
func (c *Config) FormatDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

func (c *Config) driverName() string {
	if c.Driver == "" {
		return DriverMySQL
	}
	return c.Driver
}

func (c *Config) poolSize() int {
	if c.ConnectionLimit <= 0 {
		return DefaultConnectionLimit
	}
	return c.ConnectionLimit
}

func (c *Config) clone() *Config {
	cp := *c
	if c.Params != nil {
		cp.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}
