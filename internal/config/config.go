package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the validated input for a run. It is passed explicitly into the
// orchestrator and target constructors; nothing reads it from ambient state.
type Config struct {
	SourceFolder string `yaml:"source_folder" mapstructure:"source_folder"`
	ScratchDir   string `yaml:"scratch_dir" mapstructure:"scratch_dir"`

	Local LocalConfig `yaml:"local" mapstructure:"local"`
	FTP   FTPConfig   `yaml:"ftp" mapstructure:"ftp"`
}

type LocalConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Folder  string `yaml:"folder" mapstructure:"folder"`
	// MaxBackups <= 0 means unlimited retention.
	MaxBackups      int `yaml:"max_backups" mapstructure:"max_backups"`
	IntervalMinutes int `yaml:"interval_minutes" mapstructure:"interval_minutes"`
}

type FTPConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Folder   string `yaml:"folder" mapstructure:"folder"`
	// MaxBackups <= 0 means unlimited retention.
	MaxBackups      int `yaml:"max_backups" mapstructure:"max_backups"`
	TimeoutSeconds  int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	IntervalMinutes int `yaml:"interval_minutes" mapstructure:"interval_minutes"`
}

// Load reads a yaml config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Validate fills defaults and checks every precondition a run depends on,
// so nothing fails half-way through a cycle for a reason that was knowable
// up front.
func (c *Config) Validate() error {
	if c.SourceFolder == "" {
		return errors.New("source_folder is required")
	}
	if !c.Local.Enabled && !c.FTP.Enabled {
		return errors.New("no backup target enabled")
	}

	if c.Local.Enabled {
		if c.Local.Folder == "" {
			c.Local.Folder = "./backups"
		}
		if c.Local.IntervalMinutes <= 0 {
			c.Local.IntervalMinutes = 60
		}
	}

	if c.FTP.Enabled {
		if c.FTP.Host == "" {
			return errors.New("ftp.host is required when ftp is enabled")
		}
		if c.FTP.Username == "" {
			return errors.New("ftp.username is required when ftp is enabled")
		}
		if c.FTP.Port <= 0 {
			c.FTP.Port = 21
		}
		if c.FTP.Folder == "" {
			c.FTP.Folder = "/"
		}
		if c.FTP.TimeoutSeconds <= 0 {
			c.FTP.TimeoutSeconds = 30
		}
		if c.FTP.IntervalMinutes <= 0 {
			c.FTP.IntervalMinutes = 60
		}
	}

	return nil
}
