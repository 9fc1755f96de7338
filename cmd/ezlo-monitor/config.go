package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ezlo-protocol/ezlo-go/pkg/session"
)

// fileConfig is the YAML configuration file layout. Command line flags
// take precedence over file values.
type fileConfig struct {
	Hub struct {
		Serial   string `yaml:"serial"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"hub"`

	Cloud struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"cloud"`

	Session struct {
		Heartbeat         int  `yaml:"heartbeat"`       // seconds, 0 disables
		RequestTimeout    int  `yaml:"request_timeout"` // seconds
		ListTimeout       int  `yaml:"list_timeout"`    // seconds
		InsecureTLS       bool `yaml:"insecure_tls"`
		DisableECCCiphers bool `yaml:"disable_ecc_ciphers"`
	} `yaml:"session"`

	DumpDir string `yaml:"dump_dir"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// apply copies file values into cfg for every field the flags left at
// its zero value.
func (f *fileConfig) apply(cfg *session.Config) {
	if cfg.Serial == "" {
		cfg.Serial = f.Hub.Serial
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = f.Hub.Endpoint
	}
	if cfg.Username == "" {
		cfg.Username = f.Cloud.Username
	}
	if cfg.Password == "" {
		cfg.Password = f.Cloud.Password
	}
	if cfg.Heartbeat == 0 && f.Session.Heartbeat > 0 {
		cfg.Heartbeat = time.Duration(f.Session.Heartbeat) * time.Second
	}
	if f.Session.RequestTimeout > 0 {
		cfg.RequestTimeout = time.Duration(f.Session.RequestTimeout) * time.Second
	}
	if f.Session.ListTimeout > 0 {
		cfg.ListTimeout = time.Duration(f.Session.ListTimeout) * time.Second
	}
	if f.Session.InsecureTLS {
		cfg.InsecureTLS = true
	}
	if f.Session.DisableECCCiphers {
		cfg.DisableECCCiphers = true
	}
	if cfg.DumpDir == "" {
		cfg.DumpDir = f.DumpDir
	}
}
