// Package config loads client configuration from a YAML file.
package config

import (
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the client-side settings. The daemon's own argv policy is
// fixed; these values tune the client and the handful of daemon flags that
// are safe to override.
type Config struct {
	// DownloadDir is where the daemon writes files. Empty means the platform
	// default (~/Downloads, falling back to ./Downloads).
	DownloadDir string `yaml:"download_dir"`
	// RPCPort is the local port the daemon listens on for JSON-RPC requests.
	RPCPort int `yaml:"rpc_port"`
	// RPCSecret is the shared token prepended to every RPC call.
	RPCSecret string `yaml:"rpc_secret"`
	// PollInterval is the reconciliation cadence.
	PollInterval Duration `yaml:"poll_interval"`
	// PageSize bounds the waiting/stopped partition queries.
	PageSize int `yaml:"page_size"`

	MaxConnectionsPerServer int    `yaml:"max_connections_per_server"`
	MaxConcurrentDownloads  int    `yaml:"max_concurrent_downloads"`
	MinSplitSize            string `yaml:"min_split_size"`
	BTMaxPeers              int    `yaml:"bt_max_peers"`
	SeedTime                int    `yaml:"seed_time"`

	// HistoryFile is the bolt database holding previously added URLs.
	HistoryFile string `yaml:"history_file"`
	HistorySize int    `yaml:"history_size"`
	// LogFile receives log output while the console UI owns the terminal.
	LogFile string `yaml:"log_file"`
}

var DefaultConfig = Config{
	RPCPort:                 6800,
	RPCSecret:               "tui-downloader-secret",
	PollInterval:            Duration(time.Second),
	PageSize:                100,
	MaxConnectionsPerServer: 16,
	MaxConcurrentDownloads:  5,
	MinSplitSize:            "1M",
	BTMaxPeers:              50,
	SeedTime:                0,
	HistoryFile:             "~/.tui-downloader/history.db",
	HistorySize:             50,
	LogFile:                 "~/.tui-downloader/log",
}

// Load reads the config at filename, filling unset values with defaults.
// A missing file is not an error; it yields the defaults.
func Load(filename string) (*Config, error) {
	c := DefaultConfig
	filename, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
