package config

import (
	"fmt"
	"time"
)

// Config represents a runnel.yaml configuration file.
// All values are optional and act as defaults for runnel relay flags.
// CLI flags always override config values.
type Config struct {
	Source  string        `yaml:"source"`
	Input   string        `yaml:"input"`
	Merge   MergeConfig   `yaml:"merge"`
	Policy  PolicyConfig  `yaml:"policy"`
	Storage StorageConfig `yaml:"storage"`
	Adapter AdapterConfig `yaml:"adapter"`
	Socket  SocketConfig  `yaml:"socket"`
}

// MergeConfig holds consolidation defaults.
type MergeConfig struct {
	MaxBytes    int    `yaml:"max_bytes"`
	Unsequenced string `yaml:"unsequenced"`
}

// PolicyConfig holds policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	BufferChunks  int      `yaml:"buffer_chunks"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	FinalOnly   bool   `yaml:"final_only"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type       string            `yaml:"type"`
	URL        string            `yaml:"url"`
	Channel    string            `yaml:"channel,omitempty"`
	PerSession bool              `yaml:"per_session,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Timeout    Duration          `yaml:"timeout,omitempty"`
	Retries    *int              `yaml:"retries,omitempty"`
}

// SocketConfig holds WebSocket listener defaults.
//
// Listen is the address of the HTTP server. Path is the viewer endpoint;
// IngestPath, when set, accepts producer frames and replaces stdin/file input.
type SocketConfig struct {
	Listen     string `yaml:"listen"`
	Path       string `yaml:"path"`
	IngestPath string `yaml:"ingest_path"`
	SendBuffer int    `yaml:"send_buffer"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
