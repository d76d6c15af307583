package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/cpx-bridge/internal/domain/host"
)

// Config holds the bridge settings.
type Config struct {
	// Port is the local port of the bridge gRPC service.
	Port string `yaml:"port"`
	// ActiveDevice selects the board the bridge drives, CPX or micro:bit.
	ActiveDevice string `yaml:"active_device"`
	// EnableTelemetry turns on the Prometheus metrics listener.
	EnableTelemetry bool `yaml:"enable_telemetry"`
	// MetricsAddress is where /metrics is served when telemetry is enabled.
	MetricsAddress string `yaml:"metrics_addr"`
	// Python is the interpreter used to run user code in the simulator.
	Python string `yaml:"python"`
	// PythonLibs is the directory holding the simulated board library.
	PythonLibs string `yaml:"python_libs"`
	// StateFile is where the last board state is persisted.
	StateFile string `yaml:"state_file"`
	// Timeout bounds RPC calls and device commands.
	Timeout time.Duration `yaml:"timeout"`
	// MQTT configures the optional event mirror.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the MQTT event mirror. An empty URL disables it.
type MQTTConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

const (
	// DefaultConfigFilename is the settings file looked up when none is given.
	DefaultConfigFilename = "cpx-bridge-settings.yaml"

	// DefaultStateFilename is where the board state is persisted by default.
	DefaultStateFilename = "cpx-bridge-state.json"

	// DefaultPython is the simulator interpreter.
	DefaultPython = "python3"

	// DefaultMetricsAddress serves /metrics on loopback only.
	DefaultMetricsAddress = "127.0.0.1:9577"

	// DefaultTopicPrefix roots every MQTT topic.
	DefaultTopicPrefix = "cpx-bridge"

	// DefaultTimeout bounds RPC calls and device commands.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions restricts settings and state files to the owner.
	DefaultFilePermissions = 0o600

	// loopbackHost is the only interface the bridge binds to.
	loopbackHost = "127.0.0.1"
)

var (
	errConfigIsNotSet = errors.New("configuration is not set")
	errInvalidPort    = errors.New("invalid port")
)

// Default returns settings with every default applied.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads settings from path. A missing default settings file yields
// Default(); a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultConfigFilename
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate applies defaults and checks field formats.
func Validate(cfg *Config) error {
	if cfg.Port == "" {
		cfg.Port = host.DefaultPort
	}

	if _, err := net.LookupPort("tcp", cfg.Port); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidPort, cfg.Port, err)
	}

	if cfg.ActiveDevice == "" {
		cfg.ActiveDevice = host.CPX
	}

	if !host.SupportedDevice(cfg.ActiveDevice) {
		return fmt.Errorf("%s %q: %w", host.ActiveDeviceField, cfg.ActiveDevice, host.ErrDeviceNotImplemented)
	}

	if cfg.MetricsAddress == "" {
		cfg.MetricsAddress = DefaultMetricsAddress
	}

	if cfg.Python == "" {
		cfg.Python = DefaultPython
	}

	if cfg.PythonLibs == "" {
		cfg.PythonLibs = host.PythonLibsDir
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.MQTT.URL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.MQTT.URL); err != nil {
		return fmt.Errorf("invalid mqtt url: %w", err)
	}

	return nil
}

// Address returns the loopback address the bridge service listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(loopbackHost, c.Port)
}
