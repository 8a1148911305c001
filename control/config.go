// control/config.go
// Author: momentics <momentics@gmail.com>
//
// YAML configuration for the dispatcher, the processors and the consumer
// thread. Missing keys keep their defaults.

package control

import (
	"fmt"
	"os"
	"time"

	"github.com/momentics/hioload-mt/api"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Name       string           `yaml:"name"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	ChainQueue ChainQueueConfig `yaml:"chain_queue"`
	TimedEvent TimedEventConfig `yaml:"timed_event"`
	Thread     ThreadConfig     `yaml:"thread"`
}

// DispatcherConfig configures the event dispatcher.
type DispatcherConfig struct {
	Max         int           `yaml:"max"`          // registration table size
	Service     string        `yaml:"service"`      // multiplexer service name
	PollTimeout time.Duration `yaml:"poll_timeout"` // per-wait bound, 0 waits indefinitely
}

// ChainQueueConfig configures chain queue processors.
type ChainQueueConfig struct {
	Capacity int `yaml:"capacity"`
	MaxBatch int `yaml:"max_batch"` // chains drained per readiness notification
}

// TimedEventConfig configures timed event processors.
type TimedEventConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ThreadConfig configures the detached consumer thread.
type ThreadConfig struct {
	Name string `yaml:"name"`
	CPU  int    `yaml:"cpu"` // -1 leaves affinity alone
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Name: "hioload-mt",
		Dispatcher: DispatcherConfig{
			Max:     1024,
			Service: "epoll_service",
		},
		ChainQueue: ChainQueueConfig{
			Capacity: 64,
			MaxBatch: 16,
		},
		TimedEvent: TimedEventConfig{
			Interval: time.Second,
		},
		Thread: ThreadConfig{
			Name: "hioload-consumer",
			CPU:  -1,
		},
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if c.Dispatcher.Max < 1 {
		return fmt.Errorf("dispatcher.max: %w: %d", api.ErrInvalidArgument, c.Dispatcher.Max)
	}
	if c.Dispatcher.Service == "" {
		return fmt.Errorf("dispatcher.service: %w: empty", api.ErrInvalidArgument)
	}
	if c.Dispatcher.PollTimeout < 0 {
		return fmt.Errorf("dispatcher.poll_timeout: %w: %s", api.ErrInvalidArgument, c.Dispatcher.PollTimeout)
	}
	if c.ChainQueue.Capacity < 1 {
		return fmt.Errorf("chain_queue.capacity: %w: %d", api.ErrInvalidArgument, c.ChainQueue.Capacity)
	}
	if c.ChainQueue.MaxBatch < 1 {
		return fmt.Errorf("chain_queue.max_batch: %w: %d", api.ErrInvalidArgument, c.ChainQueue.MaxBatch)
	}
	if c.TimedEvent.Interval <= 0 {
		return fmt.Errorf("timed_event.interval: %w: %s", api.ErrInvalidArgument, c.TimedEvent.Interval)
	}
	if c.Thread.CPU < -1 {
		return fmt.Errorf("thread.cpu: %w: %d", api.ErrInvalidArgument, c.Thread.CPU)
	}
	return nil
}
