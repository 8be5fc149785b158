// Package config loads rigelnet node settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"rigelnet/codec"
	"rigelnet/node"
	"rigelnet/protocol"
	"rigelnet/remote"
	"rigelnet/retransmit"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds everything a rigelnet server or client reads at start.
type Config struct {
	Listen            Listen        `yaml:"listen"`
	Passphrase        string        `yaml:"passphrase"`
	MaxConnections    int           `yaml:"max_connections"`
	LivenessTimeout   time.Duration `yaml:"liveness_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	TickInterval      time.Duration `yaml:"tick_interval"`
	HandshakeRetries  int           `yaml:"handshake_retries"`
	MaxArgs           int           `yaml:"max_args"`
	MaxFrameSize      int           `yaml:"max_frame_size"`
	Window            int           `yaml:"window"`
	Codec             string        `yaml:"codec"`
	Latency           Latency       `yaml:"latency"`
	Retransmit        Retransmit    `yaml:"retransmit"`
	Discovery         Discovery     `yaml:"discovery"`
	Log               Log           `yaml:"log"`
}

type Listen struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type Latency struct {
	Initial time.Duration `yaml:"initial"`
	Min     time.Duration `yaml:"min"`
	Max     time.Duration `yaml:"max"`
}

// Retransmit selects the resend curve: "multiplier" resends after
// Multiplier × latency, "backoff" doubles that on every resend up to
// MaxInterval.
type Retransmit struct {
	Policy      string        `yaml:"policy"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

// Discovery is optional; with no endpoints nothing is advertised.
type Discovery struct {
	Endpoints  []string `yaml:"endpoints"`
	Service    string   `yaml:"service"`
	Host       string   `yaml:"host"` // Address clients should dial
	Version    string   `yaml:"version"`
	Constraint string   `yaml:"constraint"`
	Balancer   string   `yaml:"balancer"`
	Key        string   `yaml:"key"` // Consistent-hash key
	TTL        int64    `yaml:"ttl"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Listen:            Listen{Address: "0.0.0.0", Port: 7777},
		MaxConnections:    8,
		LivenessTimeout:   10 * time.Second,
		HeartbeatInterval: time.Second,
		TickInterval:      20 * time.Millisecond,
		HandshakeRetries:  10,
		MaxArgs:           protocol.MaxArgs,
		MaxFrameSize:      protocol.MaxFrameSize,
		Window:            remote.DefaultWindow,
		Codec:             "binary",
		Latency: Latency{
			Initial: remote.DefaultLatencyLimits.Initial,
			Min:     remote.DefaultLatencyLimits.Min,
			Max:     remote.DefaultLatencyLimits.Max,
		},
		Retransmit: Retransmit{Policy: "multiplier", Multiplier: 2},
		Discovery: Discovery{
			Service:  "rigelnet",
			Host:     "127.0.0.1",
			Version:  "1.0.0",
			Balancer: "round-robin",
			TTL:      10,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the configuration from the given YAML file path. Missing keys
// keep their defaults; a missing file yields Default with no error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges that the node would otherwise reject later.
func (c *Config) Validate() error {
	switch {
	case c.MaxConnections <= 0:
		return fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections)
	case c.MaxArgs <= 0 || c.MaxArgs > protocol.MaxArgs:
		return fmt.Errorf("max_args must be in [1, %d], got %d", protocol.MaxArgs, c.MaxArgs)
	case c.MaxFrameSize < protocol.MinFrameSize || c.MaxFrameSize > protocol.MaxFrameSize:
		return fmt.Errorf("max_frame_size must be in [%d, %d], got %d", protocol.MinFrameSize, protocol.MaxFrameSize, c.MaxFrameSize)
	case c.HeartbeatInterval >= c.LivenessTimeout:
		return fmt.Errorf("heartbeat_interval %s must be below liveness_timeout %s", c.HeartbeatInterval, c.LivenessTimeout)
	case c.Latency.Min > c.Latency.Max:
		return fmt.Errorf("latency.min %s above latency.max %s", c.Latency.Min, c.Latency.Max)
	case c.Listen.Port < 0 || c.Listen.Port > 65535:
		return fmt.Errorf("listen.port out of range: %d", c.Listen.Port)
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return err
	}
	_, err := c.Policy()
	return err
}

// Policy builds the retransmit policy.
func (c *Config) Policy() (retransmit.Policy, error) {
	m := c.Retransmit.Multiplier
	if m <= 0 {
		m = 2
	}
	switch c.Retransmit.Policy {
	case "", "multiplier":
		return retransmit.Multiplier(m), nil
	case "backoff":
		return retransmit.Backoff(m, c.Retransmit.MaxInterval), nil
	}
	return nil, fmt.Errorf("unknown retransmit policy %q", c.Retransmit.Policy)
}

// Options converts the file settings to node options. Handlers, logger,
// clock and hooks are left for the caller.
func (c *Config) Options() (node.Options, error) {
	ct, err := codec.ParseCodecType(c.Codec)
	if err != nil {
		return node.Options{}, err
	}
	policy, err := c.Policy()
	if err != nil {
		return node.Options{}, err
	}
	return node.Options{
		Passphrase:        c.Passphrase,
		MaxConnections:    c.MaxConnections,
		LivenessTimeout:   c.LivenessTimeout,
		HeartbeatInterval: c.HeartbeatInterval,
		TickInterval:      c.TickInterval,
		HandshakeRetries:  c.HandshakeRetries,
		MaxArgs:           c.MaxArgs,
		MaxFrameSize:      c.MaxFrameSize,
		Window:            c.Window,
		Latency: remote.LatencyLimits{
			Initial: c.Latency.Initial,
			Min:     c.Latency.Min,
			Max:     c.Latency.Max,
		},
		Retransmit: policy,
		Codec:      codec.GetCodec(ct),
	}, nil
}

// Logger builds a zap logger from the log section.
func (l Log) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
