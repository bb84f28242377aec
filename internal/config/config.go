// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the gateway's YAML configuration.
//
// Load applies defaults, Validate checks the result without mutating it and
// Normalize fills derived values. Callers run them in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Site classes
const (
	ClassOilWell    = "oil_well"
	ClassWaterWell  = "water_well"
	ClassValveGroup = "valve_group"
	ClassManifold   = "manifold"
)

// Valve group wiring modes
const (
	WiringRadio = "radio"
	WiringBus   = "bus"
)

// Manifold pressure sources
const (
	SourceRadio  = "radio"
	SourceAnalog = "analog"
)

// DefaultManifoldRegister is the terminal register holding manifold pressure
// when the carrier reports it over the radio
const DefaultManifoldRegister = 600

// BroadcastAddress is the placeholder address of a site whose radio has not
// been heard from yet
const BroadcastAddress = "000000000000FFFF"

type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Log      LogConfig      `yaml:"log"`
	Radio    RadioConfig    `yaml:"radio"`
	Bus      BusConfig      `yaml:"bus"`
	Host     HostConfig     `yaml:"host"`
	Storage  StorageConfig  `yaml:"storage"`
	Manifold ManifoldConfig `yaml:"manifold"`
	Sites    []Site         `yaml:"sites"`
}

// ---- GATEWAY ----

type GatewayConfig struct {
	Attempts      int           `yaml:"attempts"`       // per field exchange
	SweepInterval time.Duration `yaml:"sweep_interval"` // idle time between sweeps
	ValveWiring   string        `yaml:"valve_wiring"`   // radio | bus
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ---- RADIO ----

type RadioConfig struct {
	// Exactly one of Port and BridgeURL is set
	Port      string `yaml:"port"`
	BaudRate  int    `yaml:"baud_rate"`
	BridgeURL string `yaml:"bridge_url"`

	// Bridge HTTP Basic auth; the password comes from the environment
	BridgeUsername   string `yaml:"bridge_username"`
	BridgeSkipVerify bool   `yaml:"bridge_skip_verify"`

	PanID       string `yaml:"pan_id"` // hex, sent as ATID
	Coordinator bool   `yaml:"coordinator"`
	APIMode     int    `yaml:"api_mode"` // 1 | 2
	DisableAck  bool   `yaml:"disable_ack"`

	SkipHandshake   bool          `yaml:"skip_handshake"`
	GuardTime       time.Duration `yaml:"guard_time"`
	CommandTimeout  time.Duration `yaml:"command_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
}

// ---- WIRED BUS ----

type BusConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	DataBits int           `yaml:"data_bits"`
	StopBits int           `yaml:"stop_bits"`
	Parity   string        `yaml:"parity"` // N | E | O
	Timeout  time.Duration `yaml:"timeout"`
}

// ---- HOST ----

type HostConfig struct {
	Listen      string        `yaml:"listen"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// ---- STORAGE ----

type StorageConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
	QueueSize     int           `yaml:"queue_size"`
}

// ---- MANIFOLD PRESSURE ----

type ManifoldConfig struct {
	SiteID   uint8  `yaml:"site_id"` // 0 = no manifold pressure
	Source   string `yaml:"source"`  // radio | analog
	Register uint16 `yaml:"register"`
	Channel  int    `yaml:"channel"` // analog input on the carrier's radio
}

// Enabled reports whether a manifold pressure carrier is configured
func (m ManifoldConfig) Enabled() bool {
	return m.SiteID != 0
}

// ---- SITE ----

type Site struct {
	ID      uint8  `yaml:"id"` // host unit id
	Name    string `yaml:"name"`
	Class   string `yaml:"class"`
	Address string `yaml:"address"` // 64-bit radio address in hex
	Slave   uint8  `yaml:"slave"`   // RTU slave id in radio payloads; defaults to ID

	DiagramBlocks int `yaml:"diagram_blocks"` // buffered indicator diagram blocks
	MaxValves     int `yaml:"max_valves"`
}

// RadioAddress returns the configured 64-bit address.
// Only valid after Validate.
func (s Site) RadioAddress() uint64 {
	addr, _ := ParseAddress(s.Address)
	return addr
}

// ParseAddress parses a 64-bit radio address written in hex, with or without
// a 0x prefix. An empty string is the broadcast placeholder.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if s == "" {
		s = BroadcastAddress
	}
	if len(s) > 16 {
		return 0, fmt.Errorf("address %q longer than 64 bits", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}

// Site returns the site with the given id
func (c *Config) Site(id uint8) (Site, bool) {
	for _, s := range c.Sites {
		if s.ID == id {
			return s, true
		}
	}
	return Site{}, false
}

// Load reads a configuration file and applies defaults
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML configuration and applies defaults
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	g := &cfg.Gateway
	if g.Attempts <= 0 {
		g.Attempts = 2
	}
	if g.ValveWiring == "" {
		g.ValveWiring = WiringRadio
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	r := &cfg.Radio
	if r.BaudRate <= 0 {
		r.BaudRate = 9600
	}
	if r.APIMode == 0 {
		r.APIMode = 2
	}
	if r.GuardTime <= 0 {
		r.GuardTime = time.Second
	}
	if r.CommandTimeout <= 0 {
		r.CommandTimeout = 2 * time.Second
	}
	if r.ResponseTimeout <= 0 {
		r.ResponseTimeout = 1500 * time.Millisecond
	}

	b := &cfg.Bus
	if b.BaudRate <= 0 {
		b.BaudRate = 9600
	}
	if b.DataBits <= 0 {
		b.DataBits = 8
	}
	if b.StopBits <= 0 {
		b.StopBits = 1
	}
	if b.Parity == "" {
		b.Parity = "N"
	}
	if b.Timeout <= 0 {
		b.Timeout = 500 * time.Millisecond
	}

	if cfg.Host.Listen == "" {
		cfg.Host.Listen = ":502"
	}
	if cfg.Host.IdleTimeout <= 0 {
		cfg.Host.IdleTimeout = 5 * time.Minute
	}

	s := &cfg.Storage
	if s.Path == "" {
		s.Path = "wellgate.db"
	}
	if s.Retention <= 0 {
		s.Retention = 5 * 24 * time.Hour
	}
	if s.PruneInterval <= 0 {
		s.PruneInterval = time.Hour
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 16
	}

	if cfg.Manifold.Source == "" {
		cfg.Manifold.Source = SourceRadio
	}
}
