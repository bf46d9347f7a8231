// Package config loads the quality client parameter set and daemon settings
// from a YAML file. Keys omitted from the file keep their defaults, so
// partial files are safe.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/rpc-quality-client/internal/client"
)

// Daemon defaults.
const (
	DefaultBroker    = "tcp://localhost:1883"
	DefaultHTTPAddr  = ":8080"
	DefaultPeriod    = 60 * time.Second
	DefaultHeartbeat = 15 * time.Minute
)

const maxFileSize = 1 * 1024 * 1024

// Config is the resolved configuration.
type Config struct {
	Client    client.Config
	Broker    string
	HTTPAddr  string
	DBPath    string // empty disables persistence
	InputPath string // empty disables input loading
	Period    time.Duration
	Heartbeat time.Duration // zero disables heartbeats
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Client:    client.DefaultConfig(),
		Broker:    DefaultBroker,
		HTTPAddr:  DefaultHTTPAddr,
		Period:    DefaultPeriod,
		Heartbeat: DefaultHeartbeat,
	}
}

// File is the on-disk schema. Parameter-set keys keep their historical
// spelling. Nil fields were not present in the file.
type File struct {
	PrescaleFactor      *int    `yaml:"PrescaleFactor,omitempty"`
	RPCFolder           *string `yaml:"RPCFolder,omitempty"`
	RecHitTypeFolder    *string `yaml:"RecHitTypeFolder,omitempty"`
	SummaryFolder       *string `yaml:"SummaryFolder,omitempty"`
	EnableRPCDqmClient  *bool   `yaml:"EnableRPCDqmClient,omitempty"`
	MinimumRPCEvents    *int    `yaml:"MinimumRPCEvents,omitempty"`
	NumberOfEndcapDisks *int    `yaml:"NumberOfEndcapDisks,omitempty"`
	UseRollInfo         *bool   `yaml:"UseRollInfo,omitempty"`
	OfflineDQM          *bool   `yaml:"OfflineDQM,omitempty"`

	Broker    *string `yaml:"Broker,omitempty"`
	HTTPAddr  *string `yaml:"HTTPAddr,omitempty"`
	DBPath    *string `yaml:"DBPath,omitempty"`
	InputPath *string `yaml:"InputPath,omitempty"`
	Period    *string `yaml:"Period,omitempty"`    // duration string like "60s"
	Heartbeat *string `yaml:"Heartbeat,omitempty"` // "0" disables
}

// Load reads a YAML file and resolves it against the defaults.
func Load(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return Config{}, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse resolves YAML data against the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg := Default()
	if err := f.Apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Apply overlays the fields present in f onto cfg.
func (f *File) Apply(cfg *Config) error {
	c := &cfg.Client
	if f.PrescaleFactor != nil {
		c.PrescaleFactor = *f.PrescaleFactor
	}
	if f.RPCFolder != nil {
		c.RPCFolder = *f.RPCFolder
	}
	if f.RecHitTypeFolder != nil {
		c.RecHitTypeFolder = *f.RecHitTypeFolder
	}
	if f.SummaryFolder != nil {
		c.SummaryFolder = *f.SummaryFolder
	}
	if f.EnableRPCDqmClient != nil {
		c.EnableRPCDqmClient = *f.EnableRPCDqmClient
	}
	if f.MinimumRPCEvents != nil {
		c.MinimumRPCEvents = *f.MinimumRPCEvents
	}
	if f.NumberOfEndcapDisks != nil {
		c.NumberOfEndcapDisks = *f.NumberOfEndcapDisks
	}
	if f.UseRollInfo != nil {
		c.UseRollInfo = *f.UseRollInfo
	}
	if f.OfflineDQM != nil {
		c.OfflineDQM = *f.OfflineDQM
	}

	if f.Broker != nil {
		cfg.Broker = *f.Broker
	}
	if f.HTTPAddr != nil {
		cfg.HTTPAddr = *f.HTTPAddr
	}
	if f.DBPath != nil {
		cfg.DBPath = *f.DBPath
	}
	if f.InputPath != nil {
		cfg.InputPath = *f.InputPath
	}
	if f.Period != nil {
		d, err := time.ParseDuration(*f.Period)
		if err != nil {
			return fmt.Errorf("invalid Period '%s': %w", *f.Period, err)
		}
		cfg.Period = d
	}
	if f.Heartbeat != nil {
		d, err := time.ParseDuration(*f.Heartbeat)
		if err != nil {
			return fmt.Errorf("invalid Heartbeat '%s': %w", *f.Heartbeat, err)
		}
		cfg.Heartbeat = d
	}
	return nil
}

// Validate checks that the configuration values are usable.
// A non-positive PrescaleFactor is accepted and treated as 1 by the client.
func (c Config) Validate() error {
	if c.Client.NumberOfEndcapDisks < 0 {
		return fmt.Errorf("NumberOfEndcapDisks must be non-negative, got %d", c.Client.NumberOfEndcapDisks)
	}
	if c.Client.MinimumRPCEvents < 0 {
		return fmt.Errorf("MinimumRPCEvents must be non-negative, got %d", c.Client.MinimumRPCEvents)
	}
	if c.Client.RPCFolder == "" || c.Client.RecHitTypeFolder == "" || c.Client.SummaryFolder == "" {
		return errors.New("RPCFolder, RecHitTypeFolder and SummaryFolder must be non-empty")
	}
	if c.Period <= 0 {
		return fmt.Errorf("Period must be positive, got %s", c.Period)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("Heartbeat must be non-negative, got %s", c.Heartbeat)
	}
	return nil
}

// File returns the fully populated on-disk form of c.
func (c Config) File() File {
	period := c.Period.String()
	heartbeat := c.Heartbeat.String()
	cc := c.Client
	return File{
		PrescaleFactor:      &cc.PrescaleFactor,
		RPCFolder:           &cc.RPCFolder,
		RecHitTypeFolder:    &cc.RecHitTypeFolder,
		SummaryFolder:       &cc.SummaryFolder,
		EnableRPCDqmClient:  &cc.EnableRPCDqmClient,
		MinimumRPCEvents:    &cc.MinimumRPCEvents,
		NumberOfEndcapDisks: &cc.NumberOfEndcapDisks,
		UseRollInfo:         &cc.UseRollInfo,
		OfflineDQM:          &cc.OfflineDQM,
		Broker:              &c.Broker,
		HTTPAddr:            &c.HTTPAddr,
		DBPath:              &c.DBPath,
		InputPath:           &c.InputPath,
		Period:              &period,
		Heartbeat:           &heartbeat,
	}
}

// YAML renders c in the on-disk format.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.File())
}
