// Package config loads and validates simulator configuration
// documents. Documents are YAML with a named, versioned schema; unknown
// keys are rejected so typos fail loudly instead of silently falling
// back to defaults.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/riscv-software-src/hartsim/isa"
)

// The schema this package reads. Version bumps when a field changes
// meaning, not when one is added.
const (
	SchemaName    = "hartsim-config"
	SchemaVersion = 1
)

// Default platform values applied by Normalize.
const (
	DefaultXLEN        = 64
	DefaultExtensions  = "IMASU"
	DefaultRAMBase     = 0x8000_0000
	DefaultRAMSize     = 128 << 20
	defaultRegionAttrs = "rwxalc"
)

// ValidationError describes one rejected field: where it sits in the
// document and why it cannot stand.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Path, e.Reason)
}

// Schema names the document type and revision.
type Schema struct {
	Name    string `yaml:"name"`
	Version int    `yaml:"version"`
}

// HartConfig selects the simulated core.
type HartConfig struct {
	// XLEN is the register width, 32 or 64.
	XLEN uint `yaml:"xlen"`

	// Extensions is the ISA letter string advertised by misa, e.g.
	// "IMASU".
	Extensions string `yaml:"extensions"`

	// The identity CSR values.
	VendorID uint64 `yaml:"vendor_id"`
	ArchID   uint64 `yaml:"arch_id"`
	ImpID    uint64 `yaml:"imp_id"`

	// ResetVector is where execution starts. Zero means the base of
	// the first executable memory region.
	ResetVector uint64 `yaml:"reset_vector"`
}

// RegionConfig is one physical memory region.
type RegionConfig struct {
	Name string `yaml:"name"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`

	// Attrs is the attribute flag string, e.g. "rwxalc" for RAM or
	// "rwio" for a device window.
	Attrs string `yaml:"attrs"`
}

// PMA parses the region's attribute string.
func (r RegionConfig) PMA() (isa.PMA, error) {
	return isa.ParsePMA(r.Attrs)
}

// MemoryConfig is the platform's physical memory map.
type MemoryConfig struct {
	Regions []RegionConfig `yaml:"regions"`
}

// TraceConfig controls instruction tracing.
type TraceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is a complete simulator configuration document.
type Config struct {
	Schema Schema       `yaml:"schema"`
	Hart   HartConfig   `yaml:"hart"`
	Memory MemoryConfig `yaml:"memory"`
	Trace  TraceConfig  `yaml:"trace"`
}

// Default returns the configuration of the stock platform: one RV64
// hart over 128 MiB of RAM based at 0x8000_0000.
func Default() *Config {
	return &Config{
		Schema: Schema{Name: SchemaName, Version: SchemaVersion},
		Hart: HartConfig{
			XLEN:        DefaultXLEN,
			Extensions:  DefaultExtensions,
			ResetVector: DefaultRAMBase,
		},
		Memory: MemoryConfig{
			Regions: []RegionConfig{{
				Name:  "ram",
				Base:  DefaultRAMBase,
				Size:  DefaultRAMSize,
				Attrs: defaultRegionAttrs,
			}},
		},
	}
}

// Load reads, decodes, normalizes, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Normalize fills absent fields with their defaults: schema identity,
// register width, extension letters, the memory map, and the reset
// vector (the first executable region's base).
func (c *Config) Normalize() {
	if c.Schema.Name == "" {
		c.Schema.Name = SchemaName
	}
	if c.Schema.Version == 0 {
		c.Schema.Version = SchemaVersion
	}
	if c.Hart.XLEN == 0 {
		c.Hart.XLEN = DefaultXLEN
	}
	if c.Hart.Extensions == "" {
		c.Hart.Extensions = DefaultExtensions
	}
	if len(c.Memory.Regions) == 0 {
		c.Memory.Regions = []RegionConfig{{
			Name:  "ram",
			Base:  DefaultRAMBase,
			Size:  DefaultRAMSize,
			Attrs: defaultRegionAttrs,
		}}
	}
	for i := range c.Memory.Regions {
		if c.Memory.Regions[i].Attrs == "" {
			c.Memory.Regions[i].Attrs = defaultRegionAttrs
		}
	}
	if c.Hart.ResetVector == 0 {
		for _, r := range c.Memory.Regions {
			attrs, err := r.PMA()
			if err != nil {
				continue // Validate reports it with a path
			}
			if attrs.Has(isa.PMAExec) {
				c.Hart.ResetVector = r.Base
				break
			}
		}
	}
}

// Validate checks the normalized document and returns the first
// violation as a *ValidationError.
func (c *Config) Validate() error {
	if c.Schema.Name != SchemaName {
		return &ValidationError{
			Path:   "schema.name",
			Reason: fmt.Sprintf("unknown schema %q, want %q", c.Schema.Name, SchemaName),
		}
	}
	if c.Schema.Version != SchemaVersion {
		return &ValidationError{
			Path:   "schema.version",
			Reason: fmt.Sprintf("unsupported version %d, want %d", c.Schema.Version, SchemaVersion),
		}
	}

	if c.Hart.XLEN != 32 && c.Hart.XLEN != 64 {
		return &ValidationError{
			Path:   "hart.xlen",
			Reason: fmt.Sprintf("must be 32 or 64, got %d", c.Hart.XLEN),
		}
	}
	if err := validateExtensions(c.Hart.Extensions); err != nil {
		return &ValidationError{Path: "hart.extensions", Reason: err.Error()}
	}

	if len(c.Memory.Regions) == 0 {
		return &ValidationError{Path: "memory.regions", Reason: "at least one region is required"}
	}
	for i, r := range c.Memory.Regions {
		path := fmt.Sprintf("memory.regions[%d]", i)
		if r.Name == "" {
			return &ValidationError{Path: path + ".name", Reason: "must not be empty"}
		}
		if r.Size == 0 {
			return &ValidationError{Path: path + ".size", Reason: "must be > 0"}
		}
		if r.Base+r.Size < r.Base {
			return &ValidationError{Path: path, Reason: "wraps the address space"}
		}
		if _, err := r.PMA(); err != nil {
			return &ValidationError{Path: path + ".attrs", Reason: err.Error()}
		}
		for j, prev := range c.Memory.Regions[:i] {
			if r.Base < prev.Base+prev.Size && prev.Base < r.Base+r.Size {
				return &ValidationError{
					Path:   path,
					Reason: fmt.Sprintf("overlaps memory.regions[%d] (%q)", j, prev.Name),
				}
			}
		}
	}

	if !c.resetVectorExecutable() {
		return &ValidationError{
			Path:   "hart.reset_vector",
			Reason: fmt.Sprintf("%#x is not inside an executable region", c.Hart.ResetVector),
		}
	}
	return nil
}

func (c *Config) resetVectorExecutable() bool {
	for _, r := range c.Memory.Regions {
		attrs, err := r.PMA()
		if err != nil {
			continue
		}
		if !attrs.Has(isa.PMAExec) {
			continue
		}
		if c.Hart.ResetVector >= r.Base && c.Hart.ResetVector-r.Base < r.Size {
			return true
		}
	}
	return false
}

func validateExtensions(s string) error {
	if s == "" {
		return fmt.Errorf("must not be empty")
	}
	sawI := false
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("invalid extension letter %q", r)
		}
		if r == 'I' {
			sawI = true
		}
	}
	if !sawI {
		return fmt.Errorf("the base extension I is required")
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	dup := *c
	dup.Memory.Regions = make([]RegionConfig, len(c.Memory.Regions))
	copy(dup.Memory.Regions, c.Memory.Regions)
	return &dup
}
