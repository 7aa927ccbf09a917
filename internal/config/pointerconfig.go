package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the ambient configuration spec.md gestures at but leaves
// implicit: the pointer-inference allocation/deallocation symbol sets
// and the interesting-type-variable selection pattern.
type Config struct {
	AllocationSymbols   []string `yaml:"allocation_symbols,omitempty"`
	DeallocationSymbols []string `yaml:"deallocation_symbols,omitempty"`
	InterestingVarPattern string `yaml:"interesting_var_pattern,omitempty"`
	DebugDir              string `yaml:"debug_dir,omitempty"`
}

// Default returns the built-in defaults: common libc-style allocator
// names and the `sub_(\d+)` interesting-variable pattern spec.md §6.5
// names as its own default.
func Default() *Config {
	return &Config{
		AllocationSymbols:     []string{"malloc", "calloc", "xmalloc", "realloc"},
		DeallocationSymbols:   []string{"free"},
		InterestingVarPattern: `^sub_(\d+)$`,
	}
}

// Load reads a YAML configuration file, filling in defaults for any
// field the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewInvalidError("reading " + path + ": " + err.Error())
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewInvalidError("parsing " + path + ": " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured interesting-variable pattern
// compiles, and that the allocation/deallocation symbol sets don't
// overlap (a symbol can't be both an allocator and a deallocator).
func (c *Config) Validate() error {
	if _, err := regexp.Compile(c.InterestingVarPattern); err != nil {
		return NewInvalidError("invalid interesting_var_pattern " + c.InterestingVarPattern + ": " + err.Error())
	}

	dealloc := make(map[string]bool, len(c.DeallocationSymbols))
	for _, s := range c.DeallocationSymbols {
		dealloc[s] = true
	}
	for _, s := range c.AllocationSymbols {
		if dealloc[s] {
			return NewInvalidError("symbol " + s + " listed as both an allocator and a deallocator")
		}
	}
	return nil
}

// Pattern compiles InterestingVarPattern, panicking if it does not
// compile — Load has already run Validate, and Default's built-in
// pattern compiles.
func (c *Config) Pattern() *regexp.Regexp {
	return regexp.MustCompile(c.InterestingVarPattern)
}
