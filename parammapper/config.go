package parammapper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config holds declarative rename rules grouped by handler unit
type Config struct {
	// Controllers defines the handler units and their rules
	Controllers []ControllerConfig `json:"controllers" yaml:"controllers"`
	// SkipPaths defines gRPC full methods or HTTP paths that bypass renaming
	SkipPaths []string `json:"skip_paths" yaml:"skip_paths"`
	// Debug enables debug logging in the adapters
	Debug bool `json:"debug" yaml:"debug"`
	// Converters resolves named function converters; DefaultConverters is
	// consulted for names missing here
	Converters map[string]ConverterFactory `json:"-" yaml:"-"`
}

// ControllerConfig declares one handler unit
type ControllerConfig struct {
	// Name identifies the unit; for gRPC it is the full service name
	Name string `json:"name" yaml:"name"`
	// Parent names the unit whose rules are inherited
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
	// Rules are applied after the parent's, in order
	Rules []RuleConfig `json:"rules" yaml:"rules"`
}

// RuleConfig declares one rename rule
type RuleConfig struct {
	From    string           `json:"from" yaml:"from"`
	To      string           `json:"to" yaml:"to"`
	Only    []string         `json:"only,omitempty" yaml:"only,omitempty"`
	Except  []string         `json:"except,omitempty" yaml:"except,omitempty"`
	Convert *ConverterConfig `json:"convert,omitempty" yaml:"convert,omitempty"`
}

// ConverterConfig selects either an enumerated mapping or a named function
type ConverterConfig struct {
	Enum []EnumCaseConfig `json:"enum,omitempty" yaml:"enum,omitempty"`
	Func string           `json:"func,omitempty" yaml:"func,omitempty"`
	Args []string         `json:"args,omitempty" yaml:"args,omitempty"`
}

// EnumCaseConfig maps the raw values in When to Then
type EnumCaseConfig struct {
	When []string `json:"when" yaml:"when"`
	Then any      `json:"then" yaml:"then"`
}

// ConverterFactory builds a function converter from its arguments
type ConverterFactory func(args []string) (Converter, error)

// DefaultConverters returns the named converters available to config files
func DefaultConverters() map[string]ConverterFactory {
	noArgs := func(c Converter) ConverterFactory {
		return func(args []string) (Converter, error) {
			if len(args) != 0 {
				return nil, fmt.Errorf("takes no arguments, got %d", len(args))
			}
			return c, nil
		}
	}
	return map[string]ConverterFactory{
		"int":   noArgs(ParseInt),
		"float": noArgs(ParseFloat),
		"bool":  noArgs(ParseBool),
		"lower": noArgs(ToLower),
		"upper": noArgs(ToUpper),
		"trim":  noArgs(TrimSpace),
		"scale": func(args []string) (Converter, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("takes one factor argument, got %d", len(args))
			}
			factor, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("invalid factor %q: %w", args[0], err)
			}
			return ScaleInt(factor), nil
		},
		"split": func(args []string) (Converter, error) {
			switch len(args) {
			case 0:
				return Split(","), nil
			case 1:
				return Split(args[0]), nil
			}
			return nil, fmt.Errorf("takes at most one separator argument, got %d", len(args))
		},
		"default": func(args []string) (Converter, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("takes one value argument, got %d", len(args))
			}
			return Default(args[0]), nil
		},
	}
}

// LoadConfigFromFile loads configuration from a file (JSON or YAML)
func LoadConfigFromFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfig(file)
}

// LoadConfig reads configuration from r (JSON or YAML)
func LoadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, &config); err != nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config as YAML or JSON: %w", err)
		}
	}

	return &config, nil
}

// SaveConfigToFile saves configuration to a file
func SaveConfigToFile(config *Config, filename string, format string) error {
	var data []byte
	var err error

	switch format {
	case "yaml", "yml":
		data, err = yaml.Marshal(config)
	case "json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filename, data, 0644)
}

// ConfigBuilder helps build configurations programmatically
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: &Config{
			Controllers: make([]ControllerConfig, 0),
		},
	}
}

// AddController adds a unit declaration
func (cb *ConfigBuilder) AddController(controller ControllerConfig) *ConfigBuilder {
	cb.config.Controllers = append(cb.config.Controllers, controller)
	return cb
}

// WithSkipPaths sets the paths to skip
func (cb *ConfigBuilder) WithSkipPaths(paths []string) *ConfigBuilder {
	cb.config.SkipPaths = paths
	return cb
}

// WithConverter registers a named function converter
func (cb *ConfigBuilder) WithConverter(name string, factory ConverterFactory) *ConfigBuilder {
	if cb.config.Converters == nil {
		cb.config.Converters = make(map[string]ConverterFactory)
	}
	cb.config.Converters[name] = factory
	return cb
}

// WithDebug sets debug mode
func (cb *ConfigBuilder) WithDebug(debug bool) *ConfigBuilder {
	cb.config.Debug = debug
	return cb
}

// Build returns the built configuration
func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}

// ValidateConfig checks the configuration and reports every problem found
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration is nil")
	}
	_, err := config.controllers()
	return err
}

// controllers compiles the declarations into linked units, in declaration
// order. Every broken rule or unit is reported.
func (c *Config) controllers() ([]*Controller, error) {
	var result *multierror.Error

	decls := make(map[string]ControllerConfig, len(c.Controllers))
	accepted := make(map[int]bool, len(c.Controllers))
	for i, cc := range c.Controllers {
		if cc.Name == "" {
			result = multierror.Append(result, fmt.Errorf("controller %d: name cannot be empty", i))
			continue
		}
		if _, exists := decls[cc.Name]; exists {
			result = multierror.Append(result, fmt.Errorf("duplicate controller: %s", cc.Name))
			continue
		}
		if cc.Parent == cc.Name {
			result = multierror.Append(result, fmt.Errorf("controller %s: cannot inherit from itself", cc.Name))
			continue
		}
		decls[cc.Name] = cc
		accepted[i] = true
	}

	built := make(map[string]*Controller, len(decls))
	var resolve func(name string, visiting map[string]bool) (*Controller, error)
	resolve = func(name string, visiting map[string]bool) (*Controller, error) {
		if u, ok := built[name]; ok {
			return u, nil
		}
		cc, ok := decls[name]
		if !ok {
			return nil, fmt.Errorf("unknown controller: %s", name)
		}
		if visiting[name] {
			return nil, fmt.Errorf("controller %s: inheritance cycle", name)
		}
		visiting[name] = true

		var parent *Controller
		if cc.Parent != "" {
			p, err := resolve(cc.Parent, visiting)
			if err != nil {
				return nil, fmt.Errorf("controller %s: parent: %w", name, err)
			}
			parent = p
		}

		u := NewController(name, parent)
		built[name] = u
		return u, nil
	}

	var out []*Controller
	for i, cc := range c.Controllers {
		if !accepted[i] {
			continue
		}
		u, err := resolve(cc.Name, make(map[string]bool))
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for i, rc := range cc.Rules {
			rule, err := c.rule(rc)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("controller %s: rule %d: %w", cc.Name, i, err))
				continue
			}
			u.Register(rule)
		}
		out = append(out, u)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Config) rule(rc RuleConfig) (Rule, error) {
	var opts []RuleOption
	if rc.Only != nil {
		opts = append(opts, Only(rc.Only...))
	}
	if rc.Except != nil {
		opts = append(opts, Except(rc.Except...))
	}
	if rc.Convert != nil {
		conv, err := c.converter(rc.Convert)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s->%s: %w", rc.From, rc.To, err)
		}
		opts = append(opts, Convert(conv))
	}
	return NewRule(rc.From, rc.To, opts...)
}

func (c *Config) converter(cc *ConverterConfig) (Converter, error) {
	switch {
	case len(cc.Enum) > 0 && cc.Func != "":
		return nil, fmt.Errorf("converter cannot set both enum and func")
	case len(cc.Enum) > 0:
		cases := make([]EnumCase, 0, len(cc.Enum))
		for _, ec := range cc.Enum {
			accepts := make([]any, len(ec.When))
			for i, w := range ec.When {
				accepts[i] = w
			}
			cases = append(cases, When(accepts...).Then(ec.Then))
		}
		return Enum(cases...), nil
	case cc.Func != "":
		factory, ok := c.Converters[cc.Func]
		if !ok {
			factory, ok = DefaultConverters()[cc.Func]
		}
		if !ok {
			return nil, fmt.Errorf("unknown converter: %s", cc.Func)
		}
		conv, err := factory(cc.Args)
		if err != nil {
			return nil, fmt.Errorf("converter %s: %w", cc.Func, err)
		}
		return conv, nil
	}
	return nil, fmt.Errorf("converter must set enum or func")
}
