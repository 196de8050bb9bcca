// Package parammapper renames and converts inbound request parameters
// before a handler runs.
package parammapper

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-multierror"
)

// Mapper holds the compiled rule pipelines of every handler unit and
// exposes them to host frameworks through interceptors and middleware
type Mapper struct {
	config    *Config
	units     []*Controller
	pipelines map[string]*Pipeline
	skipPaths map[string]bool
	logger    Logger
	stats     counters
}

// Logger interface for logging (can be implemented by any logger)
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// NoOpLogger is a no-operation logger
type NoOpLogger struct{}

func (n NoOpLogger) Debug(args ...interface{}) {}
func (n NoOpLogger) Info(args ...interface{})  {}
func (n NoOpLogger) Warn(args ...interface{})  {}
func (n NoOpLogger) Error(args ...interface{}) {}

// NewMapper compiles config into a Mapper. Configuration errors are
// reported together.
func NewMapper(config *Config) (*Mapper, error) {
	if config == nil {
		config = &Config{}
	}
	units, err := config.controllers()
	if err != nil {
		return nil, err
	}
	return newMapper(config, units), nil
}

func newMapper(config *Config, units []*Controller) *Mapper {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	pipelines := make(map[string]*Pipeline, len(units))
	for _, u := range units {
		pipelines[u.Name()] = NewPipeline(u)
	}

	return &Mapper{
		config:    config,
		units:     units,
		pipelines: pipelines,
		skipPaths: skipPaths,
		logger:    NoOpLogger{},
	}
}

// SetLogger sets a custom logger
func (m *Mapper) SetLogger(logger Logger) {
	m.logger = logger
}

// Controllers returns the handler units in declaration order
func (m *Mapper) Controllers() []*Controller {
	out := make([]*Controller, len(m.units))
	copy(out, m.units)
	return out
}

// Pipeline returns the pipeline of the named unit
func (m *Mapper) Pipeline(unit string) (*Pipeline, bool) {
	p, ok := m.pipelines[unit]
	return p, ok
}

// Apply rewrites params for an action of unit. Units without rules get an
// unchanged copy.
func (m *Mapper) Apply(unit, action string, params Params) (Params, error) {
	return m.apply(unit, action, params, nil)
}

func (m *Mapper) apply(unit, action string, params Params, fired func(Rule)) (Params, error) {
	p, ok := m.pipelines[unit]
	if !ok {
		return params.Clone(), nil
	}
	result, applied, err := p.apply(action, params, fired)
	m.record(unit, action, applied, err)
	return result, err
}

// Skips reports whether path or gRPC full method bypasses renaming
func (m *Mapper) Skips(path string) bool {
	return m.skipPaths[path]
}

func (m *Mapper) record(unit, action string, applied int, err error) {
	m.stats.requests.Add(1)
	m.stats.renamed.Add(int64(applied))
	if applied > 0 {
		metrics.IncrCounter([]string{"parammapper", "renamed"}, float32(applied))
	}

	var convErr *ConversionError
	if errors.As(err, &convErr) {
		m.stats.failed.Add(1)
		metrics.IncrCounter([]string{"parammapper", "conversion_failed"}, 1)
		m.logger.Warn("Parameter conversion failed:", unit, action, err)
		return
	}

	if m.config.Debug {
		m.logger.Debug("Renamed parameters:", unit, action, fmt.Sprintf("rules=%d", applied))
	}
}

type counters struct {
	requests atomic.Int64
	renamed  atomic.Int64
	failed   atomic.Int64
}

// Stats provides statistics about parameter mapping operations
type Stats struct {
	Requests          int64
	RenamedParams     int64
	FailedConversions int64
	LastUpdated       time.Time
}

// GetStats returns a snapshot of the mapper's counters
func (m *Mapper) GetStats() *Stats {
	return &Stats{
		Requests:          m.stats.requests.Load(),
		RenamedParams:     m.stats.renamed.Load(),
		FailedConversions: m.stats.failed.Load(),
		LastUpdated:       time.Now(),
	}
}

// Builder provides a fluent API for declaring units and rules
type Builder struct {
	config  *Config
	units   []*builderUnit
	current *builderUnit
}

type builderUnit struct {
	name   string
	parent string
	rules  []builderRule
}

type builderRule struct {
	source      string
	destination string
	opts        []RuleOption
}

// NewBuilder creates a new configuration builder
func NewBuilder() *Builder {
	return &Builder{config: &Config{}}
}

// Controller starts declaring rules for the named unit. Declaring the same
// name again continues that unit.
func (b *Builder) Controller(name string) *Builder {
	for _, u := range b.units {
		if u.name == name {
			b.current = u
			return b
		}
	}
	b.current = &builderUnit{name: name}
	b.units = append(b.units, b.current)
	return b
}

// Inherits makes the current unit inherit the rules of parent
func (b *Builder) Inherits(parent string) *Builder {
	if b.current != nil {
		b.current.parent = parent
	}
	return b
}

// Rename adds a rename rule to the current unit
func (b *Builder) Rename(source, destination string) *Builder {
	if b.current == nil {
		b.Controller("")
	}
	b.current.rules = append(b.current.rules, builderRule{source: source, destination: destination})
	return b
}

func (b *Builder) decorate(opt RuleOption) *Builder {
	if b.current != nil && len(b.current.rules) > 0 {
		last := &b.current.rules[len(b.current.rules)-1]
		last.opts = append(last.opts, opt)
	}
	return b
}

// WithConverter sets the converter of the last added rule
func (b *Builder) WithConverter(c Converter) *Builder {
	return b.decorate(Convert(c))
}

// WithEnum sets an enumerated converter on the last added rule
func (b *Builder) WithEnum(cases ...EnumCase) *Builder {
	return b.decorate(Convert(Enum(cases...)))
}

// WithFunc sets a function converter on the last added rule
func (b *Builder) WithFunc(f func(value any) (any, error)) *Builder {
	return b.decorate(Convert(Func(f)))
}

// Only restricts the last added rule to the given actions
func (b *Builder) Only(actions ...string) *Builder {
	return b.decorate(Only(actions...))
}

// Except excludes the given actions from the last added rule
func (b *Builder) Except(actions ...string) *Builder {
	return b.decorate(Except(actions...))
}

// SkipPaths sets paths to skip parameter mapping
func (b *Builder) SkipPaths(paths ...string) *Builder {
	b.config.SkipPaths = paths
	return b
}

// Debug enables debug logging
func (b *Builder) Debug(debug bool) *Builder {
	b.config.Debug = debug
	return b
}

// Build creates the Mapper, reporting every invalid rule or unit
func (b *Builder) Build() (*Mapper, error) {
	var result *multierror.Error
	byName := make(map[string]*Controller, len(b.units))
	units := make([]*Controller, 0, len(b.units))

	var resolve func(u *builderUnit, depth int) *Controller
	resolve = func(u *builderUnit, depth int) *Controller {
		if c, ok := byName[u.name]; ok {
			return c
		}
		var parent *Controller
		if u.parent != "" {
			pu := b.unit(u.parent)
			switch {
			case pu == nil:
				result = multierror.Append(result, fmt.Errorf("controller %s: unknown parent: %s", u.name, u.parent))
			case depth > len(b.units):
				result = multierror.Append(result, fmt.Errorf("controller %s: inheritance cycle", u.name))
				return nil
			default:
				parent = resolve(pu, depth+1)
			}
		}
		c := NewController(u.name, parent)
		byName[u.name] = c
		return c
	}

	for _, u := range b.units {
		if u.name == "" {
			result = multierror.Append(result, fmt.Errorf("controller name cannot be empty"))
			continue
		}
		c := resolve(u, 0)
		if c == nil {
			continue
		}
		for _, br := range u.rules {
			if err := c.Rename(br.source, br.destination, br.opts...); err != nil {
				result = multierror.Append(result, fmt.Errorf("controller %s: %w", u.name, err))
			}
		}
		units = append(units, c)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return newMapper(b.config, units), nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Mapper {
	m, err := b.Build()
	if err != nil {
		panic(err)
	}
	return m
}

func (b *Builder) unit(name string) *builderUnit {
	for _, u := range b.units {
		if u.name == name {
			return u
		}
	}
	return nil
}
