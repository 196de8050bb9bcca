package parammapper

// Controller is a handler-providing unit: a named group of actions that owns
// an ordered rule set and may inherit the rules of a parent unit.
// Register rules during startup only; a Controller is not safe for
// registration while requests are being processed.
type Controller struct {
	name   string
	parent *Controller
	rules  []Rule
}

// NewController creates a unit. parent may be nil.
func NewController(name string, parent *Controller) *Controller {
	return &Controller{name: name, parent: parent}
}

// Name returns the unit name
func (c *Controller) Name() string { return c.name }

// Parent returns the parent unit, or nil
func (c *Controller) Parent() *Controller { return c.parent }

// Register appends rules in declaration order
func (c *Controller) Register(rules ...Rule) {
	c.rules = append(c.rules, rules...)
}

// Rename builds a rule and registers it
func (c *Controller) Rename(source, destination string, opts ...RuleOption) error {
	r, err := NewRule(source, destination, opts...)
	if err != nil {
		return err
	}
	c.Register(r)
	return nil
}

// Rules returns the unit's own rules
func (c *Controller) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// EffectiveRules returns ancestor rules first, then the unit's own, in
// registration order. Rules sharing a source key are all kept.
func (c *Controller) EffectiveRules() []Rule {
	var chain []*Controller
	for u := c; u != nil; u = u.parent {
		chain = append(chain, u)
	}

	var out []Rule
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].rules...)
	}
	return out
}

// Pipeline applies a fixed sequence of rules to parameter mappings.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	rules []Rule
}

// NewPipeline snapshots the effective rules of c
func NewPipeline(c *Controller) *Pipeline {
	if c == nil {
		return &Pipeline{}
	}
	return &Pipeline{rules: c.EffectiveRules()}
}

// Rules returns the pipeline's rule sequence
func (p *Pipeline) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Apply rewrites a shallow copy of params for the given action. params is
// never modified. Rules run in order and each sees the result of the
// previous one; a rule whose source key is absent is skipped.
// A converter failure aborts with a *ConversionError.
func (p *Pipeline) Apply(action string, params Params) (Params, error) {
	result, _, err := p.apply(action, params, nil)
	return result, err
}

// apply also reports how many rules fired, calling fired for each of them
// when it is set
func (p *Pipeline) apply(action string, params Params, fired func(Rule)) (Params, int, error) {
	result := params.Clone()
	applied := 0

	for _, rule := range p.rules {
		if !rule.filter.Matches(action) {
			continue
		}
		value, ok := result.Get(rule.source)
		if !ok {
			continue
		}

		converted, err := convertValue(rule.converter, value)
		if err != nil {
			return Params{}, applied, &ConversionError{
				Source:      rule.source,
				Destination: rule.destination,
				Action:      action,
				Err:         err,
			}
		}

		if rule.source != rule.destination {
			result.Delete(rule.source)
		}
		result.Set(rule.destination, converted)
		applied++
		if fired != nil {
			fired(rule)
		}
	}

	return result, applied, nil
}
