package props

import (
	"reflect"
	"time"
)

// Kind distinguishes explicitly assigned properties from computed ones. A
// property's kind is fixed at definition time.
type Kind string

const (
	// KindPrimary marks a property whose value is set directly by callers.
	KindPrimary Kind = "primary"
	// KindDerived marks a property recomputed from its dependencies.
	KindDerived Kind = "derived"
)

// Validator inspects a proposed write to a primary property. A non-nil error
// aborts the write and is carried through to the caller verbatim inside a
// ValidationError.
type Validator func(value any) error

// ChangePredicate decides whether a write constitutes a change worth
// notifying. old is nil when the property is being defined.
type ChangePredicate func(newValue, oldValue any) bool

// DefaultChangePredicate reports a change whenever the values are not deeply
// equal. It is used for every property that does not override the predicate.
func DefaultChangePredicate(newValue, oldValue any) bool {
	return !reflect.DeepEqual(newValue, oldValue)
}

// ComputeFunc produces a derived property's value from its dependencies'
// current values, passed in declaration order.
type ComputeFunc func(deps ...any) (any, error)

// Change describes one property transition delivered on its changed channel.
type Change struct {
	Name string
	New  any
	Old  any
}

// Update pairs a property name with a proposed value for ordered bulk writes.
type Update struct {
	Name  string
	Value any
}

// Option configures a Store at construction time.
type Option func(*storeConfig)

type storeConfig struct {
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvaluator configures the rule engine used by DefineDerivedRule and the
// rule-backed validator and predicate helpers bound to the store.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *storeConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a compiled-rule cache shared by the store's
// evaluator helpers.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *storeConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry configures custom functions exposed to rule
// expressions. The registry is cloned to preserve immutability.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *storeConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithEvaluatorLogger attaches an evaluator logger to the store.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}

// PropertyOption configures a primary property definition.
type PropertyOption func(*propertyConfig)

type propertyConfig struct {
	validator Validator
	predicate ChangePredicate
}

// WithValidator attaches a validator invoked on every proposed write.
func WithValidator(v Validator) PropertyOption {
	return func(cfg *propertyConfig) {
		cfg.validator = v
	}
}

// WithChangePredicate overrides the default deep-equality change predicate.
func WithChangePredicate(p ChangePredicate) PropertyOption {
	return func(cfg *propertyConfig) {
		cfg.predicate = p
	}
}

// DerivedOption configures a derived or view property definition.
type DerivedOption func(*derivedConfig)

type derivedConfig struct {
	initial    any
	hasInitial bool
	predicate  ChangePredicate
}

// WithInitialValue sets an explicit starting value instead of running the
// computation at definition time. Nil and zero values count as present; the
// marker is the option itself, not the value's shape.
func WithInitialValue(value any) DerivedOption {
	return func(cfg *derivedConfig) {
		cfg.initial = value
		cfg.hasInitial = true
	}
}

// WithDerivedChangePredicate overrides the change predicate for a derived
// property.
func WithDerivedChangePredicate(p ChangePredicate) DerivedOption {
	return func(cfg *derivedConfig) {
		cfg.predicate = p
	}
}

// RuleContext carries the bindings handed to rule expressions.
type RuleContext struct {
	// Snapshot holds property values visible to the expression, keyed by
	// property name. Each entry is bound as a top-level identifier.
	Snapshot any
	// Property names the property the rule is evaluating for.
	Property string
	// Value is the proposed or freshly computed value, bound as "value".
	Value any
	// Old is the previous value, bound as "old"; nil on definition.
	Old      any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// Evaluator executes rule expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// ProgramCache stores compiled expression programs keyed by expression
// strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
