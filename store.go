package props

import (
	"fmt"

	"github.com/goliatone/go-propmodel/pkg/pubsub"
)

// SettleChannel is the bus channel carrying the aggregated settle
// notification emitted once per outermost write. The payload is the []string
// of property names that changed anywhere in the cascade.
const SettleChannel = "props.settle"

// ChangedChannel returns the bus channel a property's change events are
// published on. The payload is a Change.
func ChangedChannel(name string) string {
	return "props.changed." + name
}

type property struct {
	name      string
	kind      Kind
	value     any
	validator Validator
	predicate ChangePredicate

	// derived only; dependency order fixed at definition time
	deps    []string
	compute ComputeFunc

	// non-nil when the property is the view half of a view/base pair
	view *viewPair
}

func (p *property) changed(newValue, oldValue any) bool {
	if p.predicate != nil {
		return p.predicate(newValue, oldValue)
	}
	return DefaultChangePredicate(newValue, oldValue)
}

// Store tracks named properties, recomputes derived properties when their
// dependencies change, and publishes ordered change notifications plus one
// settle notification per outermost write.
//
// Execution is single-threaded and recursion-based: notification handlers may
// call back into the store while a write is still on the stack, but the store
// must not be shared across goroutines.
type Store struct {
	cfg storeConfig
	bus *pubsub.Bus

	properties map[string]*property
	order      []string
	dependents map[string][]string

	depth     int
	batch     []string
	batchSeen map[string]struct{}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	return &Store{
		cfg:        applyOptions(opts),
		bus:        pubsub.New(),
		properties: map[string]*property{},
		dependents: map[string][]string{},
	}
}

// Define registers a primary property holding initial. When the change
// predicate treats creation as a transition from no value, the definition
// delivers an immediate change event for the property.
func (s *Store) Define(name string, initial any, opts ...PropertyOption) error {
	if name == "" {
		return fmt.Errorf("props: property name must not be empty")
	}
	if _, exists := s.properties[name]; exists {
		return duplicateName(name)
	}
	cfg := propertyConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	p := &property{
		name:      name,
		kind:      KindPrimary,
		value:     initial,
		validator: cfg.validator,
		predicate: cfg.predicate,
	}
	s.properties[name] = p
	s.order = append(s.order, name)
	return s.announce(p, initial)
}

// DefineDerived registers a property recomputed from deps whenever any of
// them changes. Every dependency must already be defined, which keeps the
// dependency graph acyclic by construction. The starting value is computed
// from the dependencies' current values unless WithInitialValue supplies one
// explicitly.
func (s *Store) DefineDerived(name string, deps []string, compute ComputeFunc, opts ...DerivedOption) error {
	if name == "" {
		return fmt.Errorf("props: property name must not be empty")
	}
	if compute == nil {
		return fmt.Errorf("props: compute function must not be nil for %s", name)
	}
	if _, exists := s.properties[name]; exists {
		return duplicateName(name)
	}
	for _, dep := range deps {
		if _, ok := s.properties[dep]; !ok {
			return noSuchProperty(dep)
		}
	}
	cfg := derivedConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	p := &property{
		name:      name,
		kind:      KindDerived,
		predicate: cfg.predicate,
		deps:      append([]string(nil), deps...),
		compute:   compute,
	}
	if cfg.hasInitial {
		p.value = cfg.initial
	} else {
		value, err := compute(s.depValues(p)...)
		if err != nil {
			return fmt.Errorf("props: compute %s: %w", name, err)
		}
		p.value = value
	}
	s.properties[name] = p
	s.order = append(s.order, name)
	for _, dep := range deps {
		s.dependents[dep] = append(s.dependents[dep], name)
	}
	return s.announce(p, p.value)
}

// Get returns the current value of name.
func (s *Store) Get(name string) (any, error) {
	p, ok := s.properties[name]
	if !ok {
		return nil, noSuchProperty(name)
	}
	return p.value, nil
}

// GetAll returns name→value for the requested names, or for every property
// when no names are given.
func (s *Store) GetAll(names ...string) (map[string]any, error) {
	if len(names) == 0 {
		names = s.order
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		p, ok := s.properties[name]
		if !ok {
			return nil, noSuchProperty(name)
		}
		out[name] = p.value
	}
	return out, nil
}

// Names returns property names in definition order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Has reports whether name is defined.
func (s *Store) Has(name string) bool {
	_, ok := s.properties[name]
	return ok
}

// Kind returns the kind of name and whether it is defined.
func (s *Store) Kind(name string) (Kind, bool) {
	p, ok := s.properties[name]
	if !ok {
		return "", false
	}
	return p.kind, true
}

// Dependencies returns the declared dependency list of a derived property,
// nil for primary properties.
func (s *Store) Dependencies(name string) []string {
	p, ok := s.properties[name]
	if !ok || len(p.deps) == 0 {
		return nil
	}
	return append([]string(nil), p.deps...)
}

// Set validates and assigns value to name, then synchronously delivers the
// change event and recomputes dependents on the calling stack. The stored
// value is overwritten even when the change predicate reports no change; only
// the notification is skipped. When this is the outermost write, a settle
// notification naming every changed property fires before Set returns.
func (s *Store) Set(name string, value any) error {
	p, ok := s.properties[name]
	if !ok {
		return noSuchProperty(name)
	}
	return s.write(p, value)
}

// SetAll applies updates in order as one batch: every name is resolved and
// every validator consulted before any assignment, so a single rejection
// leaves the store untouched. Change events fire in update order after all
// direct assignments, and the whole cascade shares one settle notification
// when the call is outermost.
func (s *Store) SetAll(updates ...Update) error {
	resolved := make([]*property, len(updates))
	for i, u := range updates {
		p, ok := s.properties[u.Name]
		if !ok {
			return noSuchProperty(u.Name)
		}
		resolved[i] = p
	}
	for i, u := range updates {
		p := resolved[i]
		if p.validator == nil {
			continue
		}
		if err := p.validator(u.Value); err != nil {
			return validationRejected(p.name, err)
		}
	}

	s.begin()
	defer s.finish()

	changes := make([]Change, 0, len(updates))
	for i, u := range updates {
		p := resolved[i]
		old := p.value
		p.value = u.Value
		if p.changed(u.Value, old) {
			changes = append(changes, Change{Name: p.name, New: u.Value, Old: old})
		}
	}
	for _, change := range changes {
		if err := s.dispatch(change); err != nil {
			return err
		}
	}
	return nil
}

// SetMap applies values as one batch. Maps carry no ordering, so entries are
// applied in property definition order to keep notification order
// deterministic; use SetAll when the input order matters.
func (s *Store) SetMap(values map[string]any) error {
	for name := range values {
		if _, ok := s.properties[name]; !ok {
			return noSuchProperty(name)
		}
	}
	updates := make([]Update, 0, len(values))
	for _, name := range s.order {
		if value, ok := values[name]; ok {
			updates = append(updates, Update{Name: name, Value: value})
		}
	}
	return s.SetAll(updates...)
}

// OnChange subscribes fn to a property's change events.
func (s *Store) OnChange(name string, fn func(Change)) (*pubsub.Subscription, error) {
	if !s.Has(name) {
		return nil, noSuchProperty(name)
	}
	return s.bus.Subscribe(ChangedChannel(name), func(payload any) {
		if change, ok := payload.(Change); ok {
			fn(change)
		}
	}), nil
}

// OnSettle subscribes fn to the store-wide settle notification.
func (s *Store) OnSettle(fn func(names []string)) *pubsub.Subscription {
	return s.bus.Subscribe(SettleChannel, func(payload any) {
		if names, ok := payload.([]string); ok {
			fn(names)
		}
	})
}

// Bus exposes the underlying delivery collaborator for callers that want to
// observe raw channels.
func (s *Store) Bus() *pubsub.Bus {
	return s.bus
}

func (s *Store) write(p *property, value any) error {
	if p.validator != nil {
		if err := p.validator(value); err != nil {
			return validationRejected(p.name, err)
		}
	}

	s.begin()
	defer s.finish()

	old := p.value
	p.value = value
	if !p.changed(value, old) {
		return nil
	}
	return s.dispatch(Change{Name: p.name, New: value, Old: old})
}

// dispatch records the change for the settle batch, publishes it, and walks
// the explicit dependency adjacency depth-first so recomputations happen on
// the same call stack, in definition order.
func (s *Store) dispatch(change Change) error {
	s.record(change.Name)
	s.bus.Publish(ChangedChannel(change.Name), change)

	p := s.properties[change.Name]
	if p.view != nil {
		if err := s.reduceToBase(p, change.New); err != nil {
			return err
		}
	}
	for _, name := range s.dependents[change.Name] {
		if err := s.recompute(s.properties[name]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) recompute(p *property) error {
	if p.view != nil {
		return s.refreshView(p)
	}
	value, err := p.compute(s.depValues(p)...)
	if err != nil {
		return fmt.Errorf("props: compute %s: %w", p.name, err)
	}
	return s.write(p, value)
}

func (s *Store) depValues(p *property) []any {
	args := make([]any, len(p.deps))
	for i, dep := range p.deps {
		args[i] = s.properties[dep].value
	}
	return args
}

// announce delivers the definition-time change event when the predicate
// treats creation as a transition from no value.
func (s *Store) announce(p *property, value any) error {
	if !p.changed(value, nil) {
		return nil
	}
	s.begin()
	defer s.finish()
	return s.dispatch(Change{Name: p.name, New: value, Old: nil})
}

func (s *Store) begin() {
	if s.depth == 0 {
		s.batch = s.batch[:0]
		s.batchSeen = map[string]struct{}{}
	}
	s.depth++
}

// finish emits the settle notification once the outermost write unwinds. It
// runs on error paths too: assignments that already happened stay visible, so
// observers still learn about them.
func (s *Store) finish() {
	s.depth--
	if s.depth != 0 || len(s.batch) == 0 {
		return
	}
	names := make([]string, len(s.batch))
	copy(names, s.batch)
	s.batch = s.batch[:0]
	s.batchSeen = nil
	s.bus.Publish(SettleChannel, names)
}

func (s *Store) record(name string) {
	if s.batchSeen == nil {
		s.batchSeen = map[string]struct{}{}
	}
	if _, seen := s.batchSeen[name]; seen {
		return
	}
	s.batchSeen[name] = struct{}{}
	s.batch = append(s.batch, name)
}

// Reader exposes read-only access to current property values. *Store and
// *Facade both satisfy it.
type Reader interface {
	Get(name string) (any, error)
}
