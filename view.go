package props

import "fmt"

// ViewFunc derives the view value from the base value.
type ViewFunc func(base any) any

// ReduceFunc folds a freshly set view value back into a new base value. The
// reader grants read-only access to the rest of the store so the reduction
// can consult other properties; consulting them does not subscribe the pair
// to their changes.
type ReduceFunc func(view any, base any, r Reader) (any, error)

// propagation tags which direction of a view/base pair is currently allowed
// to fire. Exactly one direction runs per update; the opposite edge is
// suppressed until the propagation unwinds.
type propagation int

const (
	propagationIdle propagation = iota
	propagationToView
	propagationToBase
)

type viewPair struct {
	base   string
	from   ViewFunc
	reduce ReduceFunc
	state  propagation
}

// DefineView registers a view property over base: the view tracks from(base)
// like any derived property, and writing the view feeds a new base value back
// through reduce. The pair is the only permitted cycle in the dependency
// graph; the propagation state machine keeps it from looping.
//
// The store does not verify that reduce produces a base from maps back to the
// just-set view value. When it does not, view and base drift apart until the
// next base write; keeping them in agreement is the reducer's contract.
func (s *Store) DefineView(name, base string, from ViewFunc, reduce ReduceFunc, opts ...DerivedOption) error {
	if name == "" {
		return fmt.Errorf("props: property name must not be empty")
	}
	if from == nil {
		return fmt.Errorf("props: view function must not be nil for %s", name)
	}
	if reduce == nil {
		return fmt.Errorf("props: reduce function must not be nil for %s", name)
	}
	if _, exists := s.properties[name]; exists {
		return duplicateName(name)
	}
	baseProp, ok := s.properties[base]
	if !ok {
		return noSuchProperty(base)
	}

	cfg := derivedConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	pair := &viewPair{base: base, from: from, reduce: reduce}
	p := &property{
		name:      name,
		kind:      KindDerived,
		predicate: cfg.predicate,
		deps:      []string{base},
		compute: func(deps ...any) (any, error) {
			return from(deps[0]), nil
		},
		view: pair,
	}
	if cfg.hasInitial {
		p.value = cfg.initial
	} else {
		p.value = from(baseProp.value)
	}
	s.properties[name] = p
	s.order = append(s.order, name)
	s.dependents[base] = append(s.dependents[base], name)

	// The definition-time event announces the view's starting value; it must
	// not write back into the base.
	pair.state = propagationToView
	err := s.announce(p, p.value)
	pair.state = propagationIdle
	return err
}

// DefineElementView defines a view over one slot of a base property holding
// an ordered sequence ([]any). Reading extracts the slot; writing reinserts
// it into a copy of the sequence, growing it when the index lies past the
// end.
func (s *Store) DefineElementView(name, base string, index int, opts ...DerivedOption) error {
	if index < 0 {
		return fmt.Errorf("props: element index must not be negative for %s", name)
	}
	from := func(base any) any {
		seq, ok := base.([]any)
		if !ok || index >= len(seq) {
			return nil
		}
		return seq[index]
	}
	reduce := func(view, base any, _ Reader) (any, error) {
		seq, _ := base.([]any)
		size := len(seq)
		if index >= size {
			size = index + 1
		}
		next := make([]any, size)
		copy(next, seq)
		next[index] = view
		return next, nil
	}
	return s.DefineView(name, base, from, reduce, opts...)
}

// DefineFieldView defines a view over a single field of a base property
// holding a structured value (map[string]any). Writing the view produces a
// copy of the record with the field replaced.
func (s *Store) DefineFieldView(name, base, field string, opts ...DerivedOption) error {
	from := func(base any) any {
		record, ok := base.(map[string]any)
		if !ok {
			return nil
		}
		return record[field]
	}
	reduce := func(view, base any, _ Reader) (any, error) {
		record, _ := base.(map[string]any)
		next := make(map[string]any, len(record)+1)
		for key, value := range record {
			next[key] = value
		}
		next[field] = view
		return next, nil
	}
	return s.DefineView(name, base, from, reduce, opts...)
}

// refreshView recomputes the view after a base change unless the base change
// originated from this pair's own view→base propagation.
func (s *Store) refreshView(p *property) error {
	pair := p.view
	if pair.state == propagationToBase {
		return nil
	}
	prev := pair.state
	pair.state = propagationToView
	defer func() { pair.state = prev }()
	return s.write(p, pair.from(s.properties[pair.base].value))
}

// reduceToBase feeds a changed view value back into the base property unless
// a propagation is already in flight for this pair.
func (s *Store) reduceToBase(p *property, view any) error {
	pair := p.view
	if pair.state != propagationIdle {
		return nil
	}
	pair.state = propagationToBase
	defer func() { pair.state = propagationIdle }()

	baseProp := s.properties[pair.base]
	next, err := pair.reduce(view, baseProp.value, s)
	if err != nil {
		return fmt.Errorf("props: reduce %s into %s: %w", p.name, pair.base, err)
	}
	return s.write(baseProp, next)
}
