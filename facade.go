package props

import (
	"strings"

	"github.com/goliatone/go-propmodel/pkg/pubsub"
)

// IsInternal reports whether name follows the internal naming convention
// (leading underscore). The public facade hides such properties.
func IsInternal(name string) bool {
	return strings.HasPrefix(name, "_")
}

// Access is the capability object a facade gates store operations through. A
// nil predicate grants the corresponding capability for every name.
type Access struct {
	// Read authorizes Get, GetAll, snapshotting, and change subscriptions.
	Read func(name string) bool
	// Write authorizes Set and accessor setters.
	Write func(name string) bool
	// Visible filters enumeration (Names, default GetAll, settle payloads).
	Visible func(name string) bool
}

// Facade exposes the store's operational surface with every read and write
// gated through the access capabilities. Facades share the store they wrap;
// they restrict access, they do not copy state.
type Facade struct {
	store  *Store
	access Access
}

// NewFacade wraps store with the supplied capabilities.
func NewFacade(store *Store, access Access) *Facade {
	return &Facade{store: store, access: access}
}

// Public returns the standard consumer-facing facade: internal names are
// invisible and untouchable, and derived properties are never writable.
func (s *Store) Public() *Facade {
	external := func(name string) bool { return !IsInternal(name) }
	return NewFacade(s, Access{
		Read:    external,
		Visible: external,
		Write: func(name string) bool {
			if IsInternal(name) {
				return false
			}
			kind, ok := s.Kind(name)
			return ok && kind != KindDerived
		},
	})
}

// Owner returns the facade granted to the store's creator: every property is
// readable and visible, but derived properties remain unwritable since their
// values belong to their computations.
func (s *Store) Owner() *Facade {
	return NewFacade(s, Access{
		Write: func(name string) bool {
			kind, ok := s.Kind(name)
			return ok && kind != KindDerived
		},
	})
}

// Get returns the current value of name when the read capability allows it.
func (f *Facade) Get(name string) (any, error) {
	if !f.store.Has(name) {
		return nil, noSuchProperty(name)
	}
	if !f.canRead(name) {
		return nil, accessDenied("read", name)
	}
	return f.store.Get(name)
}

// Set writes value to name when the write capability allows it.
func (f *Facade) Set(name string, value any) error {
	if !f.store.Has(name) {
		return noSuchProperty(name)
	}
	if !f.canWrite(name) {
		return accessDenied("write", name)
	}
	return f.store.Set(name, value)
}

// SetAll applies updates as one batch, authorizing every name before any
// mutation so a denied entry leaves the store untouched.
func (f *Facade) SetAll(updates ...Update) error {
	for _, u := range updates {
		if !f.store.Has(u.Name) {
			return noSuchProperty(u.Name)
		}
	}
	for _, u := range updates {
		if !f.canWrite(u.Name) {
			return accessDenied("write", u.Name)
		}
	}
	return f.store.SetAll(updates...)
}

// GetAll returns name→value for the requested names, or for every visible
// readable property when no names are given.
func (f *Facade) GetAll(names ...string) (map[string]any, error) {
	if len(names) == 0 {
		out := map[string]any{}
		for _, name := range f.store.Names() {
			if !f.visible(name) || !f.canRead(name) {
				continue
			}
			value, err := f.store.Get(name)
			if err != nil {
				return nil, err
			}
			out[name] = value
		}
		return out, nil
	}
	for _, name := range names {
		if !f.store.Has(name) {
			return nil, noSuchProperty(name)
		}
		if !f.canRead(name) {
			return nil, accessDenied("read", name)
		}
	}
	return f.store.GetAll(names...)
}

// Names returns visible property names in definition order.
func (f *Facade) Names() []string {
	names := make([]string, 0)
	for _, name := range f.store.Names() {
		if f.visible(name) {
			names = append(names, name)
		}
	}
	return names
}

// Has reports whether name is defined and visible through this facade.
func (f *Facade) Has(name string) bool {
	return f.store.Has(name) && f.visible(name)
}

// Kind returns the kind of a visible property.
func (f *Facade) Kind(name string) (Kind, bool) {
	if !f.visible(name) {
		return "", false
	}
	return f.store.Kind(name)
}

// OnChange subscribes fn to a property's change events when the read
// capability allows observing it.
func (f *Facade) OnChange(name string, fn func(Change)) (*pubsub.Subscription, error) {
	if !f.store.Has(name) {
		return nil, noSuchProperty(name)
	}
	if !f.canRead(name) {
		return nil, accessDenied("read", name)
	}
	return f.store.OnChange(name, fn)
}

// OnSettle subscribes fn to settle notifications with the changed-name list
// filtered to visible properties. Settles whose every change is invisible are
// not delivered.
func (f *Facade) OnSettle(fn func(names []string)) *pubsub.Subscription {
	return f.store.OnSettle(func(names []string) {
		filtered := make([]string, 0, len(names))
		for _, name := range names {
			if f.visible(name) {
				filtered = append(filtered, name)
			}
		}
		if len(filtered) == 0 {
			return
		}
		fn(filtered)
	})
}

func (f *Facade) canRead(name string) bool {
	return f.access.Read == nil || f.access.Read(name)
}

func (f *Facade) canWrite(name string) bool {
	return f.access.Write == nil || f.access.Write(name)
}

func (f *Facade) visible(name string) bool {
	return f.access.Visible == nil || f.access.Visible(name)
}
