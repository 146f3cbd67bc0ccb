package props

import (
	"fmt"
	"sort"

	"github.com/stoewer/go-strcase"
)

// AccessLevel selects which accessor methods a property contributes.
type AccessLevel int

const (
	// AccessNone contributes no accessors for the property.
	AccessNone AccessLevel = iota
	// AccessReadOnly contributes only the getter.
	AccessReadOnly
	// AccessReadWrite contributes both getter and setter.
	AccessReadWrite
)

// Getter reads a property through the facade it was installed from.
type Getter func() (any, error)

// Setter writes a property through the facade it was installed from.
type Setter func(value any) error

// Method is one bean-style accessor bound to a property. Exactly one of Get
// and Set is non-nil.
type Method struct {
	Property string
	Get      Getter
	Set      Setter
}

// Methods maps bean-style method names (getWindowTitle, setWindowTitle) to
// their bound accessors.
type Methods map[string]Method

// GetterName returns the bean-style getter name for a property.
func GetterName(property string) string {
	return "get" + strcase.UpperCamelCase(property)
}

// SetterName returns the bean-style setter name for a property.
func SetterName(property string) string {
	return "set" + strcase.UpperCamelCase(property)
}

// Accessors produces bean-style method bindings for the requested properties.
// Every entry is validated before any binding is returned: an unknown
// property fails with ErrNoSuchProperty, and AccessReadWrite on a property
// this facade cannot write fails with ErrAccessDenied. Read authorization is
// enforced when a getter is invoked, not at installation.
func (f *Facade) Accessors(levels map[string]AccessLevel) (Methods, error) {
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Strings(names)

	methods := Methods{}
	for _, name := range names {
		level := levels[name]
		if !f.store.Has(name) {
			return nil, noSuchProperty(name)
		}
		switch level {
		case AccessNone:
			continue
		case AccessReadOnly, AccessReadWrite:
		default:
			return nil, fmt.Errorf("props: invalid access level %d for %s", level, name)
		}
		if level == AccessReadWrite && !f.canWrite(name) {
			return nil, accessDenied("write", name)
		}

		property := name
		methods[GetterName(name)] = Method{
			Property: name,
			Get: func() (any, error) {
				return f.Get(property)
			},
		}
		if level == AccessReadWrite {
			methods[SetterName(name)] = Method{
				Property: name,
				Set: func(value any) error {
					return f.Set(property, value)
				},
			}
		}
	}
	return methods, nil
}
