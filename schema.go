package props

import "encoding/json"

// PropertyDescriptor describes one property for documentation or UI
// surfaces. Values are deliberately absent; use Snapshot for those.
type PropertyDescriptor struct {
	Name         string   `json:"name"`
	Kind         Kind     `json:"kind"`
	Dependencies []string `json:"dependencies,omitempty"`
	Internal     bool     `json:"internal,omitempty"`
	HasValidator bool     `json:"has_validator,omitempty"`
}

// Schema is a JSON-serialisable description of a store's property layout, in
// definition order.
type Schema struct {
	Properties []PropertyDescriptor `json:"properties"`
}

// Describe generates the schema for every property on the store.
func (s *Store) Describe() Schema {
	descriptors := make([]PropertyDescriptor, 0, len(s.order))
	for _, name := range s.order {
		descriptors = append(descriptors, s.describe(name))
	}
	return Schema{Properties: descriptors}
}

// Describe generates the schema for the properties visible through the
// facade.
func (f *Facade) Describe() Schema {
	descriptors := make([]PropertyDescriptor, 0)
	for _, name := range f.store.Names() {
		if !f.visible(name) {
			continue
		}
		descriptors = append(descriptors, f.store.describe(name))
	}
	return Schema{Properties: descriptors}
}

func (s *Store) describe(name string) PropertyDescriptor {
	p := s.properties[name]
	return PropertyDescriptor{
		Name:         name,
		Kind:         p.kind,
		Dependencies: append([]string(nil), p.deps...),
		Internal:     IsInternal(name),
		HasValidator: p.validator != nil,
	}
}

// ToJSON serialises the schema document.
func (sc Schema) ToJSON() ([]byte, error) {
	type alias Schema
	return json.Marshal(alias(sc))
}

// SchemaFromJSON deserialises a payload previously generated via ToJSON.
func SchemaFromJSON(payload []byte) (Schema, error) {
	type alias Schema
	var sc alias
	if err := json.Unmarshal(payload, &sc); err != nil {
		return Schema{}, err
	}
	return Schema(sc), nil
}
