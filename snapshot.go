package props

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/goliatone/go-propmodel/deepcopy"
	"github.com/goliatone/go-propmodel/internal/hydrate"
)

// Snapshot is a structurally independent copy of property values at one point
// in time. Returned values never alias the store's internal storage, and the
// snapshot round-trips losslessly through JSON for any JSON-representable
// payload. The ID correlates snapshots across logs and exports.
type Snapshot struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// Snapshot captures every property's current value.
func (s *Store) Snapshot() Snapshot {
	values := make(map[string]any, len(s.order))
	for _, name := range s.order {
		values[name] = deepcopy.Clone(s.properties[name].value)
	}
	return Snapshot{ID: uuid.NewString(), Values: values}
}

// Snapshot captures the values visible and readable through the facade.
func (f *Facade) Snapshot() Snapshot {
	values := map[string]any{}
	for _, name := range f.store.Names() {
		if !f.visible(name) || !f.canRead(name) {
			continue
		}
		value, err := f.store.Get(name)
		if err != nil {
			continue
		}
		values[name] = deepcopy.Clone(value)
	}
	return Snapshot{ID: uuid.NewString(), Values: values}
}

// ToJSON serialises the snapshot for logging or transport.
func (sn Snapshot) ToJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(alias(sn))
}

// SnapshotFromJSON deserialises a payload previously generated via ToJSON.
func SnapshotFromJSON(payload []byte) (Snapshot, error) {
	type alias Snapshot
	var sn alias
	if err := json.Unmarshal(payload, &sn); err != nil {
		return Snapshot{}, err
	}
	return Snapshot(sn), nil
}

// SnapshotAs hydrates the snapshot's values into a caller-typed struct via a
// JSON round trip.
func SnapshotAs[T any](sn Snapshot) (T, error) {
	decoder := hydrate.NewDecoder[T]()
	return decoder.Decode(hydrate.Context{SnapshotID: sn.ID}, sn.Values)
}

// SnapshotAsStrict behaves like SnapshotAs but rejects snapshot values that
// have no matching field on T.
func SnapshotAsStrict[T any](sn Snapshot) (T, error) {
	decoder := hydrate.NewDecoder(hydrate.WithDisallowUnknownFields[T]())
	return decoder.Decode(hydrate.Context{SnapshotID: sn.ID}, sn.Values)
}
