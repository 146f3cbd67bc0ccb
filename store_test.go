package props

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func mustDefine(t *testing.T, s *Store, name string, value any, opts ...PropertyOption) {
	t.Helper()
	if err := s.Define(name, value, opts...); err != nil {
		t.Fatalf("define %s: %v", name, err)
	}
}

func mustGet(t *testing.T, r Reader, name string) any {
	t.Helper()
	value, err := r.Get(name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return value
}

func TestDefineDuplicateName(t *testing.T) {
	s := New()
	mustDefine(t, s, "title", "first")

	if err := s.Define("title", "second"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if err := s.DefineDerived("title", nil, func(...any) (any, error) { return nil, nil }); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName for derived collision, got %v", err)
	}
	if got := mustGet(t, s, "title"); got != "first" {
		t.Fatalf("first definition should survive, got %v", got)
	}
}

func TestSetThenGet(t *testing.T) {
	s := New()
	mustDefine(t, s, "count", 1)

	if err := s.Set("count", 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mustGet(t, s, "count"); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestSetOverwritesEvenWithoutChange(t *testing.T) {
	s := New()
	never := func(any, any) bool { return false }
	mustDefine(t, s, "raw", []int{1}, WithChangePredicate(never))

	events := 0
	if _, err := s.OnChange("raw", func(Change) { events++ }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	next := []int{2}
	if err := s.Set("raw", next); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mustGet(t, s, "raw"); !reflect.DeepEqual(got, next) {
		t.Fatalf("stored value must be overwritten, got %v", got)
	}
	if events != 0 {
		t.Fatalf("predicate reported no change, expected 0 events, got %d", events)
	}
}

func TestGetUnknownProperty(t *testing.T) {
	s := New()
	if _, err := s.Get("missing"); !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("expected ErrNoSuchProperty, got %v", err)
	}
	if err := s.Set("missing", 1); !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("expected ErrNoSuchProperty on set, got %v", err)
	}
	if _, err := s.GetAll("missing"); !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("expected ErrNoSuchProperty on getAll, got %v", err)
	}
	if _, err := s.OnChange("missing", func(Change) {}); !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("expected ErrNoSuchProperty on subscribe, got %v", err)
	}
}

func TestValidatorRejectionPassesThroughVerbatim(t *testing.T) {
	s := New()
	tooSmall := errors.New("too small")
	mustDefine(t, s, "size", 10, WithValidator(func(value any) error {
		if n, ok := value.(int); !ok || n < 1 {
			return tooSmall
		}
		return nil
	}))

	err := s.Set("size", 0)
	if !errors.Is(err, ErrValidationRejected) {
		t.Fatalf("expected ErrValidationRejected, got %v", err)
	}
	if !errors.Is(err, tooSmall) {
		t.Fatalf("validator payload should unwrap verbatim, got %v", err)
	}
	if got := mustGet(t, s, "size"); got != 10 {
		t.Fatalf("rejected write must not mutate, got %v", got)
	}

	// The store stays usable after a rejection.
	if err := s.Set("size", 5); err != nil {
		t.Fatalf("set after rejection: %v", err)
	}
}

func TestDefineEmitsInitialChange(t *testing.T) {
	s := New()

	var settles [][]string
	s.OnSettle(func(names []string) {
		settles = append(settles, append([]string(nil), names...))
	})

	mustDefine(t, s, "status", "ready")
	if len(settles) != 1 || len(settles[0]) != 1 || settles[0][0] != "status" {
		t.Fatalf("definition should settle with the new property, got %v", settles)
	}

	// A nil initial value under the default predicate is no transition.
	mustDefine(t, s, "empty", nil)
	if len(settles) != 1 {
		t.Fatalf("nil initial value should not notify, got %v", settles)
	}
}

func TestDerivedTracksDependencies(t *testing.T) {
	s := New()
	mustDefine(t, s, "first", "Ada")
	mustDefine(t, s, "last", "Lovelace")
	fullName := func(deps ...any) (any, error) {
		return fmt.Sprintf("%v %v", deps[0], deps[1]), nil
	}
	if err := s.DefineDerived("full", []string{"first", "last"}, fullName); err != nil {
		t.Fatalf("define derived: %v", err)
	}

	sets := []Update{
		{Name: "first", Value: "Grace"},
		{Name: "last", Value: "Hopper"},
		{Name: "first", Value: "Grace"},
		{Name: "last", Value: "Murray"},
	}
	for _, u := range sets {
		if err := s.Set(u.Name, u.Value); err != nil {
			t.Fatalf("set %s: %v", u.Name, err)
		}
		first := mustGet(t, s, "first")
		last := mustGet(t, s, "last")
		want := fmt.Sprintf("%v %v", first, last)
		if got := mustGet(t, s, "full"); got != want {
			t.Fatalf("derived out of sync: got %v want %v", got, want)
		}
	}
}

func TestDerivedForwardReferenceRejected(t *testing.T) {
	s := New()
	mustDefine(t, s, "present", 1)
	err := s.DefineDerived("sum", []string{"present", "future"}, func(deps ...any) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("forward references must be rejected, got %v", err)
	}
	if s.Has("sum") {
		t.Fatal("failed definition must not register")
	}
}

func TestDerivedExplicitZeroInitialValue(t *testing.T) {
	s := New()
	mustDefine(t, s, "n", 3)
	err := s.DefineDerived("doubled", []string{"n"}, func(deps ...any) (any, error) {
		return deps[0].(int) * 2, nil
	}, WithInitialValue(0))
	if err != nil {
		t.Fatalf("define derived: %v", err)
	}
	// Zero counts as present; the computation must not run at definition.
	if got := mustGet(t, s, "doubled"); got != 0 {
		t.Fatalf("explicit zero initial value should stick, got %v", got)
	}
	if err := s.Set("n", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mustGet(t, s, "doubled"); got != 10 {
		t.Fatalf("recompute after dependency change failed, got %v", got)
	}
}

func TestRectangleCascade(t *testing.T) {
	s := New()
	mustDefine(t, s, "length", 10)
	mustDefine(t, s, "width", 20)
	if err := s.DefineDerived("area", []string{"length", "width"}, func(deps ...any) (any, error) {
		return deps[0].(int) * deps[1].(int), nil
	}); err != nil {
		t.Fatalf("define area: %v", err)
	}
	if err := s.DefineDerived("perimeter", []string{"length", "width"}, func(deps ...any) (any, error) {
		return 2 * (deps[0].(int) + deps[1].(int)), nil
	}); err != nil {
		t.Fatalf("define perimeter: %v", err)
	}

	var settles [][]string
	s.OnSettle(func(names []string) {
		settles = append(settles, append([]string(nil), names...))
	})

	if err := s.Set("length", 15); err != nil {
		t.Fatalf("set length: %v", err)
	}
	if got := mustGet(t, s, "area"); got != 300 {
		t.Fatalf("area: got %v want 300", got)
	}
	if got := mustGet(t, s, "perimeter"); got != 70 {
		t.Fatalf("perimeter: got %v want 70", got)
	}
	if len(settles) != 1 {
		t.Fatalf("expected exactly one settle, got %d", len(settles))
	}
	want := map[string]bool{"length": true, "area": true, "perimeter": true}
	if len(settles[0]) != len(want) {
		t.Fatalf("settle should name %v, got %v", want, settles[0])
	}
	for _, name := range settles[0] {
		if !want[name] {
			t.Fatalf("unexpected settle entry %s in %v", name, settles[0])
		}
	}
}

func TestBulkSetOrderingAndSettle(t *testing.T) {
	s := New()
	mustDefine(t, s, "a", 0)
	mustDefine(t, s, "b", 0)

	var order []string
	for _, name := range []string{"a", "b"} {
		name := name
		if _, err := s.OnChange(name, func(Change) { order = append(order, name) }); err != nil {
			t.Fatalf("subscribe %s: %v", name, err)
		}
	}
	var settles [][]string
	s.OnSettle(func(names []string) {
		settles = append(settles, append([]string(nil), names...))
	})

	if err := s.SetAll(Update{Name: "a", Value: 1}, Update{Name: "b", Value: 2}); err != nil {
		t.Fatalf("bulk set: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("change events must fire in update order, got %v", order)
	}
	if len(settles) != 1 {
		t.Fatalf("expected one settle, got %d", len(settles))
	}
	if !reflect.DeepEqual(settles[0], []string{"a", "b"}) {
		t.Fatalf("settle should list a and b, got %v", settles[0])
	}
}

func TestBulkSetUnknownKeyHasNoEffect(t *testing.T) {
	s := New()
	mustDefine(t, s, "a", 1)
	mustDefine(t, s, "b", 2)

	err := s.SetAll(
		Update{Name: "a", Value: 10},
		Update{Name: "ghost", Value: 11},
		Update{Name: "b", Value: 12},
	)
	if !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("expected ErrNoSuchProperty, got %v", err)
	}
	if got := mustGet(t, s, "a"); got != 1 {
		t.Fatalf("a must be untouched, got %v", got)
	}
	if got := mustGet(t, s, "b"); got != 2 {
		t.Fatalf("b must be untouched, got %v", got)
	}
}

func TestBulkSetValidatorRejectionHasNoEffect(t *testing.T) {
	s := New()
	mustDefine(t, s, "a", 1)
	mustDefine(t, s, "b", 2, WithValidator(func(value any) error {
		if value.(int) > 100 {
			return errors.New("out of range")
		}
		return nil
	}))

	events := 0
	if _, err := s.OnChange("a", func(Change) { events++ }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	err := s.SetAll(Update{Name: "a", Value: 10}, Update{Name: "b", Value: 1000})
	if !errors.Is(err, ErrValidationRejected) {
		t.Fatalf("expected ErrValidationRejected, got %v", err)
	}
	if got := mustGet(t, s, "a"); got != 1 {
		t.Fatalf("a must be untouched after batch rejection, got %v", got)
	}
	if events != 0 {
		t.Fatalf("no events should fire for a rejected batch, got %d", events)
	}
}

func TestBulkAndCascadeShareOneSettle(t *testing.T) {
	s := New()
	mustDefine(t, s, "x", 1)
	mustDefine(t, s, "y", 1)
	if err := s.DefineDerived("sum", []string{"x", "y"}, func(deps ...any) (any, error) {
		return deps[0].(int) + deps[1].(int), nil
	}); err != nil {
		t.Fatalf("define derived: %v", err)
	}

	settles := 0
	var names []string
	s.OnSettle(func(changed []string) {
		settles++
		names = append([]string(nil), changed...)
	})

	if err := s.SetAll(Update{Name: "x", Value: 2}, Update{Name: "y", Value: 3}); err != nil {
		t.Fatalf("bulk set: %v", err)
	}
	if settles != 1 {
		t.Fatalf("bulk plus cascade must settle once, got %d", settles)
	}
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			t.Fatalf("settle names must be deduplicated, got %v", names)
		}
		seen[name] = true
	}
	for _, want := range []string{"x", "y", "sum"} {
		if !seen[want] {
			t.Fatalf("settle missing %s: %v", want, names)
		}
	}
}

func TestSetMapAppliesInDefinitionOrder(t *testing.T) {
	s := New()
	mustDefine(t, s, "b", 0)
	mustDefine(t, s, "a", 0)

	var order []string
	for _, name := range []string{"a", "b"} {
		name := name
		if _, err := s.OnChange(name, func(Change) { order = append(order, name) }); err != nil {
			t.Fatalf("subscribe %s: %v", name, err)
		}
	}

	if err := s.SetMap(map[string]any{"a": 1, "b": 2}); err != nil {
		t.Fatalf("set map: %v", err)
	}
	// b was defined first, so it notifies first regardless of map iteration.
	if !reflect.DeepEqual(order, []string{"b", "a"}) {
		t.Fatalf("expected definition-order notification, got %v", order)
	}

	if err := s.SetMap(map[string]any{"a": 1, "ghost": 2}); !errors.Is(err, ErrNoSuchProperty) {
		t.Fatalf("expected ErrNoSuchProperty, got %v", err)
	}
}

func TestReentrantSetSharesBatch(t *testing.T) {
	s := New()
	mustDefine(t, s, "primary", 0)
	mustDefine(t, s, "echo", 0)

	if _, err := s.OnChange("primary", func(change Change) {
		if err := s.Set("echo", change.New); err != nil {
			t.Fatalf("re-entrant set: %v", err)
		}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	settles := 0
	var names []string
	s.OnSettle(func(changed []string) {
		settles++
		names = append([]string(nil), changed...)
	})

	if err := s.Set("primary", 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mustGet(t, s, "echo"); got != 7 {
		t.Fatalf("handler write lost, got %v", got)
	}
	if settles != 1 {
		t.Fatalf("re-entrant writes share the outermost settle, got %d", settles)
	}
	if !reflect.DeepEqual(names, []string{"primary", "echo"}) {
		t.Fatalf("settle should name both properties, got %v", names)
	}
}

func TestNamesAndGetAll(t *testing.T) {
	s := New()
	for i, name := range []string{"third", "first", "second"} {
		mustDefine(t, s, name, i)
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"third", "first", "second"}) {
		t.Fatalf("names must preserve definition order, got %v", got)
	}

	all, err := s.GetAll()
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(all) != 3 || all["third"] != 0 || all["first"] != 1 || all["second"] != 2 {
		t.Fatalf("unexpected getAll result: %v", all)
	}

	some, err := s.GetAll("second")
	if err != nil {
		t.Fatalf("getAll subset: %v", err)
	}
	if len(some) != 1 || some["second"] != 2 {
		t.Fatalf("unexpected subset: %v", some)
	}
}

func TestKindAndDependencies(t *testing.T) {
	s := New()
	mustDefine(t, s, "base", 1)
	if err := s.DefineDerived("twice", []string{"base"}, func(deps ...any) (any, error) {
		return deps[0].(int) * 2, nil
	}); err != nil {
		t.Fatalf("define derived: %v", err)
	}

	if kind, ok := s.Kind("base"); !ok || kind != KindPrimary {
		t.Fatalf("base kind: %v %v", kind, ok)
	}
	if kind, ok := s.Kind("twice"); !ok || kind != KindDerived {
		t.Fatalf("twice kind: %v %v", kind, ok)
	}
	if deps := s.Dependencies("twice"); !reflect.DeepEqual(deps, []string{"base"}) {
		t.Fatalf("dependencies: %v", deps)
	}
	if deps := s.Dependencies("base"); deps != nil {
		t.Fatalf("primary has no dependencies, got %v", deps)
	}
}
