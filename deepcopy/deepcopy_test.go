package deepcopy

import "testing"

func TestCloneNestedMap(t *testing.T) {
	original := map[string]any{
		"dims": map[string]any{"length": 10, "width": 20},
		"tags": []string{"a", "b"},
	}

	cloned := Clone(original)
	cloned["dims"].(map[string]any)["length"] = 99
	cloned["tags"].([]string)[0] = "z"

	if original["dims"].(map[string]any)["length"] != 10 {
		t.Fatalf("nested map aliased: %v", original)
	}
	if original["tags"].([]string)[0] != "a" {
		t.Fatalf("slice aliased: %v", original)
	}
}

func TestCloneStructWithPointer(t *testing.T) {
	type inner struct{ N int }
	type outer struct {
		Name  string
		Inner *inner
	}

	original := outer{Name: "box", Inner: &inner{N: 7}}
	cloned := Clone(original)

	if cloned.Inner == original.Inner {
		t.Fatal("pointer field aliased")
	}
	cloned.Inner.N = 100
	if original.Inner.N != 7 {
		t.Fatalf("pointee mutated through clone: %d", original.Inner.N)
	}
}

func TestCloneNilInputs(t *testing.T) {
	if got := Clone[map[string]int](nil); got != nil {
		t.Fatalf("nil map: %v", got)
	}
	if got := Clone[[]int](nil); got != nil {
		t.Fatalf("nil slice: %v", got)
	}
	if got := Clone[*int](nil); got != nil {
		t.Fatalf("nil pointer: %v", got)
	}
	if got := Clone[any](nil); got != nil {
		t.Fatalf("nil any: %v", got)
	}
}

func TestCloneScalars(t *testing.T) {
	if got := Clone(42); got != 42 {
		t.Fatalf("int: %v", got)
	}
	if got := Clone("value"); got != "value" {
		t.Fatalf("string: %v", got)
	}
	if got := Clone(1.5); got != 1.5 {
		t.Fatalf("float: %v", got)
	}
}

func TestCloneArray(t *testing.T) {
	original := [2][]int{{1, 2}, {3}}
	cloned := Clone(original)
	cloned[0][0] = 99
	if original[0][0] != 1 {
		t.Fatalf("array element aliased: %v", original)
	}
}
