package engine

import (
	"errors"
	"testing"
)

// fixture mirrors the canonical lookup document:
// {"k1":{"k1":["1","2","3"],"k2":[1,2,3]},"k2":{"k1":[{"k1":"v1","k2":"v2"}]}}
func fixture(t *testing.T) Value {
	t.Helper()
	v, err := FromJSON([]byte(`{
		"k1": {"k1": ["1", "2", "3"], "k2": [1, 2, 3]},
		"k2": {"k1": [{"k1": "v1", "k2": "v2"}]}
	}`))
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return v
}

func TestLookup(t *testing.T) {
	root := fixture(t)

	tests := []struct {
		path string
		want Value
	}{
		{"k1.k1.1", String("2")},
		{"k1.k2.1", Number(2)},
		{"k2.k1.0.k1", String("v1")},
		{"k1.k1", Array(String("1"), String("2"), String("3"))},
		{"k1.k2", Array(Number(1), Number(2), Number(3))},
		{"k2.k1.0", Object(map[string]Value{"k1": String("v1"), "k2": String("v2")})},
	}

	for _, tt := range tests {
		got, err := Lookup(tt.path, root)
		if err != nil {
			t.Errorf("Lookup(%q) returned error: %v", tt.path, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Lookup(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestLookupWholeObject(t *testing.T) {
	root := fixture(t)
	got, err := Lookup("k1", root)
	if err != nil {
		t.Fatalf("Lookup(k1) returned error: %v", err)
	}
	want, _ := root.Field("k1")
	if !got.Equal(want) {
		t.Errorf("Lookup(k1) = %s, want %s", got, want)
	}
}

func TestLookupEmptyPathIsIdentity(t *testing.T) {
	root := fixture(t)
	got, err := Lookup("", root)
	if err != nil {
		t.Fatalf("Lookup(\"\") returned error: %v", err)
	}
	if !got.Equal(root) {
		t.Errorf("Lookup(\"\") did not return the root value")
	}
}

// Scalars stop the walk early: remaining segments are ignored, never an
// error.
func TestLookupScalarEarlyStop(t *testing.T) {
	scalars := []Value{Null(), Bool(true), Number(42), String("leaf")}
	for _, scalar := range scalars {
		got, err := Lookup("a.very.long.leftover.path", scalar)
		if err != nil {
			t.Errorf("Lookup on scalar %s returned error: %v", scalar.Kind(), err)
			continue
		}
		if !got.Equal(scalar) {
			t.Errorf("Lookup on scalar %s = %s, want the scalar unchanged", scalar.Kind(), got)
		}
	}

	// The same holds when the scalar is reached partway through the path.
	root := fixture(t)
	got, err := Lookup("k2.k1.0.k1.trailing.segments", root)
	if err != nil {
		t.Fatalf("expected early stop, got error: %v", err)
	}
	if !got.Equal(String("v1")) {
		t.Errorf("early stop returned %s, want \"v1\"", got)
	}
}

func TestLookupErrorKinds(t *testing.T) {
	root := fixture(t)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"non-numeric array index", "k1.k1.x", ErrBadIndex},
		{"out of range index", "k1.k1.9", ErrNotFound},
		{"negative index", "k1.k1.-1", ErrBadIndex},
		{"missing object key", "k1.missing", ErrNotFound},
		{"missing top-level key", "nope", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup(tt.path, root)
			if err == nil {
				t.Fatalf("Lookup(%q) succeeded, want %v", tt.path, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Lookup(%q) error = %v, want %v", tt.path, err, tt.want)
			}
			var le *LookupError
			if !errors.As(err, &le) {
				t.Fatalf("Lookup(%q) error is not a *LookupError", tt.path)
			}
			if le.Path != tt.path {
				t.Errorf("LookupError.Path = %q, want %q", le.Path, tt.path)
			}
			if ClassOf(err) != ErrorClassLookup {
				t.Errorf("ClassOf(lookup error) = %s, want %s", ClassOf(err), ErrorClassLookup)
			}
		})
	}
}
