package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound marks a lookup that walked off the value: a missing object
// key or an out-of-range array index.
var ErrNotFound = errors.New("value not found")

// ErrBadIndex marks a non-numeric path segment applied to an array value.
var ErrBadIndex = errors.New("array index must be numeric")

// LookupError describes a failed path lookup. The full requested path is
// carried so callers can report it even when the walk failed midway.
type LookupError struct {
	// Path is the complete dot-separated path that was requested.
	Path string

	// Segment is the path segment the walk failed on.
	Segment string

	reason error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("%s at path %s", e.reason, e.Path)
}

// Unwrap exposes ErrNotFound or ErrBadIndex for errors.Is.
func (e *LookupError) Unwrap() error {
	return e.reason
}

// Lookup navigates root by a dot-separated path and returns the value it
// lands on.
//
// Resolution is iterative over path segments. A scalar encountered before
// the segments are exhausted stops the walk and is returned as-is, with the
// remaining segments ignored; this truncation is part of the contract that
// state references rely on, not an error. Arrays require numeric segments;
// objects require present keys. An empty remaining path returns the current
// value, so Lookup("", root) is the identity.
func Lookup(path string, root Value) (Value, error) {
	if path == "" {
		return root, nil
	}
	current := root
	for _, segment := range strings.Split(path, ".") {
		if current.IsScalar() {
			// Early stop: remaining segments are deliberately ignored.
			return current, nil
		}
		switch current.Kind() {
		case KindArray:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 {
				return Value{}, &LookupError{Path: path, Segment: segment, reason: ErrBadIndex}
			}
			next, ok := current.Index(index)
			if !ok {
				return Value{}, &LookupError{Path: path, Segment: segment, reason: ErrNotFound}
			}
			current = next
		case KindObject:
			next, ok := current.Field(segment)
			if !ok {
				return Value{}, &LookupError{Path: path, Segment: segment, reason: ErrNotFound}
			}
			current = next
		}
	}
	return current, nil
}
