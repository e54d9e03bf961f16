package engine

import "fmt"

// StringResolver is a deferred string computation over the run context. A
// resolver is not evaluated until its owning task runs, so it observes the
// state committed by every earlier task.
//
// Resolvers never fail: an absent variable, a missing state entry, or a
// lookup that lands on a non-string value all degrade to the empty string.
// Module authors must treat "" as "unresolved", not as guaranteed-empty
// data.
type StringResolver func(*Context) string

// ListResolver is a deferred argument-list computation. The outer list is
// resolved first, then each element, all at execution time.
type ListResolver func(*Context) []StringResolver

// Literal returns a resolver that ignores the context and yields s.
func Literal(s string) StringResolver {
	return func(*Context) string {
		return s
	}
}

// Var returns a resolver for the input variable under name, or "" if the
// variable was not supplied.
func Var(name string) StringResolver {
	return func(c *Context) string {
		v, _ := c.Var(name)
		return v
	}
}

// State returns a resolver that reads path within the stored output of the
// task identified by description. Missing task, failed lookup, and
// non-string results all yield "".
func State(description, path string) StringResolver {
	return func(c *Context) string {
		stored, ok := c.State(description)
		if !ok {
			return ""
		}
		found, err := Lookup(path, stored)
		if err != nil || found.Kind() != KindString {
			return ""
		}
		return found.AsString()
	}
}

// WithDefault evaluates primary and falls back to fallback when the result
// is the empty string.
func WithDefault(primary, fallback StringResolver) StringResolver {
	return func(c *Context) string {
		if v := primary(c); v != "" {
			return v
		}
		return fallback(c)
	}
}

// Format builds a resolver that formats template with the evaluated results
// of parts, in order. The template uses fmt %s verbs, one per part.
func Format(template string, parts ...StringResolver) StringResolver {
	return func(c *Context) string {
		args := make([]interface{}, len(parts))
		for i, p := range parts {
			args[i] = p(c)
		}
		return fmt.Sprintf(template, args...)
	}
}

// List builds a ListResolver from a fixed set of element resolvers.
func List(elems ...StringResolver) ListResolver {
	return func(*Context) []StringResolver {
		return elems
	}
}

// ResolveList fully evaluates a ListResolver against the context. A nil
// resolver yields an empty list.
func ResolveList(r ListResolver, c *Context) []string {
	if r == nil {
		return nil
	}
	elems := r(c)
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e(c)
	}
	return out
}

// ResolveString evaluates a StringResolver, treating nil as Literal("").
func ResolveString(r StringResolver, c *Context) string {
	if r == nil {
		return ""
	}
	return r(c)
}
