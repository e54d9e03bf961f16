package config

import (
	"fmt"
	"strings"

	"github.com/rivetrun/rivet/pkg/engine"
)

// CompileString turns a playbook string field into a lazy resolver.
//
// Plain text compiles to a literal. ${...} placeholders reference the run
// context and are resolved only when the owning task executes:
//
//	${var NAME}                        input variable
//	${state "TASK DESC" PATH}          dot-path into a prior task's output
//	${state DESC PATH}                 unquoted form; the last word is PATH
//	${var NAME | fallback text}        fallback when the primary is empty
//
// Text around placeholders interpolates: "web-${var env}" resolves to
// "web-prod" when env is prod.
func CompileString(s string) (engine.StringResolver, error) {
	var (
		template strings.Builder
		parts    []engine.StringResolver
	)

	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated ${ in %q", s)
		}
		end += start

		template.WriteString(escapePercent(rest[:start]))
		template.WriteString("%s")

		part, err := compilePlaceholder(rest[start+2 : end])
		if err != nil {
			return nil, fmt.Errorf("in %q: %w", s, err)
		}
		parts = append(parts, part)

		rest = rest[end+1:]
	}
	template.WriteString(escapePercent(rest))

	if len(parts) == 0 {
		return engine.Literal(s), nil
	}
	if template.String() == "%s" {
		return parts[0], nil
	}
	return engine.Format(template.String(), parts...), nil
}

// compilePlaceholder parses the inside of one ${...}.
func compilePlaceholder(content string) (engine.StringResolver, error) {
	primary, fallback, hasFallback := strings.Cut(content, "|")

	resolver, err := compileDirective(strings.TrimSpace(primary))
	if err != nil {
		return nil, err
	}
	if !hasFallback {
		return resolver, nil
	}

	fb, err := compileDirective(strings.TrimSpace(fallback))
	if err != nil {
		return nil, err
	}
	return engine.WithDefault(resolver, fb), nil
}

func compileDirective(directive string) (engine.StringResolver, error) {
	keyword, rest, _ := strings.Cut(directive, " ")
	rest = strings.TrimSpace(rest)

	switch keyword {
	case "var":
		if rest == "" || strings.ContainsAny(rest, " \t") {
			return nil, fmt.Errorf("var takes exactly one name, got %q", rest)
		}
		return engine.Var(rest), nil

	case "state":
		description, path, err := splitStateRef(rest)
		if err != nil {
			return nil, err
		}
		return engine.State(description, path), nil

	default:
		// Anything else is literal text, which makes fallbacks like
		// ${var name | us-east-1} read naturally.
		return engine.Literal(directive), nil
	}
}

// splitStateRef separates a state reference into task description and
// lookup path. Descriptions containing spaces are quoted, or left bare
// with the final word taken as the path.
func splitStateRef(ref string) (string, string, error) {
	if ref == "" {
		return "", "", fmt.Errorf("state takes a task description and a path")
	}

	if strings.HasPrefix(ref, `"`) {
		closing := strings.Index(ref[1:], `"`)
		if closing < 0 {
			return "", "", fmt.Errorf("unterminated quote in state reference %q", ref)
		}
		description := ref[1 : closing+1]
		path := strings.TrimSpace(ref[closing+2:])
		if description == "" || path == "" {
			return "", "", fmt.Errorf("state takes a task description and a path, got %q", ref)
		}
		return description, path, nil
	}

	lastSpace := strings.LastIndexAny(ref, " \t")
	if lastSpace < 0 {
		return "", "", fmt.Errorf("state takes a task description and a path, got %q", ref)
	}
	description := strings.TrimSpace(ref[:lastSpace])
	path := ref[lastSpace+1:]
	if description == "" || path == "" {
		return "", "", fmt.Errorf("state takes a task description and a path, got %q", ref)
	}
	return description, path, nil
}

func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// CompileArgs compiles an argument list field into a lazy list resolver.
func CompileArgs(args []string) (engine.ListResolver, error) {
	elems := make([]engine.StringResolver, len(args))
	for i, a := range args {
		r, err := CompileString(a)
		if err != nil {
			return nil, err
		}
		elems[i] = r
	}
	return engine.List(elems...), nil
}
