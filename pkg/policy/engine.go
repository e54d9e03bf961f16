package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/rivetrun/rivet/pkg/config"
)

// Engine compiles policies and gates playbooks against them. Built-in
// policies are always present; LoadPolicies adds file-based ones.
// Safe for concurrent use; ReplacePolicies swaps the file-based set
// atomically, which is how hot reload lands.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy pairs a policy with its prepared deny query.
type compiledPolicy struct {
	policy Policy
	query  rego.PreparedEvalQuery
}

// NewEngine builds an engine with the built-in policies compiled in.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy").Logger(),
	}
	for _, p := range BuiltinPolicies() {
		if err := e.compile(context.Background(), p); err != nil {
			return nil, fmt.Errorf("compiling built-in policy %s: %w", p.Name, err)
		}
	}
	return e, nil
}

// LoadPolicies compiles and adds policies from the given files and
// directories.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(paths)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range policies {
		if err := e.compileLocked(ctx, p); err != nil {
			return fmt.Errorf("compiling policy %s: %w", p.Name, err)
		}
	}
	e.logger.Info().Int("count", len(policies)).Msg("policies loaded")
	return nil
}

// ReplacePolicies swaps the file-based policy set for the given one. The
// built-ins survive the swap. Used by the hot-reload watcher.
func (e *Engine) ReplacePolicies(ctx context.Context, policies []Policy) error {
	compiled := make(map[string]*compiledPolicy, len(policies))
	for _, p := range policies {
		cp, err := prepare(ctx, p)
		if err != nil {
			return fmt.Errorf("compiling policy %s: %w", p.Name, err)
		}
		compiled[p.Name] = cp
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for name, cp := range e.policies {
		if !cp.policy.Builtin {
			delete(e.policies, name)
		}
	}
	for name, cp := range compiled {
		e.policies[name] = cp
	}
	e.logger.Info().Int("count", len(compiled)).Msg("policies replaced")
	return nil
}

// Evaluate gates one playbook. Every enabled policy's deny set is
// collected; a blocking-severity violation flips Allowed off. A policy
// that fails to evaluate is reported as a warning, never as a block.
func (e *Engine) Evaluate(ctx context.Context, cfg *config.PlaybookConfig) (*Result, error) {
	input := buildInput(cfg)

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true, EvaluatedAt: time.Now()}
	for _, cp := range e.sortedLocked() {
		if !cp.policy.Enabled {
			continue
		}

		violations, err := e.evaluateOne(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", cp.policy.Name).Msg("policy evaluation failed")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("policy %s failed to evaluate: %v", cp.policy.Name, err))
			continue
		}
		result.Violations = append(result.Violations, violations...)
	}

	for _, v := range result.Violations {
		if v.Severity.Blocks() {
			result.Allowed = false
			break
		}
	}
	return result, nil
}

func (e *Engine) evaluateOne(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, r := range results {
		for _, expr := range r.Expressions {
			denies, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denies {
				violations = append(violations, e.toViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

// toViolation maps one deny result onto a Violation. Policies may emit a
// bare string or an object with message/severity/task fields.
func (e *Engine) toViolation(p Policy, deny interface{}) Violation {
	v := Violation{Policy: p.Name, Severity: p.Severity}
	switch d := deny.(type) {
	case string:
		v.Message = d
	case map[string]interface{}:
		if msg, ok := d["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := d["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if task, ok := d["task"].(string); ok {
			v.Task = task
		}
	default:
		v.Message = fmt.Sprintf("%v", deny)
	}
	return v
}

// ListPolicies returns the loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.sortedLocked() {
		policies = append(policies, cp.policy)
	}
	return policies
}

func (e *Engine) sortedLocked() []*compiledPolicy {
	out := make([]*compiledPolicy, 0, len(e.policies))
	for _, cp := range e.policies {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].policy.Name < out[j].policy.Name
	})
	return out
}

func (e *Engine) compile(ctx context.Context, p Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileLocked(ctx, p)
}

func (e *Engine) compileLocked(ctx context.Context, p Policy) error {
	cp, err := prepare(ctx, p)
	if err != nil {
		return err
	}
	e.policies[p.Name] = cp
	return nil
}

func prepare(ctx context.Context, p Policy) (*compiledPolicy, error) {
	query := fmt.Sprintf("data.%s.deny", packageName(p.Rego))
	prepared, err := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &compiledPolicy{policy: p, query: prepared}, nil
}

// packageName pulls the package path out of Rego source.
func packageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			if parts := strings.Fields(trimmed); len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "rivet.policies"
}

// buildInput flattens a playbook configuration into the policy input
// document.
func buildInput(cfg *config.PlaybookConfig) *Input {
	input := &Input{
		Playbook: PlaybookInput{Name: cfg.Name, Vars: cfg.Vars},
		Tasks:    make([]TaskInput, len(cfg.Tasks)),
	}
	for i, t := range cfg.Tasks {
		input.Tasks[i] = TaskInput{
			Index:       i,
			Description: t.Description,
			Module:      t.Module,
			When:        t.When,
			Command:     t.Command,
			StackName:   t.StackName,
		}
	}
	return input
}
