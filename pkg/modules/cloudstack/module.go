// Package cloudstack implements the cloud-stack provisioning module: it
// converges a named stack toward a template by creating or updating it,
// then waits for the provider to reach a terminal status. The provider is
// abstracted behind StackAPI so the convergence and poll logic is testable
// without a cloud account.
package cloudstack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rivetrun/rivet/pkg/engine"
)

const moduleName = "cloudstack"

// TemplateResolver defers template selection to execution time, matching
// the engine's lazy parameter model.
type TemplateResolver func(*engine.Context) Template

// TemplateBody returns a resolver for an inline template document.
func TemplateBody(body string) TemplateResolver {
	return func(*engine.Context) Template {
		return Template{Body: body}
	}
}

// TemplateURL returns a resolver for an externally stored template.
func TemplateURL(url string) TemplateResolver {
	return func(*engine.Context) Template {
		return Template{URL: url}
	}
}

// Module converges one stack. StackName is lazy; Template is deferred the
// same way.
type Module struct {
	// StackName names the stack to converge. Resolving to "" fails the
	// apply.
	StackName engine.StringResolver

	// Template supplies the stack definition.
	Template TemplateResolver

	// API is the provisioning client.
	API StackAPI

	// PollInterval is the fixed sleep between status polls. Zero means
	// the 5s default.
	PollInterval time.Duration

	// MaxPollAttempts bounds the wait. Zero means the default of 120
	// polls; exhausting the bound fails the task.
	MaxPollAttempts int
}

// Name implements engine.Module.
func (m *Module) Name() string {
	return moduleName
}

// Apply implements engine.Module. An existing stack is updated (a
// no-change update reports changed=false with the current outputs); a
// missing stack is created. Both paths wait for a terminal status before
// reading the stack outputs.
func (m *Module) Apply(c *engine.Context) (*engine.Response, error) {
	ctx := context.Background()

	stackName := engine.ResolveString(m.StackName, c)
	if stackName == "" {
		return nil, &engine.ModuleError{Changed: false, Description: "stack name resolved to an empty string"}
	}
	if m.Template == nil {
		return nil, &engine.ModuleError{Changed: false, Description: "no template configured"}
	}
	template := m.Template(c)

	w := newWaiter(m.API, m.PollInterval, m.MaxPollAttempts)

	_, err := m.API.Describe(ctx, stackName)
	switch {
	case err == nil:
		return m.update(ctx, w, stackName, template)
	case errors.Is(err, ErrStackNotFound):
		return m.create(ctx, w, stackName, template)
	default:
		return nil, &engine.ModuleError{Changed: false, Description: err.Error()}
	}
}

func (m *Module) create(ctx context.Context, w *waiter, stackName string, template Template) (*engine.Response, error) {
	if err := m.API.Create(ctx, stackName, template); err != nil {
		return nil, &engine.ModuleError{Changed: true, Description: err.Error()}
	}
	if err := w.wait(ctx, stackName, statusCreateComplete, createFailureStatuses); err != nil {
		return nil, &engine.ModuleError{Changed: true, Description: err.Error()}
	}
	return m.respond(ctx, stackName, true)
}

func (m *Module) update(ctx context.Context, w *waiter, stackName string, template Template) (*engine.Response, error) {
	err := m.API.Update(ctx, stackName, template)
	if errors.Is(err, ErrNoUpdate) {
		// Template already deployed: converged without changes.
		return m.respond(ctx, stackName, false)
	}
	if err != nil {
		return nil, &engine.ModuleError{Changed: true, Description: err.Error()}
	}
	if err := w.wait(ctx, stackName, statusUpdateComplete, updateFailureStatuses); err != nil {
		return nil, &engine.ModuleError{Changed: true, Description: err.Error()}
	}
	return m.respond(ctx, stackName, true)
}

// respond reads the converged stack's outputs into the task response.
func (m *Module) respond(ctx context.Context, stackName string, changed bool) (*engine.Response, error) {
	info, err := m.API.Describe(ctx, stackName)
	if err != nil {
		return nil, &engine.ModuleError{
			Changed:     changed,
			Description: fmt.Sprintf("reading outputs of %s: %v", stackName, err),
		}
	}
	if len(info.Outputs) == 0 {
		return &engine.Response{Changed: changed}, nil
	}
	return &engine.Response{
		Changed: changed,
		Output:  engine.MapOutput{Outputs: info.Outputs},
	}, nil
}

// Destroy implements engine.Module. Stack deletion is reserved for a
// future teardown phase.
func (m *Module) Destroy() (*engine.Response, error) {
	return &engine.Response{Changed: false}, nil
}
