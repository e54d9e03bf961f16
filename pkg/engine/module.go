package engine

// Output is any module result convertible to the Value model. The same
// conversion feeds both the emitted result stream and state storage.
type Output interface {
	ToValue() (Value, error)
}

// Response is the outcome of a successful module apply.
type Response struct {
	// Changed reports whether the action mutated anything.
	Changed bool

	// Output is the structured result, or nil when the action produces none.
	Output Output
}

// ModuleError is a failed module apply. Changed matters here: it signals
// whether partial side effects occurred before the action failed, so
// callers must not assume failure implies no mutation.
type ModuleError struct {
	// Changed reports whether side effects were already committed.
	Changed bool

	// Description is the human-readable failure text.
	Description string
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	return e.Description
}

// Module is a pluggable action bound to a task. Implementations live
// outside the engine (local process runner, cloud-stack provisioner) and
// are dispatched through this interface only.
type Module interface {
	// Name is the stable identity used for logging and result labeling.
	Name() string

	// Apply performs the action against the run context. Failures are
	// reported as *ModuleError so the partial-side-effect flag survives.
	Apply(c *Context) (*Response, error)

	// Destroy is the symmetric teardown hook. The current driver never
	// invokes it; it is reserved for a future teardown phase.
	Destroy() (*Response, error)
}

// MapOutput is a convenience Output for modules whose result is a flat
// string map, exposed as {"outputs": {...}} in state.
type MapOutput struct {
	// Outputs are the key-value results of the action.
	Outputs map[string]string
}

// ToValue implements Output.
func (o MapOutput) ToValue() (Value, error) {
	entries := make(map[string]Value, len(o.Outputs))
	for k, v := range o.Outputs {
		entries[k] = String(v)
	}
	return Object(map[string]Value{"outputs": Object(entries)}), nil
}

// NullModule is the no-op action: it never changes anything and reports a
// null output. Useful as a placeholder and in tests.
type NullModule struct{}

// NullOutput is the output of NullModule.
type NullOutput struct{}

// ToValue implements Output.
func (NullOutput) ToValue() (Value, error) {
	return Null(), nil
}

// Name implements Module.
func (NullModule) Name() string {
	return "null"
}

// Apply implements Module.
func (NullModule) Apply(*Context) (*Response, error) {
	return &Response{Changed: false, Output: NullOutput{}}, nil
}

// Destroy implements Module.
func (NullModule) Destroy() (*Response, error) {
	return &Response{Changed: false, Output: NullOutput{}}, nil
}
