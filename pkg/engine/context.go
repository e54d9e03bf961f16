package engine

// Context is the state shared by every task in one playbook run.
//
// Vars are fixed at construction and read-only for the duration of the run.
// State accumulates task output keyed by task description; it is written
// only by the playbook driver, strictly between one task's completion and
// the next task's start, so a task always observes fully committed output
// from its predecessors. Two tasks sharing a description silently overwrite
// each other's entry: descriptions are the addressing key, not enforced
// unique.
type Context struct {
	vars  map[string]string
	state map[string]Value
}

// NewContext builds a run context from the given input variables. The map
// is copied, so later mutation by the caller does not leak into the run.
func NewContext(vars map[string]string) *Context {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Context{
		vars:  copied,
		state: make(map[string]Value),
	}
}

// Var returns the input variable under name and whether it was supplied.
func (c *Context) Var(name string) (string, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Vars returns a copy of the input variables.
func (c *Context) Vars() map[string]string {
	out := make(map[string]string, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// State returns the stored output of a prior task and whether it exists.
func (c *Context) State(description string) (Value, bool) {
	v, ok := c.state[description]
	return v, ok
}

// StateLen returns the number of committed state entries.
func (c *Context) StateLen() int {
	return len(c.state)
}

// commitState stores a task's output under its description, replacing any
// prior entry. Only the playbook driver calls this.
func (c *Context) commitState(description string, output Value) {
	c.state[description] = output.Clone()
}
