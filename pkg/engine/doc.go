// Package engine implements the core playbook execution model: the Value
// data model and dot-path lookup, deferred (lazy) parameter resolution, the
// Module and Condition contracts, and the sequential fail-fast run driver.
//
// Execution is strictly single threaded. Tasks run in declared order
// against one shared Context; a task's output becomes visible to later
// tasks' resolvers only after the driver commits it to state, and the
// first failed task halts the run.
package engine
