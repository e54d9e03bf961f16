// Package config loads playbook documents from YAML, validates them, and
// compiles them into executable playbooks. It owns the textual expression
// syntax (${var NAME}, ${state DESC path}) and the mapping from task
// declarations to concrete modules; the engine never sees YAML or
// expression text.
package config
