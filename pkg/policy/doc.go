// Package policy gates playbooks with OPA Rego rules before execution.
// Built-in policies catch structural mistakes (blank or duplicated task
// descriptions, shell metacharacters in exec conditions); operators add
// their own as .rego or .json files, optionally hot-reloaded via a file
// watcher. Violations at error severity or above block the run.
package policy
