package policy

// BuiltinPolicies returns the policies compiled into the binary. They are
// always loaded; file-based policies add to them.
func BuiltinPolicies() []Policy {
	return []Policy{
		taskDescriptionPolicy(),
		execConditionSafetyPolicy(),
		duplicateDescriptionPolicy(),
	}
}

// taskDescriptionPolicy rejects tasks whose description is blank. The
// description keys task output in state, so a blank one makes the output
// unaddressable.
func taskDescriptionPolicy() Policy {
	return Policy{
		Name:        "task-description",
		Description: "Every task needs a non-blank description",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package rivet.policies.description

import rego.v1

deny contains violation if {
	some task in input.tasks
	trim_space(task.description) == ""
	violation := {
		"message": sprintf("task %d has a blank description", [task.index]),
		"severity": "error",
		"task": task.description,
	}
}
`,
	}
}

// execConditionSafetyPolicy rejects exec conditions carrying shell
// metacharacters. Conditions are spawned directly, never through a shell,
// so metacharacters indicate a playbook expecting shell semantics it will
// not get.
func execConditionSafetyPolicy() Policy {
	return Policy{
		Name:        "exec-condition-safety",
		Description: "Exec conditions must not rely on shell metacharacters",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package rivet.policies.conditions

import rego.v1

deny contains violation if {
	some task in input.tasks
	startswith(task.when, "exec ")
	regex.match(` + "`[;&|<>$\\x60]`" + `, task.when)
	violation := {
		"message": sprintf("task %q: exec condition %q contains shell metacharacters; conditions run without a shell", [task.description, task.when]),
		"severity": "error",
		"task": task.description,
	}
}
`,
	}
}

// duplicateDescriptionPolicy warns when two tasks share a description.
// The later task silently overwrites the earlier one's state entry.
func duplicateDescriptionPolicy() Policy {
	return Policy{
		Name:        "duplicate-descriptions",
		Description: "Tasks sharing a description overwrite each other's state",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Rego: `package rivet.policies.duplicates

import rego.v1

deny contains violation if {
	some i, j
	input.tasks[i].description == input.tasks[j].description
	i < j
	violation := {
		"message": sprintf("tasks %d and %d share the description %q; the later output overwrites the earlier", [i, j, input.tasks[i].description]),
		"severity": "warning",
		"task": input.tasks[i].description,
	}
}
`,
	}
}
