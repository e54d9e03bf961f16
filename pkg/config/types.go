package config

// PlaybookConfig is the top-level playbook document.
type PlaybookConfig struct {
	// Name labels the playbook in logs and the run journal.
	Name string `yaml:"name" validate:"required"`

	// Vars are the input variables, fixed for the whole run. The CLI may
	// override or extend them before the run starts.
	Vars map[string]string `yaml:"vars"`

	// Tasks execute in declared order.
	Tasks []TaskConfig `yaml:"tasks" validate:"required,min=1,dive"`
}

// TaskConfig declares one task. Module selects the action; the remaining
// fields are module-specific and validated per module at build time.
type TaskConfig struct {
	// Description identifies the task and keys its output in state.
	Description string `yaml:"description" validate:"required"`

	// Module is the action kind.
	Module string `yaml:"module" validate:"required,oneof=command cloudstack null"`

	// When gates the task: "always" (default when empty), "never",
	// "exec CMD ARG...", or "expr EXPRESSION".
	When string `yaml:"when,omitempty"`

	// Command module fields. String fields accept ${...} expressions.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Creates string   `yaml:"creates,omitempty"`
	Removes string   `yaml:"removes,omitempty"`

	// Cloudstack module fields.
	StackName    string `yaml:"stack_name,omitempty"`
	TemplateFile string `yaml:"template_file,omitempty"`
	TemplateURL  string `yaml:"template_url,omitempty"`

	// PollIntervalSeconds overrides the cloudstack status poll interval.
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty" validate:"gte=0"`

	// MaxPollAttempts bounds the cloudstack status wait.
	MaxPollAttempts int `yaml:"max_poll_attempts,omitempty" validate:"gte=0"`
}
