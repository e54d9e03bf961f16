package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rivetrun/rivet/pkg/engine"
	"github.com/rivetrun/rivet/pkg/modules/cloudstack"
	"github.com/rivetrun/rivet/pkg/modules/command"
)

var validate = validator.New()

// Load parses and validates a playbook document. Unknown fields are
// rejected so typos fail loading instead of silently configuring nothing.
func Load(data []byte) (*PlaybookConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg PlaybookConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing playbook: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating playbook: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads and parses the playbook at path.
func LoadFile(path string) (*PlaybookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playbook: %w", err)
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// BuildOptions customizes playbook construction.
type BuildOptions struct {
	// Vars override or extend the playbook's declared vars.
	Vars map[string]string

	// StackAPI is the provisioning client used by cloudstack tasks. Nil
	// means the AWS client, built lazily on first use.
	StackAPI cloudstack.StackAPI

	// PlaybookOptions are forwarded to the engine.
	PlaybookOptions []engine.PlaybookOption
}

// Build compiles a validated configuration into an executable playbook.
// All expressions are compiled and all templates read here; execution
// never touches the configuration again.
func Build(cfg *PlaybookConfig, opts BuildOptions) (*engine.Playbook, error) {
	vars := make(map[string]string, len(cfg.Vars)+len(opts.Vars))
	for k, v := range cfg.Vars {
		vars[k] = v
	}
	for k, v := range opts.Vars {
		vars[k] = v
	}

	tasks := make([]*engine.Task, 0, len(cfg.Tasks))
	for i := range cfg.Tasks {
		tc := &cfg.Tasks[i]

		task, err := buildTask(tc, vars, opts)
		if err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, tc.Description, err)
		}
		tasks = append(tasks, task)
	}

	return engine.NewPlaybook(cfg.Name, tasks, vars, opts.PlaybookOptions...), nil
}

func buildTask(tc *TaskConfig, vars map[string]string, opts BuildOptions) (*engine.Task, error) {
	when, err := parseWhen(tc.When, vars)
	if err != nil {
		return nil, err
	}

	var module engine.Module
	switch tc.Module {
	case "command":
		module, err = buildCommand(tc)
	case "cloudstack":
		module, err = buildCloudstack(tc, opts)
	case "null":
		module = engine.NullModule{}
	default:
		err = fmt.Errorf("unknown module %q", tc.Module)
	}
	if err != nil {
		return nil, err
	}

	return &engine.Task{
		Description: tc.Description,
		Module:      module,
		When:        when,
	}, nil
}

// parseWhen maps the when field onto a condition. The empty string means
// always.
func parseWhen(when string, vars map[string]string) (engine.Condition, error) {
	keyword, rest, _ := strings.Cut(strings.TrimSpace(when), " ")
	rest = strings.TrimSpace(rest)
	switch keyword {
	case "", "always":
		return engine.Always{}, nil
	case "never":
		return engine.Never{}, nil
	case "exec":
		if rest == "" {
			return nil, fmt.Errorf("when: exec needs a command")
		}
		return engine.ParseExec(rest), nil
	case "expr":
		if rest == "" {
			return nil, fmt.Errorf("when: expr needs an expression")
		}
		return engine.Expr{Source: rest, Vars: vars}, nil
	default:
		return nil, fmt.Errorf("when: unknown form %q", when)
	}
}

func buildCommand(tc *TaskConfig) (engine.Module, error) {
	if tc.Command == "" {
		return nil, fmt.Errorf("command module needs a command")
	}

	cmd, err := CompileString(tc.Command)
	if err != nil {
		return nil, err
	}
	args, err := CompileArgs(tc.Args)
	if err != nil {
		return nil, err
	}
	creates, err := CompileString(tc.Creates)
	if err != nil {
		return nil, err
	}
	removes, err := CompileString(tc.Removes)
	if err != nil {
		return nil, err
	}

	return &command.Module{
		Command: cmd,
		Args:    args,
		Creates: creates,
		Removes: removes,
	}, nil
}

func buildCloudstack(tc *TaskConfig, opts BuildOptions) (engine.Module, error) {
	if tc.StackName == "" {
		return nil, fmt.Errorf("cloudstack module needs a stack_name")
	}
	if (tc.TemplateFile == "") == (tc.TemplateURL == "") {
		return nil, fmt.Errorf("cloudstack module needs exactly one of template_file or template_url")
	}

	stackName, err := CompileString(tc.StackName)
	if err != nil {
		return nil, err
	}

	var template cloudstack.TemplateResolver
	if tc.TemplateFile != "" {
		body, err := os.ReadFile(tc.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		template = cloudstack.TemplateBody(string(body))
	} else {
		template = cloudstack.TemplateURL(tc.TemplateURL)
	}

	api := opts.StackAPI
	if api == nil {
		api, err = cloudstack.NewAWSStackAPI(context.Background())
		if err != nil {
			return nil, err
		}
	}

	return &cloudstack.Module{
		StackName:       stackName,
		Template:        template,
		API:             api,
		PollInterval:    time.Duration(tc.PollIntervalSeconds) * time.Second,
		MaxPollAttempts: tc.MaxPollAttempts,
	}, nil
}
