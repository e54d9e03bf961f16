package cloudstack

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rivetrun/rivet/pkg/engine"
)

// fakeAPI scripts a sequence of stack statuses and records calls.
type fakeAPI struct {
	describeErr error
	statuses    []string
	outputs     map[string]string
	createErr   error
	updateErr   error

	describes int
	creates   int
	updates   int
}

func (f *fakeAPI) Describe(_ context.Context, _ string) (*StackInfo, error) {
	f.describes++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	status := f.statuses[len(f.statuses)-1]
	if f.describes-1 < len(f.statuses) {
		status = f.statuses[f.describes-1]
	}
	return &StackInfo{Status: status, Outputs: f.outputs}, nil
}

func (f *fakeAPI) Create(_ context.Context, _ string, _ Template) error {
	f.creates++
	// Once created, the stack exists for subsequent describes.
	f.describeErr = nil
	return f.createErr
}

func (f *fakeAPI) Update(_ context.Context, _ string, _ Template) error {
	f.updates++
	return f.updateErr
}

func newModule(api StackAPI) *Module {
	m := &Module{
		StackName:    engine.Literal("test-stack"),
		Template:     TemplateBody("{}"),
		API:          api,
		PollInterval: time.Millisecond,
	}
	return m
}

func TestApplyCreatesMissingStack(t *testing.T) {
	api := &fakeAPI{
		// The first describe errors with not-found; the remaining
		// entries script the post-create polls.
		describeErr: ErrStackNotFound,
		statuses:    []string{"", "CREATE_IN_PROGRESS", "CREATE_COMPLETE", "CREATE_COMPLETE"},
		outputs:     map[string]string{"SecurityGroup": "sg-123"},
	}
	m := newModule(api)

	resp, err := m.Apply(engine.NewContext(nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !resp.Changed {
		t.Error("create must report changed")
	}
	if api.creates != 1 || api.updates != 0 {
		t.Errorf("creates=%d updates=%d", api.creates, api.updates)
	}

	value, err := resp.Output.ToValue()
	if err != nil {
		t.Fatal(err)
	}
	got, err := engine.Lookup("outputs.SecurityGroup", value)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(engine.String("sg-123")) {
		t.Errorf("output = %s", got)
	}
}

func TestApplyUpdatesExistingStack(t *testing.T) {
	api := &fakeAPI{
		statuses: []string{"UPDATE_COMPLETE", "UPDATE_IN_PROGRESS", "UPDATE_COMPLETE", "UPDATE_COMPLETE"},
		outputs:  map[string]string{"Endpoint": "https://x"},
	}
	m := newModule(api)

	resp, err := m.Apply(engine.NewContext(nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !resp.Changed {
		t.Error("update must report changed")
	}
	if api.updates != 1 || api.creates != 0 {
		t.Errorf("creates=%d updates=%d", api.creates, api.updates)
	}
}

// A no-op update is convergence, not failure: changed=false plus the
// current outputs so later tasks can still address them.
func TestApplyNoUpdateReportsUnchanged(t *testing.T) {
	api := &fakeAPI{
		statuses:  []string{"UPDATE_COMPLETE", "UPDATE_COMPLETE"},
		outputs:   map[string]string{"Endpoint": "https://x"},
		updateErr: ErrNoUpdate,
	}
	m := newModule(api)

	resp, err := m.Apply(engine.NewContext(nil))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if resp.Changed {
		t.Error("no-op update must report changed=false")
	}
	if resp.Output == nil {
		t.Error("outputs must still be reported")
	}
}

func TestApplyFailureStatusFailsTask(t *testing.T) {
	api := &fakeAPI{
		describeErr: ErrStackNotFound,
		statuses:    []string{"CREATE_IN_PROGRESS", "ROLLBACK_COMPLETE"},
	}
	m := newModule(api)

	_, err := m.Apply(engine.NewContext(nil))
	if err == nil {
		t.Fatal("failure status must fail the apply")
	}
	var me *engine.ModuleError
	if !errors.As(err, &me) {
		t.Fatalf("error type %T", err)
	}
	if !me.Changed {
		t.Error("the create was submitted, so changed must be true")
	}
	if !strings.Contains(me.Description, "ROLLBACK_COMPLETE") {
		t.Errorf("description %q missing status", me.Description)
	}
}

// A status outside both the success and failure sets fails fast instead of
// polling forever.
func TestWaitUnrecognizedStatusFailsFast(t *testing.T) {
	api := &fakeAPI{statuses: []string{"SOMETHING_NEW"}}
	w := newWaiter(api, time.Millisecond, 10)
	w.sleep = func(time.Duration) {}

	err := w.wait(context.Background(), "s", statusCreateComplete, createFailureStatuses)
	if err == nil {
		t.Fatal("unrecognized status must fail")
	}
	if !strings.Contains(err.Error(), "unrecognized status") {
		t.Errorf("error = %v", err)
	}
	if api.describes != 1 {
		t.Errorf("polled %d times, want 1", api.describes)
	}
}

func TestWaitBoundExhaustion(t *testing.T) {
	api := &fakeAPI{statuses: []string{"CREATE_IN_PROGRESS"}}
	w := newWaiter(api, time.Millisecond, 3)
	w.sleep = func(time.Duration) {}

	err := w.wait(context.Background(), "s", statusCreateComplete, createFailureStatuses)
	if err == nil {
		t.Fatal("exhausted bound must fail")
	}
	if api.describes != 3 {
		t.Errorf("polled %d times, want 3", api.describes)
	}
}

func TestApplyEmptyStackNameFails(t *testing.T) {
	m := newModule(&fakeAPI{})
	m.StackName = engine.Var("unset")

	_, err := m.Apply(engine.NewContext(nil))
	if err == nil {
		t.Fatal("empty stack name must fail")
	}
	var me *engine.ModuleError
	if !errors.As(err, &me) {
		t.Fatalf("error type %T", err)
	}
	if me.Changed {
		t.Error("nothing was submitted, changed must be false")
	}
}

func TestApplyDescribeFailureIsUnchanged(t *testing.T) {
	api := &fakeAPI{describeErr: errors.New("throttled")}
	m := newModule(api)

	_, err := m.Apply(engine.NewContext(nil))
	if err == nil {
		t.Fatal("describe failure must fail the apply")
	}
	var me *engine.ModuleError
	if !errors.As(err, &me) {
		t.Fatalf("error type %T", err)
	}
	if me.Changed {
		t.Error("no operation was attempted, changed must be false")
	}
}
