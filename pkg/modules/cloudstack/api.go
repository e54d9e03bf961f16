package cloudstack

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors a StackAPI implementation translates provider responses
// into. The module's apply logic branches on these, never on provider
// error text.
var (
	// ErrStackNotFound means the named stack does not exist yet.
	ErrStackNotFound = errors.New("stack not found")

	// ErrNoUpdate means the submitted template matches the deployed one,
	// so the provider refused the update. Not a failure: the module
	// reports changed=false with the current outputs.
	ErrNoUpdate = errors.New("no updates are to be performed")
)

// Template is the stack definition, either inline or by URL. Exactly one
// field is set.
type Template struct {
	// Body is the inline template document.
	Body string

	// URL points at an externally stored template.
	URL string
}

// StackInfo is the provider's view of a stack.
type StackInfo struct {
	// Status is the provider's stack status string.
	Status string

	// Outputs are the stack's exported key-value outputs.
	Outputs map[string]string
}

// StackAPI is the provisioning boundary: query current state, create, and
// update. Implementations block on the network; the poll loop above them
// decides when a stack has reached a terminal state.
type StackAPI interface {
	Describe(ctx context.Context, stackName string) (*StackInfo, error)
	Create(ctx context.Context, stackName string, template Template) error
	Update(ctx context.Context, stackName string, template Template) error
}

// Stack status sets. Status strings follow the CloudFormation vocabulary.
const (
	statusCreateComplete = "CREATE_COMPLETE"
	statusUpdateComplete = "UPDATE_COMPLETE"
)

// createFailureStatuses end a create wait unsuccessfully.
var createFailureStatuses = map[string]bool{
	"CREATE_FAILED":     true,
	"DELETE_COMPLETE":   true,
	"DELETE_FAILED":     true,
	"ROLLBACK_FAILED":   true,
	"ROLLBACK_COMPLETE": true,
}

// updateFailureStatuses end an update wait unsuccessfully.
var updateFailureStatuses = map[string]bool{
	"UPDATE_FAILED":            true,
	"UPDATE_ROLLBACK_FAILED":   true,
	"UPDATE_ROLLBACK_COMPLETE": true,
}

// inProgressStatuses keep the wait polling. A status in none of the three
// sets fails the wait immediately rather than polling forever.
var inProgressStatuses = map[string]bool{
	"CREATE_IN_PROGRESS":                           true,
	"UPDATE_IN_PROGRESS":                           true,
	"UPDATE_COMPLETE_CLEANUP_IN_PROGRESS":          true,
	"ROLLBACK_IN_PROGRESS":                         true,
	"UPDATE_ROLLBACK_IN_PROGRESS":                  true,
	"UPDATE_ROLLBACK_COMPLETE_CLEANUP_IN_PROGRESS": true,
	"DELETE_IN_PROGRESS":                           true,
	"REVIEW_IN_PROGRESS":                           true,
}

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 120
)

// waiter polls Describe until the stack reaches a terminal state or the
// attempt bound is exhausted. sleep is injectable for tests.
type waiter struct {
	api         StackAPI
	interval    time.Duration
	maxAttempts int
	sleep       func(time.Duration)
}

func newWaiter(api StackAPI, interval time.Duration, maxAttempts int) *waiter {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &waiter{
		api:         api,
		interval:    interval,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
	}
}

// wait blocks until stackName reaches desired, a failure status, an
// unrecognized status, or the attempt bound.
func (w *waiter) wait(ctx context.Context, stackName, desired string, failures map[string]bool) error {
	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		info, err := w.api.Describe(ctx, stackName)
		if err != nil {
			return err
		}
		switch {
		case info.Status == desired:
			return nil
		case failures[info.Status]:
			return fmt.Errorf("stack %s entered failure status %s", stackName, info.Status)
		case inProgressStatuses[info.Status]:
			w.sleep(w.interval)
		default:
			return fmt.Errorf("stack %s reported unrecognized status %s", stackName, info.Status)
		}
	}
	return fmt.Errorf("stack %s did not reach %s within %d polls", stackName, desired, w.maxAttempts)
}
