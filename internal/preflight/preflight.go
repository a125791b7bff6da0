// Package preflight defines the approval gate consulted before every command
// dispatch. The gate is an external collaborator: the scheduler only depends
// on the contract here, not on who answers it.
package preflight

import (
	"context"
	"fmt"

	"github.com/quarry-dev/agentrun/internal/command"
)

// Request describes the action awaiting approval.
type Request struct {
	// Action is a short verb phrase, e.g. "execute command".
	Action string

	// Details carries the specifics a reviewer needs: the command text, the
	// task id, the working directory.
	Details map[string]string
}

// Decision is the gate's verdict. Reason is required for denials.
type Decision struct {
	Approved bool
	Reason   string
}

// Gate reviews a request before execution. Implementations may answer
// synchronously or block on an external reviewer; a returned error means the
// review itself could not be performed, which is distinct from a denial.
type Gate interface {
	Review(ctx context.Context, req Request) (Decision, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context, req Request) (Decision, error)

// Review calls f.
func (f GateFunc) Review(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// AutoApprove approves everything. Using it is an explicit configuration
// choice; a missing gate is a construction error, not a silent pass.
type AutoApprove struct{}

// Review approves the request.
func (AutoApprove) Review(context.Context, Request) (Decision, error) {
	return Decision{Approved: true}, nil
}

// Deny rejects everything, useful for dry runs and tests.
type Deny struct {
	Reason string
}

// Review rejects the request.
func (d Deny) Review(context.Context, Request) (Decision, error) {
	reason := d.Reason
	if reason == "" {
		reason = "denied by policy"
	}
	return Decision{Approved: false, Reason: reason}, nil
}

// PolicyGate approves a command only if the validator accepts it in
// safe-only mode. It turns the allow-list into a standing reviewer for
// unattended runs.
type PolicyGate struct {
	Validator *command.Validator
}

// Review validates the request's command text against the safe-command list.
func (g PolicyGate) Review(_ context.Context, req Request) (Decision, error) {
	if g.Validator == nil {
		return Decision{}, fmt.Errorf("policy gate has no validator")
	}
	text, ok := req.Details["command"]
	if !ok {
		return Decision{Approved: false, Reason: "request carries no command"}, nil
	}
	if err := g.Validator.Validate(text, true); err != nil {
		return Decision{Approved: false, Reason: err.Error()}, nil
	}
	return Decision{Approved: true}, nil
}
