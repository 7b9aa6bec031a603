package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dataloom/analystrt/pkg/models"
)

// Trace carries the request-scoped identifiers every LLMCall must set:
// a trace_id shared across a request's causally linked calls, and the
// parent_call_id of the call this one was derived from, if any.
type Trace struct {
	TraceID      string
	ParentCallID *string
}

// NewTrace mints a fresh trace for a new incoming request.
func NewTrace() Trace {
	return Trace{TraceID: uuid.New().String()}
}

// Child derives a trace for a call nested under callID, inheriting TraceID
// and setting ParentCallID.
func (t Trace) Child(callID string) Trace {
	id := callID
	return Trace{TraceID: t.TraceID, ParentCallID: &id}
}

// Call is a scoped, in-flight ledger entry. The scoped wrapper guarantees
// that exactly one of Complete or Fail is invoked on every exit path: call
// Complete() from the first non-error return and Fail() from every error
// return, or use Record to express this as a single function call.
type Call struct {
	ledger *Ledger
	id     string
	done   bool
}

// Begin starts a pending LLMCall row and returns a scoped Call handle.
func (l *Ledger) Begin(ctx context.Context, req models.StartLLMCallRequest) *Call {
	return &Call{ledger: l, id: l.Start(ctx, req)}
}

// ID returns the call id assigned at Begin, for embedding in child traces.
func (c *Call) ID() string { return c.id }

// Complete marks the call successful. A second call after Fail or Complete
// is a no-op: only the first completion of a given call is recorded.
func (c *Call) Complete(ctx context.Context, req CompleteRequest) {
	if c.done {
		return
	}
	c.done = true
	req.CallID = c.id
	c.ledger.Complete(ctx, req)
}

// Fail marks the call errored. A second call after Fail or Complete is a no-op.
func (c *Call) Fail(ctx context.Context, errMsg string) {
	if c.done {
		return
	}
	c.done = true
	c.ledger.Fail(ctx, c.id, errMsg)
}

// Record runs fn under a scoped Call, completing or failing the row from
// fn's own return value so every exit path — including a panic recovered
// by an outer handler — leaves exactly one terminal status written.
func (l *Ledger) Record(ctx context.Context, req models.StartLLMCallRequest, fn func(callID string) (CompleteRequest, error)) (CompleteRequest, error) {
	call := l.Begin(ctx, req)
	defer func() {
		if r := recover(); r != nil {
			call.Fail(ctx, fmt.Sprintf("panic: %v", r))
			panic(r)
		}
	}()
	result, err := fn(call.id)
	if err != nil {
		call.Fail(ctx, err.Error())
		return CompleteRequest{}, err
	}
	call.Complete(ctx, result)
	return result, nil
}
