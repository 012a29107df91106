package callsheet

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

type Action string

const (
	ActionCreateJob      Action = "createJobDetails"
	ActionGetJob         Action = "getJob"
	ActionReschedule     Action = "reschedule"
	ActionCancel         Action = "cancellation"
	ActionLogEmergency   Action = "logEmergency"
	ActionCollectInquiry Action = "collectInquiryDetails"
)

// Actions lists every supported action in a stable order.
func Actions() []Action {
	return []Action{
		ActionCreateJob,
		ActionGetJob,
		ActionReschedule,
		ActionCancel,
		ActionLogEmergency,
		ActionCollectInquiry,
	}
}

// Tool names the voice platform uses for the same operations.
var actionAliases = map[string]Action{
	"Reschedule_caller_information":   ActionReschedule,
	"Cancellation_caller_Information": ActionCancel,
}

// ParseAction resolves a canonical action name or one of its aliases.
// Matching is exact apart from surrounding whitespace.
func ParseAction(name string) (Action, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, action := range Actions() {
		if string(action) == name {
			return action, true
		}
	}
	action, ok := actionAliases[name]
	return action, ok
}

type HandlerFunc func(ctx context.Context, p Payload) (Result, error)

// Dispatcher routes a Request to the handler registered for its action.
type Dispatcher struct {
	handlers map[Action]HandlerFunc
}

func NewDispatcher(svc *Service) *Dispatcher {
	return &Dispatcher{handlers: map[Action]HandlerFunc{
		ActionCreateJob:      svc.CreateJob,
		ActionGetJob:         svc.GetJob,
		ActionReschedule:     svc.Reschedule,
		ActionCancel:         svc.Cancel,
		ActionLogEmergency:   svc.LogEmergency,
		ActionCollectInquiry: svc.CollectInquiry,
	}}
}

// Dispatch runs the handler for action. A nil payload is treated as empty.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, p Payload) (Result, error) {
	handler, ok := d.handlers[action]
	if !ok {
		return Result{}, errors.Wrapf(ErrUnknownAction, "%s", action)
	}
	if p == nil {
		p = Payload{}
	}
	return handler(ctx, p)
}

// Handle executes a request produced by StrictRequest or InferRequest.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Result, error) {
	if req.Kind == KindAcknowledge {
		return Result{
			Success: true,
			Message: "Request received",
			Outcome: OutcomeAcknowledged,
		}, nil
	}
	return d.Dispatch(ctx, req.Action, req.Payload)
}
