package callsheet

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type RequestKind int

const (
	// KindAction runs one of the six handlers.
	KindAction RequestKind = iota
	// KindAcknowledge answers with a generic acknowledgement and writes nothing.
	KindAcknowledge
)

// Request is a webhook call after its shape has been decided at the boundary.
type Request struct {
	Kind    RequestKind
	Action  Action
	Payload Payload
	// Rule names the inference rule that produced the request.
	Rule string
}

// StrictRequest builds a request from an explicit action name.
func StrictRequest(action string, data Payload) (Request, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return Request{}, ErrActionRequired
	}
	resolved, ok := ParseAction(action)
	if !ok {
		return Request{}, errors.Wrapf(ErrUnknownAction, "%s", action)
	}
	if data == nil {
		data = Payload{}
	}
	return Request{Kind: KindAction, Action: resolved, Payload: data, Rule: RuleExplicitAction}, nil
}

const (
	RuleExplicitAction   = "explicit-action"
	RuleEmergencyDetails = "emergency-details"
	RuleInquiryDetails   = "inquiry-details"
	RuleNewBooking       = "new-booking"
	RulePhoneLookup      = "phone-lookup"
	RuleFallback         = "acknowledge"
)

// InferenceRule maps a payload to an action when it matches.
type InferenceRule struct {
	Name  string
	Match func(explicit string, p Payload) (Action, bool)
}

// InferenceRules is evaluated top to bottom; the first match wins. An
// explicit action name that does not resolve falls through to the shape rules.
var InferenceRules = []InferenceRule{
	{
		Name: RuleExplicitAction,
		Match: func(explicit string, _ Payload) (Action, bool) {
			return ParseAction(explicit)
		},
	},
	{
		Name: RuleEmergencyDetails,
		Match: func(_ string, p Payload) (Action, bool) {
			return ActionLogEmergency, p.Has("emergency_details")
		},
	},
	{
		Name: RuleInquiryDetails,
		Match: func(_ string, p Payload) (Action, bool) {
			return ActionCollectInquiry, p.Has("inquiry_details")
		},
	},
	{
		Name: RuleNewBooking,
		Match: func(_ string, p Payload) (Action, bool) {
			return ActionCreateJob, p.Has("name") && p.Has("service_type")
		},
	},
	{
		Name: RulePhoneLookup,
		Match: func(_ string, p Payload) (Action, bool) {
			return ActionGetJob, p.Has("phone_number")
		},
	},
}

// InferRequest decides the request for a loosely shaped body. Fields are
// read from body["args"] when it is an object, otherwise from body itself.
// The action name is taken from args.action, then body.action, then
// queryAction.
func InferRequest(body map[string]any, queryAction string) Request {
	payload := Payload(body)
	if args, ok := body["args"].(map[string]any); ok {
		payload = Payload(args)
	}
	if payload == nil {
		payload = Payload{}
	}
	explicit := firstNonEmpty(
		strings.TrimSpace(payload.String("action")),
		strings.TrimSpace(Payload(body).String("action")),
		strings.TrimSpace(queryAction),
	)
	for _, rule := range InferenceRules {
		if action, ok := rule.Match(explicit, payload); ok {
			return Request{Kind: KindAction, Action: action, Payload: payload, Rule: rule.Name}
		}
	}
	return Request{Kind: KindAcknowledge, Payload: payload, Rule: RuleFallback}
}
