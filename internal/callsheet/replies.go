package callsheet

import (
	"fmt"
	"strings"
)

// ErrorSentence is spoken when a request fails inside the backend.
const ErrorSentence = "Sorry, something went wrong while saving your details. Please try again in a moment."

const acknowledgeSentence = "Thanks, your request has been received."

// Sentence renders the result as a single sentence a voice agent can read out.
func (r Result) Sentence() string {
	switch r.Outcome {
	case OutcomeAcknowledged:
		return acknowledgeSentence
	case OutcomeMissingKey:
		return "I need the phone number the job was booked under to look it up."
	case OutcomeNotFound:
		return "I couldn't find a job booked under that phone number."
	}

	switch r.Action {
	case ActionCreateJob:
		if r.Name != "" {
			return fmt.Sprintf("Thanks %s, your job has been booked.", r.Name)
		}
		return "Thanks, your job has been booked."
	case ActionGetJob:
		if r.Job == nil {
			return "I couldn't find a job booked under that phone number."
		}
		return describeJob(*r.Job)
	case ActionReschedule:
		return "Your job has been rescheduled."
	case ActionCancel:
		return "Your job has been cancelled."
	case ActionLogEmergency:
		return "Your emergency has been logged and our team has been alerted."
	case ActionCollectInquiry:
		return "Thanks, your inquiry has been recorded and someone will follow up."
	}
	if r.Message != "" {
		return r.Message
	}
	return acknowledgeSentence
}

func describeJob(job Job) string {
	var b strings.Builder
	b.WriteString("I found a")
	if job.ServiceType != "" {
		fmt.Fprintf(&b, " %s", job.ServiceType)
	}
	b.WriteString(" job")
	if job.Name != "" {
		fmt.Fprintf(&b, " for %s", job.Name)
	}
	if job.PreferredTime != "" {
		fmt.Fprintf(&b, " at %s", job.PreferredTime)
	}
	if job.AppointmentStatus != "" {
		fmt.Fprintf(&b, ", currently %s", strings.ToLower(job.AppointmentStatus))
	}
	b.WriteString(".")
	return b.String()
}
