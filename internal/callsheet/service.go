package callsheet

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/agentworkforce/relaysheet/internal/logger"
)

const (
	msgPhoneRequired = "Phone number is required"
	msgJobNotFound   = "No job found for this phone number"
)

// Outcome classifies a handler result independent of its wire shape.
type Outcome string

const (
	OutcomeCreated      Outcome = "created"
	OutcomeFound        Outcome = "found"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeUpdated      Outcome = "updated"
	OutcomeMissingKey   Outcome = "missing_key"
	OutcomeAcknowledged Outcome = "acknowledged"
)

// Result is what a handler returns. The JSON form is the strict webhook
// response; Sentence renders the plain-text form.
type Result struct {
	Success bool   `json:"success"`
	Found   *bool  `json:"found,omitempty"`
	Message string `json:"message,omitempty"`
	Job     *Job   `json:"job,omitempty"`

	Action  Action  `json:"-"`
	Outcome Outcome `json:"-"`
	Name    string  `json:"-"`
}

type ServiceOptions struct {
	Tables Tables
	Now    func() time.Time
	Events EventSink
	Logger *zap.SugaredLogger
}

// Service implements the six call-event operations over a TableStore.
type Service struct {
	store  TableStore
	tables Tables
	now    func() time.Time
	events EventSink
	log    *zap.SugaredLogger
}

func NewService(store TableStore, opts ServiceOptions) *Service {
	tables := opts.Tables
	defaults := DefaultTables()
	if tables.Jobs == "" {
		tables.Jobs = defaults.Jobs
	}
	if tables.Emergency == "" {
		tables.Emergency = defaults.Emergency
	}
	if tables.Inquiry == "" {
		tables.Inquiry = defaults.Inquiry
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{store: store, tables: tables, now: now, events: opts.Events, log: log}
}

func (s *Service) Tables() Tables {
	return s.tables
}

// EnsureHeaders seeds header rows when the store supports it.
func (s *Service) EnsureHeaders(ctx context.Context) error {
	writer, ok := s.store.(HeaderWriter)
	if !ok {
		return nil
	}
	for table, header := range s.tables.Headers() {
		if err := writer.EnsureHeader(ctx, table, header); err != nil {
			return errors.Wrapf(err, "ensure %s header", table)
		}
	}
	return nil
}

func (s *Service) CreateJob(ctx context.Context, p Payload) (Result, error) {
	now := s.now()
	row := EncodeJobRow(p, now)
	if err := AppendRow(ctx, s.store, s.tables.Jobs, row); err != nil {
		return Result{}, err
	}
	name := p.String("name")
	s.publish(Event{
		Type:        EventJobCreated,
		Table:       s.tables.Jobs,
		Name:        name,
		PhoneNumber: row[jobColPhoneNumber],
		Status:      row[jobColStatus],
		Timestamp:   row[jobColTimestamp],
	})
	message := "Job created successfully"
	if name != "" {
		message = fmt.Sprintf("Job created successfully for %s", name)
	}
	return Result{
		Success: true,
		Message: message,
		Action:  ActionCreateJob,
		Outcome: OutcomeCreated,
		Name:    name,
	}, nil
}

func (s *Service) GetJob(ctx context.Context, p Payload) (Result, error) {
	phone := p.String("phone_number")
	if phone == "" {
		return missingPhone(ActionGetJob), nil
	}
	match, ok, err := s.findJob(ctx, phone)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{
			Success: true,
			Found:   boolPtr(false),
			Message: msgJobNotFound,
			Action:  ActionGetJob,
			Outcome: OutcomeNotFound,
		}, nil
	}
	job := DecodeJob(match.Row)
	return Result{
		Success: true,
		Found:   boolPtr(true),
		Job:     &job,
		Action:  ActionGetJob,
		Outcome: OutcomeFound,
		Name:    job.Name,
	}, nil
}

// Reschedule refreshes the timestamp, sets the status to Rescheduled and,
// when one is given, overwrites the preferred time. Two concurrent calls for
// the same phone number both succeed and the later write wins.
func (s *Service) Reschedule(ctx context.Context, p Payload) (Result, error) {
	updates := map[string]string{ColumnLetter(jobColStatus): StatusRescheduled}
	if preferred := p.PreferredTime(); preferred != "" {
		updates[ColumnLetter(jobColPreferredTime)] = preferred
	}
	return s.updateJob(ctx, p, ActionReschedule, EventJobRescheduled, updates, "Job rescheduled successfully")
}

// Cancel marks the job Cancelled. Cancelling twice is allowed and refreshes
// the timestamp.
func (s *Service) Cancel(ctx context.Context, p Payload) (Result, error) {
	updates := map[string]string{ColumnLetter(jobColStatus): StatusCancelled}
	return s.updateJob(ctx, p, ActionCancel, EventJobCancelled, updates, "Job cancelled successfully")
}

func (s *Service) updateJob(ctx context.Context, p Payload, action Action, eventType string, updates map[string]string, message string) (Result, error) {
	phone := p.String("phone_number")
	if phone == "" {
		return missingPhone(action), nil
	}
	match, ok, err := s.findJob(ctx, phone)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Success: false, Message: msgJobNotFound, Action: action, Outcome: OutcomeNotFound}, nil
	}
	timestamp := Timestamp(s.now())
	updates[ColumnLetter(jobColTimestamp)] = timestamp
	if err := UpdateRow(ctx, s.store, s.tables.Jobs, match.Position, updates); err != nil {
		return Result{}, err
	}
	job := DecodeJob(match.Row)
	s.log.Debugw("job updated",
		logger.FieldTable, s.tables.Jobs,
		logger.FieldPosition, match.Position,
		logger.FieldAction, string(action),
	)
	s.publish(Event{
		Type:        eventType,
		Table:       s.tables.Jobs,
		Position:    match.Position,
		Name:        job.Name,
		PhoneNumber: phone,
		Status:      updates[ColumnLetter(jobColStatus)],
		Timestamp:   timestamp,
	})
	return Result{Success: true, Message: message, Action: action, Outcome: OutcomeUpdated, Name: job.Name}, nil
}

func (s *Service) LogEmergency(ctx context.Context, p Payload) (Result, error) {
	row := EncodeEmergencyRow(p, s.now())
	if err := AppendRow(ctx, s.store, s.tables.Emergency, row); err != nil {
		return Result{}, err
	}
	s.publish(Event{
		Type:        EventEmergencyLogged,
		Table:       s.tables.Emergency,
		Name:        row[1],
		PhoneNumber: row[2],
		Timestamp:   row[0],
	})
	return Result{
		Success: true,
		Message: "Emergency logged successfully",
		Action:  ActionLogEmergency,
		Outcome: OutcomeCreated,
		Name:    row[1],
	}, nil
}

func (s *Service) CollectInquiry(ctx context.Context, p Payload) (Result, error) {
	row := EncodeInquiryRow(p, s.now())
	if err := AppendRow(ctx, s.store, s.tables.Inquiry, row); err != nil {
		return Result{}, err
	}
	s.publish(Event{
		Type:        EventInquiryCollected,
		Table:       s.tables.Inquiry,
		Name:        row[1],
		PhoneNumber: row[2],
		Timestamp:   row[0],
	})
	return Result{
		Success: true,
		Message: "Inquiry logged successfully",
		Action:  ActionCollectInquiry,
		Outcome: OutcomeCreated,
		Name:    row[1],
	}, nil
}

func (s *Service) findJob(ctx context.Context, phone string) (RowMatch, bool, error) {
	return FindByKey(ctx, s.store, s.tables.Jobs, JobsReadSpan, jobColPhoneNumber, phone)
}

func (s *Service) publish(event Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

func missingPhone(action Action) Result {
	return Result{Success: false, Message: msgPhoneRequired, Action: action, Outcome: OutcomeMissingKey}
}

func boolPtr(v bool) *bool {
	return &v
}
