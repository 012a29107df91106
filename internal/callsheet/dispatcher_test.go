package callsheet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, action := range Actions() {
		got, ok := ParseAction(string(action))
		require.True(t, ok, action)
		assert.Equal(t, action, got)
	}

	got, ok := ParseAction("Reschedule_caller_information")
	require.True(t, ok)
	assert.Equal(t, ActionReschedule, got)

	got, ok = ParseAction("Cancellation_caller_Information")
	require.True(t, ok)
	assert.Equal(t, ActionCancel, got)

	_, ok = ParseAction("reschedule_caller_information")
	assert.False(t, ok)
	_, ok = ParseAction("   ")
	assert.False(t, ok)
}

func TestDispatcherRoutesEveryAction(t *testing.T) {
	store := NewMemoryStore()
	svc, _ := newTestService(t, store)
	store.Seed("Jobs", jobsHeader, seededJob("555-1234", "Ada"))
	d := NewDispatcher(svc)
	ctx := context.Background()

	payloads := map[Action]Payload{
		ActionCreateJob:      {"name": "Bob", "phone_number": "555-2222"},
		ActionGetJob:         {"phone_number": "555-1234"},
		ActionReschedule:     {"phone_number": "555-1234"},
		ActionCancel:         {"phone_number": "555-1234"},
		ActionLogEmergency:   {"emergency_details": "Flood"},
		ActionCollectInquiry: {"inquiry_details": "Price"},
	}
	for _, action := range Actions() {
		result, err := d.Dispatch(ctx, action, payloads[action])
		require.NoError(t, err, action)
		assert.True(t, result.Success, action)
		assert.Equal(t, action, result.Action)
	}
}

func TestDispatcherUnknownAction(t *testing.T) {
	d := NewDispatcher(NewService(NewMemoryStore(), ServiceOptions{}))
	_, err := d.Dispatch(context.Background(), Action("deleteJob"), nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatcherNilPayload(t *testing.T) {
	store := NewMemoryStore()
	d := NewDispatcher(NewService(store, ServiceOptions{}))
	result, err := d.Dispatch(context.Background(), ActionGetJob, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissingKey, result.Outcome)
}

func TestHandleAcknowledgeWritesNothing(t *testing.T) {
	store := newRecordingStore()
	d := NewDispatcher(NewService(store, ServiceOptions{}))

	result, err := d.Handle(context.Background(), InferRequest(map[string]any{"hello": "world"}, ""))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, OutcomeAcknowledged, result.Outcome)
	assert.Empty(t, store.appends)
	assert.Empty(t, store.updates)
	assert.Zero(t, store.reads)
}
