package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"created", TypeRequestCreated, true},
		{"submitted", TypeRequestSubmitted, true},
		{"approved", TypeRequestApproved, true},
		{"rejected", TypeRequestRejected, true},
		{"returned", TypeRequestReturned, true},
		{"assigned", TypeRequestAssigned, true},
		{"unknown", Type("request.deleted"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestType_IsTerminal(t *testing.T) {
	assert.True(t, TypeRequestApproved.IsTerminal())
	assert.True(t, TypeRequestRejected.IsTerminal())
	assert.False(t, TypeRequestReturned.IsTerminal())
	assert.False(t, TypeRequestAssigned.IsTerminal())
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeRequestAssigned, "req-1", map[string]interface{}{
		KeyAssignee:  "m1",
		KeyStepIndex: 1,
	})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, "req-1", evt.RequestID)
	assert.Equal(t, "m1", evt.GetPayloadString(KeyAssignee))
	assert.Equal(t, int64(1), evt.GetPayloadInt(KeyStepIndex))
	assert.WithinDuration(t, time.Now(), evt.Timestamp, time.Second)
}

func TestNewEventWithCorrelation(t *testing.T) {
	first := NewEvent(TypeRequestApproved, "req-1", nil)
	second := NewEventWithCorrelation(TypeRequestAssigned, "req-1", nil, first.ID)

	assert.Equal(t, first.ID, second.CorrelationID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEvent_WithPayloadDoesNotMutate(t *testing.T) {
	original := NewEvent(TypeRequestSubmitted, "req-1", map[string]interface{}{KeyStatus: "PENDING"})

	modified := original.WithPayload(KeyNote, "urgent")

	_, exists := original.Payload[KeyNote]
	assert.False(t, exists)
	assert.Equal(t, "urgent", modified.GetPayloadString(KeyNote))
	assert.Equal(t, "PENDING", modified.GetPayloadString(KeyStatus))
	assert.Equal(t, original.ID, modified.ID)
}

func TestEvent_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeRequestCreated, "req", nil)
		assert.False(t, ids[evt.ID], "duplicate event ID %s", evt.ID)
		ids[evt.ID] = true
	}
}
