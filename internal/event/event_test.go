package event_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastianDLL/notification-svc/internal/event"
)

func validPayload() map[string]any {
	return map[string]any{
		"type":             "reservation_created",
		"patient_email":    "p@x.com",
		"patient_name":     "Ann",
		"doctor_email":     "d@x.com",
		"doctor_name":      "Dr. Lee",
		"appointment_date": "2025-06-15",
		"appointment_time": "10:30",
		"reservation_id":   "RES-001",
	}
}

func marshal(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func TestParse(t *testing.T) {
	t.Run("valid created event", func(t *testing.T) {
		ev, err := event.Parse(marshal(t, validPayload()))
		require.NoError(t, err)
		assert.Equal(t, event.KindReservationCreated, ev.Kind)
		assert.Equal(t, "p@x.com", ev.PatientEmail)
		assert.Equal(t, "Ann", ev.PatientName)
		assert.Equal(t, "d@x.com", ev.DoctorEmail)
		assert.Equal(t, "Dr. Lee", ev.DoctorName)
		assert.Equal(t, "2025-06-15", ev.AppointmentDate)
		assert.Equal(t, "10:30", ev.AppointmentTime)
		assert.Equal(t, "RES-001", ev.ReservationID)
	})

	t.Run("valid cancelled event", func(t *testing.T) {
		payload := validPayload()
		payload["type"] = "reservation_cancelled"
		ev, err := event.Parse(marshal(t, payload))
		require.NoError(t, err)
		assert.Equal(t, event.KindReservationCancelled, ev.Kind)
	})

	t.Run("unknown type is not an error", func(t *testing.T) {
		payload := validPayload()
		payload["type"] = "unknown_type"
		ev, err := event.Parse(marshal(t, payload))
		require.NoError(t, err)
		assert.Equal(t, event.KindUnknown, ev.Kind)
		assert.Equal(t, "unknown_type", ev.RawKind)
	})

	t.Run("extra fields are ignored", func(t *testing.T) {
		payload := validPayload()
		payload["clinic"] = "Central"
		payload["priority"] = 3
		ev, err := event.Parse(marshal(t, payload))
		require.NoError(t, err)
		assert.Equal(t, event.KindReservationCreated, ev.Kind)
	})

	t.Run("each missing field is named", func(t *testing.T) {
		for _, field := range []string{
			"type",
			"patient_email",
			"patient_name",
			"doctor_email",
			"doctor_name",
			"appointment_date",
			"appointment_time",
			"reservation_id",
		} {
			t.Run(field, func(t *testing.T) {
				payload := validPayload()
				delete(payload, field)

				_, err := event.Parse(marshal(t, payload))
				var vErr *event.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, field, vErr.Field)
			})
		}
	})

	t.Run("empty field fails like missing", func(t *testing.T) {
		payload := validPayload()
		payload["patient_name"] = ""
		_, err := event.Parse(marshal(t, payload))
		var vErr *event.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "patient_name", vErr.Field)
	})

	t.Run("wrong-typed field is named", func(t *testing.T) {
		payload := validPayload()
		payload["patient_email"] = 42
		_, err := event.Parse(marshal(t, payload))
		var vErr *event.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "patient_email", vErr.Field)
	})

	t.Run("non-JSON body fails validation", func(t *testing.T) {
		_, err := event.Parse([]byte("not json"))
		var vErr *event.ValidationError
		require.True(t, errors.As(err, &vErr))
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "reservation_created", event.KindReservationCreated.String())
	assert.Equal(t, "reservation_cancelled", event.KindReservationCancelled.String())
	assert.Equal(t, "unknown", event.KindUnknown.String())
}
