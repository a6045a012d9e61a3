package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebastianDLL/notification-svc/internal/event"
	"github.com/sebastianDLL/notification-svc/internal/renderer"
)

func sampleEvent(kind event.Kind) event.NotificationEvent {
	return event.NotificationEvent{
		Kind:            kind,
		PatientEmail:    "p@x.com",
		PatientName:     "Ann",
		DoctorEmail:     "d@x.com",
		DoctorName:      "Dr. Lee",
		AppointmentDate: "2025-06-15",
		AppointmentTime: "10:30",
		ReservationID:   "RES-001",
	}
}

func TestRenderReservationCreated(t *testing.T) {
	deliveries := renderer.Render(sampleEvent(event.KindReservationCreated))
	require.Len(t, deliveries, 2)

	patient, doctor := deliveries[0], deliveries[1]

	assert.Equal(t, "p@x.com", patient.Recipient)
	assert.Contains(t, patient.Subject, "Confirmación")
	assert.Contains(t, patient.Body, "Dr. Lee")
	assert.Contains(t, patient.Body, "2025-06-15")
	assert.Contains(t, patient.Body, "10:30")
	assert.Contains(t, patient.Body, "RES-001")
	assert.Contains(t, patient.Body, "15 minutos")

	assert.Equal(t, "d@x.com", doctor.Recipient)
	assert.Contains(t, doctor.Subject, "Nueva Cita")
	assert.Contains(t, doctor.Body, "Ann")
	assert.Contains(t, doctor.Body, "2025-06-15")
	assert.Contains(t, doctor.Body, "10:30")
	assert.Contains(t, doctor.Body, "RES-001")
}

func TestRenderReservationCancelled(t *testing.T) {
	deliveries := renderer.Render(sampleEvent(event.KindReservationCancelled))
	require.Len(t, deliveries, 2)

	patient, doctor := deliveries[0], deliveries[1]

	assert.Equal(t, "p@x.com", patient.Recipient)
	assert.Contains(t, patient.Subject, "Cancelada")
	assert.Contains(t, patient.Body, "RES-001")
	// The patient copy carries the re-scheduling instruction.
	assert.Contains(t, patient.Body, "reprogramar")

	assert.Equal(t, "d@x.com", doctor.Recipient)
	assert.Contains(t, doctor.Subject, "Cancelada")
	assert.Contains(t, doctor.Body, "RES-001")
	assert.NotContains(t, doctor.Body, "15 minutos")
	assert.NotContains(t, doctor.Body, "reprogramar")
}

func TestRenderUnknownKind(t *testing.T) {
	deliveries := renderer.Render(sampleEvent(event.KindUnknown))
	assert.Empty(t, deliveries)
}

func TestRenderIsPure(t *testing.T) {
	ev := sampleEvent(event.KindReservationCreated)
	first := renderer.Render(ev)
	second := renderer.Render(ev)
	assert.Equal(t, first, second)
}
