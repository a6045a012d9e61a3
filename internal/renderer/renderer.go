// Package renderer maps a validated appointment event to the set of emails
// it produces. Rendering is pure string formatting: the templates below are
// data, and the only branching is the event-kind switch.
package renderer

import (
	"fmt"

	"github.com/sebastianDLL/notification-svc/internal/event"
)

// Delivery is one outbound email. It is transient: produced here, handed to
// the mailer, never persisted on the success path.
type Delivery struct {
	Recipient string
	Subject   string
	Body      string
}

const (
	subjectCreatedPatient = "Confirmación de Cita Médica"
	subjectCreatedDoctor  = "Nueva Cita Médica Programada"
	subjectCancelled      = "Cita Médica Cancelada"

	bodyCreatedPatient = `Estimado/a %s,

Su cita médica ha sido confirmada con los siguientes detalles:

• Doctor: %s
• Fecha: %s
• Hora: %s
• ID de Reserva: %s

Por favor, llegue 15 minutos antes de su cita.

Saludos,
Hospital Management System
`

	bodyCreatedDoctor = `Dr./Dra. %s,

Se ha programado una nueva cita médica:

• Paciente: %s
• Fecha: %s
• Hora: %s
• ID de Reserva: %s

Saludos,
Hospital Management System
`

	bodyCancelledPatient = `Estimado/a %s,

Su cita médica ha sido cancelada:

• Doctor: %s
• Fecha: %s
• Hora: %s
• ID de Reserva: %s

Si necesita reprogramar, por favor contacte con nosotros.

Saludos,
Hospital Management System
`

	bodyCancelledDoctor = `Dr./Dra. %s,

La siguiente cita médica ha sido cancelada:

• Paciente: %s
• Fecha: %s
• Hora: %s
• ID de Reserva: %s

Saludos,
Hospital Management System
`
)

// Render returns the deliveries for ev: one to the patient and one to the
// doctor for the known kinds, none for an unknown kind (the caller decides
// how to report that).
func Render(ev event.NotificationEvent) []Delivery {
	switch ev.Kind {
	case event.KindReservationCreated:
		return []Delivery{
			{
				Recipient: ev.PatientEmail,
				Subject:   subjectCreatedPatient,
				Body: fmt.Sprintf(bodyCreatedPatient,
					ev.PatientName, ev.DoctorName, ev.AppointmentDate, ev.AppointmentTime, ev.ReservationID),
			},
			{
				Recipient: ev.DoctorEmail,
				Subject:   subjectCreatedDoctor,
				Body: fmt.Sprintf(bodyCreatedDoctor,
					ev.DoctorName, ev.PatientName, ev.AppointmentDate, ev.AppointmentTime, ev.ReservationID),
			},
		}
	case event.KindReservationCancelled:
		return []Delivery{
			{
				Recipient: ev.PatientEmail,
				Subject:   subjectCancelled,
				Body: fmt.Sprintf(bodyCancelledPatient,
					ev.PatientName, ev.DoctorName, ev.AppointmentDate, ev.AppointmentTime, ev.ReservationID),
			},
			{
				Recipient: ev.DoctorEmail,
				Subject:   subjectCancelled,
				Body: fmt.Sprintf(bodyCancelledDoctor,
					ev.DoctorName, ev.PatientName, ev.AppointmentDate, ev.AppointmentTime, ev.ReservationID),
			},
		}
	default:
		return nil
	}
}
