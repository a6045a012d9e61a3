package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies the appointment lifecycle event carried by a queue
// message. The set is open: values not recognized here map to KindUnknown,
// which is not an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindReservationCreated
	KindReservationCancelled
)

const (
	typeReservationCreated   = "reservation_created"
	typeReservationCancelled = "reservation_cancelled"
)

func (k Kind) String() string {
	switch k {
	case KindReservationCreated:
		return typeReservationCreated
	case KindReservationCancelled:
		return typeReservationCancelled
	default:
		return "unknown"
	}
}

// NotificationEvent is a fully validated appointment event. A value of this
// type only exists after Parse succeeded; there is no partially constructed
// or defaulted form.
type NotificationEvent struct {
	Kind Kind
	// RawKind preserves the wire value of "type" so unknown kinds can be
	// logged verbatim.
	RawKind         string
	PatientEmail    string
	PatientName     string
	DoctorEmail     string
	DoctorName      string
	AppointmentDate string
	AppointmentTime string
	ReservationID   string
}

// ValidationError reports a malformed payload and names the offending field
// when one can be identified.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid notification payload: " + e.Reason
	}
	return fmt.Sprintf("invalid notification payload: field %q %s", e.Field, e.Reason)
}

// wireEvent mirrors the queue message body published by the reservation API.
type wireEvent struct {
	Type            string `json:"type"`
	PatientEmail    string `json:"patient_email"`
	PatientName     string `json:"patient_name"`
	DoctorEmail     string `json:"doctor_email"`
	DoctorName      string `json:"doctor_name"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	ReservationID   string `json:"reservation_id"`
}

// Parse decodes and validates a raw queue payload. Every declared field must
// be present as a non-empty string; unknown extra fields are ignored for
// forward compatibility. An unrecognized "type" value yields KindUnknown and
// is not a validation failure.
func Parse(raw []byte) (NotificationEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return NotificationEvent{}, &ValidationError{Field: typeErr.Field, Reason: "must be a string"}
		}
		return NotificationEvent{}, &ValidationError{Reason: "body is not a JSON object: " + err.Error()}
	}

	required := []struct {
		name  string
		value string
	}{
		{"type", w.Type},
		{"patient_email", w.PatientEmail},
		{"patient_name", w.PatientName},
		{"doctor_email", w.DoctorEmail},
		{"doctor_name", w.DoctorName},
		{"appointment_date", w.AppointmentDate},
		{"appointment_time", w.AppointmentTime},
		{"reservation_id", w.ReservationID},
	}
	for _, f := range required {
		if f.value == "" {
			return NotificationEvent{}, &ValidationError{Field: f.name, Reason: "is required"}
		}
	}

	return NotificationEvent{
		Kind:            parseKind(w.Type),
		RawKind:         w.Type,
		PatientEmail:    w.PatientEmail,
		PatientName:     w.PatientName,
		DoctorEmail:     w.DoctorEmail,
		DoctorName:      w.DoctorName,
		AppointmentDate: w.AppointmentDate,
		AppointmentTime: w.AppointmentTime,
		ReservationID:   w.ReservationID,
	}, nil
}

func parseKind(raw string) Kind {
	switch raw {
	case typeReservationCreated:
		return KindReservationCreated
	case typeReservationCancelled:
		return KindReservationCancelled
	default:
		return KindUnknown
	}
}
