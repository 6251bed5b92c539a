package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/internal/syncer"
	"github.com/assoc-site/backend/pkg/remote"
)

var (
	ErrUnknownEvent = errors.New("event not found")
	ErrEventClosed  = errors.New("registration is closed for past events")
)

// Inputs and models carry gin's binding tags; reuse them for service-level checks.
var bindingValidate = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

// EventLookup resolves the event a registration points at.
type EventLookup interface {
	GetByID(ctx context.Context, id int64) (models.Event, error)
}

// Submissions handles the contact, reservation and event registration forms.
type Submissions struct {
	Contact       *Workflow[models.ContactForm, *models.ContactForm]
	Reservations  *Workflow[models.Reservation, *models.Reservation]
	Registrations *Workflow[models.EventRegistration, *models.EventRegistration]
	events        EventLookup
}

// NewSubmissions creates the submission service. events may be nil to skip
// the event check.
func NewSubmissions(
	contact *Workflow[models.ContactForm, *models.ContactForm],
	reservations *Workflow[models.Reservation, *models.Reservation],
	registrations *Workflow[models.EventRegistration, *models.EventRegistration],
	events EventLookup,
) *Submissions {
	return &Submissions{Contact: contact, Reservations: reservations, Registrations: registrations, events: events}
}

// SubmitContact stores a contact message.
func (s *Submissions) SubmitContact(ctx context.Context, f models.ContactForm) (models.ContactForm, error) {
	if err := bindingValidate.Struct(f); err != nil {
		return f, err
	}
	return s.Contact.Submit(ctx, f)
}

// SubmitReservation stores an assessment booking.
func (s *Submissions) SubmitReservation(ctx context.Context, r models.Reservation) (models.Reservation, error) {
	if err := bindingValidate.Struct(r); err != nil {
		return r, err
	}
	return s.Reservations.Submit(ctx, r)
}

// Register signs up for an upcoming event. One open registration per email
// and event.
func (s *Submissions) Register(ctx context.Context, eventID int64, r models.EventRegistration) (models.EventRegistration, error) {
	r.EventID = eventID
	if err := bindingValidate.Struct(r); err != nil {
		return r, err
	}
	if s.events != nil {
		ev, err := s.events.GetByID(ctx, eventID)
		if errors.Is(err, syncer.ErrNotFound) {
			return r, ErrUnknownEvent
		}
		if err != nil {
			return r, err
		}
		if ev.Bucket == models.BucketPast {
			return r, ErrEventClosed
		}
	}
	key := syncer.EventRegistrationKey(&r)
	for _, existing := range s.Registrations.List(ctx) {
		if existing.Status != models.StatusRejected && syncer.EventRegistrationKey(&existing) == key {
			return r, &remote.Error{
				Code:    remote.CodeDuplicateEmail,
				Message: fmt.Sprintf("%s is already registered for this event", strings.TrimSpace(r.Email)),
				Table:   models.EntityRegistrations,
			}
		}
	}
	return s.Registrations.Submit(ctx, r)
}
