package syncer

import (
	"fmt"
	"strings"
	"time"

	"github.com/assoc-site/backend/internal/models"
)

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// MemberKey is lower(email), falling back to lower(name).
func MemberKey(m *models.Member) string {
	if k := lower(m.Email); k != "" {
		return k
	}
	return lower(m.Name)
}

// MembershipFormKey is lower(email).
func MembershipFormKey(f *models.MembershipForm) string { return lower(f.Email) }

// ContactFormKey is lower(email)|lower(subject).
func ContactFormKey(f *models.ContactForm) string {
	return lower(f.Email) + "|" + lower(f.Subject)
}

// ReservationKey is phone|lower(name)|submitted_at.
func ReservationKey(r *models.Reservation) string {
	return strings.TrimSpace(r.PhoneNumber) + "|" + lower(r.YourName) + "|" + r.SubmittedAt.UTC().Format(time.RFC3339)
}

// EventRegistrationKey is lower(email) scoped by event id.
func EventRegistrationKey(r *models.EventRegistration) string {
	return fmt.Sprintf("%d|%s", r.EventID, lower(r.Email))
}

// TitleKey returns a key function over lower(title) for content entities.
func TitleKey[T any](title func(*T) string) func(*T) string {
	return func(t *T) string { return lower(title(t)) }
}
