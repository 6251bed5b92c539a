package events

import "github.com/assoc-site/backend/internal/models"

// Topics holds one typed topic per cached collection.
type Topics struct {
	Members            *Topic[[]models.Member]
	Events             *Topic[models.EventBuckets]
	Articles           *Topic[[]models.Article]
	Courses            *Topic[[]models.Course]
	TherapyPrograms    *Topic[[]models.TherapyProgram]
	ForParentArticles  *Topic[[]models.ForParentArticle]
	MembershipForms    *Topic[[]models.MembershipForm]
	ContactForms       *Topic[[]models.ContactForm]
	Reservations       *Topic[[]models.Reservation]
	EventRegistrations *Topic[[]models.EventRegistration]
}

// NewTopics registers every collection topic on bus.
func NewTopics(bus *Bus) *Topics {
	return &Topics{
		Members:            NewTopic[[]models.Member](bus, "membersUpdated"),
		Events:             NewTopic[models.EventBuckets](bus, "eventsUpdated"),
		Articles:           NewTopic[[]models.Article](bus, "articlesUpdated"),
		Courses:            NewTopic[[]models.Course](bus, "coursesUpdated"),
		TherapyPrograms:    NewTopic[[]models.TherapyProgram](bus, "therapyProgramsUpdated"),
		ForParentArticles:  NewTopic[[]models.ForParentArticle](bus, "forParentArticlesUpdated"),
		MembershipForms:    NewTopic[[]models.MembershipForm](bus, "formsUpdated"),
		ContactForms:       NewTopic[[]models.ContactForm](bus, "contactFormsUpdated"),
		Reservations:       NewTopic[[]models.Reservation](bus, "reservationsUpdated"),
		EventRegistrations: NewTopic[[]models.EventRegistration](bus, "eventRegistrationsUpdated"),
	}
}
