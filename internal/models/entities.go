package models

// Entity names. Each doubles as the remote table name and the local cache key suffix.
const (
	EntityMembers           = "members"
	EntityEvents            = "events"
	EntityArticles          = "articles"
	EntityCourses           = "courses"
	EntityTherapyPrograms   = "therapy_programs"
	EntityForParentArticles = "for_parent_articles"
	EntityMembershipForms   = "membership_forms"
	EntityContactForms      = "contact_forms"
	EntityReservations      = "reservations"
	EntityRegistrations     = "event_registrations"
)
