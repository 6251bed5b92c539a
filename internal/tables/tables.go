// Package tables maps each entity onto its PostgreSQL table.
package tables

import (
	"path"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/remote"
)

// Set holds the remote table of every entity.
type Set struct {
	Members            *remote.PGTable[models.Member]
	Events             *remote.PGTable[models.Event]
	Articles           *remote.PGTable[models.Article]
	Courses            *remote.PGTable[models.Course]
	TherapyPrograms    *remote.PGTable[models.TherapyProgram]
	ForParentArticles  *remote.PGTable[models.ForParentArticle]
	MembershipForms    *remote.ReviewTable[models.MembershipForm]
	ContactForms       *remote.ReviewTable[models.ContactForm]
	Reservations       *remote.ReviewTable[models.Reservation]
	EventRegistrations *remote.ReviewTable[models.EventRegistration]
}

// New creates the table clients over db.
func New(db remote.DBTX) *Set {
	return &Set{
		Members:            remote.NewPGTable(db, Members),
		Events:             remote.NewPGTable(db, Events),
		Articles:           remote.NewPGTable(db, Articles),
		Courses:            remote.NewPGTable(db, Courses),
		TherapyPrograms:    remote.NewPGTable(db, TherapyPrograms),
		ForParentArticles:  remote.NewPGTable(db, ForParentArticles),
		MembershipForms:    remote.NewReviewTable(db, MembershipForms),
		ContactForms:       remote.NewReviewTable(db, ContactForms),
		Reservations:       remote.NewReviewTable(db, Reservations),
		EventRegistrations: remote.NewReviewTable(db, EventRegistrations),
	}
}

// list never hands a nil slice to a NOT NULL array column.
func list(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// image columns carry only the url and path; the rest of the FileRef is rebuilt.
func fixImage(f *models.FileRef) {
	f.Uploaded = f.URL != ""
	if f.Uploaded && f.Name == "" && f.StoragePath != "" {
		f.Name = path.Base(f.StoragePath)
	}
}

var reviewColumns = []string{"status", "submitted_at", "reviewed_at", "review_notes"}

func reviewValues(r *models.Review) []any {
	status := r.Status
	if status == "" {
		status = models.StatusPending
	}
	return []any{string(status), r.SubmittedAt, r.ReviewedAt, r.ReviewNotes}
}

func reviewDest(r *models.Review) []any {
	return []any{&r.Status, &r.SubmittedAt, &r.ReviewedAt, &r.ReviewNotes}
}

func cols(c ...[]string) []string {
	var out []string
	for _, s := range c {
		out = append(out, s...)
	}
	return out
}

func metaID(m *models.Meta) *int64   { return &m.ID }
func metaKey(m *models.Meta) *string { return &m.SyncKey }

var Members = remote.Schema[models.Member]{
	Table: models.EntityMembers,
	Columns: []string{"name", "role", "display_role", "email", "description", "full_description",
		"certificates", "is_active", "active_till", "phone", "location", "website", "linkedin",
		"image_url", "image_path"},
	ID:  func(m *models.Member) *int64 { return metaID(&m.Meta) },
	Key: func(m *models.Member) *string { return metaKey(&m.Meta) },
	Values: func(m *models.Member) []any {
		return []any{m.Name, m.Role, m.DisplayRole, m.Email, m.Description, m.FullDescription,
			list(m.Certificates), m.IsActive, m.ActiveTill, m.Phone, m.Location, m.Website, m.LinkedIn,
			m.Image.URL, m.Image.StoragePath}
	},
	Dest: func(m *models.Member) []any {
		return []any{&m.Name, &m.Role, &m.DisplayRole, &m.Email, &m.Description, &m.FullDescription,
			&m.Certificates, &m.IsActive, &m.ActiveTill, &m.Phone, &m.Location, &m.Website, &m.LinkedIn,
			&m.Image.URL, &m.Image.StoragePath}
	},
	AfterScan: func(m *models.Member) { fixImage(&m.Image) },
}

var Events = remote.Schema[models.Event]{
	Table: models.EntityEvents,
	Columns: []string{"title", "subtitle", "description", "date", "location", "fees", "tracks",
		"image_url", "image_path", "bucket"},
	ID:  func(e *models.Event) *int64 { return metaID(&e.Meta) },
	Key: func(e *models.Event) *string { return metaKey(&e.Meta) },
	Values: func(e *models.Event) []any {
		bucket := e.Bucket
		if !bucket.Valid() {
			bucket = models.BucketUpcoming
		}
		return []any{e.Title, e.Subtitle, e.Description, e.Date, e.Location, e.Fees, list(e.Tracks),
			e.Image.URL, e.Image.StoragePath, string(bucket)}
	},
	Dest: func(e *models.Event) []any {
		return []any{&e.Title, &e.Subtitle, &e.Description, &e.Date, &e.Location, &e.Fees, &e.Tracks,
			&e.Image.URL, &e.Image.StoragePath, &e.Bucket}
	},
	AfterScan: func(e *models.Event) { fixImage(&e.Image) },
}

var Courses = remote.Schema[models.Course]{
	Table: models.EntityCourses,
	Columns: []string{"title", "description", "category", "instructor", "duration", "price",
		"image_url", "image_path", "curriculum"},
	ID:  func(c *models.Course) *int64 { return metaID(&c.Meta) },
	Key: func(c *models.Course) *string { return metaKey(&c.Meta) },
	Values: func(c *models.Course) []any {
		curriculum := c.Curriculum
		if curriculum == nil {
			curriculum = []models.Section{}
		}
		return []any{c.Title, c.Description, c.Category, c.Instructor, c.Duration, c.Price,
			c.Image.URL, c.Image.StoragePath, curriculum}
	},
	Dest: func(c *models.Course) []any {
		return []any{&c.Title, &c.Description, &c.Category, &c.Instructor, &c.Duration, &c.Price,
			&c.Image.URL, &c.Image.StoragePath, &c.Curriculum}
	},
	AfterScan: func(c *models.Course) { fixImage(&c.Image) },
}

var Articles = remote.Schema[models.Article]{
	Table:   models.EntityArticles,
	Columns: []string{"title", "description", "content", "category", "author", "date", "image_url", "image_path"},
	ID:      func(a *models.Article) *int64 { return metaID(&a.Meta) },
	Key:     func(a *models.Article) *string { return metaKey(&a.Meta) },
	Values: func(a *models.Article) []any {
		return []any{a.Title, a.Description, a.Content, a.Category, a.Author, a.Date, a.Image.URL, a.Image.StoragePath}
	},
	Dest: func(a *models.Article) []any {
		return []any{&a.Title, &a.Description, &a.Content, &a.Category, &a.Author, &a.Date, &a.Image.URL, &a.Image.StoragePath}
	},
	AfterScan: func(a *models.Article) { fixImage(&a.Image) },
}

var TherapyPrograms = remote.Schema[models.TherapyProgram]{
	Table:   models.EntityTherapyPrograms,
	Columns: []string{"title", "description", "category", "age_group", "features", "image_url", "image_path"},
	ID:      func(p *models.TherapyProgram) *int64 { return metaID(&p.Meta) },
	Key:     func(p *models.TherapyProgram) *string { return metaKey(&p.Meta) },
	Values: func(p *models.TherapyProgram) []any {
		return []any{p.Title, p.Description, p.Category, p.AgeGroup, list(p.Features), p.Image.URL, p.Image.StoragePath}
	},
	Dest: func(p *models.TherapyProgram) []any {
		return []any{&p.Title, &p.Description, &p.Category, &p.AgeGroup, &p.Features, &p.Image.URL, &p.Image.StoragePath}
	},
	AfterScan: func(p *models.TherapyProgram) { fixImage(&p.Image) },
}

var ForParentArticles = remote.Schema[models.ForParentArticle]{
	Table:   models.EntityForParentArticles,
	Columns: []string{"title", "description", "content", "category", "author", "image_url", "image_path"},
	ID:      func(a *models.ForParentArticle) *int64 { return metaID(&a.Meta) },
	Key:     func(a *models.ForParentArticle) *string { return metaKey(&a.Meta) },
	Values: func(a *models.ForParentArticle) []any {
		return []any{a.Title, a.Description, a.Content, a.Category, a.Author, a.Image.URL, a.Image.StoragePath}
	},
	Dest: func(a *models.ForParentArticle) []any {
		return []any{&a.Title, &a.Description, &a.Content, &a.Category, &a.Author, &a.Image.URL, &a.Image.StoragePath}
	},
	AfterScan: func(a *models.ForParentArticle) { fixImage(&a.Image) },
}

var MembershipForms = remote.Schema[models.MembershipForm]{
	Table:   models.EntityMembershipForms,
	Columns: cols([]string{"username", "email", "password_hash", "specialty", "previous_work", "files"}, reviewColumns),
	ID:      func(f *models.MembershipForm) *int64 { return metaID(&f.Meta) },
	Key:     func(f *models.MembershipForm) *string { return metaKey(&f.Meta) },
	Values: func(f *models.MembershipForm) []any {
		return append([]any{f.Username, f.Email, f.PasswordHash, list(f.Specialty), f.PreviousWork, f.Files},
			reviewValues(&f.Review)...)
	},
	Dest: func(f *models.MembershipForm) []any {
		return append([]any{&f.Username, &f.Email, &f.PasswordHash, &f.Specialty, &f.PreviousWork, &f.Files},
			reviewDest(&f.Review)...)
	},
}

var ContactForms = remote.Schema[models.ContactForm]{
	Table:   models.EntityContactForms,
	Columns: cols([]string{"name", "email", "phone", "subject", "message"}, reviewColumns),
	ID:      func(f *models.ContactForm) *int64 { return metaID(&f.Meta) },
	Key:     func(f *models.ContactForm) *string { return metaKey(&f.Meta) },
	Values: func(f *models.ContactForm) []any {
		return append([]any{f.Name, f.Email, f.Phone, f.Subject, f.Message}, reviewValues(&f.Review)...)
	},
	Dest: func(f *models.ContactForm) []any {
		return append([]any{&f.Name, &f.Email, &f.Phone, &f.Subject, &f.Message}, reviewDest(&f.Review)...)
	},
}

var Reservations = remote.Schema[models.Reservation]{
	Table:   models.EntityReservations,
	Columns: cols([]string{"kids_name", "your_name", "phone_number", "selected_assessments", "concern"}, reviewColumns),
	ID:      func(r *models.Reservation) *int64 { return metaID(&r.Meta) },
	Key:     func(r *models.Reservation) *string { return metaKey(&r.Meta) },
	Values: func(r *models.Reservation) []any {
		return append([]any{r.KidsName, r.YourName, r.PhoneNumber, list(r.SelectedAssessments), r.Concern},
			reviewValues(&r.Review)...)
	},
	Dest: func(r *models.Reservation) []any {
		return append([]any{&r.KidsName, &r.YourName, &r.PhoneNumber, &r.SelectedAssessments, &r.Concern},
			reviewDest(&r.Review)...)
	},
}

var EventRegistrations = remote.Schema[models.EventRegistration]{
	Table: models.EntityRegistrations,
	Columns: cols([]string{"event_id", "full_name", "email", "phone", "organization", "membership_type",
		"selected_tracks", "special_requirements", "registration_fee"}, reviewColumns),
	ID:  func(r *models.EventRegistration) *int64 { return metaID(&r.Meta) },
	Key: func(r *models.EventRegistration) *string { return metaKey(&r.Meta) },
	Values: func(r *models.EventRegistration) []any {
		return append([]any{r.EventID, r.FullName, r.Email, r.Phone, r.Organization, r.MembershipType,
			list(r.SelectedTracks), r.SpecialRequirements, r.RegistrationFee}, reviewValues(&r.Review)...)
	},
	Dest: func(r *models.EventRegistration) []any {
		return append([]any{&r.EventID, &r.FullName, &r.Email, &r.Phone, &r.Organization, &r.MembershipType,
			&r.SelectedTracks, &r.SpecialRequirements, &r.RegistrationFee}, reviewDest(&r.Review)...)
	},
	OrderBy: "submitted_at DESC, id",
}
