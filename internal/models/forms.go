package models

// MembershipFiles holds the documents attached to a membership application.
type MembershipFiles struct {
	ProfileImage FileRef `json:"profile_image"`
	IDImage      FileRef `json:"id_image"`
	Certificate  FileRef `json:"certificate"`
	CV           FileRef `json:"cv"`
}

// MembershipForm is a membership application.
type MembershipForm struct {
	Meta
	Review
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"password_hash,omitempty"`
	Specialty    []string        `json:"specialty"`
	PreviousWork string          `json:"previous_work"`
	Files        MembershipFiles `json:"files"`
}

// Redacted returns a copy without the password hash, for API responses.
func (f MembershipForm) Redacted() MembershipForm {
	f.PasswordHash = ""
	return f
}

// ContactForm is a message left through the contact page.
type ContactForm struct {
	Meta
	Review
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Reservation is an assessment booking for a child.
type Reservation struct {
	Meta
	Review
	KidsName            string   `json:"kids_name" binding:"required"`
	YourName            string   `json:"your_name" binding:"required"`
	PhoneNumber         string   `json:"phone_number" binding:"required"`
	SelectedAssessments []string `json:"selected_assessments" binding:"required,min=1"`
	Concern             string   `json:"concern"`
}

// EventRegistration is a sign-up for an event. EventID is a weak reference.
type EventRegistration struct {
	Meta
	Review
	EventID             int64    `json:"event_id"`
	FullName            string   `json:"full_name" binding:"required"`
	Email               string   `json:"email" binding:"required,email"`
	Phone               string   `json:"phone" binding:"required"`
	Organization        string   `json:"organization"`
	MembershipType      string   `json:"membership_type"`
	SelectedTracks      []string `json:"selected_tracks" binding:"required,min=1"`
	SpecialRequirements string   `json:"special_requirements"`
	RegistrationFee     float64  `json:"registration_fee" binding:"gte=0"`
}
