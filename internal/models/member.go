package models

// Member is a listed association member.
type Member struct {
	Meta
	Name            string   `json:"name" binding:"required"`
	Role            string   `json:"role"`
	DisplayRole     string   `json:"display_role"`
	Email           string   `json:"email" binding:"omitempty,email"`
	Description     string   `json:"description"`
	FullDescription string   `json:"full_description"`
	Certificates    []string `json:"certificates"`
	IsActive        bool     `json:"is_active"`
	ActiveTill      string   `json:"active_till"`
	Phone           string   `json:"phone"`
	Location        string   `json:"location"`
	Website         string   `json:"website"`
	LinkedIn        string   `json:"linkedin"`
	Image           FileRef  `json:"image"`
}
