package models

import "fmt"

// LessonType is the kind of material behind a course lesson.
type LessonType string

const (
	LessonVideo    LessonType = "video"
	LessonPDF      LessonType = "pdf"
	LessonQuizLink LessonType = "quiz_link"
)

// Lesson is one item of a curriculum section. Only the URL matching Type is used.
type Lesson struct {
	Title    string     `json:"title"`
	Type     LessonType `json:"type"`
	VideoURL string     `json:"video_url,omitempty"`
	PDFURL   string     `json:"pdf_url,omitempty"`
	QuizURL  string     `json:"quiz_url,omitempty"`
}

// URL returns the type-specific link of the lesson.
func (l Lesson) URL() string {
	switch l.Type {
	case LessonVideo:
		return l.VideoURL
	case LessonPDF:
		return l.PDFURL
	case LessonQuizLink:
		return l.QuizURL
	}
	return ""
}

// Section is an ordered group of lessons.
type Section struct {
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// Course is a training course with a nested curriculum.
type Course struct {
	Meta
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Instructor  string    `json:"instructor"`
	Duration    string    `json:"duration"`
	Price       string    `json:"price"`
	Image       FileRef   `json:"image"`
	Curriculum  []Section `json:"curriculum"`
}

// Validate checks the curriculum shape.
func (c *Course) Validate() error {
	for i, s := range c.Curriculum {
		for j, l := range s.Lessons {
			switch l.Type {
			case LessonVideo, LessonPDF, LessonQuizLink:
			default:
				return fmt.Errorf("section %d lesson %d: unknown lesson type %q", i+1, j+1, l.Type)
			}
			if l.URL() == "" {
				return fmt.Errorf("section %d lesson %d: %s lesson requires a url", i+1, j+1, l.Type)
			}
		}
	}
	return nil
}

// Article is a news or blog article.
type Article struct {
	Meta
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	Category    string  `json:"category"`
	Author      string  `json:"author"`
	Date        string  `json:"date"`
	Image       FileRef `json:"image"`
}

// TherapyProgram describes a therapy service offered by the association.
type TherapyProgram struct {
	Meta
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	AgeGroup    string   `json:"age_group"`
	Features    []string `json:"features"`
	Image       FileRef  `json:"image"`
}

// ForParentArticle is an article in the parents' corner.
type ForParentArticle struct {
	Meta
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	Category    string  `json:"category"`
	Author      string  `json:"author"`
	Image       FileRef `json:"image"`
}
