package models

import (
	"github.com/go-playground/validator/v10"
)

// HomeworkSubmission is a student's answer to an assignment. Grade and
// feedback start empty and may be set more than once (re-grading).
type HomeworkSubmission struct {
	AssignmentID string `db:"assignment_id" json:"assignment_id" validate:"required"`
	StudentID    string `db:"student_id" json:"student_id" validate:"required"`
	Content      string `db:"content" json:"content"`
	FileURL      string `db:"file_url" json:"file_url"`
	Grade        *int   `db:"grade" json:"grade,omitempty"`
	Feedback     string `db:"feedback" json:"feedback"`
	SubmittedAt  int64  `db:"submitted_at" json:"submitted_at"`
	GradedAt     *int64 `db:"graded_at" json:"graded_at,omitempty"`
}

func (s *HomeworkSubmission) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}
