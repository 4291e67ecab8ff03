package models

import (
	"github.com/go-playground/validator/v10"
)

const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// AttendanceRecord marks one student for one lecture. One row per
// (lecture, student) pair, enforced by the primary key.
type AttendanceRecord struct {
	LectureID   string `db:"lecture_id" json:"lecture_id" validate:"required"`
	StudentID   string `db:"student_id" json:"student_id" validate:"required"`
	Status      string `db:"status" json:"status" validate:"required,oneof=present absent"`
	OrganizerID string `db:"organizer_id" json:"organizer_id" validate:"required"`
	MarkedAt    int64  `db:"marked_at" json:"marked_at"`
}

func (a *AttendanceRecord) Validate() error {
	validate := validator.New()
	return validate.Struct(a)
}
