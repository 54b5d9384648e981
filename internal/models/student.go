package models

import "time"

// Student represents a homeschooled student managed by a parent.
type Student struct {
	ID          string     `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	GradeLevel  int        `db:"grade_level" json:"grade_level"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	ParentName  *string    `db:"parent_name" json:"parent_name,omitempty"`
	ParentEmail *string    `db:"parent_email" json:"parent_email,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
