package model

import "time"

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
)

// swagger:model Assignment
type Assignment struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID    uint       `gorm:"not null;index" json:"courseId"`
	CreatorID   uint       `gorm:"not null;index" json:"creatorId"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	MaxGrade    int        `gorm:"not null;default:100" json:"maxGrade"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// swagger:model Submission
type Submission struct {
	ID           uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	AssignmentID uint             `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignmentId"`
	StudentID    uint             `gorm:"not null;uniqueIndex:idx_submission_assignment_student;index" json:"studentId"`
	FileURL      string           `gorm:"size:500;not null" json:"fileUrl"`
	Grade        *int             `json:"grade,omitempty"`
	Feedback     string           `gorm:"type:text" json:"feedback"`
	Status       SubmissionStatus `gorm:"size:20;not null;default:'submitted'" json:"status"`
	SubmittedAt  time.Time        `json:"submittedAt"`
	GradedAt     *time.Time       `json:"gradedAt,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}
