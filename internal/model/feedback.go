package model

import "time"

// Feedback 学生对课程的评价，每个 (学生, 课程) 一条
type Feedback struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_feedback_student_course" json:"studentId"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_feedback_student_course;index" json:"courseId"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}

type FeedbackSummary struct {
	CourseID      uint       `json:"courseId"`
	Count         int64      `json:"count"`
	AverageRating float64    `json:"averageRating"`
	Items         []Feedback `json:"items"`
}
