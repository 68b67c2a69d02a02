package model

import "time"

type EnrollmentSource string

const (
	EnrollmentFree EnrollmentSource = "free"
	EnrollmentPaid EnrollmentSource = "paid"
)

// Enrollment 学生与课程的多对多关系，唯一索引保证同一对只存在一条记录。
// 课程的学生列表与学生的已选课程均由此表查询得出。
type Enrollment struct {
	ID        uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"studentId"`
	CourseID  uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_course;index" json:"courseId"`
	Source    EnrollmentSource `gorm:"size:10;not null" json:"source"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
