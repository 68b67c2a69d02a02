package model

import "time"

// Certificate 每个 (学生, 课程) 唯一，生成后不可变。
// 姓名与标题在签发时固化，课程后续改名不影响已发证书。
type Certificate struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CertificateID  string    `gorm:"size:40;not null;uniqueIndex" json:"certificateId"`
	StudentID      uint      `gorm:"not null;uniqueIndex:idx_certificate_student_course" json:"studentId"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_certificate_student_course;index" json:"courseId"`
	StudentName    string    `gorm:"size:100;not null" json:"studentName"`
	CourseTitle    string    `gorm:"size:200;not null" json:"courseTitle"`
	InstructorName string    `gorm:"size:100" json:"instructorName"`
	CertificateURL string    `gorm:"size:500;not null" json:"certificateUrl"`
	ObjectKey      string    `gorm:"size:255" json:"-"`
	CompletionDate time.Time `gorm:"not null" json:"completionDate"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
