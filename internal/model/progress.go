package model

import (
	"time"

	"gorm.io/datatypes"
)

type LessonProgress struct {
	LessonID      string    `json:"lessonId"`
	Completed     bool      `json:"completed"`
	LastTimestamp float64   `json:"lastTimestamp"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Progress 每个 (学生, 课程) 一条，课时进度内嵌保存
type Progress struct {
	ID          uint                                `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID   uint                                `gorm:"not null;uniqueIndex:idx_progress_student_course" json:"studentId"`
	CourseID    uint                                `gorm:"not null;uniqueIndex:idx_progress_student_course;index" json:"courseId"`
	Lessons     datatypes.JSONSlice[LessonProgress] `json:"lessons"`
	CompletedAt *time.Time                          `json:"completedAt,omitempty"`
	CreatedAt   time.Time                           `json:"createdAt"`
	UpdatedAt   time.Time                           `json:"updatedAt"`
}

func (Progress) TableName() string {
	return "progresses"
}

// Entry 返回课时进度，不存在时追加一条空记录
func (p *Progress) Entry(lessonID string) *LessonProgress {
	for i := range p.Lessons {
		if p.Lessons[i].LessonID == lessonID {
			return &p.Lessons[i]
		}
	}
	p.Lessons = append(p.Lessons, LessonProgress{LessonID: lessonID})
	return &p.Lessons[len(p.Lessons)-1]
}

// CompletedCount 只统计课程当前大纲中存在的课时
func (p *Progress) CompletedCount(course *Course) int {
	done := make(map[string]bool, len(p.Lessons))
	for _, l := range p.Lessons {
		if l.Completed {
			done[l.LessonID] = true
		}
	}
	count := 0
	for _, id := range course.LessonIDs() {
		if done[id] {
			count++
		}
	}
	return count
}

func (p *Progress) Percentage(course *Course) float64 {
	total := course.TotalLessons()
	if total == 0 {
		return 0
	}
	return float64(p.CompletedCount(course)) * 100 / float64(total)
}

func (p *Progress) IsComplete(course *Course) bool {
	total := course.TotalLessons()
	return total > 0 && p.CompletedCount(course) == total
}
