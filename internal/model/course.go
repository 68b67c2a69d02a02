package model

import (
	"gorm.io/datatypes"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
)

// Lesson 课程中的单个视频课时，ID 在保存课程时分配且此后不变
type Lesson struct {
	ID              string  `json:"id"`
	Title           string  `json:"title" validate:"required"`
	VideoURL        string  `json:"videoUrl" validate:"required"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type Section struct {
	ID      string   `json:"id"`
	Title   string   `json:"title" validate:"required"`
	Lessons []Lesson `json:"lessons" validate:"min=1,dive"`
}

// swagger:model Course
type Course struct {
	BaseModel
	Title            string                       `gorm:"size:200;not null" json:"title"`
	Description      string                       `gorm:"type:text" json:"description"`
	Price            int64                        `gorm:"not null;default:0" json:"price"`
	Status           CourseStatus                 `gorm:"size:20;not null;default:'draft';index" json:"status"`
	Thumbnail        string                       `gorm:"size:500" json:"thumbnail"`
	OfferCertificate bool                         `gorm:"not null" json:"offerCertificate"`
	CompanyID        uint                         `gorm:"not null;index" json:"companyId"`
	Company          *User                        `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Curriculum       datatypes.JSONSlice[Section] `json:"curriculum"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) IsPublished() bool {
	return c.Status == CoursePublished
}

func (c *Course) IsFree() bool {
	return c.Price == 0
}

// Lessons 按课程顺序展开所有课时
func (c *Course) Lessons() []Lesson {
	var lessons []Lesson
	for _, s := range c.Curriculum {
		lessons = append(lessons, s.Lessons...)
	}
	return lessons
}

// LessonIDs 去重后的课时 ID，进度统计以它为准
func (c *Course) LessonIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range c.Curriculum {
		for _, l := range s.Lessons {
			if l.ID == "" || seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (c *Course) TotalLessons() int {
	return len(c.LessonIDs())
}

func (c *Course) FindLesson(lessonID string) (*Lesson, bool) {
	for i := range c.Curriculum {
		for j := range c.Curriculum[i].Lessons {
			if c.Curriculum[i].Lessons[j].ID == lessonID {
				return &c.Curriculum[i].Lessons[j], true
			}
		}
	}
	return nil, false
}
