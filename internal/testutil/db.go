// Package testutil 提供测试用的内存数据库与常用数据构造
package testutil

import (
	"context"
	"lms_backend/internal/model"
	"lms_backend/pkg/database"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// NewDB 每个测试独立的内存 SQLite，单连接，表结构与生产一致。
// 事务内只能使用 tx，否则会因等待连接而死锁。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + unsafeName.ReplaceAllString(t.Name(), "_") + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, name, email string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email, Password: "x", Role: role}
	require.NoError(t, db.WithContext(context.Background()).Create(u).Error)
	return u
}

// Curriculum 生成一个章节、n 个课时（ID 为 l1..ln）的大纲
func Curriculum(n int) []model.Section {
	lessons := make([]model.Lesson, 0, n)
	for i := 1; i <= n; i++ {
		id := "l" + string(rune('0'+i))
		lessons = append(lessons, model.Lesson{
			ID:              id,
			Title:           "Lesson " + id,
			VideoURL:        "https://cdn.example.com/" + id + ".mp4",
			DurationSeconds: 600,
		})
	}
	return []model.Section{{ID: "s1", Title: "Section 1", Lessons: lessons}}
}

// CreateCourse 创建已发布课程
func CreateCourse(t *testing.T, db *gorm.DB, company *model.User, title string, price int64, lessons int) *model.Course {
	t.Helper()
	c := &model.Course{
		Title:            title,
		Price:            price,
		Status:           model.CoursePublished,
		Thumbnail:        "https://cdn.example.com/thumb.jpg",
		OfferCertificate: true,
		CompanyID:        company.ID,
		Curriculum:       Curriculum(lessons),
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func Enroll(t *testing.T, db *gorm.DB, studentID, courseID uint) {
	t.Helper()
	require.NoError(t, db.Create(&model.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		Source:    model.EnrollmentFree,
	}).Error)
}
