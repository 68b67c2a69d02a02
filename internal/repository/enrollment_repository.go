package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

// EnrollmentRepository 选课关系的唯一写入口
type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) Find(ctx context.Context, studentID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&e).Error
	return &e, err
}

// StudentIDs 课程的学生列表
func (r *EnrollmentRepository) StudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Pluck("student_id", &ids).Error
	return ids, err
}

// CourseIDs 学生的已选课程
func (r *EnrollmentRepository) CourseIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ?", studentID).
		Order("id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Enrollment{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.DB.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Enrollment{}).Error
}

func (r *EnrollmentRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	return r.DB.WithContext(ctx).Where("student_id = ?", studentID).Delete(&model.Enrollment{}).Error
}
