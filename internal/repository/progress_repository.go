package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindOrCreateForUpdate 不存在时先插入空记录，再加行锁读取。须在事务内调用。
func (r *ProgressRepository) FindOrCreateForUpdate(ctx context.Context, studentID, courseID uint) (*model.Progress, error) {
	seed := model.Progress{
		StudentID: studentID,
		CourseID:  courseID,
		Lessons:   datatypes.JSONSlice[model.LessonProgress]{},
	}
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var p model.Progress
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) Find(ctx context.Context, studentID, courseID uint) (*model.Progress, error) {
	var p model.Progress
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&p).Error
	return &p, err
}

func (r *ProgressRepository) Save(ctx context.Context, p *model.Progress) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

// ListCompletedWithoutCertificate 已完成、课程提供证书但尚未生成证书的记录
func (r *ProgressRepository) ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]model.Progress, error) {
	var list []model.Progress
	err := r.DB.WithContext(ctx).
		Joins("JOIN courses ON courses.id = progresses.course_id AND courses.deleted_at IS NULL AND courses.offer_certificate = ?", true).
		Where("progresses.completed_at IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM certificates c WHERE c.student_id = progresses.student_id AND c.course_id = progresses.course_id)").
		Order("progresses.completed_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *ProgressRepository) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.DB.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Progress{}).Error
}

func (r *ProgressRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	return r.DB.WithContext(ctx).Where("student_id = ?", studentID).Delete(&model.Progress{}).Error
}
