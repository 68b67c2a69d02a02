package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeedbackRepository struct {
	DB *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{DB: db}
}

// Upsert 同一学生对同一课程只保留最新一条评价
func (r *FeedbackRepository) Upsert(ctx context.Context, f *model.Feedback) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
	}).Create(f).Error
}

func (r *FeedbackRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Feedback, error) {
	var list []model.Feedback
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("updated_at DESC").Find(&list).Error
	return list, err
}

func (r *FeedbackRepository) AverageRating(ctx context.Context, courseID uint) (float64, int64, error) {
	var row struct {
		Avg   float64
		Count int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Feedback{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("course_id = ?", courseID).
		Scan(&row).Error
	return row.Avg, row.Count, err
}

func (r *FeedbackRepository) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.DB.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Feedback{}).Error
}

func (r *FeedbackRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	return r.DB.WithContext(ctx).Where("student_id = ?", studentID).Delete(&model.Feedback{}).Error
}
