package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

type CourseFilter struct {
	Search string
	Page   int
	Limit  int
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) Save(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Omit("Company").Save(course).Error
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Preload("Company").First(&course, id).Error
	return &course, err
}

// FindByIDUnscoped 包含已软删除的课程，证书公开校验使用
func (r *CourseRepository) FindByIDUnscoped(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Unscoped().First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Course, error) {
	var courses []model.Course
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) ListPublished(ctx context.Context, f CourseFilter) ([]model.Course, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Course{}).Where("status = ?", model.CoursePublished)
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []model.Course
	err := query.Preload("Company").
		Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) ListByCompany(ctx context.Context, companyID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.WithContext(ctx).Where("company_id = ?", companyID).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Course{}, id).Error
}
