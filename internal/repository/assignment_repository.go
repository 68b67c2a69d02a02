package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) FindByID(ctx context.Context, id uint) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.WithContext(ctx).First(&a, id).Error
	return &a, err
}

func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) IDsByCourse(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Assignment{}).Where("course_id = ?", courseID).Pluck("id", &ids).Error
	return ids, err
}

func (r *AssignmentRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.Assignment{}, id).Error
}

func (r *AssignmentRepository) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.DB.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Assignment{}).Error
}

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) Save(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Save(s).Error
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).First(&s, id).Error
	return &s, err
}

func (r *SubmissionRepository) Find(ctx context.Context, assignmentID, studentID uint) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&s).Error
	return &s, err
}

func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]model.Submission, error) {
	var list []model.Submission
	err := r.DB.WithContext(ctx).Where("assignment_id = ?", assignmentID).Order("submitted_at ASC").Find(&list).Error
	return list, err
}

func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.Submission, error) {
	var list []model.Submission
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("submitted_at DESC").Find(&list).Error
	return list, err
}

func (r *SubmissionRepository) DeleteByAssignments(ctx context.Context, assignmentIDs []uint) error {
	if len(assignmentIDs) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Where("assignment_id IN ?", assignmentIDs).Delete(&model.Submission{}).Error
}

func (r *SubmissionRepository) DeleteByStudent(ctx context.Context, studentID uint) error {
	return r.DB.WithContext(ctx).Where("student_id = ?", studentID).Delete(&model.Submission{}).Error
}
