package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

// Create 依赖 (student_id, course_id) 唯一索引防止重复签发
func (r *CertificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	return r.DB.WithContext(ctx).Create(cert).Error
}

func (r *CertificateRepository) FindByStudentCourse(ctx context.Context, studentID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&cert).Error
	return &cert, err
}

func (r *CertificateRepository) FindByCertificateID(ctx context.Context, certificateID string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.WithContext(ctx).Where("certificate_id = ?", certificateID).First(&cert).Error
	return &cert, err
}

func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("completion_date DESC").Find(&certs).Error
	return certs, err
}

func (r *CertificateRepository) CountByStudentCourse(ctx context.Context, studentID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Certificate{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count, err
}
