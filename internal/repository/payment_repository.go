package repository

import (
	"context"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var p model.Payment
	err := r.DB.WithContext(ctx).Where("gateway_order_id = ?", orderID).First(&p).Error
	return &p, err
}

func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}
