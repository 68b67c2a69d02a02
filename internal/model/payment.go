package model

import "time"

// Payment 已验签的支付记录，只插入不修改
type Payment struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	GatewayOrderID   string    `gorm:"size:100;not null;uniqueIndex" json:"gatewayOrderId"`
	GatewayPaymentID string    `gorm:"size:100;not null;uniqueIndex" json:"gatewayPaymentId"`
	GatewaySignature string    `gorm:"size:255;not null" json:"-"`
	StudentID        uint      `gorm:"not null;index" json:"studentId"`
	CourseID         uint      `gorm:"not null;index" json:"courseId"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Currency         string    `gorm:"size:10;not null" json:"currency"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (Payment) TableName() string {
	return "payments"
}

// PendingOrder 下单后缓存的订单归属信息，用于验签时核对学生与课程
type PendingOrder struct {
	OrderID   string `json:"orderId"`
	StudentID uint   `json:"studentId"`
	CourseID  uint   `json:"courseId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}
