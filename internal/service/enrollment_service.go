package service

import (
	"context"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/tracing"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentOptions 可热更新的下单参数，金额均为最小货币单位
type PaymentOptions struct {
	Currency       string
	MinOrderAmount int64
	UnitMultiplier int64
}

func PaymentOptionsFromConfig(cfg *config.PaymentConfig) PaymentOptions {
	return PaymentOptions{
		Currency:       cfg.Currency,
		MinOrderAmount: cfg.MinOrderAmount,
		UnitMultiplier: cfg.UnitMultiplier,
	}
}

// EnrollResult 免费课程直接完成选课；付费课程返回网关订单
type EnrollResult struct {
	Enrolled bool         `json:"enrolled"`
	Message  string       `json:"message,omitempty"`
	Order    *OrderHandle `json:"order,omitempty"`
}

type EnrollmentService struct {
	DB          *gorm.DB
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Users       *repository.UserRepository
	Gateway     PaymentGateway
	Orders      OrderCache
	Notifier    *NotificationService

	opts atomic.Pointer[PaymentOptions]
}

func NewEnrollmentService(
	db *gorm.DB,
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	users *repository.UserRepository,
	gateway PaymentGateway,
	orders OrderCache,
	notifier *NotificationService,
	opts PaymentOptions,
) *EnrollmentService {
	s := &EnrollmentService{
		DB:          db,
		Courses:     courses,
		Enrollments: enrollments,
		Users:       users,
		Gateway:     gateway,
		Orders:      orders,
		Notifier:    notifier,
	}
	s.SetOptions(opts)
	return s
}

func (s *EnrollmentService) SetOptions(opts PaymentOptions) {
	if opts.UnitMultiplier <= 0 {
		opts.UnitMultiplier = 1
	}
	s.opts.Store(&opts)
}

func (s *EnrollmentService) Options() PaymentOptions {
	return *s.opts.Load()
}

// OrderAmount 课程价格换算为网关金额
func (s *EnrollmentService) OrderAmount(course *model.Course) int64 {
	return course.Price * s.Options().UnitMultiplier
}

// Enroll 判定免费/付费：免费课程立即提交，付费课程只创建网关订单，不写库
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID uint) (result *EnrollResult, err error) {
	ctx, span := tracing.Start(ctx, "enrollment.enroll",
		attribute.Int("student.id", int(studentID)),
		attribute.Int("course.id", int(courseID)),
	)
	defer func() { tracing.End(span, err) }()

	course, err := s.findEnrollableCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.Enrollments.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, util.ErrDuplicateEnrollment
	}

	if course.IsFree() {
		if err := s.commit(ctx, studentID, course, nil); err != nil {
			return nil, err
		}
		return &EnrollResult{Enrolled: true, Message: "enrolled successfully"}, nil
	}

	opts := s.Options()
	amount := s.OrderAmount(course)
	if amount < opts.MinOrderAmount {
		return nil, util.ErrInvalidPrice
	}

	order, err := s.Gateway.CreateOrder(ctx, amount, opts.Currency, orderReceipt(courseID, studentID, time.Now()))
	if err != nil {
		monitoring.PaymentOrdersTotal.WithLabelValues("error").Inc()
		return nil, util.ErrPaymentGatewayUnavailable.WithCause(err)
	}
	monitoring.PaymentOrdersTotal.WithLabelValues("created").Inc()

	if s.Orders != nil {
		pending := &model.PendingOrder{
			OrderID:   order.ID,
			StudentID: studentID,
			CourseID:  courseID,
			Amount:    order.Amount,
			Currency:  order.Currency,
		}
		if err := s.Orders.Put(ctx, pending); err != nil {
			logger.Log.Warn("failed to cache pending order",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	return &EnrollResult{Order: order}, nil
}

func (s *EnrollmentService) findEnrollableCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	// 草稿课程对学生不可见
	if !course.IsPublished() {
		return nil, util.ErrCourseNotFound
	}
	return course, nil
}

// commit 在同一事务内写入选课关系与（付费时的）支付记录，任一步失败全部回滚。
// 重复选课依赖唯一索引兜底。
func (s *EnrollmentService) commit(ctx context.Context, studentID uint, course *model.Course, payment *model.Payment) error {
	source := model.EnrollmentFree
	if payment != nil {
		source = model.EnrollmentPaid
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment := &model.Enrollment{
			StudentID: studentID,
			CourseID:  course.ID,
			Source:    source,
		}
		if err := repository.NewEnrollmentRepository(tx).Create(ctx, enrollment); err != nil {
			return err
		}
		if payment != nil {
			if err := repository.NewPaymentRepository(tx).Create(ctx, payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.translateCommitError(ctx, studentID, course.ID, err)
	}

	monitoring.EnrollmentsTotal.WithLabelValues(string(source)).Inc()
	logger.Log.Info("enrollment committed",
		zap.Uint("student_id", studentID),
		zap.Uint("course_id", course.ID),
		zap.String("source", string(source)),
	)

	if student, err := s.Users.FindByID(ctx, studentID); err == nil {
		s.Notifier.EnrollmentConfirmed(ctx, student, course)
	}
	return nil
}

func (s *EnrollmentService) translateCommitError(ctx context.Context, studentID, courseID uint, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if enrolled, lookupErr := s.Enrollments.Exists(ctx, studentID, courseID); lookupErr == nil && enrolled {
			return util.ErrDuplicateEnrollment
		}
		return util.ErrPaymentAlreadyUsed
	}
	logger.Log.Error("enrollment commit failed",
		zap.Uint("student_id", studentID),
		zap.Uint("course_id", courseID),
		zap.Error(err),
	)
	return util.ErrEnrollmentFailed.WithCause(err)
}

// IsEnrolled 供进度、作业、评价等模块做访问校验
func (s *EnrollmentService) IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error) {
	return s.Enrollments.Exists(ctx, studentID, courseID)
}

func (s *EnrollmentService) EnrolledCourses(ctx context.Context, studentID uint) ([]model.Course, error) {
	ids, err := s.Enrollments.CourseIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.Courses.FindByIDs(ctx, ids)
}

func (s *EnrollmentService) CourseStudents(ctx context.Context, courseID uint) ([]model.User, error) {
	ids, err := s.Enrollments.StudentIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.Users.FindByIDs(ctx, ids)
}

// VerifyPaymentRequest 网关回调给前端、再由前端提交的支付确认
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
	CourseID  uint   `json:"courseId" binding:"required"`
}

// PaymentService 验签通过后走付费选课提交
type PaymentService struct {
	Verifier    *SignatureVerifier
	Enrollments *EnrollmentService
	Payments    *repository.PaymentRepository
}

func NewPaymentService(verifier *SignatureVerifier, enrollments *EnrollmentService, payments *repository.PaymentRepository) *PaymentService {
	return &PaymentService{
		Verifier:    verifier,
		Enrollments: enrollments,
		Payments:    payments,
	}
}

func (s *PaymentService) Verify(ctx context.Context, studentID uint, req VerifyPaymentRequest) (err error) {
	ctx, span := tracing.Start(ctx, "payment.verify",
		attribute.Int("student.id", int(studentID)),
		attribute.Int("course.id", int(req.CourseID)),
		attribute.String("order.id", req.OrderID),
	)
	defer func() { tracing.End(span, err) }()

	if !s.Verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		monitoring.PaymentVerificationsTotal.WithLabelValues("invalid_signature").Inc()
		logger.Log.Warn("payment signature mismatch",
			zap.Uint("student_id", studentID),
			zap.String("order_id", req.OrderID),
		)
		return util.ErrPaymentVerificationFailed
	}

	es := s.Enrollments
	// 验签时课程须仍处于发布状态
	course, err := es.findEnrollableCourse(ctx, req.CourseID)
	if err != nil {
		return err
	}
	if course.IsFree() {
		return util.ErrPaymentOrderMismatch
	}

	bound, err := s.boundOrder(ctx, req.OrderID)
	if err != nil {
		return err
	}
	if bound.StudentID != studentID || bound.CourseID != course.ID || bound.Amount != es.OrderAmount(course) {
		monitoring.PaymentVerificationsTotal.WithLabelValues("order_mismatch").Inc()
		logger.Log.Warn("payment order does not match request",
			zap.String("order_id", req.OrderID),
			zap.Uint("student_id", studentID),
			zap.Uint("course_id", course.ID),
			zap.Uint("order_student_id", bound.StudentID),
			zap.Uint("order_course_id", bound.CourseID),
			zap.Int64("order_amount", bound.Amount),
		)
		return util.ErrPaymentOrderMismatch
	}

	enrolled, err := es.Enrollments.Exists(ctx, studentID, req.CourseID)
	if err != nil {
		return err
	}
	if enrolled {
		return util.ErrDuplicateEnrollment
	}

	payment := &model.Payment{
		GatewayOrderID:   req.OrderID,
		GatewayPaymentID: req.PaymentID,
		GatewaySignature: req.Signature,
		StudentID:        studentID,
		CourseID:         course.ID,
		Amount:           course.Price,
		Currency:         bound.Currency,
	}
	if err := es.commit(ctx, studentID, course, payment); err != nil {
		monitoring.PaymentVerificationsTotal.WithLabelValues("commit_failed").Inc()
		return err
	}
	monitoring.PaymentVerificationsTotal.WithLabelValues("verified").Inc()

	if es.Orders != nil {
		if err := es.Orders.Delete(ctx, req.OrderID); err != nil {
			logger.Log.Warn("failed to drop pending order", zap.String("order_id", req.OrderID), zap.Error(err))
		}
	}
	return nil
}

// boundOrder 取订单的归属与金额：先查缓存，缓存缺失时向网关查询。
// 两处都拿不到可信归属时拒绝，不以客户端提交的课程为准。
func (s *PaymentService) boundOrder(ctx context.Context, orderID string) (*model.PendingOrder, error) {
	es := s.Enrollments
	if es.Orders != nil {
		pending, err := es.Orders.Get(ctx, orderID)
		if err != nil {
			logger.Log.Warn("pending order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		} else if pending != nil {
			return pending, nil
		}
	}

	order, err := es.Gateway.FetchOrder(ctx, orderID)
	if err != nil {
		monitoring.PaymentVerificationsTotal.WithLabelValues("gateway_error").Inc()
		return nil, util.ErrPaymentGatewayUnavailable.WithCause(err)
	}
	courseID, studentID, ok := parseOrderReceipt(order.Receipt)
	if !ok {
		monitoring.PaymentVerificationsTotal.WithLabelValues("order_mismatch").Inc()
		return nil, util.ErrPaymentOrderMismatch
	}
	return &model.PendingOrder{
		OrderID:   order.ID,
		StudentID: studentID,
		CourseID:  courseID,
		Amount:    order.Amount,
		Currency:  order.Currency,
	}, nil
}

func (s *PaymentService) History(ctx context.Context, studentID uint) ([]model.Payment, error) {
	return s.Payments.ListByStudent(ctx, studentID)
}
