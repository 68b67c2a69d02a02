package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type enrollmentFixture struct {
	db       *gorm.DB
	svc      *EnrollmentService
	payments *PaymentService
	gateway  *fakeGateway
	orders   *memoryOrderCache
	mailer   *recordingMailer
	company  *model.User
	student  *model.User
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	db := testutil.NewDB(t)
	f := &enrollmentFixture{
		db:      db,
		gateway: &fakeGateway{},
		orders:  newMemoryOrderCache(),
		mailer:  &recordingMailer{},
		company: testutil.CreateUser(t, db, "Acme Learning", "acme@example.com", model.Company),
		student: testutil.CreateUser(t, db, "Asha", "asha@example.com", model.Student),
	}
	f.svc = NewEnrollmentService(
		db,
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewUserRepository(db),
		f.gateway,
		f.orders,
		NewNotificationService(f.mailer),
		PaymentOptions{Currency: "INR", MinOrderAmount: 100, UnitMultiplier: 100},
	)
	f.payments = NewPaymentService(NewSignatureVerifier("s3cr3t"), f.svc, repository.NewPaymentRepository(db))
	return f
}

func (f *enrollmentFixture) count(t *testing.T, m interface{}) int64 {
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func TestSignatureVerifier(t *testing.T) {
	v := NewSignatureVerifier("s3cr3t")

	sig := v.Sign("order_abc", "pay_123")
	assert.Equal(t, "070ea2f5813be979e4d4dd50f9840717bb01adf600c92662f401086c6cabbf9a", sig)
	assert.True(t, v.Verify("order_abc", "pay_123", sig))

	assert.False(t, v.Verify("order_abc", "pay_124", sig))
	assert.False(t, v.Verify("order_abd", "pay_123", sig))
	assert.False(t, v.Verify("order_abc", "pay_123", sig[:len(sig)-1]+"0"))
	assert.False(t, NewSignatureVerifier("other").Verify("order_abc", "pay_123", sig))
}

func TestEnroll_FreeCourse(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 3)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, result.Enrolled)
	assert.Nil(t, result.Order)
	assert.Empty(t, f.gateway.calls)

	_, err = f.svc.Enroll(ctx, f.student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrDuplicateEnrollment)
	assert.Equal(t, 400, util.ErrDuplicateEnrollment.Status())

	assert.Equal(t, int64(1), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))
	assert.Equal(t, []string{"You're enrolled in Go Basics"}, f.mailer.subjects())
}

func TestEnroll_BothViewsAgree(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 1)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	courses, err := f.svc.EnrolledCourses(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, course.ID, courses[0].ID)

	students, err := f.svc.CourseStudents(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, f.student.ID, students[0].ID)
}

func TestEnroll_ConcurrentFreeEnrollCommitsOnce(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 1)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Enroll(context.Background(), f.student.ID, course.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, util.ErrDuplicateEnrollment)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.count(t, &model.Enrollment{}))
}

func TestEnroll_UnknownOrDraftCourse(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, f.student.ID, 999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	draft := testutil.CreateCourse(t, f.db, f.company, "Draft", 0, 1)
	require.NoError(t, f.db.Model(draft).Update("status", model.CourseDraft).Error)
	_, err = f.svc.Enroll(ctx, f.student.ID, draft.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestEnroll_PaidCourseCreatesOrderWithoutWriting(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 2)

	result, err := f.svc.Enroll(context.Background(), f.student.ID, course.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.False(t, result.Enrolled)
	assert.Equal(t, "order_test", result.Order.ID)
	assert.Equal(t, int64(49900), result.Order.Amount)
	assert.Equal(t, "INR", result.Order.Currency)
	assert.Equal(t, []int64{49900}, f.gateway.calls)

	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))

	pending, err := f.orders.Get(context.Background(), "order_test")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, f.student.ID, pending.StudentID)
	assert.Equal(t, course.ID, pending.CourseID)
}

func TestEnroll_PriceBelowGatewayMinimum(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.svc.SetOptions(PaymentOptions{Currency: "INR", MinOrderAmount: 500, UnitMultiplier: 100})
	course := testutil.CreateCourse(t, f.db, f.company, "Cheap", 2, 1)

	_, err := f.svc.Enroll(context.Background(), f.student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrInvalidPrice)
	assert.Empty(t, f.gateway.calls)
}

func TestEnroll_GatewayFailure(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.gateway.err = errors.New("connection reset")
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)

	_, err := f.svc.Enroll(context.Background(), f.student.ID, course.ID)
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.KindUpstream))
	appErr, ok := util.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "payment gateway unavailable", appErr.Message)
	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
}

func TestVerify_InvalidSignatureWritesNothing(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)

	err := f.payments.Verify(context.Background(), f.student.ID, VerifyPaymentRequest{
		OrderID:   "order_abc",
		PaymentID: "pay_123",
		Signature: "deadbeef",
		CourseID:  course.ID,
	})
	assert.ErrorIs(t, err, util.ErrPaymentVerificationFailed)
	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))
}

func TestVerify_CommitsEnrollmentAndPayment(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	req := VerifyPaymentRequest{
		OrderID:   result.Order.ID,
		PaymentID: "pay_123",
		CourseID:  course.ID,
	}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)
	require.NoError(t, f.payments.Verify(ctx, f.student.ID, req))

	enrollment, err := repository.NewEnrollmentRepository(f.db).Find(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentPaid, enrollment.Source)

	payments, err := f.payments.History(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(499), payments[0].Amount)
	assert.Equal(t, "pay_123", payments[0].GatewayPaymentID)
	assert.Equal(t, req.Signature, payments[0].GatewaySignature)

	pending, err := f.orders.Get(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	// 已选课后再次验签按重复选课处理
	err = f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrDuplicateEnrollment)
	assert.Equal(t, int64(1), f.count(t, &model.Payment{}))
}

func TestVerify_OrderOwnedByAnotherStudent(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	other := testutil.CreateUser(t, f.db, "Ravi", "ravi@example.com", model.Student)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, other.ID, course.ID)
	require.NoError(t, err)

	req := VerifyPaymentRequest{OrderID: result.Order.ID, PaymentID: "pay_1", CourseID: course.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)

	err = f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrPaymentOrderMismatch)
	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
}

func TestVerify_ReusedPaymentRollsBack(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.svc.Orders = nil
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	other := testutil.CreateUser(t, f.db, "Ravi", "ravi@example.com", model.Student)
	ctx := context.Background()

	mine, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	theirs, err := f.svc.Enroll(ctx, other.ID, course.ID)
	require.NoError(t, err)

	req := VerifyPaymentRequest{OrderID: mine.Order.ID, PaymentID: "pay_1", CourseID: course.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)
	require.NoError(t, f.payments.Verify(ctx, f.student.ID, req))

	// 同一笔支付挂到另一张订单上
	reused := VerifyPaymentRequest{OrderID: theirs.Order.ID, PaymentID: "pay_1", CourseID: course.ID}
	reused.Signature = f.payments.Verifier.Sign(reused.OrderID, reused.PaymentID)
	err = f.payments.Verify(ctx, other.ID, reused)
	assert.ErrorIs(t, err, util.ErrPaymentAlreadyUsed)

	enrolled, err := f.svc.IsEnrolled(ctx, other.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
	assert.Equal(t, int64(1), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(1), f.count(t, &model.Payment{}))
}

func TestVerify_PaymentInsertFailureLeavesNoEnrollment(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_payments", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "payments" {
			tx.AddError(errors.New("disk full"))
		}
	}))

	req := VerifyPaymentRequest{OrderID: result.Order.ID, PaymentID: "pay_1", CourseID: course.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)

	err = f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrEnrollmentFailed)
	assert.True(t, util.IsKind(err, util.KindIntegrity))

	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))
	assert.Empty(t, f.mailer.subjects())
}

func TestVerify_UncachedOrderIsCheckedAgainstGateway(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.svc.Orders = nil
	cheap := testutil.CreateCourse(t, f.db, f.company, "Go Intro", 1, 1)
	pricey := testutil.CreateCourse(t, f.db, f.company, "Go Masterclass", 5000, 1)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, f.student.ID, cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.Order.Amount)

	// 便宜课程的订单签名不能用来换取另一门课程
	req := VerifyPaymentRequest{OrderID: result.Order.ID, PaymentID: "pay_cheap", CourseID: pricey.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)
	err = f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrPaymentOrderMismatch)
	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))

	req.CourseID = cheap.ID
	require.NoError(t, f.payments.Verify(ctx, f.student.ID, req))

	payments, err := f.payments.History(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, cheap.ID, payments[0].CourseID)
	assert.Equal(t, int64(1), payments[0].Amount)
	assert.Equal(t, "INR", payments[0].Currency)
}

func TestVerify_UncachedOrderAmountMustMatchPrice(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.svc.Orders = nil
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(course).Update("price", 999).Error)

	req := VerifyPaymentRequest{OrderID: result.Order.ID, PaymentID: "pay_1", CourseID: course.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)
	err = f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrPaymentOrderMismatch)
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))
}

func TestVerify_GatewayLookupFailureWritesNothing(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	ctx := context.Background()

	// 缓存里没有的订单只能向网关核对
	f.gateway.fetchErr = errors.New("connection reset")
	req := VerifyPaymentRequest{OrderID: "order_unknown", PaymentID: "pay_1", CourseID: course.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)

	err := f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrPaymentGatewayUnavailable)
	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
	assert.Equal(t, int64(0), f.count(t, &model.Payment{}))
}

func TestVerify_UnpublishedCourseRejected(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Advanced Go", 499, 1)
	ctx := context.Background()

	result, err := f.svc.Enroll(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(course).Update("status", model.CourseDraft).Error)

	req := VerifyPaymentRequest{OrderID: result.Order.ID, PaymentID: "pay_1", CourseID: course.ID}
	req.Signature = f.payments.Verifier.Sign(req.OrderID, req.PaymentID)
	err = f.payments.Verify(ctx, f.student.ID, req)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
	assert.Equal(t, int64(0), f.count(t, &model.Enrollment{}))
}

func TestParseOrderReceipt(t *testing.T) {
	courseID, studentID, ok := parseOrderReceipt(orderReceipt(12, 34, time.Unix(1700000000, 0)))
	require.True(t, ok)
	assert.Equal(t, uint(12), courseID)
	assert.Equal(t, uint(34), studentID)

	for _, bad := range []string{"", "rcpt", "rcpt_x_1_2", "other_1_2_3", "rcpt_0_1_2", "rcpt_1_2"} {
		_, _, ok := parseOrderReceipt(bad)
		assert.False(t, ok, bad)
	}
}
