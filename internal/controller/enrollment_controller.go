package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	Enrollments *service.EnrollmentService
	Payments    *service.PaymentService
}

func NewEnrollmentController(enrollments *service.EnrollmentService, payments *service.PaymentService) *EnrollmentController {
	return &EnrollmentController{Enrollments: enrollments, Payments: payments}
}

// Enroll godoc
// @Summary 选课
// @Description 免费课程直接选课；付费课程返回支付网关订单
// @Tags 选课
// @Produce json
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "已选课或价格低于最低支付金额"
// @Failure 404 {object} util.Response "课程不存在"
// @Failure 500 {object} util.Response "支付网关异常"
// @Router /api/courses/{id}/enroll [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.Enrollments.Enroll(ctx.Request.Context(), actor.ID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	if result.Order != nil {
		util.Success(ctx, gin.H{"success": true, "order": result.Order})
		return
	}
	util.Success(ctx, gin.H{"success": true, "message": result.Message})
}

// VerifyPayment godoc
// @Summary 支付验签并完成选课
// @Tags 选课
// @Accept json
// @Produce json
// @Param body body service.VerifyPaymentRequest true "网关回传参数"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "签名校验失败"
// @Router /api/payments/verify [post]
func (c *EnrollmentController) VerifyPayment(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.VerifyPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Payments.Verify(ctx.Request.Context(), actor.ID, req); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"success": true, "message": "payment verified, enrollment complete"})
}

func (c *EnrollmentController) PaymentHistory(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	payments, err := c.Payments.History(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, payments)
}

// EnrolledCourses 当前学生已选课程
func (c *EnrollmentController) EnrolledCourses(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courses, err := c.Enrollments.EnrolledCourses(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}
