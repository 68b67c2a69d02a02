package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	Assignments *service.AssignmentService
}

func NewAssignmentController(assignments *service.AssignmentService) *AssignmentController {
	return &AssignmentController{Assignments: assignments}
}

func (c *AssignmentController) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var in service.AssignmentInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.Assignments.Create(ctx.Request.Context(), actor, courseID, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

func (c *AssignmentController) ListForCourse(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	list, err := c.Assignments.ListForCourse(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

func (c *AssignmentController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "assignmentId")
	if !ok {
		return
	}
	if err := c.Assignments.Delete(ctx.Request.Context(), actor, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// Submit godoc
// @Summary 提交作业
// @Tags 作业
// @Accept multipart/form-data
// @Param assignmentId path int true "作业ID"
// @Param file formData file true "作业文件"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 409 {object} util.Response "已评分，不能再次提交"
// @Router /api/students/assignments/{assignmentId}/submit [post]
func (c *AssignmentController) Submit(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "assignmentId")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	sub, err := c.Assignments.Submit(ctx.Request.Context(), actor.ID, id, file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

func (c *AssignmentController) MySubmissions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.Assignments.MySubmissions(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

func (c *AssignmentController) ListSubmissions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "assignmentId")
	if !ok {
		return
	}
	list, err := c.Assignments.ListSubmissions(ctx.Request.Context(), actor, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

func (c *AssignmentController) Grade(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "submissionId")
	if !ok {
		return
	}
	var in service.GradeInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	sub, err := c.Assignments.Grade(ctx.Request.Context(), actor, id, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}
