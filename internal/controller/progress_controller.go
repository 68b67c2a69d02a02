package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Progress *service.ProgressService
}

func NewProgressController(progress *service.ProgressService) *ProgressController {
	return &ProgressController{Progress: progress}
}

// UpdateProgress godoc
// @Summary 上报课时播放进度
// @Description isCompleted 为 true 时标记课时完成，课程全部完成后自动签发证书
// @Tags 学习进度
// @Accept json
// @Produce json
// @Param body body service.ProgressUpdate true "进度"
// @Success 200 {object} util.Response{data=service.ProgressSummary}
// @Failure 403 {object} util.Response "未选该课程"
// @Router /api/students/progress [post]
func (c *ProgressController) UpdateProgress(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.ProgressUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	summary, err := c.Progress.Update(ctx.Request.Context(), actor.ID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 查询课程学习进度
// @Tags 学习进度
// @Produce json
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ProgressSummary}
// @Router /api/students/progress/{courseId} [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "courseId")
	if !ok {
		return
	}

	summary, err := c.Progress.GetProgress(ctx.Request.Context(), actor.ID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
