package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AdminController 平台设置与级联删除
type AdminController struct {
	Settings *service.SettingsService
	Cascade  *service.CascadeService
}

func NewAdminController(settings *service.SettingsService, cascade *service.CascadeService) *AdminController {
	return &AdminController{Settings: settings, Cascade: cascade}
}

// GetSettings 公开读取平台品牌信息
func (c *AdminController) GetSettings(ctx *gin.Context) {
	settings, err := c.Settings.Get(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, settings)
}

func (c *AdminController) UpdateSettings(ctx *gin.Context) {
	var patch service.SettingsPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	settings, err := c.Settings.Update(ctx.Request.Context(), patch)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, settings)
}

func (c *AdminController) DeleteStudent(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Cascade.DeleteStudent(ctx.Request.Context(), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

func (c *AdminController) DeleteCourse(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Cascade.DeleteCourse(ctx.Request.Context(), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}
