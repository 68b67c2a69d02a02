package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// Register godoc
// @Summary 注册新用户
// @Description 注册学生或机构账号
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.RegisterRequest true "用户注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.AuthService.Register(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"id": user.ID, "role": user.Role})
}

// Login godoc
// @Summary 登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=service.LoginResult}
// @Failure 401 {object} util.Response "账号或密码错误"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req service.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AuthService.Login(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func (c *AuthController) Me(ctx *gin.Context) {
	claims := util.ClaimsFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	user, err := c.AuthService.CurrentUser(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}
