package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentActor 读取已认证用户，未认证时写 401 并返回 false
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	claims := util.ClaimsFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func optionalActor(ctx *gin.Context) *service.Actor {
	claims := util.ClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}
	return &service.Actor{ID: claims.UserID, Role: claims.Role}
}
