package middleware

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// bearerToken 取 Authorization 头中的 Bearer 令牌，没有则返回空串
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(raw, secret)
		if err != nil {
			logger.Log.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			util.HandleError(c, err)
			c.Abort()
			return
		}

		c.Set(util.ClaimsKey, claims)
		c.Next()
	}
}

// OptionalAuth 有合法 token 时写入用户信息，否则按匿名访问
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if claims, err := util.ParseJWT(raw, secret); err == nil {
				c.Set(util.ClaimsKey, claims)
			}
		}
		c.Next()
	}
}

// RoleMiddleware 管理员直接放行
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.ClaimsFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.Admin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserKey 以用户 ID 作为限流 key
func UserKey(c *gin.Context) string {
	user := util.ClaimsFromContext(c)
	if user == nil {
		return c.ClientIP()
	}
	return "user:" + strconv.FormatUint(uint64(user.UserID), 10)
}
