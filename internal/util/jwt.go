package util

import (
	"lms_backend/internal/model"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	TokenIssuer = "lms-backend"
	// ClaimsKey gin 上下文中保存登录身份的键
	ClaimsKey = "claims"
)

var (
	ErrTokenExpired = NewUnauthorizedError("token expired")
	ErrTokenInvalid = NewUnauthorizedError("invalid token")
)

// Claims 只携带鉴权所需的身份与角色，课程归属等在服务层按库内数据判断
type Claims struct {
	UserID uint           `json:"uid"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func GenerateJWT(user *model.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT 校验签名、签发方与有效期，失败时返回 ErrTokenExpired 或 ErrTokenInvalid
func ParseJWT(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired.WithCause(err)
	default:
		return nil, ErrTokenInvalid.WithCause(err)
	}
}

func ClaimsFromContext(c *gin.Context) *Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
