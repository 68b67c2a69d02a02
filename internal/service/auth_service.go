package service

import (
	"context"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name     string         `json:"name" binding:"required,max=100"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=8"`
	Role     model.UserRole `json:"role" binding:"required,oneof=student company"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// Register 只允许注册学生或机构账号，管理员由配置初始化
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if req.Role != model.Student && req.Role != model.Company {
		return nil, util.NewValidationError("role must be student or company")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashedPassword),
		Role:     req.Role,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, util.ErrAccountDisabled
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// SeedAdmin 配置了管理员账号且不存在时创建
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	admin := s.Cfg.Admin
	if admin.Email == "" || admin.Password == "" {
		return nil
	}
	email := strings.ToLower(admin.Email)
	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	name := admin.Name
	if name == "" {
		name = "Administrator"
	}
	if err := s.UserRepo.Create(ctx, &model.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     model.Admin,
	}); err != nil {
		return err
	}
	logger.Log.Info("admin account seeded", zap.String("email", email))
	return nil
}
