package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type cascadeStep struct {
	name string
	run  func(ctx context.Context, tx *gorm.DB) error
}

// CascadeService 删除课程或学生及其关联数据，全部步骤在同一事务内完成。
// 支付记录与证书保留不删。
type CascadeService struct {
	DB *gorm.DB
}

func NewCascadeService(db *gorm.DB) *CascadeService {
	return &CascadeService{DB: db}
}

func (s *CascadeService) DeleteCourse(ctx context.Context, courseID uint) error {
	var course model.Course
	if err := s.DB.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}

	steps := []cascadeStep{
		{"submissions", func(ctx context.Context, tx *gorm.DB) error {
			ids, err := repository.NewAssignmentRepository(tx).IDsByCourse(ctx, courseID)
			if err != nil {
				return err
			}
			return repository.NewSubmissionRepository(tx).DeleteByAssignments(ctx, ids)
		}},
		{"assignments", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewAssignmentRepository(tx).DeleteByCourse(ctx, courseID)
		}},
		{"feedback", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewFeedbackRepository(tx).DeleteByCourse(ctx, courseID)
		}},
		{"progress", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewProgressRepository(tx).DeleteByCourse(ctx, courseID)
		}},
		{"enrollments", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewEnrollmentRepository(tx).DeleteByCourse(ctx, courseID)
		}},
		{"course", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewCourseRepository(tx).Delete(ctx, courseID)
		}},
	}

	if err := s.run(ctx, steps); err != nil {
		logger.Log.Error("course cascade delete failed", zap.Uint("course_id", courseID), zap.Error(err))
		return util.ErrDeleteFailed.WithCause(err)
	}
	logger.Log.Info("course deleted", zap.Uint("course_id", courseID))
	return nil
}

func (s *CascadeService) DeleteStudent(ctx context.Context, studentID uint) error {
	var user model.User
	if err := s.DB.WithContext(ctx).First(&user, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrUserNotFound
		}
		return err
	}
	if user.Role != model.Student {
		return util.NewValidationError("user is not a student")
	}

	steps := []cascadeStep{
		{"submissions", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewSubmissionRepository(tx).DeleteByStudent(ctx, studentID)
		}},
		{"feedback", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewFeedbackRepository(tx).DeleteByStudent(ctx, studentID)
		}},
		{"progress", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewProgressRepository(tx).DeleteByStudent(ctx, studentID)
		}},
		{"enrollments", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewEnrollmentRepository(tx).DeleteByStudent(ctx, studentID)
		}},
		{"user", func(ctx context.Context, tx *gorm.DB) error {
			return repository.NewUserRepository(tx).Delete(ctx, studentID)
		}},
	}

	if err := s.run(ctx, steps); err != nil {
		logger.Log.Error("student cascade delete failed", zap.Uint("student_id", studentID), zap.Error(err))
		return util.ErrDeleteFailed.WithCause(err)
	}
	logger.Log.Info("student deleted", zap.Uint("student_id", studentID))
	return nil
}

func (s *CascadeService) run(ctx context.Context, steps []cascadeStep) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			if err := step.run(ctx, tx); err != nil {
				return pkgerrors.Wrapf(err, "delete %s", step.name)
			}
		}
		return nil
	})
}
