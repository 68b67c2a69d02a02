package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressSummary 学生在某门课程上的进度概览
type ProgressSummary struct {
	CourseID         uint                   `json:"courseId"`
	Lessons          []model.LessonProgress `json:"lessons"`
	CompletedLessons int                    `json:"completedLessons"`
	TotalLessons     int                    `json:"totalLessons"`
	Percentage       float64                `json:"percentage"`
	Completed        bool                   `json:"completed"`
	CompletedAt      *time.Time             `json:"completedAt,omitempty"`
	Certificate      *model.Certificate     `json:"certificate,omitempty"`
	CertificateError string                 `json:"certificateError,omitempty"`
}

// ProgressUpdate 前端上报的播放进度
type ProgressUpdate struct {
	CourseID    uint    `json:"courseId" binding:"required"`
	LessonID    string  `json:"lessonId" binding:"required"`
	IsCompleted bool    `json:"isCompleted"`
	Timestamp   float64 `json:"timestamp" binding:"gte=0"`
}

// CertificateIssuer 课程完成后签发证书
type CertificateIssuer interface {
	Issue(ctx context.Context, studentID, courseID uint) (*model.Certificate, error)
}

type ProgressService struct {
	DB           *gorm.DB
	Courses      *repository.CourseRepository
	Enrollments  *repository.EnrollmentRepository
	Progress     *repository.ProgressRepository
	Certificates CertificateIssuer
}

func NewProgressService(
	db *gorm.DB,
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	progress *repository.ProgressRepository,
	certificates CertificateIssuer,
) *ProgressService {
	return &ProgressService{
		DB:           db,
		Courses:      courses,
		Enrollments:  enrollments,
		Progress:     progress,
		Certificates: certificates,
	}
}

// Update 按 IsCompleted 分派到记录时间点或标记完成
func (s *ProgressService) Update(ctx context.Context, studentID uint, req ProgressUpdate) (*ProgressSummary, error) {
	if req.IsCompleted {
		return s.MarkLessonComplete(ctx, studentID, req.CourseID, req.LessonID, req.Timestamp)
	}
	return s.RecordTimestamp(ctx, studentID, req.CourseID, req.LessonID, req.Timestamp)
}

// RecordTimestamp 只更新播放位置，不改变完成状态
func (s *ProgressService) RecordTimestamp(ctx context.Context, studentID, courseID uint, lessonID string, seconds float64) (*ProgressSummary, error) {
	course, lesson, err := s.authorize(ctx, studentID, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	var summary *ProgressSummary
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewProgressRepository(tx)
		p, err := repo.FindOrCreateForUpdate(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		entry := p.Entry(lessonID)
		entry.LastTimestamp = clampTimestamp(seconds, lesson)
		entry.UpdatedAt = time.Now()
		if err := repo.Save(ctx, p); err != nil {
			return err
		}
		summary = summarize(course, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// MarkLessonComplete 标记课时完成并在同一事务内重算完成度；达到 100% 时提交后签发证书
func (s *ProgressService) MarkLessonComplete(ctx context.Context, studentID, courseID uint, lessonID string, finalTimestamp float64) (summary *ProgressSummary, err error) {
	ctx, span := tracing.Start(ctx, "progress.complete_lesson",
		attribute.Int("student.id", int(studentID)),
		attribute.Int("course.id", int(courseID)),
		attribute.String("lesson.id", lessonID),
	)
	defer func() { tracing.End(span, err) }()

	if _, _, err := s.authorize(ctx, studentID, courseID, lessonID); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 课程大纲在事务内重新读取，避免并发修改大纲导致完成度计算失真
		course, err := repository.NewCourseRepository(tx).FindByID(ctx, courseID)
		if err != nil {
			return err
		}
		lesson, ok := course.FindLesson(lessonID)
		if !ok {
			return util.ErrLessonNotFound
		}

		repo := repository.NewProgressRepository(tx)
		p, err := repo.FindOrCreateForUpdate(ctx, studentID, courseID)
		if err != nil {
			return err
		}
		now := time.Now()
		entry := p.Entry(lessonID)
		entry.Completed = true
		entry.LastTimestamp = clampTimestamp(finalTimestamp, lesson)
		entry.UpdatedAt = now
		if p.IsComplete(course) && p.CompletedAt == nil {
			p.CompletedAt = &now
		}
		if err := repo.Save(ctx, p); err != nil {
			return err
		}
		summary = summarize(course, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if summary.Completed {
		s.issueCertificate(ctx, studentID, courseID, summary)
	}
	return summary, nil
}

func (s *ProgressService) issueCertificate(ctx context.Context, studentID, courseID uint, summary *ProgressSummary) {
	if s.Certificates == nil {
		return
	}
	cert, err := s.Certificates.Issue(ctx, studentID, courseID)
	switch {
	case err == nil:
		summary.Certificate = cert
	case errors.Is(err, util.ErrCertificateNotOffered):
	default:
		logger.Log.Error("certificate issuance after completion failed",
			zap.Uint("student_id", studentID),
			zap.Uint("course_id", courseID),
			zap.Error(err),
		)
		msg := util.ErrCertificateGenerationFailed.Message
		if appErr, ok := util.AsAppError(err); ok {
			msg = appErr.Message
		}
		summary.CertificateError = msg
	}
}

func (s *ProgressService) GetProgress(ctx context.Context, studentID, courseID uint) (*ProgressSummary, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	enrolled, err := s.Enrollments.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	p, err := s.Progress.Find(ctx, studentID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return summarize(course, &model.Progress{StudentID: studentID, CourseID: courseID}), nil
	}
	if err != nil {
		return nil, err
	}
	return summarize(course, p), nil
}

func (s *ProgressService) authorize(ctx context.Context, studentID, courseID uint, lessonID string) (*model.Course, *model.Lesson, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	enrolled, err := s.Enrollments.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, nil, err
	}
	if !enrolled {
		return nil, nil, util.ErrNotEnrolled
	}
	lesson, ok := course.FindLesson(lessonID)
	if !ok {
		return nil, nil, util.ErrLessonNotFound
	}
	return course, lesson, nil
}

func clampTimestamp(seconds float64, lesson *model.Lesson) float64 {
	if seconds < 0 {
		return 0
	}
	if lesson.DurationSeconds > 0 && seconds > lesson.DurationSeconds {
		return lesson.DurationSeconds
	}
	return seconds
}

func summarize(course *model.Course, p *model.Progress) *ProgressSummary {
	lessons := []model.LessonProgress(p.Lessons)
	if lessons == nil {
		lessons = []model.LessonProgress{}
	}
	return &ProgressSummary{
		CourseID:         course.ID,
		Lessons:          lessons,
		CompletedLessons: p.CompletedCount(course),
		TotalLessons:     course.TotalLessons(),
		Percentage:       p.Percentage(course),
		Completed:        p.IsComplete(course),
		CompletedAt:      p.CompletedAt,
	}
}
