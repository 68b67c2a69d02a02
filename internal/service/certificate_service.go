package service

import (
	"bytes"
	"context"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/tracing"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewCertificateID 生成 CERT- 加 16 位大写十六进制的公开编号
func NewCertificateID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CERT-" + strings.ToUpper(id[:16])
}

// CertificateVerification 公开校验接口返回的字段
type CertificateVerification struct {
	CertificateID  string    `json:"certificateId"`
	StudentName    string    `json:"studentName"`
	CourseTitle    string    `json:"courseTitle"`
	InstructorName string    `json:"instructorName"`
	CompletionDate time.Time `json:"completionDate"`
	CertificateURL string    `json:"certificateUrl"`
}

type CertificateService struct {
	Certificates *repository.CertificateRepository
	Courses      *repository.CourseRepository
	Users        *repository.UserRepository
	Progress     *repository.ProgressRepository
	Settings     *SettingsService
	Renderer     CertificateRenderer
	Store        FileStore
	Notifier     *NotificationService
	Config       *config.CertificateConfig

	NewID func() string
}

func NewCertificateService(
	certificates *repository.CertificateRepository,
	courses *repository.CourseRepository,
	users *repository.UserRepository,
	progress *repository.ProgressRepository,
	settings *SettingsService,
	renderer CertificateRenderer,
	store FileStore,
	notifier *NotificationService,
	cfg *config.CertificateConfig,
) *CertificateService {
	return &CertificateService{
		Certificates: certificates,
		Courses:      courses,
		Users:        users,
		Progress:     progress,
		Settings:     settings,
		Renderer:     renderer,
		Store:        store,
		Notifier:     notifier,
		Config:       cfg,
		NewID:        NewCertificateID,
	}
}

// Issue 幂等签发：已存在直接返回；渲染、上传、落库三步，落库为提交点。
// 并发签发由唯一索引裁决，失败方删除自己上传的文件并返回胜出方的证书。
func (s *CertificateService) Issue(ctx context.Context, studentID, courseID uint) (cert *model.Certificate, err error) {
	ctx, span := tracing.Start(ctx, "certificate.issue",
		attribute.Int("student.id", int(studentID)),
		attribute.Int("course.id", int(courseID)),
	)
	defer func() { tracing.End(span, err) }()

	existing, err := s.Certificates.FindByStudentCourse(ctx, studentID, courseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !course.OfferCertificate {
		return nil, util.ErrCertificateNotOffered
	}

	progress, err := s.Progress.Find(ctx, studentID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotCompleted
	}
	if err != nil {
		return nil, err
	}
	if !progress.IsComplete(course) {
		return nil, util.ErrCourseNotCompleted
	}

	student, err := s.Users.FindByID(ctx, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	completion := time.Now()
	if progress.CompletedAt != nil {
		completion = *progress.CompletedAt
	}

	cert = &model.Certificate{
		CertificateID:  s.NewID(),
		StudentID:      studentID,
		CourseID:       courseID,
		StudentName:    student.Name,
		CourseTitle:    course.Title,
		CompletionDate: completion,
	}
	if course.Company != nil {
		cert.InstructorName = course.Company.Name
	}

	if err := s.renderAndUpload(ctx, cert); err != nil {
		monitoring.CertificatesTotal.WithLabelValues("generation_failed").Inc()
		logger.Log.Error("certificate generation failed",
			zap.Uint("student_id", studentID),
			zap.Uint("course_id", courseID),
			zap.Error(err),
		)
		return nil, util.ErrCertificateGenerationFailed.WithCause(err)
	}

	if err := s.Certificates.Create(ctx, cert); err != nil {
		s.discardArtifact(ctx, cert.ObjectKey)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			monitoring.CertificatesTotal.WithLabelValues("race_lost").Inc()
			return s.Certificates.FindByStudentCourse(ctx, studentID, courseID)
		}
		return nil, err
	}

	monitoring.CertificatesTotal.WithLabelValues("issued").Inc()
	logger.Log.Info("certificate issued",
		zap.String("certificate_id", cert.CertificateID),
		zap.Uint("student_id", studentID),
		zap.Uint("course_id", courseID),
	)
	s.Notifier.CertificateIssued(ctx, student, cert)
	return cert, nil
}

func (s *CertificateService) renderAndUpload(ctx context.Context, cert *model.Certificate) error {
	data := CertificateData{
		CertificateID:  cert.CertificateID,
		StudentName:    cert.StudentName,
		CourseTitle:    cert.CourseTitle,
		InstructorName: cert.InstructorName,
		CompletionDate: cert.CompletionDate,
	}
	if s.Config != nil {
		data.PlatformName = s.Config.IssuerName
	}
	if s.Settings != nil {
		// 平台设置读取失败时沿用配置中的签发方名称
		if settings, err := s.Settings.Get(ctx); err == nil {
			data.PlatformName = settings.PlatformName
			data.Signatory = settings.CertificateSignatory
		} else {
			logger.Log.Warn("platform settings unavailable for certificate", zap.Error(err))
		}
	}

	content, err := s.Renderer.Render(ctx, data)
	if err != nil {
		return err
	}

	prefix := "certificates"
	if s.Config != nil && s.Config.StoragePrefix != "" {
		prefix = s.Config.StoragePrefix
	}
	key := prefix + "/" + cert.CertificateID + s.Renderer.Extension()
	url, err := s.Store.Upload(ctx, key, bytes.NewReader(content), int64(len(content)), s.Renderer.ContentType())
	if err != nil {
		return err
	}
	cert.ObjectKey = key
	cert.CertificateURL = url
	return nil
}

func (s *CertificateService) discardArtifact(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		logger.Log.Warn("failed to delete orphaned certificate file", zap.String("key", key), zap.Error(err))
	}
}

// Verify 公开校验证书编号
func (s *CertificateService) Verify(ctx context.Context, certificateID string) (*CertificateVerification, error) {
	cert, err := s.Certificates.FindByCertificateID(ctx, strings.TrimSpace(certificateID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}

	v := &CertificateVerification{
		CertificateID:  cert.CertificateID,
		StudentName:    cert.StudentName,
		CourseTitle:    cert.CourseTitle,
		InstructorName: cert.InstructorName,
		CompletionDate: cert.CompletionDate,
		CertificateURL: cert.CertificateURL,
	}
	// 课程已删除时仍可校验，标题以签发时的快照为准
	if v.CourseTitle == "" {
		if course, err := s.Courses.FindByIDUnscoped(ctx, cert.CourseID); err == nil {
			v.CourseTitle = course.Title
		}
	}
	return v, nil
}

func (s *CertificateService) ListForStudent(ctx context.Context, studentID uint) ([]model.Certificate, error) {
	return s.Certificates.ListByStudent(ctx, studentID)
}

// GetForStudent 只能查看自己的证书，他人的按不存在处理
func (s *CertificateService) GetForStudent(ctx context.Context, studentID uint, certificateID string) (*model.Certificate, error) {
	cert, err := s.Certificates.FindByCertificateID(ctx, certificateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCertificateNotFound
	}
	if err != nil {
		return nil, err
	}
	if cert.StudentID != studentID {
		return nil, util.ErrCertificateNotFound
	}
	return cert, nil
}

// Reconcile 为已完成但缺少证书的进度补发证书，返回成功补发的数量
func (s *CertificateService) Reconcile(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	pending, err := s.Progress.ListCompletedWithoutCertificate(ctx, batch)
	if err != nil {
		return 0, err
	}

	issued := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return issued, ctx.Err()
		}
		_, err := s.Issue(ctx, p.StudentID, p.CourseID)
		switch {
		case err == nil:
			issued++
		case errors.Is(err, util.ErrCertificateNotOffered),
			errors.Is(err, util.ErrCourseNotCompleted),
			errors.Is(err, util.ErrCourseNotFound),
			errors.Is(err, util.ErrUserNotFound):
		default:
			logger.Log.Warn("certificate reconcile failed",
				zap.Uint("student_id", p.StudentID),
				zap.Uint("course_id", p.CourseID),
				zap.Error(err),
			)
		}
	}
	if issued > 0 {
		logger.Log.Info("certificate reconcile finished", zap.Int("issued", issued), zap.Int("scanned", len(pending)))
	}
	return issued, nil
}
