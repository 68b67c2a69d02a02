package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"mime/multipart"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor 发起操作的用户
type Actor struct {
	ID   uint
	Role model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

type CourseInput struct {
	Title            string          `json:"title" binding:"required,max=200"`
	Description      string          `json:"description"`
	Price            int64           `json:"price" binding:"gte=0"`
	OfferCertificate *bool           `json:"offerCertificate"`
	Curriculum       []model.Section `json:"curriculum"`
}

// publishRules 发布前必须满足的结构约束
type publishRules struct {
	Thumbnail  string          `json:"thumbnail" validate:"required"`
	Curriculum []model.Section `json:"curriculum" validate:"min=1,dive"`
}

type CourseService struct {
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Users       *repository.UserRepository
	Feedback    *repository.FeedbackRepository
	Storage     FileStore
	Cascade     *CascadeService
	TempDir     string

	// 视频处理，测试中可替换
	InspectVideo func(path string) (*util.VideoInfo, error)
	ExtractFrame func(videoPath, imagePath string, offsetSeconds float64) error

	validate *validator.Validate
}

func NewCourseService(
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	users *repository.UserRepository,
	feedback *repository.FeedbackRepository,
	storage FileStore,
	cascade *CascadeService,
	tempDir string,
) *CourseService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &CourseService{
		Courses:      courses,
		Enrollments:  enrollments,
		Users:        users,
		Feedback:     feedback,
		Storage:      storage,
		Cascade:      cascade,
		TempDir:      tempDir,
		InspectVideo: util.InspectVideo,
		ExtractFrame: util.ExtractFrame,
		validate:     v,
	}
}

func (s *CourseService) Create(ctx context.Context, actor Actor, in CourseInput) (*model.Course, error) {
	course := &model.Course{
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Price:            in.Price,
		Status:           model.CourseDraft,
		OfferCertificate: true,
		CompanyID:        actor.ID,
		Curriculum:       assignLessonIDs(nil, in.Curriculum),
	}
	if in.OfferCertificate != nil {
		course.OfferCertificate = *in.OfferCertificate
	}
	if course.Price < 0 {
		return nil, util.NewValidationError("price must not be negative")
	}

	if err := s.Courses.Create(ctx, course); err != nil {
		return nil, err
	}
	logger.Log.Info("course created", zap.Uint("course_id", course.ID), zap.Uint("company_id", actor.ID))
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, actor Actor, courseID uint, in CourseInput) (*model.Course, error) {
	course, err := s.manageable(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if in.Price < 0 {
		return nil, util.NewValidationError("price must not be negative")
	}

	course.Title = strings.TrimSpace(in.Title)
	course.Description = in.Description
	course.Price = in.Price
	if in.OfferCertificate != nil {
		course.OfferCertificate = *in.OfferCertificate
	}
	if in.Curriculum != nil {
		course.Curriculum = assignLessonIDs(course.Curriculum, in.Curriculum)
	}

	// 已发布课程修改后仍须满足发布条件
	if course.IsPublished() {
		if err := s.checkPublishable(course); err != nil {
			return nil, err
		}
	}

	if err := s.Courses.Save(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// assignLessonIDs 为新章节、新课时分配 ID；已有课时沿用之前取得的时长。
// 客户端只能引用库内已存在的 ID，且同一 ID 只能出现一次，其余一律重新生成
func assignLessonIDs(existing, incoming []model.Section) []model.Section {
	known := make(map[string]model.Lesson)
	knownSections := make(map[string]bool, len(existing))
	for _, sec := range existing {
		knownSections[sec.ID] = true
		for _, l := range sec.Lessons {
			known[l.ID] = l
		}
	}

	seenSections := make(map[string]bool, len(incoming))
	seenLessons := make(map[string]bool)
	out := make([]model.Section, 0, len(incoming))
	for _, sec := range incoming {
		if !knownSections[sec.ID] || seenSections[sec.ID] {
			sec.ID = uuid.NewString()
		}
		seenSections[sec.ID] = true

		lessons := make([]model.Lesson, 0, len(sec.Lessons))
		for _, l := range sec.Lessons {
			prev, ok := known[l.ID]
			if !ok || seenLessons[l.ID] {
				l.ID = uuid.NewString()
			} else if prev.VideoURL == l.VideoURL && l.DurationSeconds == 0 {
				l.DurationSeconds = prev.DurationSeconds
			}
			seenLessons[l.ID] = true
			lessons = append(lessons, l)
		}
		sec.Lessons = lessons
		out = append(out, sec)
	}
	return out
}

func (s *CourseService) UploadThumbnail(ctx context.Context, actor Actor, courseID uint, fh *multipart.FileHeader) (*model.Course, error) {
	course, err := s.manageable(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if fh.Size > util.MaxThumbnailSize {
		return nil, util.NewValidationError("thumbnail too large")
	}
	if !util.HasAllowedExtension(fh.Filename, util.AllowedImageExtensions) {
		return nil, util.NewValidationError("unsupported image format")
	}
	mime, err := util.SniffUpload(fh, util.AllowedThumbnailMimeTypes)
	if err != nil {
		return nil, util.NewValidationError(err.Error())
	}

	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	url, err := s.Storage.Upload(ctx, util.ObjectName("thumbnails", fh.Filename), src, fh.Size, mime)
	if err != nil {
		return nil, util.ErrUploadFailed.WithCause(err)
	}

	course.Thumbnail = url
	if err := s.Courses.Save(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// UploadLessonVideo 暂存到本地探测时长后上传；课程无封面时截取一帧作为封面
func (s *CourseService) UploadLessonVideo(ctx context.Context, actor Actor, courseID uint, lessonID string, fh *multipart.FileHeader) (*model.Lesson, error) {
	course, err := s.manageable(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	lesson, ok := course.FindLesson(lessonID)
	if !ok {
		return nil, util.ErrLessonNotFound
	}
	if fh.Size > util.MaxVideoSize {
		return nil, util.NewValidationError("video too large")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !util.HasAllowedExtension(fh.Filename, util.AllowedVideoExtensions) {
		return nil, util.NewValidationError("unsupported video format")
	}
	mime, err := util.SniffUpload(fh, []string{util.MimeVideo, util.MimeOctetStream})
	if err != nil {
		return nil, util.NewValidationError(err.Error())
	}

	videoPath, err := s.spool(fh, ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(videoPath)

	if info, err := s.InspectVideo(videoPath); err != nil {
		logger.Log.Warn("read video metadata failed", zap.String("lesson_id", lessonID), zap.Error(err))
	} else {
		lesson.DurationSeconds = info.Duration
	}

	url, err := s.Storage.UploadFile(ctx, util.ObjectName("videos", fh.Filename), videoPath, mime)
	if err != nil {
		return nil, util.ErrUploadFailed.WithCause(err)
	}
	lesson.VideoURL = url

	if course.Thumbnail == "" {
		s.thumbnailFromVideo(ctx, course, videoPath, lesson.DurationSeconds)
	}

	if err := s.Courses.Save(ctx, course); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *CourseService) spool(fh *multipart.FileHeader, ext string) (string, error) {
	if err := os.MkdirAll(s.TempDir, 0755); err != nil {
		return "", err
	}
	dst, err := os.CreateTemp(s.TempDir, "video_*"+ext)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	src, err := fh.Open()
	if err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func (s *CourseService) thumbnailFromVideo(ctx context.Context, course *model.Course, videoPath string, duration float64) {
	framePath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".jpg"
	defer os.Remove(framePath)

	if err := s.ExtractFrame(videoPath, framePath, util.ThumbnailOffset(duration)); err != nil {
		logger.Log.Warn("extract thumbnail frame failed", zap.Uint("course_id", course.ID), zap.Error(err))
		return
	}
	url, err := s.Storage.UploadFile(ctx, util.ObjectName("thumbnails", "frame.jpg"), framePath, "image/jpeg")
	if err != nil {
		logger.Log.Warn("upload thumbnail frame failed", zap.Uint("course_id", course.ID), zap.Error(err))
		return
	}
	course.Thumbnail = url
}

func (s *CourseService) Publish(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.manageable(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsPublished() {
		return nil, util.ErrCourseAlreadyPublic
	}
	if err := s.checkPublishable(course); err != nil {
		return nil, err
	}

	course.Status = model.CoursePublished
	if err := s.Courses.Save(ctx, course); err != nil {
		return nil, err
	}
	logger.Log.Info("course published", zap.Uint("course_id", course.ID))
	return course, nil
}

func (s *CourseService) Unpublish(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.manageable(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished() {
		return nil, util.ErrCourseNotPublished
	}
	course.Status = model.CourseDraft
	if err := s.Courses.Save(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) checkPublishable(course *model.Course) error {
	rules := publishRules{
		Thumbnail:  course.Thumbnail,
		Curriculum: course.Curriculum,
	}
	err := s.validate.Struct(rules)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "publishRules.")
		if field == "curriculum" && fe.Tag() == "min" {
			return util.ErrCourseHasNoLessons
		}
		return util.NewValidationError(fmt.Sprintf("cannot publish: %s failed %s", field, fe.Tag()))
	}
	return util.NewValidationError("cannot publish: " + err.Error())
}

// Delete 课程所有者或管理员删除课程，关联数据级联清理
func (s *CourseService) Delete(ctx context.Context, actor Actor, courseID uint) error {
	if _, err := s.manageable(ctx, actor, courseID); err != nil {
		return err
	}
	return s.Cascade.DeleteCourse(ctx, courseID)
}

// Get 已发布课程公开可见；草稿只对所有者和管理员可见
func (s *CourseService) Get(ctx context.Context, viewer *Actor, courseID uint) (*model.Course, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if course.IsPublished() {
		return course, nil
	}
	if viewer != nil && (viewer.IsAdmin() || viewer.ID == course.CompanyID) {
		return course, nil
	}
	return nil, util.ErrCourseNotFound
}

func (s *CourseService) ListPublished(ctx context.Context, f repository.CourseFilter) ([]model.Course, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.Courses.ListPublished(ctx, f)
}

func (s *CourseService) ListMine(ctx context.Context, actor Actor) ([]model.Course, error) {
	return s.Courses.ListByCompany(ctx, actor.ID)
}

// Students 课程的学生名单，由选课关系推导
func (s *CourseService) Students(ctx context.Context, actor Actor, courseID uint) ([]model.User, error) {
	if _, err := s.manageable(ctx, actor, courseID); err != nil {
		return nil, err
	}
	ids, err := s.Enrollments.StudentIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.Users.FindByIDs(ctx, ids)
}

func (s *CourseService) manageable(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && course.CompanyID != actor.ID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}
