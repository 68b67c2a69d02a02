package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"mime/multipart"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AssignmentInput struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description"`
	MaxGrade    int        `json:"maxGrade" binding:"omitempty,min=1,max=1000"`
	DueAt       *time.Time `json:"dueAt"`
}

type GradeInput struct {
	Grade    int    `json:"grade" binding:"gte=0"`
	Feedback string `json:"feedback"`
}

type AssignmentService struct {
	Assignments *repository.AssignmentRepository
	Submissions *repository.SubmissionRepository
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
	Storage     FileStore
}

func NewAssignmentService(
	assignments *repository.AssignmentRepository,
	submissions *repository.SubmissionRepository,
	courses *repository.CourseRepository,
	enrollments *repository.EnrollmentRepository,
	storage FileStore,
) *AssignmentService {
	return &AssignmentService{
		Assignments: assignments,
		Submissions: submissions,
		Courses:     courses,
		Enrollments: enrollments,
		Storage:     storage,
	}
}

func (s *AssignmentService) Create(ctx context.Context, actor Actor, courseID uint, in AssignmentInput) (*model.Assignment, error) {
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	a := &model.Assignment{
		CourseID:    courseID,
		CreatorID:   actor.ID,
		Title:       in.Title,
		Description: in.Description,
		MaxGrade:    in.MaxGrade,
		DueAt:       in.DueAt,
	}
	if a.MaxGrade == 0 {
		a.MaxGrade = 100
	}
	if err := s.Assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListForCourse 课程所有者或已选课学生可查看作业列表
func (s *AssignmentService) ListForCourse(ctx context.Context, actor Actor, courseID uint) ([]model.Assignment, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && course.CompanyID != actor.ID {
		enrolled, err := s.Enrollments.Exists(ctx, actor.ID, courseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.ErrNotEnrolled
		}
	}
	return s.Assignments.ListByCourse(ctx, courseID)
}

func (s *AssignmentService) Delete(ctx context.Context, actor Actor, assignmentID uint) error {
	a, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if _, err := s.ownedCourse(ctx, actor, a.CourseID); err != nil {
		return err
	}
	return s.Assignments.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewSubmissionRepository(tx).DeleteByAssignments(ctx, []uint{a.ID}); err != nil {
			return err
		}
		return repository.NewAssignmentRepository(tx).Delete(ctx, a.ID)
	})
}

// Submit 已选课学生提交作业；评分前可重复提交覆盖
func (s *AssignmentService) Submit(ctx context.Context, studentID, assignmentID uint, fh *multipart.FileHeader) (*model.Submission, error) {
	a, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.Enrollments.Exists(ctx, studentID, a.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	existing, err := s.Submissions.Find(ctx, assignmentID, studentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil && existing.Status == model.SubmissionGraded {
		return nil, util.ErrAlreadyGraded
	}

	if fh.Size > util.MaxSubmissionSize {
		return nil, util.NewValidationError("submission file too large")
	}
	mime, err := util.SniffUpload(fh, util.AllowedSubmissionMimeTypes)
	if err != nil {
		return nil, util.NewValidationError(err.Error())
	}
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	url, err := s.Storage.Upload(ctx, util.ObjectName("submissions", fh.Filename), src, fh.Size, mime)
	if err != nil {
		return nil, util.ErrUploadFailed.WithCause(err)
	}

	now := time.Now()
	if existing != nil && existing.ID != 0 {
		existing.FileURL = url
		existing.SubmittedAt = now
		if err := s.Submissions.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	sub := &model.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FileURL:      url,
		Status:       model.SubmissionSubmitted,
		SubmittedAt:  now,
	}
	if err := s.Submissions.Create(ctx, sub); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.NewConflictError("submission already in progress")
		}
		return nil, err
	}
	logger.Log.Info("assignment submitted",
		zap.Uint("assignment_id", assignmentID),
		zap.Uint("student_id", studentID),
	)
	return sub, nil
}

func (s *AssignmentService) Grade(ctx context.Context, actor Actor, submissionID uint, in GradeInput) (*model.Submission, error) {
	sub, err := s.Submissions.FindByID(ctx, submissionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	a, err := s.assignment(ctx, sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedCourse(ctx, actor, a.CourseID); err != nil {
		return nil, err
	}
	if in.Grade < 0 || in.Grade > a.MaxGrade {
		return nil, util.ErrInvalidGrade
	}

	now := time.Now()
	grade := in.Grade
	sub.Grade = &grade
	sub.Feedback = in.Feedback
	sub.Status = model.SubmissionGraded
	sub.GradedAt = &now
	if err := s.Submissions.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *AssignmentService) ListSubmissions(ctx context.Context, actor Actor, assignmentID uint) ([]model.Submission, error) {
	a, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedCourse(ctx, actor, a.CourseID); err != nil {
		return nil, err
	}
	return s.Submissions.ListByAssignment(ctx, assignmentID)
}

func (s *AssignmentService) MySubmissions(ctx context.Context, studentID uint) ([]model.Submission, error) {
	return s.Submissions.ListByStudent(ctx, studentID)
}

func (s *AssignmentService) assignment(ctx context.Context, id uint) (*model.Assignment, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAssignmentNotFound
	}
	return a, err
}

func (s *AssignmentService) course(ctx context.Context, courseID uint) (*model.Course, error) {
	course, err := s.Courses.FindByID(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return course, err
}

func (s *AssignmentService) ownedCourse(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && course.CompanyID != actor.ID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}
