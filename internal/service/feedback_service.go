package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

type FeedbackInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

type FeedbackService struct {
	Feedback    *repository.FeedbackRepository
	Courses     *repository.CourseRepository
	Enrollments *repository.EnrollmentRepository
}

func NewFeedbackService(feedback *repository.FeedbackRepository, courses *repository.CourseRepository, enrollments *repository.EnrollmentRepository) *FeedbackService {
	return &FeedbackService{Feedback: feedback, Courses: courses, Enrollments: enrollments}
}

// Submit 已选课学生评价课程，重复提交覆盖原评价
func (s *FeedbackService) Submit(ctx context.Context, studentID, courseID uint, in FeedbackInput) (*model.Feedback, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, util.NewValidationError("rating must be between 1 and 5")
	}
	if _, err := s.Courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	enrolled, err := s.Enrollments.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	f := &model.Feedback{
		StudentID: studentID,
		CourseID:  courseID,
		Rating:    in.Rating,
		Comment:   in.Comment,
	}
	if err := s.Feedback.Upsert(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FeedbackService) Summary(ctx context.Context, courseID uint) (*model.FeedbackSummary, error) {
	avg, count, err := s.Feedback.AverageRating(ctx, courseID)
	if err != nil {
		return nil, err
	}
	items, err := s.Feedback.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &model.FeedbackSummary{
		CourseID:      courseID,
		Count:         count,
		AverageRating: avg,
		Items:         items,
	}, nil
}
