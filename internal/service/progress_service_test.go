package service

import (
	"context"
	"errors"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type progressFixture struct {
	db       *gorm.DB
	svc      *ProgressService
	certs    *CertificateService
	renderer *fakeRenderer
	store    *memoryStore
	company  *model.User
	student  *model.User
}

func newProgressFixture(t *testing.T) *progressFixture {
	db := testutil.NewDB(t)
	f := &progressFixture{
		db:       db,
		renderer: &fakeRenderer{},
		store:    newMemoryStore(),
		company:  testutil.CreateUser(t, db, "Acme Learning", "acme@example.com", model.Company),
		student:  testutil.CreateUser(t, db, "Asha", "asha@example.com", model.Student),
	}
	courses := repository.NewCourseRepository(db)
	progress := repository.NewProgressRepository(db)
	f.certs = NewCertificateService(
		repository.NewCertificateRepository(db),
		courses,
		repository.NewUserRepository(db),
		progress,
		NewSettingsService(repository.NewSettingsRepository(db, model.PlatformSettings{PlatformName: "LMS"})),
		f.renderer,
		f.store,
		nil,
		&config.CertificateConfig{IssuerName: "LMS", StoragePrefix: "certificates"},
	)
	f.svc = NewProgressService(db, courses, repository.NewEnrollmentRepository(db), progress, f.certs)
	return f
}

func (f *progressFixture) certificateCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&model.Certificate{}).Count(&n).Error)
	return n
}

func TestProgress_CompletionIssuesCertificateOnce(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 4)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)
	ctx := context.Background()

	var summary *ProgressSummary
	var err error
	for _, lesson := range []string{"l1", "l2", "l3"} {
		summary, err = f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, lesson, 600)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, summary.CompletedLessons)
	assert.Equal(t, 4, summary.TotalLessons)
	assert.InDelta(t, 75.0, summary.Percentage, 0.001)
	assert.False(t, summary.Completed)
	assert.Nil(t, summary.Certificate)
	assert.Equal(t, int64(0), f.certificateCount(t))

	summary, err = f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l4", 600)
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.InDelta(t, 100.0, summary.Percentage, 0.001)
	require.NotNil(t, summary.CompletedAt)
	require.NotNil(t, summary.Certificate)
	assert.Equal(t, "Asha", summary.Certificate.StudentName)
	assert.Equal(t, "Go Basics", summary.Certificate.CourseTitle)
	assert.Equal(t, "Acme Learning", summary.Certificate.InstructorName)

	// 重复完成最后一课不会再签发
	again, err := f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l4", 600)
	require.NoError(t, err)
	assert.Equal(t, summary.Certificate.CertificateID, again.Certificate.CertificateID)
	assert.Equal(t, summary.CompletedAt.Unix(), again.CompletedAt.Unix())
	assert.Equal(t, int64(1), f.certificateCount(t))
	assert.Equal(t, 1, f.renderer.calls)
}

func TestProgress_NoCertificateWhenNotOffered(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 1)
	require.NoError(t, f.db.Model(course).Update("offer_certificate", false).Error)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)

	summary, err := f.svc.MarkLessonComplete(context.Background(), f.student.ID, course.ID, "l1", 10)
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Nil(t, summary.Certificate)
	assert.Empty(t, summary.CertificateError)
	assert.Equal(t, int64(0), f.certificateCount(t))
}

func TestProgress_CertificateFailureKeepsProgress(t *testing.T) {
	f := newProgressFixture(t)
	f.renderer.err = errors.New("font missing")
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 1)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)
	ctx := context.Background()

	summary, err := f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l1", 600)
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Nil(t, summary.Certificate)
	assert.Equal(t, "certificate generation failed", summary.CertificateError)

	stored, err := f.svc.GetProgress(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.Equal(t, int64(0), f.certificateCount(t))
}

func TestProgress_AccessChecks(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 2)
	ctx := context.Background()

	_, err := f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l1", 0)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
	assert.Equal(t, 403, util.ErrNotEnrolled.Status())

	_, err = f.svc.GetProgress(ctx, f.student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	testutil.Enroll(t, f.db, f.student.ID, course.ID)

	_, err = f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "missing", 0)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
	assert.Equal(t, 404, util.ErrLessonNotFound.Status())

	_, err = f.svc.RecordTimestamp(ctx, f.student.ID, 999, "l1", 0)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestProgress_TimestampIsClampedAndDoesNotComplete(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 2)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)
	ctx := context.Background()

	summary, err := f.svc.Update(ctx, f.student.ID, ProgressUpdate{CourseID: course.ID, LessonID: "l1", Timestamp: 9000})
	require.NoError(t, err)
	require.Len(t, summary.Lessons, 1)
	assert.Equal(t, 600.0, summary.Lessons[0].LastTimestamp)
	assert.False(t, summary.Lessons[0].Completed)
	assert.Equal(t, 0, summary.CompletedLessons)

	summary, err = f.svc.RecordTimestamp(ctx, f.student.ID, course.ID, "l1", -5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.Lessons[0].LastTimestamp)

	summary, err = f.svc.Update(ctx, f.student.ID, ProgressUpdate{CourseID: course.ID, LessonID: "l2", IsCompleted: true, Timestamp: 120})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CompletedLessons)
	assert.InDelta(t, 50.0, summary.Percentage, 0.001)

	// 已完成的课时再次上报时间点不会回退完成状态
	summary, err = f.svc.RecordTimestamp(ctx, f.student.ID, course.ID, "l2", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CompletedLessons)
}

func TestProgress_GetWithoutRecords(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 3)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)

	summary, err := f.svc.GetProgress(context.Background(), f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Lessons)
	assert.NotNil(t, summary.Lessons)
	assert.Equal(t, 3, summary.TotalLessons)
	assert.Equal(t, 0.0, summary.Percentage)
	assert.False(t, summary.Completed)
}

func TestProgress_ConcurrentFinalLessonIssuesOneCertificate(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 2)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)
	ctx := context.Background()

	_, err := f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l1", 600)
	require.NoError(t, err)

	const workers = 6
	var wg sync.WaitGroup
	summaries := make([]*ProgressSummary, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summaries[i], errs[i] = f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l2", 600)
		}(i)
	}
	wg.Wait()

	var certID string
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, summaries[i].Certificate)
		if certID == "" {
			certID = summaries[i].Certificate.CertificateID
		}
		assert.Equal(t, certID, summaries[i].Certificate.CertificateID)
	}
	assert.Equal(t, int64(1), f.certificateCount(t))
	assert.Equal(t, 1, f.store.count())
}

func TestProgress_CurriculumChangeRecomputesCompletion(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 2)
	require.NoError(t, f.db.Model(course).Update("offer_certificate", false).Error)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)
	ctx := context.Background()

	_, err := f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l1", 600)
	require.NoError(t, err)

	// 新增课时后，已完成课时数不变但比例下降
	course.Curriculum = testutil.Curriculum(4)
	require.NoError(t, repository.NewCourseRepository(f.db).Save(ctx, course))

	summary, err := f.svc.GetProgress(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CompletedLessons)
	assert.Equal(t, 4, summary.TotalLessons)
	assert.InDelta(t, 25.0, summary.Percentage, 0.001)
}

func TestProgress_RepeatedLessonIDCountsOnce(t *testing.T) {
	f := newProgressFixture(t)
	course := testutil.CreateCourse(t, f.db, f.company, "Go Basics", 0, 2)
	require.NoError(t, f.db.Model(course).Update("offer_certificate", false).Error)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)
	ctx := context.Background()

	// 直接写库的旧数据里同一课时出现两次
	course.Curriculum[0].Lessons = append(course.Curriculum[0].Lessons, course.Curriculum[0].Lessons[0])
	require.NoError(t, repository.NewCourseRepository(f.db).Save(ctx, course))

	summary, err := f.svc.MarkLessonComplete(ctx, f.student.ID, course.ID, "l1", 600)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CompletedLessons)
	assert.Equal(t, 2, summary.TotalLessons)
	assert.InDelta(t, 50.0, summary.Percentage, 0.001)
	assert.False(t, summary.Completed)
}
