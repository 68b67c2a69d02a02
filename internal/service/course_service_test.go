package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type courseFixture struct {
	db      *gorm.DB
	svc     *CourseService
	store   *memoryStore
	owner   Actor
	student *model.User
}

func newCourseFixture(t *testing.T) *courseFixture {
	db := testutil.NewDB(t)
	company := testutil.CreateUser(t, db, "Acme Learning", "acme@example.com", model.Company)
	student := testutil.CreateUser(t, db, "Asha", "asha@example.com", model.Student)
	store := newMemoryStore()
	svc := NewCourseService(
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewUserRepository(db),
		repository.NewFeedbackRepository(db),
		store,
		NewCascadeService(db),
		t.TempDir(),
	)
	svc.InspectVideo = func(path string) (*util.VideoInfo, error) {
		return &util.VideoInfo{Duration: 321.5}, nil
	}
	svc.ExtractFrame = func(videoPath, imagePath string, offsetSeconds float64) error {
		return os.WriteFile(imagePath, []byte("jpeg"), 0644)
	}
	return &courseFixture{
		db:      db,
		svc:     svc,
		store:   store,
		owner:   Actor{ID: company.ID, Role: model.Company},
		student: student,
	}
}

func curriculumInput() []model.Section {
	return []model.Section{{
		Title: "Intro",
		Lessons: []model.Lesson{
			{Title: "Welcome", VideoURL: "https://cdn.example.com/welcome.mp4"},
			{Title: "Setup", VideoURL: "https://cdn.example.com/setup.mp4"},
		},
	}}
}

func TestCourse_CreateAssignsIDsAndDefaults(t *testing.T) {
	f := newCourseFixture(t)

	course, err := f.svc.Create(context.Background(), f.owner, CourseInput{
		Title:      "  Go Basics ",
		Price:      0,
		Curriculum: curriculumInput(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", course.Title)
	assert.Equal(t, model.CourseDraft, course.Status)
	assert.True(t, course.OfferCertificate)
	require.Len(t, course.Curriculum, 1)
	assert.NotEmpty(t, course.Curriculum[0].ID)
	for _, l := range course.Lessons() {
		assert.NotEmpty(t, l.ID)
	}

	off := false
	course, err = f.svc.Create(context.Background(), f.owner, CourseInput{Title: "No cert", OfferCertificate: &off})
	require.NoError(t, err)
	stored, err := repository.NewCourseRepository(f.db).FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	assert.False(t, stored.OfferCertificate)
}

func TestCourse_PublishRules(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "Empty"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(empty).Update("thumbnail", "https://cdn.example.com/t.jpg").Error)
	_, err = f.svc.Publish(ctx, f.owner, empty.ID)
	assert.ErrorIs(t, err, util.ErrCourseHasNoLessons)

	noThumb, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "No thumb", Curriculum: curriculumInput()})
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, f.owner, noThumb.ID)
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.KindValidation))
	assert.Contains(t, err.Error(), "thumbnail")

	require.NoError(t, f.db.Model(noThumb).Update("thumbnail", "https://cdn.example.com/t.jpg").Error)
	published, err := f.svc.Publish(ctx, f.owner, noThumb.ID)
	require.NoError(t, err)
	assert.True(t, published.IsPublished())

	_, err = f.svc.Publish(ctx, f.owner, noThumb.ID)
	assert.ErrorIs(t, err, util.ErrCourseAlreadyPublic)

	// 已发布课程不能改成空大纲
	_, err = f.svc.Update(ctx, f.owner, noThumb.ID, CourseInput{Title: "No thumb", Curriculum: []model.Section{}})
	assert.ErrorIs(t, err, util.ErrCourseHasNoLessons)

	_, err = f.svc.Unpublish(ctx, f.owner, noThumb.ID)
	require.NoError(t, err)
	_, err = f.svc.Unpublish(ctx, f.owner, noThumb.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotPublished)
}

func TestCourse_UpdateKeepsLessonIdentity(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()

	course, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "Go Basics", Curriculum: curriculumInput()})
	require.NoError(t, err)
	first := course.Curriculum[0].Lessons[0]

	sections := course.Curriculum
	sections[0].Lessons = append(sections[0].Lessons, model.Lesson{Title: "Extra", VideoURL: "https://cdn.example.com/x.mp4"})
	updated, err := f.svc.Update(ctx, f.owner, course.ID, CourseInput{Title: "Go Basics 2", Curriculum: sections})
	require.NoError(t, err)
	assert.Equal(t, "Go Basics 2", updated.Title)
	assert.Equal(t, 3, updated.TotalLessons())
	assert.Equal(t, first.ID, updated.Curriculum[0].Lessons[0].ID)
	assert.NotEmpty(t, updated.Curriculum[0].Lessons[2].ID)

	stranger := Actor{ID: f.student.ID, Role: model.Student}
	_, err = f.svc.Update(ctx, stranger, course.ID, CourseInput{Title: "hijack"})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestCourse_DuplicateLessonIDsAreRegenerated(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()

	course, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "Go Basics", Curriculum: curriculumInput()})
	require.NoError(t, err)
	first := course.Curriculum[0].Lessons[0]

	sections := course.Curriculum
	sections[0].Lessons[1].ID = first.ID
	sections = append(sections, model.Section{
		ID:    sections[0].ID,
		Title: "Copy",
		Lessons: []model.Lesson{
			{ID: first.ID, Title: "Welcome again", VideoURL: first.VideoURL},
			{ID: "made-up", Title: "Forged", VideoURL: "https://cdn.example.com/f.mp4"},
		},
	})
	updated, err := f.svc.Update(ctx, f.owner, course.ID, CourseInput{Title: "Go Basics", Curriculum: sections})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, l := range updated.Lessons() {
		assert.False(t, ids[l.ID], "duplicate lesson id %s", l.ID)
		ids[l.ID] = true
	}
	assert.Equal(t, 4, updated.TotalLessons())
	assert.Equal(t, first.ID, updated.Curriculum[0].Lessons[0].ID)
	assert.False(t, ids["made-up"])
	assert.NotEqual(t, updated.Curriculum[0].ID, updated.Curriculum[1].ID)
}

func TestCourse_DraftVisibility(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()

	course, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "Draft"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, nil, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
	_, err = f.svc.Get(ctx, &Actor{ID: f.student.ID, Role: model.Student}, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	got, err := f.svc.Get(ctx, &f.owner, course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, got.ID)

	_, err = f.svc.Get(ctx, &Actor{ID: 999, Role: model.Admin}, course.ID)
	assert.NoError(t, err)

	list, total, err := f.svc.ListPublished(ctx, repository.CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int64(0), total)
}

func TestCourse_UploadLessonVideoReadsDurationAndFramesThumbnail(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()

	course, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "Go Basics", Curriculum: curriculumInput()})
	require.NoError(t, err)
	lessonID := course.Curriculum[0].Lessons[0].ID

	// ftyp 头使内容被识别为视频
	video := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypmp42\x00\x00\x00\x00mp42isom")...)
	lesson, err := f.svc.UploadLessonVideo(ctx, f.owner, course.ID, lessonID, newFileHeader(t, "intro.mp4", video))
	require.NoError(t, err)
	assert.Equal(t, 321.5, lesson.DurationSeconds)
	assert.Contains(t, lesson.VideoURL, "https://files.example.com/videos/")

	stored, err := repository.NewCourseRepository(f.db).FindByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Thumbnail, "https://files.example.com/thumbnails/")
	found, ok := stored.FindLesson(lessonID)
	require.True(t, ok)
	assert.Equal(t, 321.5, found.DurationSeconds)
	assert.Equal(t, 2, f.store.count())

	_, err = f.svc.UploadLessonVideo(ctx, f.owner, course.ID, "missing", newFileHeader(t, "intro.mp4", video))
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestCourse_UploadFailureReported(t *testing.T) {
	f := newCourseFixture(t)
	f.store.uploadErr = errors.New("bucket gone")
	ctx := context.Background()

	course, err := f.svc.Create(ctx, f.owner, CourseInput{Title: "Go Basics"})
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = f.svc.UploadThumbnail(ctx, f.owner, course.ID, newFileHeader(t, "cover.png", png))
	assert.ErrorIs(t, err, util.ErrUploadFailed)
}

func TestCourse_StudentsDerivedFromEnrollments(t *testing.T) {
	f := newCourseFixture(t)
	ctx := context.Background()
	company, err := repository.NewUserRepository(f.db).FindByID(ctx, f.owner.ID)
	require.NoError(t, err)
	course := testutil.CreateCourse(t, f.db, company, "Go Basics", 0, 1)
	testutil.Enroll(t, f.db, f.student.ID, course.ID)

	students, err := f.svc.Students(ctx, f.owner, course.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, f.student.ID, students[0].ID)

	require.NoError(t, f.svc.Delete(ctx, f.owner, course.ID))
	_, err = f.svc.Get(ctx, nil, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}
