package service

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/testutil"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWT:   config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Admin: config.AdminConfig{Email: "Admin@Example.com", Password: "admin-pass"},
	}
	return NewAuthService(repository.NewUserRepository(db), cfg)
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Name: "Asha", Email: " Asha@Example.com ", Password: "password1", Role: model.Student})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.NotEqual(t, "password1", user.Password)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Dup", Email: "asha@example.com", Password: "password1", Role: model.Company})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Root", Email: "root@example.com", Password: "password1", Role: model.Admin})
	assert.True(t, util.IsKind(err, util.KindValidation))

	result, err := svc.Login(ctx, LoginRequest{Email: "ASHA@example.com", Password: "password1"})
	require.NoError(t, err)
	claims, err := util.ParseJWT(result.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)

	_, err = svc.Login(ctx, LoginRequest{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "password1"})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	user.Disabled = true
	require.NoError(t, svc.UserRepo.Update(ctx, user))
	_, err = svc.Login(ctx, LoginRequest{Email: "asha@example.com", Password: "password1"})
	assert.ErrorIs(t, err, util.ErrAccountDisabled)
}

func TestAuth_SeedAdminOnce(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx))
	require.NoError(t, svc.SeedAdmin(ctx))

	admin, err := svc.UserRepo.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.Admin, admin.Role)

	result, err := svc.Login(ctx, LoginRequest{Email: "admin@example.com", Password: "admin-pass"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, result.User.ID)
}

func TestSettings_DefaultsAndPatch(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewSettingsService(repository.NewSettingsRepository(db, model.PlatformSettings{
		PlatformName: "LMS Academy",
		SupportEmail: "support@example.com",
	}))
	ctx := context.Background()

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LMS Academy", settings.PlatformName)

	name := " Skill Hub "
	signatory := "Dr. Rao"
	updated, err := svc.Update(ctx, SettingsPatch{PlatformName: &name, CertificateSignatory: &signatory})
	require.NoError(t, err)
	assert.Equal(t, "Skill Hub", updated.PlatformName)
	assert.Equal(t, "support@example.com", updated.SupportEmail)

	settings, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Skill Hub", settings.PlatformName)
	assert.Equal(t, "Dr. Rao", settings.CertificateSignatory)

	blank := "  "
	_, err = svc.Update(ctx, SettingsPatch{PlatformName: &blank})
	assert.True(t, util.IsKind(err, util.KindValidation))

	var n int64
	require.NoError(t, db.Model(&model.PlatformSettings{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestFeedback_RequiresEnrollmentAndUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	company := testutil.CreateUser(t, db, "Acme Learning", "acme@example.com", model.Company)
	student := testutil.CreateUser(t, db, "Asha", "asha@example.com", model.Student)
	course := testutil.CreateCourse(t, db, company, "Go Basics", 0, 1)
	svc := NewFeedbackService(
		repository.NewFeedbackRepository(db),
		repository.NewCourseRepository(db),
		repository.NewEnrollmentRepository(db),
	)
	ctx := context.Background()

	_, err := svc.Submit(ctx, student.ID, course.ID, FeedbackInput{Rating: 4})
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	testutil.Enroll(t, db, student.ID, course.ID)
	_, err = svc.Submit(ctx, student.ID, course.ID, FeedbackInput{Rating: 6})
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = svc.Submit(ctx, student.ID, course.ID, FeedbackInput{Rating: 4, Comment: "good"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, student.ID, course.ID, FeedbackInput{Rating: 2, Comment: "changed my mind"})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Count)
	assert.InDelta(t, 2.0, summary.AverageRating, 0.001)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, "changed my mind", summary.Items[0].Comment)
}
