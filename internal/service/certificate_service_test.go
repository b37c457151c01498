package service

import (
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCertificateService(db *gorm.DB) *CertificateService {
	return NewCertificateService(
		repository.NewProgressRepository(db),
		repository.NewCourseRepository(db),
		repository.NewUserRepository(db),
		repository.NewCertificateApprovalRepository(db),
		&config.CertificateConfig{
			IssuerOrg:           "LMS Academy",
			DefaultGrade:        "A",
			DashboardURL:        "http://localhost/student",
			FetchTimeoutSeconds: 1,
		},
	)
}

func TestUpdateConfig_RebuildsFetchTimeout(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)
	require.Equal(t, time.Second, svc.httpClient.Timeout)

	svc.UpdateConfig(&config.CertificateConfig{FetchTimeoutSeconds: 9})

	assert.Equal(t, 9*time.Second, svc.httpClient.Timeout)
	assert.Equal(t, 9, svc.Config.FetchTimeoutSeconds)
}

func enableCertificate(t *testing.T, db *gorm.DB, course *model.Course) {
	t.Helper()
	require.NoError(t, db.Model(&model.Course{}).
		Where("id = ?", course.ID).
		Update("certificate_enabled", true).Error)
}

func completeCourse(t *testing.T, db *gorm.DB, student *model.User, course *model.Course) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&model.CourseProgress{
		UserID:         student.ID,
		CourseID:       course.ID,
		Completed:      true,
		CompletionDate: &now,
	}).Error)
}

func TestCheckEligibility_DisabledCourse(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	completeCourse(t, db, student, course)

	eligibility, _, err := svc.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "certificate_disabled", eligibility.Reason)
}

func TestCheckEligibility_NotCompleted(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	enableCertificate(t, db, course)

	// 无进度记录
	eligibility, _, err := svc.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "not_completed", eligibility.Reason)

	// 有进度但未完课
	require.NoError(t, db.Create(&model.CourseProgress{UserID: student.ID, CourseID: course.ID}).Error)
	eligibility, _, err = svc.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "not_completed", eligibility.Reason)
}

func TestCheckEligibility_ApprovalFlow(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	enableCertificate(t, db, course)
	require.NoError(t, db.Model(&model.Course{}).
		Where("id = ?", course.ID).
		Update("require_approval", true).Error)
	completeCourse(t, db, student, course)

	eligibility, _, err := svc.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, "approval_required", eligibility.Reason)

	require.NoError(t, svc.GrantApproval(course.ID, student.ID, instructor.ID, "表现优秀"))
	eligibility, _, err = svc.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	// 撤销后资格回收
	require.NoError(t, svc.RevokeApproval(course.ID, student.ID, instructor.ID))
	eligibility, _, err = svc.CheckEligibility(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
}

func TestGrantApproval_OnlyCourseOwner(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	outsider := createUser(t, db, "mallory", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	err := svc.GrantApproval(course.ID, student.ID, outsider.ID, "")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestRender_NotEligibleProducesNoOutput(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	enableCertificate(t, db, course)

	pdfBytes, certID, err := svc.Render(student.ID, course.ID)
	require.ErrorIs(t, err, util.ErrNotEligible)
	assert.Nil(t, pdfBytes)
	assert.Empty(t, certID)
}

func TestRender_ProducesPDF(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	enableCertificate(t, db, course)
	completeCourse(t, db, student, course)

	pdfBytes, certID, err := svc.Render(student.ID, course.ID)
	require.NoError(t, err)

	assert.Len(t, certID, 16)
	require.True(t, len(pdfBytes) > 4)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestRender_FreshCertificateIDPerRender(t *testing.T) {
	db := newTestDB(t)
	svc := newCertificateService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	enableCertificate(t, db, course)
	completeCourse(t, db, student, course)

	_, first, err := svc.Render(student.ID, course.ID)
	require.NoError(t, err)
	_, second, err := svc.Render(student.ID, course.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
