package service

import (
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSessionService(db *gorm.DB) (*LiveSessionService, *recordingMailer) {
	notification, mailer := newSyncNotificationService(db)
	return NewLiveSessionService(
		repository.NewLiveSessionRepository(db),
		repository.NewCourseRepository(db),
		repository.NewStudentCourseRepository(db),
		notification,
	), mailer
}

func TestSessionCreate_NotifiesRoster(t *testing.T) {
	db := newTestDB(t)
	svc, mailer := newSessionService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	require.NoError(t, db.Create(&model.CourseStudent{
		CourseID:  course.ID,
		UserID:    student.ID,
		UserName:  student.Name,
		UserEmail: student.Email,
	}).Error)

	session := &model.LiveSession{
		CourseID: course.ID,
		Title:    "答疑直播",
		StartAt:  time.Now().Add(time.Hour),
		EndAt:    time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, svc.Create(instructor.ID, session))

	assert.Equal(t, model.SessionScheduled, session.Status)
	assert.Contains(t, mailer.sent, "直播课预告")
}

func TestSessionCreate_OnlyCourseOwner(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newSessionService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	outsider := createUser(t, db, "mallory", model.Instructor)
	course := createCourse(t, db, instructor, 1)

	err := svc.Create(outsider.ID, &model.LiveSession{CourseID: course.ID, Title: "x"})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestListForCourse_RequiresPurchase(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newSessionService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)

	_, err := svc.ListForCourse(student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrNotPurchased)

	grantEntitlement(t, db, student, course)
	_, err = svc.ListForCourse(student.ID, course.ID)
	assert.NoError(t, err)
}

func TestListUpcoming_OnlyScheduledFutureSessions(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newSessionService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	grantEntitlement(t, db, student, course)

	upcoming := &model.LiveSession{CourseID: course.ID, Title: "未来场", StartAt: time.Now().Add(time.Hour), EndAt: time.Now().Add(2 * time.Hour)}
	require.NoError(t, svc.Create(instructor.ID, upcoming))
	cancelled := &model.LiveSession{CourseID: course.ID, Title: "取消场", StartAt: time.Now().Add(3 * time.Hour), EndAt: time.Now().Add(4 * time.Hour)}
	require.NoError(t, svc.Create(instructor.ID, cancelled))
	require.NoError(t, svc.Cancel(instructor.ID, cancelled.ID))

	sessions, err := svc.ListUpcoming(student.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "未来场", sessions[0].Title)
}
