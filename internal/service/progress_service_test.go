package service

import (
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newProgressService(db *gorm.DB) (*ProgressService, *recordingMailer) {
	notification, mailer := newSyncNotificationService(db)
	return NewProgressService(
		repository.NewProgressRepository(db),
		repository.NewCourseRepository(db),
		repository.NewStudentCourseRepository(db),
		notification,
	), mailer
}

func TestMarkLectureViewed_CreatesProgressLazily(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 3)

	progress, err := svc.MarkLectureViewed(student.ID, course.ID, course.Lectures[0].ID)
	require.NoError(t, err)

	assert.False(t, progress.Completed)
	assert.Len(t, progress.LecturesProgress, 1)
	assert.True(t, progress.LecturesProgress[0].Viewed)
	assert.Equal(t, course.Lectures[0].ID, progress.LecturesProgress[0].LectureID)
}

func TestMarkLectureViewed_RejectsLectureOutsideCurriculum(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)
	other := createCourse(t, db, instructor, 1)

	_, err := svc.MarkLectureViewed(student.ID, course.ID, other.Lectures[0].ID)
	assert.ErrorIs(t, err, util.ErrLectureNotFound)

	_, err = svc.MarkLectureViewed(student.ID, 9999, course.Lectures[0].ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestMarkLectureViewed_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)

	for i := 0; i < 3; i++ {
		_, err := svc.MarkLectureViewed(student.ID, course.ID, course.Lectures[0].ID)
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&model.LectureProgress{}).
		Where("user_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkLectureViewed_CompletesWhenAllViewed(t *testing.T) {
	db := newTestDB(t)
	svc, mailer := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 3)

	var progress *model.CourseProgress
	var err error
	for _, lecture := range course.Lectures {
		progress, err = svc.MarkLectureViewed(student.ID, course.ID, lecture.ID)
		require.NoError(t, err)
	}

	assert.True(t, progress.Completed)
	require.NotNil(t, progress.CompletionDate)

	// 完课通知落库 + 发信
	var n int64
	require.NoError(t, db.Model(&model.Notification{}).
		Where("user_id = ? AND type = ?", student.ID, model.NotifyCourseCompleted).
		Count(&n).Error)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, mailer.sent, "恭喜完课")
}

func TestMarkLectureViewed_PartialViewDoesNotComplete(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 3)

	progress, err := svc.MarkLectureViewed(student.ID, course.ID, course.Lectures[0].ID)
	require.NoError(t, err)
	assert.False(t, progress.Completed)
	assert.Nil(t, progress.CompletionDate)
}

func TestCompletion_TracksLiveCurriculum(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)
	courseRepo := repository.NewCourseRepository(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)

	// 看完第 1 讲后讲师把大纲缩减为只剩第 1 讲
	_, err := svc.MarkLectureViewed(student.ID, course.ID, course.Lectures[0].ID)
	require.NoError(t, err)

	require.NoError(t, db.Unscoped().Delete(&model.Lecture{}, course.Lectures[1].ID).Error)

	// 分母是实时大纲：再次触发判定即完课
	_, err = svc.MarkLectureViewed(student.ID, course.ID, course.Lectures[0].ID)
	require.NoError(t, err)

	progress, err := repository.NewProgressRepository(db).Find(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, progress.Completed)

	// 完课后扩充大纲，已完成状态单向保持
	require.NoError(t, courseRepo.DB.Create(&model.Lecture{CourseID: course.ID, Title: "新增讲", Sort: 9}).Error)
	_, err = svc.MarkLectureViewed(student.ID, course.ID, course.Lectures[0].ID)
	require.NoError(t, err)

	progress, err = repository.NewProgressRepository(db).Find(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, progress.Completed)
}

func TestGetProgress_NotPurchasedShortCircuits(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)

	view, err := svc.GetProgress(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, view.IsPurchased)
	assert.Nil(t, view.Course)
	assert.Empty(t, view.Progress)
}

func TestGetProgress_PurchasedWithZeroProgress(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)
	grantEntitlement(t, db, student, course)

	view, err := svc.GetProgress(student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, view.IsPurchased)
	require.NotNil(t, view.Course)
	assert.False(t, view.Completed)
	assert.Empty(t, view.Progress)
}

func TestResetProgress_ClearsLecturesAndCompletion(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)

	for _, lecture := range course.Lectures {
		_, err := svc.MarkLectureViewed(student.ID, course.ID, lecture.ID)
		require.NoError(t, err)
	}

	progress, err := svc.ResetProgress(student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, progress.Completed)
	assert.Nil(t, progress.CompletionDate)
	assert.Empty(t, progress.LecturesProgress)

	// 重置后重新看完全部讲座，完课状态可以再次达成
	for _, lecture := range course.Lectures {
		progress, err = svc.MarkLectureViewed(student.ID, course.ID, lecture.ID)
		require.NoError(t, err)
	}
	assert.True(t, progress.Completed)
	require.NotNil(t, progress.CompletionDate)
}

func TestResetProgress_NoRecord(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newProgressService(db)

	student := createUser(t, db, "alice", model.Student)

	_, err := svc.ResetProgress(student.ID, 42)
	assert.ErrorIs(t, err, util.ErrProgressNotFound)
}
