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

func newCourseService(db *gorm.DB) (*CourseService, *recordingMailer) {
	notification, mailer := newSyncNotificationService(db)
	return NewCourseService(
		repository.NewCourseRepository(db),
		repository.NewStudentCourseRepository(db),
		notification,
	), mailer
}

func TestCourseUpdate_OnlyOwner(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCourseService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	outsider := createUser(t, db, "mallory", model.Instructor)
	course := createCourse(t, db, instructor, 1)

	update := &model.Course{Title: "改名"}
	update.ID = course.ID
	err := svc.Update(outsider.ID, update)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestPublish_ImmediateAndScheduled(t *testing.T) {
	db := newTestDB(t)
	svc, mailer := newCourseService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	course := createCourse(t, db, instructor, 1)
	require.NoError(t, db.Model(&model.Course{}).Where("id = ?", course.ID).Update("is_published", false).Error)

	// 定时发布：只落 publish_at，不上线
	future := time.Now().Add(time.Hour)
	published, err := svc.Publish(instructor.ID, course.ID, &future)
	require.NoError(t, err)
	assert.False(t, published.IsPublished)
	require.NotNil(t, published.PublishAt)
	assert.Empty(t, mailer.sent)

	// 后台任务在到期前不动它
	require.NoError(t, svc.PublishScheduled())
	got, err := repository.NewCourseRepository(db).FindByID(course.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublished)

	// 到期后发布并通知讲师
	require.NoError(t, db.Model(&model.Course{}).
		Where("id = ?", course.ID).
		Update("publish_at", time.Now().Add(-time.Minute)).Error)
	require.NoError(t, svc.PublishScheduled())

	got, err = repository.NewCourseRepository(db).FindByID(course.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)
	assert.Nil(t, got.PublishAt)
	assert.Contains(t, mailer.sent, "课程已发布")
}

func TestGetDetail_FreePreviewGating(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCourseService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)

	require.NoError(t, db.Model(&model.Lecture{}).
		Where("id = ?", course.Lectures[0].ID).
		Updates(map[string]interface{}{"free_preview": true, "video_url": "https://cdn/preview.mp4"}).Error)
	require.NoError(t, db.Model(&model.Lecture{}).
		Where("id = ?", course.Lectures[1].ID).
		Update("video_url", "https://cdn/full.mp4").Error)

	// 未购买：只保留试看讲座的视频地址
	detail, err := svc.GetDetail(course.ID, student.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsPurchased)
	assert.Equal(t, "https://cdn/preview.mp4", detail.Course.Lectures[0].VideoURL)
	assert.Empty(t, detail.Course.Lectures[1].VideoURL)

	// 已购买：全部可见
	grantEntitlement(t, db, student, course)
	detail, err = svc.GetDetail(course.ID, student.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsPurchased)
	assert.Equal(t, "https://cdn/full.mp4", detail.Course.Lectures[1].VideoURL)
}

func TestGetDetail_UnpublishedHiddenFromStrangers(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCourseService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 1)
	require.NoError(t, db.Model(&model.Course{}).Where("id = ?", course.ID).Update("is_published", false).Error)

	_, err := svc.GetDetail(course.ID, student.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	// 讲师自己能看
	detail, err := svc.GetDetail(course.ID, instructor.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsPurchased)
}

func TestReplaceCurriculum(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCourseService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	course := createCourse(t, db, instructor, 2)

	err := svc.ReplaceCurriculum(instructor.ID, course.ID, []model.Lecture{
		{Title: "新第一讲"},
		{Title: "新第二讲"},
		{Title: "新第三讲"},
	})
	require.NoError(t, err)

	ids, err := repository.NewCourseRepository(db).CurriculumIDs(course.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	for _, old := range course.Lectures {
		assert.NotContains(t, ids, old.ID)
	}
}

func TestCourseDelete_Cascades(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCourseService(db)

	instructor := createUser(t, db, "teacher", model.Instructor)
	student := createUser(t, db, "alice", model.Student)
	course := createCourse(t, db, instructor, 2)
	grantEntitlement(t, db, student, course)
	require.NoError(t, db.Create(&model.CourseProgress{UserID: student.ID, CourseID: course.ID}).Error)

	require.NoError(t, svc.Delete(course.ID))

	var lectures, entitlements, progresses int64
	require.NoError(t, db.Model(&model.Lecture{}).Where("course_id = ?", course.ID).Count(&lectures).Error)
	require.NoError(t, db.Model(&model.StudentCourse{}).Where("course_id = ?", course.ID).Count(&entitlements).Error)
	require.NoError(t, db.Model(&model.CourseProgress{}).Where("course_id = ?", course.ID).Count(&progresses).Error)
	assert.Zero(t, lectures)
	assert.Zero(t, entitlements)
	assert.Zero(t, progresses)
}
