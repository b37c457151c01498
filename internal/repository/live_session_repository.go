package repository

import (
	"time"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type LiveSessionRepository struct {
	DB *gorm.DB
}

func NewLiveSessionRepository(db *gorm.DB) *LiveSessionRepository {
	return &LiveSessionRepository{DB: db}
}

func (r *LiveSessionRepository) Create(session *model.LiveSession) error {
	return r.DB.Create(session).Error
}

func (r *LiveSessionRepository) FindByID(id uint) (*model.LiveSession, error) {
	var session model.LiveSession
	err := r.DB.First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *LiveSessionRepository) Update(session *model.LiveSession) error {
	return r.DB.Save(session).Error
}

func (r *LiveSessionRepository) ListByCourse(courseID uint) ([]model.LiveSession, error) {
	var sessions []model.LiveSession
	err := r.DB.Where("course_id = ?", courseID).Order("start_at ASC").Find(&sessions).Error
	return sessions, err
}

// ListUpcomingForStudent 学生已购课程的未开始场次
func (r *LiveSessionRepository) ListUpcomingForStudent(userID uint, now time.Time) ([]model.LiveSession, error) {
	var sessions []model.LiveSession
	err := r.DB.
		Joins("JOIN student_courses sc ON sc.course_id = live_sessions.course_id AND sc.user_id = ?", userID).
		Where("live_sessions.status = ? AND live_sessions.start_at >= ?", model.SessionScheduled, now).
		Order("live_sessions.start_at ASC").
		Find(&sessions).Error
	return sessions, err
}
