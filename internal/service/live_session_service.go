package service

import (
	"errors"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

// LiveSessionService 直播课排期管理
type LiveSessionService struct {
	SessionRepo       *repository.LiveSessionRepository
	CourseRepo        *repository.CourseRepository
	StudentCourseRepo *repository.StudentCourseRepository
	Notification      *NotificationService
}

func NewLiveSessionService(
	sessionRepo *repository.LiveSessionRepository,
	courseRepo *repository.CourseRepository,
	studentCourseRepo *repository.StudentCourseRepository,
	notification *NotificationService,
) *LiveSessionService {
	return &LiveSessionService{
		SessionRepo:       sessionRepo,
		CourseRepo:        courseRepo,
		StudentCourseRepo: studentCourseRepo,
		Notification:      notification,
	}
}

// Create 讲师为自己的课程创建场次，并通知已入册学生
func (s *LiveSessionService) Create(instructorID uint, session *model.LiveSession) error {
	course, err := s.CourseRepo.FindByID(session.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	if course.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}

	session.InstructorID = instructorID
	session.Status = model.SessionScheduled
	if err := s.SessionRepo.Create(session); err != nil {
		return err
	}

	if s.Notification != nil {
		students, err := s.CourseRepo.ListStudents(course.ID)
		if err == nil {
			for _, st := range students {
				s.Notification.NotifySessionCreated(st.UserID, course.Title, session.Title, session.StartAt)
			}
		}
	}
	return nil
}

func (s *LiveSessionService) Cancel(instructorID, sessionID uint) error {
	return s.setStatus(instructorID, sessionID, model.SessionCancelled)
}

func (s *LiveSessionService) Finish(instructorID, sessionID uint) error {
	return s.setStatus(instructorID, sessionID, model.SessionFinished)
}

func (s *LiveSessionService) setStatus(instructorID, sessionID uint, status model.SessionStatus) error {
	session, err := s.SessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrSessionNotFound
		}
		return err
	}
	if session.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}
	session.Status = status
	return s.SessionRepo.Update(session)
}

// ListForCourse 课程下的场次。学生要求已购买，讲师看自己的课。
func (s *LiveSessionService) ListForCourse(userID, courseID uint) ([]model.LiveSession, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	if course.InstructorID != userID {
		purchased, err := s.StudentCourseRepo.HasPurchased(userID, courseID)
		if err != nil {
			return nil, err
		}
		if !purchased {
			return nil, util.ErrNotPurchased
		}
	}

	return s.SessionRepo.ListByCourse(courseID)
}

// ListUpcoming 学生的直播课日程
func (s *LiveSessionService) ListUpcoming(userID uint) ([]model.LiveSession, error) {
	return s.SessionRepo.ListUpcomingForStudent(userID, time.Now())
}
