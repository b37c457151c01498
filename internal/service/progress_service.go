package service

import (
	"errors"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// ProgressService 课程观看进度与完课判定
type ProgressService struct {
	ProgressRepo      *repository.ProgressRepository
	CourseRepo        *repository.CourseRepository
	StudentCourseRepo *repository.StudentCourseRepository
	Notification      *NotificationService
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	courseRepo *repository.CourseRepository,
	studentCourseRepo *repository.StudentCourseRepository,
	notification *NotificationService,
) *ProgressService {
	return &ProgressService{
		ProgressRepo:      progressRepo,
		CourseRepo:        courseRepo,
		StudentCourseRepo: studentCourseRepo,
		Notification:      notification,
	}
}

// MarkLectureViewed 标记单讲已观看并重新判定完课。幂等：
// 重复标记同一讲收敛为一次 update，完成状态不变。
func (s *ProgressService) MarkLectureViewed(userID, courseID, lectureID uint) (*model.CourseProgress, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	// 讲座必须在当前大纲里
	found := false
	for _, l := range course.Lectures {
		if l.ID == lectureID {
			found = true
			break
		}
	}
	if !found {
		return nil, util.ErrLectureNotFound
	}

	progress, err := s.ProgressRepo.FindOrCreate(userID, courseID)
	if err != nil {
		return nil, err
	}

	if err := s.ProgressRepo.UpsertLecture(progress.ID, userID, courseID, lectureID); err != nil {
		return nil, err
	}

	if err := s.evaluateCompletion(progress, course); err != nil {
		return nil, err
	}

	return s.ProgressRepo.Find(userID, courseID)
}

// evaluateCompletion 完课判定。分母永远是实时大纲长度：讲师改大纲后
// 学生的完成状态随之浮动，这是有意行为。已完成状态单向保持，
// 除非显式重置。
func (s *ProgressService) evaluateCompletion(progress *model.CourseProgress, course *model.Course) error {
	if progress.Completed {
		return nil
	}

	curriculum, err := s.CourseRepo.CurriculumIDs(course.ID)
	if err != nil {
		return err
	}
	if len(curriculum) == 0 {
		return nil
	}

	viewed, err := s.ProgressRepo.ViewedLectureIDs(progress.UserID, progress.CourseID)
	if err != nil {
		return err
	}

	viewedSet := make(map[uint]bool, len(viewed))
	for _, id := range viewed {
		viewedSet[id] = true
	}

	// 按大纲计数：已不在大纲里的历史观看记录不参与
	viewedInCurriculum := 0
	for _, id := range curriculum {
		if viewedSet[id] {
			viewedInCurriculum++
		}
	}

	if viewedInCurriculum < len(curriculum) {
		return nil
	}

	now := time.Now()
	if err := s.ProgressRepo.MarkCompleted(progress.ID, now); err != nil {
		return err
	}
	progress.Completed = true
	progress.CompletionDate = &now

	monitoring.CoursesCompleted.Inc()
	if s.Notification != nil {
		s.Notification.NotifyCourseCompleted(progress.UserID, course.Title)
	}
	return nil
}

// ProgressView getProgress 的返回载荷。未购买时 IsPurchased=false
// 且不携带任何课程内容。
type ProgressView struct {
	IsPurchased    bool                    `json:"isPurchased"`
	Completed      bool                    `json:"completed"`
	CompletionDate *time.Time              `json:"completionDate,omitempty"`
	Progress       []model.LectureProgress `json:"progress,omitempty"`
	Course         *model.Course           `json:"courseDetails,omitempty"`
}

// GetProgress 购买门禁先于进度查询：未购买直接短路返回，不泄露课程详情
func (s *ProgressService) GetProgress(userID, courseID uint) (*ProgressView, error) {
	purchased, err := s.StudentCourseRepo.HasPurchased(userID, courseID)
	if err != nil {
		return nil, err
	}
	if !purchased {
		return &ProgressView{IsPurchased: false}, nil
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	view := &ProgressView{IsPurchased: true, Course: course}

	progress, err := s.ProgressRepo.Find(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 已购买但还没开始看，零进度
			return view, nil
		}
		return nil, err
	}

	view.Completed = progress.Completed
	view.CompletionDate = progress.CompletionDate
	view.Progress = progress.LecturesProgress
	return view, nil
}

// ResetProgress 重学：清空单讲记录和完成状态。无进度记录时报 NotFound。
func (s *ProgressService) ResetProgress(userID, courseID uint) (*model.CourseProgress, error) {
	progress, err := s.ProgressRepo.Find(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrProgressNotFound
		}
		return nil, err
	}

	if err := s.ProgressRepo.Reset(progress); err != nil {
		return nil, err
	}

	return s.ProgressRepo.Find(userID, courseID)
}
