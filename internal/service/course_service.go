package service

import (
	"errors"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseService 课程管理与学生端目录
type CourseService struct {
	CourseRepo        *repository.CourseRepository
	StudentCourseRepo *repository.StudentCourseRepository
	Notification      *NotificationService
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	studentCourseRepo *repository.StudentCourseRepository,
	notification *NotificationService,
) *CourseService {
	return &CourseService{
		CourseRepo:        courseRepo,
		StudentCourseRepo: studentCourseRepo,
		Notification:      notification,
	}
}

func (s *CourseService) Create(instructor *model.User, course *model.Course) error {
	course.InstructorID = instructor.ID
	course.InstructorName = instructor.Name
	// 新课程一律从未发布开始，上线走显式 Publish
	course.IsPublished = false
	return s.CourseRepo.Create(course)
}

func (s *CourseService) Update(instructorID uint, course *model.Course) error {
	existing, err := s.CourseRepo.FindByID(course.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	if existing.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}

	course.InstructorID = existing.InstructorID
	course.InstructorName = existing.InstructorName
	course.IsPublished = existing.IsPublished
	return s.CourseRepo.Update(course)
}

// ReplaceCurriculum 整体替换大纲。已完课学生的状态不回退，
// 未完课学生的进度按新大纲重新计算。
func (s *CourseService) ReplaceCurriculum(instructorID, courseID uint, lectures []model.Lecture) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	if course.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}
	return s.CourseRepo.ReplaceCurriculum(courseID, lectures)
}

// Publish 上线课程。publishAt 非空时转为定时发布，由后台任务扫描执行。
func (s *CourseService) Publish(instructorID, courseID uint, publishAt *time.Time) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}

	if publishAt != nil && publishAt.After(time.Now()) {
		course.PublishAt = publishAt
		if err := s.CourseRepo.Update(course); err != nil {
			return nil, err
		}
		return course, nil
	}

	if err := s.CourseRepo.SetPublished(courseID, true); err != nil {
		return nil, err
	}
	course.IsPublished = true
	course.PublishAt = nil

	if s.Notification != nil {
		s.Notification.NotifyCoursePublished(course.InstructorID, course.Title)
	}
	return course, nil
}

func (s *CourseService) Unpublish(instructorID, courseID uint) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	if course.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}
	return s.CourseRepo.SetPublished(courseID, false)
}

// PublishScheduled 后台任务：发布到期的定时发布课程
func (s *CourseService) PublishScheduled() error {
	published, err := s.CourseRepo.PublishScheduled(time.Now())
	if err != nil {
		return err
	}
	for _, c := range published {
		logger.Log.Info("scheduled course published",
			zap.Uint("courseID", c.ID), zap.String("title", c.Title))
		if s.Notification != nil {
			s.Notification.NotifyCoursePublished(c.InstructorID, c.Title)
		}
	}
	return nil
}

func (s *CourseService) ListPublished(f repository.CourseFilter) ([]model.Course, int64, error) {
	return s.CourseRepo.ListPublished(f)
}

func (s *CourseService) ListByInstructor(instructorID uint) ([]model.Course, error) {
	return s.CourseRepo.ListByInstructor(instructorID)
}

// CourseDetail 学生端课程详情载荷
type CourseDetail struct {
	Course      *model.Course `json:"course"`
	IsPurchased bool          `json:"isPurchased"`
}

// GetDetail 学生端课程详情。未购买用户只保留免费试看讲座的视频地址，
// 其余讲座仅暴露标题。未登录用户 userID 传 0。
func (s *CourseService) GetDetail(courseID, userID uint) (*CourseDetail, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	purchased := false
	if userID != 0 {
		// 讲师看自己的课等同已购买
		if course.InstructorID == userID {
			purchased = true
		} else {
			purchased, err = s.StudentCourseRepo.HasPurchased(userID, courseID)
			if err != nil {
				return nil, err
			}
		}
	}

	if !course.IsPublished && !purchased {
		return nil, util.ErrCourseNotFound
	}

	if !purchased {
		for i := range course.Lectures {
			if !course.Lectures[i].FreePreview {
				course.Lectures[i].VideoURL = ""
			}
		}
	}

	return &CourseDetail{Course: course, IsPurchased: purchased}, nil
}

// GetOwned 讲师端课程详情，不做试看过滤
func (s *CourseService) GetOwned(instructorID, courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseService) ListStudents(instructorID, courseID uint) ([]model.CourseStudent, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}
	return s.CourseRepo.ListStudents(courseID)
}

// Delete 管理员删除课程，级联清理相关数据
func (s *CourseService) Delete(courseID uint) error {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	return s.CourseRepo.Delete(courseID)
}

// ListPurchased 学生已购课程列表
func (s *CourseService) ListPurchased(userID uint) ([]model.StudentCourse, error) {
	return s.StudentCourseRepo.ListByUser(userID)
}
